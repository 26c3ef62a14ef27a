package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/google/uuid"
)

func NewRecord(pipelineID string, features feature.Vector, willFail bool, createdAt time.Time) Record {
	return Record{
		ID:         uuid.New(),
		PipelineID: pipelineID,
		Vector:     features,
		WillFail:   willFail,
		CreatedAt:  createdAt,
	}
}

var _ predictor.Sample = (*Record)(nil)

// Record is one labelled pipeline observation.
type Record struct {
	ID         uuid.UUID      `json:"id"`
	PipelineID string         `json:"pipelineId"`
	Vector     feature.Vector `json:"features"`
	WillFail   bool           `json:"willFailInNext2Hours"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (r Record) Features() feature.Vector {
	return r.Vector
}

func (r Record) Label() bool {
	return r.WillFail
}

var ErrEmptyPipeline = errors.New("pipeline id is empty")

// Validate rejects records the trainer could not use.
func (r Record) Validate() error {
	if r.PipelineID == "" {
		return ErrEmptyPipeline
	}
	if err := r.Vector.CheckFinite(); err != nil {
		return fmt.Errorf("pipeline %s: %w", r.PipelineID, err)
	}
	return nil
}
