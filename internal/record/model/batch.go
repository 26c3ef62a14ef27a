package model

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
)

var ErrMissingLabel = errors.New("willFail is missing")

// Batch is the wire form of labelled records of one pipeline, used by
// /collect and by scraped upstreams.
type Batch struct {
	PipelineID string      `json:"pipeline"`
	Data       []BatchItem `json:"data"`
}

type BatchItem struct {
	Features  feature.Vector `json:"features"`
	WillFail  *bool          `json:"willFail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Records converts the batch, oldest first. Items without a creation time
// get now.
func (b Batch) Records(now time.Time) ([]Record, error) {
	if b.PipelineID == "" {
		return nil, ErrEmptyPipeline
	}
	records := make([]Record, 0, len(b.Data))
	for i, item := range b.Data {
		for name := range item.Features {
			if _, err := feature.Index(name); err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}
		if item.WillFail == nil {
			return nil, fmt.Errorf("item %d: %w", i, ErrMissingLabel)
		}
		createdAt := item.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		records = append(records, NewRecord(b.PipelineID, item.Features, *item.WillFail, createdAt))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}
