package model

import (
	"time"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/google/uuid"
)

// Failure is one positive prediction waiting to be delivered.
type Failure struct {
	PipelineID   string         `json:"pipelineId"`
	Features     feature.Vector `json:"features"`
	Confidence   float64        `json:"confidence"`
	DecisionPath []string       `json:"decisionPath"`
	ModelID      string         `json:"modelId"`
	PredictedAt  time.Time      `json:"predictedAt"`
}

func NewFailure(pipelineID string, features feature.Vector, c *predictor.Conclusion, modelID string, at time.Time) Failure {
	return Failure{
		PipelineID:   pipelineID,
		Features:     features.Copy(),
		Confidence:   c.Confidence,
		DecisionPath: c.DecisionPath(),
		ModelID:      modelID,
		PredictedAt:  at,
	}
}

func NewAlert(pipelineID, targetURL string, failures []Failure) Alert {
	return Alert{
		ID:         uuid.New(),
		PipelineID: pipelineID,
		TargetURL:  targetURL,
		Failures:   failures,
		CreatedAt:  time.Now(),
	}
}

// Alert is the undelivered backlog of one pipeline for one webhook target.
type Alert struct {
	ID         uuid.UUID `json:"id"`
	PipelineID string    `json:"pipelineId"`
	TargetURL  string    `json:"targetUrl"`
	Failures   []Failure `json:"failures"`
	CreatedAt  time.Time `json:"createdAt"`
}
