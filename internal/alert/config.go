package alert

import (
	"encoding/json"
	"time"

	"github.com/go-sod/pipecast/internal/httputil"
)

// AnyPipeline as a target pipeline receives alerts of every pipeline.
const AnyPipeline = "*"

type Config struct {
	AllowAlerts          bool          `envconfig:"PIPECAST_ALLOW_ALERTS" default:"true"`
	Targets              Targets       `envconfig:"PIPECAST_ALERT_TARGETS"`
	Interval             time.Duration `envconfig:"PIPECAST_ALERT_INTERVAL" default:"5s"`
	MaxConcurrentRequest int           `envconfig:"PIPECAST_ALERT_MAX_CONCURRENT_REQUEST" default:"64"`
	// Undelivered failures kept per pipeline and target, oldest are dropped.
	MaxPending int `envconfig:"PIPECAST_ALERT_MAX_PENDING" default:"1000"`
}

type Targets []Target

func (ts *Targets) Decode(value string) error {
	targets := []Target{}
	if err := json.Unmarshal([]byte(value), &targets); err != nil {
		return err
	}
	*ts = targets
	return nil
}

type Target struct {
	URL        string                    `json:"url"`
	PipelineID string                    `json:"pipeline"`
	HTTPConfig httputil.HTTPClientConfig `json:"httpConfig"`
}

func (t Target) Matches(pipelineID string) bool {
	return t.PipelineID == AnyPipeline || t.PipelineID == pipelineID
}
