package source

import (
	"encoding/json"
	"time"

	"github.com/go-sod/pipecast/internal/httputil"
)

type Config struct {
	Targets              Targets       `envconfig:"PIPECAST_SOURCE_TARGETS"`
	MaxConcurrentRequest int           `envconfig:"PIPECAST_SOURCE_MAX_CONCURRENT_REQUEST" default:"16"`
	Interval             time.Duration `envconfig:"PIPECAST_SOURCE_INTERVAL" default:"1m"`
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

// Target is an upstream returning labelled records. PipelineID names the
// records when the response does not.
type Target struct {
	URL        string                    `json:"url"`
	PipelineID string                    `json:"pipeline"`
	HTTPConfig httputil.HTTPClientConfig `json:"httpConfig"`
}
