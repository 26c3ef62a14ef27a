package predictor

import (
	"encoding"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
)

type ProvideFn func() (Trainer, error)

// DecodeFn restores a Model from its MarshalBinary form.
type DecodeFn func([]byte) (Model, error)

// Sample is a labelled observation used for training.
type Sample interface {
	Features() feature.Vector
	Label() bool
}

type Trainer interface {
	Train(samples ...Sample) (Model, error)
}

// Model is an immutable trained classifier. Implementations must be safe
// for concurrent Predict calls.
type Model interface {
	encoding.BinaryMarshaler
	json.Marshaler
	ID() string
	NodeCount() int
	Predict(v feature.Vector) (*Conclusion, error)
	TrainingAccuracy() float64
	FeatureImportance() map[feature.Name]float64
	TrainedAt() time.Time
}

type Operator string

const (
	OpLessOrEqual Operator = "≤"
	OpGreater     Operator = ">"
)

// Condition is one split evaluated on the way to a leaf.
type Condition struct {
	Feature   feature.Name `json:"feature"`
	Operator  Operator     `json:"operator"`
	Threshold float64      `json:"threshold"`
	Observed  float64      `json:"observed"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s (%s) %s %s",
		c.Feature, feature.FormatValue(c.Observed), c.Operator, feature.FormatValue(c.Threshold))
}

type Conclusion struct {
	WillFail   bool
	Confidence float64
	Conditions []Condition
}

// DecisionPath renders the conditions for display. Consumers that need the
// parts should read Conditions instead of parsing these strings.
func (c *Conclusion) DecisionPath() []string {
	path := make([]string, len(c.Conditions))
	for i := range c.Conditions {
		path[i] = c.Conditions[i].String()
	}
	return path
}
