package cart

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/google/uuid"
)

var _ predictor.Model = (*Model)(nil)

// Model is a grown tree with its training statistics. It is never modified
// after Grow or Decode return it.
type Model struct {
	id         uuid.UUID
	nodes      []Node
	params     Params
	samples    int
	accuracy   float64
	trainedAt  time.Time
	importance [feature.Count]float64
}

func (m *Model) ID() string {
	return m.id.String()
}

func (m *Model) Params() Params {
	return m.params
}

// TrainingAccuracy is the share of training samples the tree reclassifies
// correctly. It is measured in-sample and overstates accuracy on new data.
func (m *Model) TrainingAccuracy() float64 {
	return m.accuracy
}

func (m *Model) TrainedAt() time.Time {
	return m.trainedAt
}

// Samples is the size of the training set.
func (m *Model) Samples() int {
	return m.samples
}

func (m *Model) FeatureImportance() map[feature.Name]float64 {
	imp := make(map[feature.Name]float64, feature.Count)
	for i, n := range feature.Names {
		imp[n] = m.importance[i]
	}
	return imp
}

// Nodes returns a copy of the tree arena.
func (m *Model) Nodes() []Node {
	nodes := make([]Node, len(m.nodes))
	copy(nodes, m.nodes)
	return nodes
}

func (m *Model) NodeCount() int {
	return len(m.nodes)
}

func (m *Model) Depth() int {
	depth := 0
	for i := range m.nodes {
		if m.nodes[i].Depth > depth {
			depth = m.nodes[i].Depth
		}
	}
	return depth
}

// Predict walks from the root to a leaf and reports every condition taken.
// NaN values compare false and so always descend right.
func (m *Model) Predict(v feature.Vector) (*predictor.Conclusion, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	var conditions []predictor.Condition
	idx := int32(0)
	for {
		n := &m.nodes[idx]
		if n.Leaf {
			return &predictor.Conclusion{
				WillFail:   n.Prediction,
				Confidence: n.Confidence,
				Conditions: conditions,
			}, nil
		}
		observed := v[n.Feature]
		c := predictor.Condition{Feature: n.Feature, Threshold: n.Threshold, Observed: observed}
		if observed <= n.Threshold {
			c.Operator = predictor.OpLessOrEqual
			idx = n.Left
		} else {
			c.Operator = predictor.OpGreater
			idx = n.Right
		}
		conditions = append(conditions, c)
	}
}

func (m *Model) leafFor(data *dataset, row int) *Node {
	idx := int32(0)
	for !m.nodes[idx].Leaf {
		n := &m.nodes[idx]
		if data.x[n.fi][row] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return &m.nodes[idx]
}

func (m *Model) score(data *dataset) float64 {
	correct := 0
	for row := range data.y {
		if m.leafFor(data, row).Prediction == data.y[row] {
			correct++
		}
	}
	return float64(correct) / float64(len(data.y))
}

func (m *Model) String() string {
	var sb strings.Builder
	writeNode(&sb, m.nodes, 0, "", true, true)
	return sb.String()
}

type jsonNode struct {
	Feature    feature.Name `json:"feature,omitempty"`
	Threshold  *float64     `json:"threshold,omitempty"`
	Left       *jsonNode    `json:"left,omitempty"`
	Right      *jsonNode    `json:"right,omitempty"`
	Prediction *bool        `json:"prediction,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	Samples    int          `json:"samples"`
}

type jsonModel struct {
	ID                string                   `json:"id"`
	TrainedAt         time.Time                `json:"trainedAt"`
	TrainingAccuracy  float64                  `json:"trainingAccuracy"`
	FeatureImportance map[feature.Name]float64 `json:"featureImportance"`
	Params            Params                   `json:"params"`
	Samples           int                      `json:"samples"`
	NodeCount         int                      `json:"nodeCount"`
	Depth             int                      `json:"depth"`
	Tree              *jsonNode                `json:"tree"`
}

func (m *Model) jsonTree(idx int32) *jsonNode {
	n := m.nodes[idx]
	if n.Leaf {
		return &jsonNode{Prediction: &n.Prediction, Confidence: &n.Confidence, Samples: n.Samples}
	}
	return &jsonNode{
		Feature:   n.Feature,
		Threshold: &n.Threshold,
		Samples:   n.Samples,
		Left:      m.jsonTree(n.Left),
		Right:     m.jsonTree(n.Right),
	}
}

/*
MarshalJSON renders the model for inspection. The tree is nested: internal
nodes carry "feature", "threshold", "left" and "right", leaves carry
"prediction" and "confidence", and both carry "samples".
*/
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(&jsonModel{
		ID:                m.ID(),
		TrainedAt:         m.trainedAt,
		TrainingAccuracy:  m.accuracy,
		FeatureImportance: m.FeatureImportance(),
		Params:            m.params,
		Samples:           m.samples,
		NodeCount:         len(m.nodes),
		Depth:             m.Depth(),
		Tree:              m.jsonTree(0),
	})
}
