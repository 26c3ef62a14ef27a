package cart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"time"

	xdr "github.com/davecgh/go-xdr/xdr2"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/google/uuid"
)

const snapshotVersion = 1

var ErrCorruptModel = errors.New("corrupt model snapshot")

type snapshotNode struct {
	Leaf       bool
	Feature    string
	Threshold  float64
	Left       int32
	Right      int32
	Prediction bool
	Confidence float64
	Samples    uint32
	Depth      uint32
}

type snapshot struct {
	Version        uint32
	ID             string
	TrainedAt      int64
	MaxDepth       uint32
	MinSamplesLeaf uint32
	Samples        uint32
	Accuracy       float64
	Nodes          []snapshotNode
}

// MarshalBinary encodes the model as XDR.
func (m *Model) MarshalBinary() ([]byte, error) {
	s := snapshot{
		Version:        snapshotVersion,
		ID:             m.ID(),
		TrainedAt:      m.trainedAt.UnixNano(),
		MaxDepth:       uint32(m.params.MaxDepth),
		MinSamplesLeaf: uint32(m.params.MinSamplesLeaf),
		Samples:        uint32(m.samples),
		Accuracy:       m.accuracy,
		Nodes:          make([]snapshotNode, len(m.nodes)),
	}
	for i, n := range m.nodes {
		s.Nodes[i] = snapshotNode{
			Leaf:       n.Leaf,
			Feature:    string(n.Feature),
			Threshold:  n.Threshold,
			Left:       n.Left,
			Right:      n.Right,
			Prediction: n.Prediction,
			Confidence: n.Confidence,
			Samples:    uint32(n.Samples),
			Depth:      uint32(n.Depth),
		}
	}
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &s); err != nil {
		return nil, fmt.Errorf("xdr marshal model: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a Model from MarshalBinary output. The arena is checked to
// be a proper binary tree before it is accepted.
func Decode(data []byte) (*Model, error) {
	var s snapshot
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptModel, err)
	}
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptModel, s.Version)
	}
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrCorruptModel, err)
	}
	nodes := make([]Node, len(s.Nodes))
	for i, sn := range s.Nodes {
		n := Node{
			Leaf:       sn.Leaf,
			Left:       sn.Left,
			Right:      sn.Right,
			Prediction: sn.Prediction,
			Confidence: sn.Confidence,
			Samples:    int(sn.Samples),
			Depth:      int(sn.Depth),
			fi:         -1,
		}
		if !sn.Leaf {
			fi, err := feature.Index(feature.Name(sn.Feature))
			if err != nil {
				return nil, fmt.Errorf("%w: node %d: %v", ErrCorruptModel, i, err)
			}
			n.Feature = feature.Name(sn.Feature)
			n.Threshold = sn.Threshold
			n.fi = fi
		}
		nodes[i] = n
	}
	if err := checkArena(nodes); err != nil {
		return nil, err
	}
	m := &Model{
		id:        id,
		nodes:     nodes,
		params:    Params{MaxDepth: int(s.MaxDepth), MinSamplesLeaf: int(s.MinSamplesLeaf)},
		samples:   int(s.Samples),
		accuracy:  s.Accuracy,
		trainedAt: time.Unix(0, s.TrainedAt).UTC(),
	}
	m.importance = importance(nodes)
	return m, nil
}

// DecodeModel adapts Decode to the predictor interfaces.
func DecodeModel(data []byte) (predictor.Model, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func checkArena(nodes []Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("%w: no nodes", ErrCorruptModel)
	}
	if nodes[0].Depth != 0 {
		return fmt.Errorf("%w: root depth %d", ErrCorruptModel, nodes[0].Depth)
	}
	seen := make([]bool, len(nodes))
	seen[0] = true
	for i := range nodes {
		n := &nodes[i]
		if !seen[i] {
			return fmt.Errorf("%w: node %d is unreachable", ErrCorruptModel, i)
		}
		if n.Leaf {
			if math.IsNaN(n.Confidence) || n.Confidence < 0.5 || n.Confidence > 1 {
				return fmt.Errorf("%w: node %d confidence %v", ErrCorruptModel, i, n.Confidence)
			}
			continue
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("%w: node %d threshold %v", ErrCorruptModel, i, n.Threshold)
		}
		for _, c := range [2]int32{n.Left, n.Right} {
			if int(c) <= i || int(c) >= len(nodes) {
				return fmt.Errorf("%w: node %d has child %d out of order", ErrCorruptModel, i, c)
			}
			if seen[c] {
				return fmt.Errorf("%w: node %d is shared", ErrCorruptModel, c)
			}
			if nodes[c].Depth != n.Depth+1 {
				return fmt.Errorf("%w: node %d depth %d under depth %d", ErrCorruptModel, c, nodes[c].Depth, n.Depth)
			}
			seen[c] = true
		}
		if nodes[n.Left].Samples+nodes[n.Right].Samples != n.Samples {
			return fmt.Errorf("%w: node %d children do not partition %d samples", ErrCorruptModel, i, n.Samples)
		}
	}
	return nil
}
