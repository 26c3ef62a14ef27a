package cart

import (
	"fmt"
	"strings"

	"github.com/go-sod/pipecast/internal/feature"
)

// Node is one entry of the tree arena. The root is at index 0 and children
// always sit at higher indices than their parent.
type Node struct {
	Leaf bool
	// internal nodes
	Feature   feature.Name
	Threshold float64
	Left      int32
	Right     int32
	// leaves
	Prediction bool
	Confidence float64

	Samples int
	Depth   int

	fi int
}

func newLeaf(pos, n, depth int) Node {
	f := float64(pos) / float64(n)
	confidence := f
	if 1-f > confidence {
		confidence = 1 - f
	}
	return Node{
		Leaf:       true,
		Prediction: f >= 0.5,
		Confidence: confidence,
		Samples:    n,
		Depth:      depth,
		Left:       -1,
		Right:      -1,
		fi:         -1,
	}
}

type builder struct {
	data   *dataset
	params Params
	nodes  []Node
}

// grow appends the subtree for rows and returns the index of its root.
func (b *builder) grow(rows []int, depth int) int32 {
	pos := 0
	for _, r := range rows {
		if b.data.y[r] {
			pos++
		}
	}
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, newLeaf(pos, len(rows), depth))

	if depth >= b.params.MaxDepth || len(rows) < b.params.MinSamplesLeaf || pos == 0 || pos == len(rows) {
		return idx
	}
	s, ok := b.bestSplit(rows, pos)
	if !ok || s.gain < MinGain {
		return idx
	}

	left, right := b.partition(rows, s)
	node := Node{
		Feature:   feature.Names[s.feature],
		Threshold: s.threshold,
		Samples:   len(rows),
		Depth:     depth,
		fi:        s.feature,
	}
	node.Left = b.grow(left, depth+1)
	node.Right = b.grow(right, depth+1)
	b.nodes[idx] = node
	return idx
}

func importance(nodes []Node) [feature.Count]float64 {
	var (
		imp   [feature.Count]float64
		total float64
	)
	for i := range nodes {
		if nodes[i].Leaf {
			continue
		}
		w := 1 / float64(nodes[i].Depth+1)
		imp[nodes[i].fi] += w
		total += w
	}
	if total == 0 {
		return imp
	}
	for i := range imp {
		imp[i] /= total
	}
	return imp
}

func (n *Node) label() string {
	if n.Leaf {
		return fmt.Sprintf("{ predict=%t confidence=%.3f } [ %d ]", n.Prediction, n.Confidence, n.Samples)
	}
	return fmt.Sprintf("{ %s <= %s } [ %d ]", n.Feature, feature.FormatValue(n.Threshold), n.Samples)
}

func writeNode(sb *strings.Builder, nodes []Node, idx int32, prefix string, last bool, root bool) {
	n := &nodes[idx]
	if root {
		sb.WriteString(n.label())
		sb.WriteString("\n")
	} else {
		branch, pad := "|__", "|  "
		if last {
			pad = "   "
		}
		sb.WriteString(prefix + branch + n.label() + "\n")
		prefix += pad
	}
	if n.Leaf {
		return
	}
	writeNode(sb, nodes, n.Left, prefix, false, false)
	writeNode(sb, nodes, n.Right, prefix, true, false)
}
