package cart

import (
	"math"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastrand"
)

const propertyRuns = 60

// randomSamples draws a small dataset with many repeated feature values and a
// noisy label that depends on two of the features.
func randomSamples() []predictor.Sample {
	n := 1 + int(fastrand.Uint32n(150))
	samples := make([]predictor.Sample, n)
	for i := range samples {
		v := vec(
			float64(fastrand.Uint32n(48)),
			float64(fastrand.Uint32n(101)),
			float64(fastrand.Uint32n(20))*5,
			float64(fastrand.Uint32n(7)),
			float64(fastrand.Uint32n(24)),
		)
		fail := v[feature.HoursSinceLastRun] > 24 || v[feature.AvgFailureRate] > 70
		if fastrand.Uint32n(10) == 0 {
			fail = !fail
		}
		samples[i] = sample{v: v, label: fail}
	}
	return samples
}

func randomParams() Params {
	return Params{
		MaxDepth:       1 + int(fastrand.Uint32n(6)),
		MinSamplesLeaf: 1 + int(fastrand.Uint32n(10)),
	}
}

func TestProperty_Determinism(t *testing.T) {
	for run := 0; run < propertyRuns; run++ {
		samples, params := randomSamples(), randomParams()
		tr := mustTrainer(t, WithParams(params))
		m1, err := tr.Grow(samples...)
		require.NoError(t, err)
		m2, err := tr.Grow(samples...)
		require.NoError(t, err)
		if !assert.Equal(t, m1.Nodes(), m2.Nodes()) {
			t.Fatalf("trees differ for params %+v, samples:\n%s", params, spew.Sdump(samples))
		}
		assert.Equal(t, m1.TrainingAccuracy(), m2.TrainingAccuracy())
		assert.Equal(t, m1.FeatureImportance(), m2.FeatureImportance())
	}
}

func TestProperty_GiniBounds(t *testing.T) {
	for n := 1; n <= 64; n++ {
		for pos := 0; pos <= n; pos++ {
			g := Gini(pos, n)
			if g < 0 || g > 0.5 {
				t.Fatalf("gini(%d, %d) = %v out of [0, 0.5]", pos, n, g)
			}
			if (g == 0) != (pos == 0 || pos == n) {
				t.Fatalf("gini(%d, %d) = %v, zero only when pure", pos, n, g)
			}
		}
	}
}

func TestProperty_TreeShape(t *testing.T) {
	for run := 0; run < propertyRuns; run++ {
		samples, params := randomSamples(), randomParams()
		m, err := mustTrainer(t, WithParams(params)).Grow(samples...)
		require.NoError(t, err)
		nodes := m.Nodes()

		require.NoError(t, checkArena(nodes), spew.Sdump(nodes))
		require.Equal(t, len(samples), nodes[0].Samples)

		for i, n := range nodes {
			if n.Leaf {
				assert.LessOrEqualf(t, n.Depth, params.MaxDepth, "leaf %d too deep, params %+v", i, params)
				assert.GreaterOrEqualf(t, n.Confidence, 0.5, "leaf %d", i)
				assert.LessOrEqualf(t, n.Confidence, 1.0, "leaf %d", i)
				continue
			}
			assert.Lessf(t, n.Depth, params.MaxDepth, "internal node %d at max depth", i)
			assert.GreaterOrEqualf(t, n.Samples, params.MinSamplesLeaf, "internal node %d split below min samples", i)
			assert.Equalf(t, n.Samples, nodes[n.Left].Samples+nodes[n.Right].Samples, "node %d partition", i)
			assert.Greaterf(t, nodes[n.Left].Samples, 0, "node %d empty left", i)
			assert.Greaterf(t, nodes[n.Right].Samples, 0, "node %d empty right", i)
		}

		// Each training sample reaches exactly one leaf and leaf counts add up.
		reached := make(map[int32]int)
		for _, s := range samples {
			idx := int32(0)
			for !nodes[idx].Leaf {
				if s.Features()[nodes[idx].Feature] <= nodes[idx].Threshold {
					idx = nodes[idx].Left
				} else {
					idx = nodes[idx].Right
				}
			}
			reached[idx]++
		}
		for i, n := range nodes {
			if n.Leaf {
				assert.Equalf(t, n.Samples, reached[int32(i)], "leaf %d sample count", i)
			}
		}
	}
}

func TestProperty_ImportanceNormalised(t *testing.T) {
	for run := 0; run < propertyRuns; run++ {
		m, err := mustTrainer(t, WithParams(randomParams())).Grow(randomSamples()...)
		require.NoError(t, err)
		var sum float64
		for _, w := range m.FeatureImportance() {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		if m.NodeCount() == 1 {
			assert.Zero(t, sum)
		} else {
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	}
}

func TestProperty_AccuracyMatchesReprediction(t *testing.T) {
	for run := 0; run < propertyRuns; run++ {
		samples := randomSamples()
		m, err := mustTrainer(t, WithParams(randomParams())).Grow(samples...)
		require.NoError(t, err)
		correct := 0
		for _, s := range samples {
			c, err := m.Predict(s.Features())
			require.NoError(t, err)
			assert.LessOrEqual(t, len(c.Conditions), m.Params().MaxDepth)
			if c.WillFail == s.Label() {
				correct++
			}
		}
		assert.Equal(t, float64(correct)/float64(len(samples)), m.TrainingAccuracy())
	}
}

func TestProperty_SnapshotPredictsAlike(t *testing.T) {
	for run := 0; run < propertyRuns/4; run++ {
		samples := randomSamples()
		m, err := mustTrainer(t, WithParams(randomParams())).Grow(samples...)
		require.NoError(t, err)
		data, err := m.MarshalBinary()
		require.NoError(t, err)
		restored, err := Decode(data)
		require.NoError(t, err)

		assert.Equal(t, m.ID(), restored.ID())
		assert.Equal(t, m.TrainingAccuracy(), restored.TrainingAccuracy())
		assert.True(t, m.TrainedAt().Equal(restored.TrainedAt()))
		assert.Equal(t, m.FeatureImportance(), restored.FeatureImportance())
		for _, s := range samples {
			want, _ := m.Predict(s.Features())
			got, err := restored.Predict(s.Features())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestDecode_Rejects(t *testing.T) {
	leaf := func(depth, samples int) Node {
		return Node{Leaf: true, Confidence: 1, Samples: samples, Depth: depth, Left: -1, Right: -1, fi: -1}
	}
	split := func(left, right int32, samples int) Node {
		return Node{Feature: feature.HourOfDay, Threshold: 12, Left: left, Right: right, Samples: samples, fi: 4}
	}
	cycle := split(0, 1, 2)
	shared := []Node{split(1, 2, 4), split(2, 2, 2), leaf(2, 2)}
	shared[1].Depth = 1
	nanSplit := split(1, 2, 2)
	nanSplit.Threshold = math.NaN()

	tests := []struct {
		name  string
		nodes []Node
	}{
		{name: "empty", nodes: nil},
		{name: "self_cycle", nodes: []Node{cycle, leaf(1, 1)}},
		{name: "out_of_range", nodes: []Node{split(1, 5, 2), leaf(1, 1)}},
		{name: "shared_child", nodes: shared},
		{name: "unreachable", nodes: []Node{leaf(0, 1), leaf(1, 1)}},
		{name: "lost_samples", nodes: []Node{split(1, 2, 10), leaf(1, 3), leaf(1, 3)}},
		{name: "low_confidence", nodes: []Node{{Leaf: true, Confidence: 0.2, Samples: 1}}},
		{name: "nan_confidence", nodes: []Node{{Leaf: true, Confidence: math.NaN(), Samples: 1}}},
		{name: "nan_threshold", nodes: []Node{nanSplit, leaf(1, 1), leaf(1, 1)}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := checkArena(test.nodes); err == nil {
				t.Errorf("checking arena %s, expected an error", spew.Sdump(test.nodes))
			}
		})
	}

	_, err := Decode([]byte{0x1, 0x2})
	assert.Error(t, err)
}

func TestDecode_Scenario(t *testing.T) {
	m, err := mustTrainer(t, WithMaxDepth(2), WithMinSamplesLeaf(5)).Grow(twoClusters()...)
	require.NoError(t, err)
	data, err := m.MarshalBinary()
	require.NoError(t, err)
	restored, err := DecodeModel(data)
	require.NoError(t, err)

	c, err := restored.Predict(vec(3, 0, 0, 0, 0))
	require.NoError(t, err)
	assert.False(t, c.WillFail)
	assert.Equal(t, []string{"hoursSinceLastRun (3) ≤ 5.5"}, c.DecisionPath())
	assert.Equal(t, 1.0, restored.FeatureImportance()[feature.HoursSinceLastRun])
	assert.False(t, math.IsNaN(restored.TrainingAccuracy()))
}
