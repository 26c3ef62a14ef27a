package cart

import (
	"sort"

	"github.com/go-sod/pipecast/internal/feature"
)

// Gini returns the impurity of a set of n labels of which pos are true.
func Gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 1 - (p*p + (1-p)*(1-p))
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans every midpoint between adjacent distinct values of every
// feature and keeps the first candidate with the strictly largest gain.
func (b *builder) bestSplit(rows []int, pos int) (split, bool) {
	var (
		best  split
		found bool
		n     = len(rows)
		y     = b.data.y
	)
	parent := Gini(pos, n)
	sorted := make([]int, n)
	for f := 0; f < feature.Count; f++ {
		col := b.data.x[f]
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return col[sorted[i]] < col[sorted[j]]
		})

		// k is the number of sorted rows with value ≤ the current threshold.
		k, leftPos := 0, 0
		for i := 0; i < n; {
			j := i
			for j+1 < n && col[sorted[j+1]] == col[sorted[i]] {
				j++
			}
			if j+1 >= n {
				break
			}
			threshold := (col[sorted[i]] + col[sorted[j+1]]) / 2
			for k < n && col[sorted[k]] <= threshold {
				if y[sorted[k]] {
					leftPos++
				}
				k++
			}
			i = j + 1
			if k == 0 || k == n {
				continue
			}
			leftN, rightN := float64(k), float64(n-k)
			weighted := (leftN*Gini(leftPos, k) + rightN*Gini(pos-leftPos, n-k)) / float64(n)
			gain := parent - weighted
			if !found || gain > best.gain {
				best = split{feature: f, threshold: threshold, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// partition keeps the input order on both sides.
func (b *builder) partition(rows []int, s split) (left, right []int) {
	col := b.data.x[s.feature]
	for _, r := range rows {
		if col[r] <= s.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
