package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/google/uuid"
)

var _ predictor.Trainer = (*Trainer)(nil)

var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrInvalidParams    = errors.New("invalid tree params")
)

type Option func(*Trainer)

func WithMaxDepth(n int) Option {
	return func(t *Trainer) {
		t.params.MaxDepth = n
	}
}

func WithMinSamplesLeaf(n int) Option {
	return func(t *Trainer) {
		t.params.MinSamplesLeaf = n
	}
}

func WithParams(p Params) Option {
	return func(t *Trainer) {
		t.params = p
	}
}

// WithClock replaces the source of Model training dates.
func WithClock(now func() time.Time) Option {
	return func(t *Trainer) {
		t.now = now
	}
}

func New(opts ...Option) (*Trainer, error) {
	t := &Trainer{
		params: Params{MaxDepth: DefaultMaxDepth, MinSamplesLeaf: DefaultMinSamplesLeaf},
		now:    time.Now,
	}
	for _, f := range opts {
		f(t)
	}
	if t.params.MaxDepth < 1 {
		return nil, fmt.Errorf("%w: max depth %d, must be at least 1", ErrInvalidParams, t.params.MaxDepth)
	}
	if t.params.MinSamplesLeaf < 1 {
		return nil, fmt.Errorf("%w: min samples leaf %d, must be at least 1", ErrInvalidParams, t.params.MinSamplesLeaf)
	}
	return t, nil
}

// Trainer grows binary classification trees. It holds no state between
// calls and may be shared.
type Trainer struct {
	params Params
	now    func() time.Time
}

func (t *Trainer) Params() Params {
	return t.params
}

func (t *Trainer) Train(samples ...predictor.Sample) (predictor.Model, error) {
	m, err := t.Grow(samples...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Grow builds a tree from samples, in order, and scores it against them.
func (t *Trainer) Grow(samples ...predictor.Sample) (*Model, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	data, err := newDataset(samples)
	if err != nil {
		return nil, err
	}

	b := &builder{data: data, params: t.params}
	rows := make([]int, len(samples))
	for i := range rows {
		rows[i] = i
	}
	b.grow(rows, 0)

	m := &Model{
		id:        uuid.New(),
		nodes:     b.nodes,
		params:    t.params,
		samples:   len(samples),
		trainedAt: t.now(),
	}
	m.importance = importance(m.nodes)
	m.accuracy = m.score(data)
	return m, nil
}

// dataset is the column-major copy of the training samples.
type dataset struct {
	x [feature.Count][]float64
	y []bool
}

func newDataset(samples []predictor.Sample) (*dataset, error) {
	d := &dataset{y: make([]bool, len(samples))}
	for f := range d.x {
		d.x[f] = make([]float64, len(samples))
	}
	for i, s := range samples {
		p, err := s.Features().Point()
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		for f := range p {
			d.x[f][i] = p[f]
		}
		d.y[i] = s.Label()
	}
	return d, nil
}
