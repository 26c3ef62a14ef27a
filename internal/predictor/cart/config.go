package cart

// MinGain is the smallest impurity reduction worth a split.
const MinGain = 0.01

const (
	DefaultMaxDepth       = 5
	DefaultMinSamplesLeaf = 5
)

type Config struct {
	MaxDepth       int `envconfig:"PIPECAST_CART_MAX_DEPTH" default:"5"`
	MinSamplesLeaf int `envconfig:"PIPECAST_CART_MIN_SAMPLES_LEAF" default:"5"`
}

// Params are the stopping rules a Model was grown with.
type Params struct {
	MaxDepth       int `json:"maxDepth" toml:"max_depth"`
	MinSamplesLeaf int `json:"minSamplesLeaf" toml:"min_samples_leaf"`
}
