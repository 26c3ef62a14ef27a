package predictor

type AlgType string

const (
	AlgTypeCART AlgType = "CART"
)

type Config struct {
	Type AlgType `envconfig:"PIPECAST_PREDICTOR_TYPE" default:"CART"`
}

func (c Config) PredictorType() AlgType {
	return c.Type
}
