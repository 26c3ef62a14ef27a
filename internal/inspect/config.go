package inspect

import "time"

type Config struct {
	RequestTimeout        time.Duration `envconfig:"PIPECAST_INSPECT_REQUEST_TIMEOUT" default:"10s"`
	RetrainRequestTimeout time.Duration `envconfig:"PIPECAST_RETRAIN_REQUEST_TIMEOUT" default:"5m"`
}
