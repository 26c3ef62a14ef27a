package collect

import (
	"time"
)

type Config struct {
	RequestTimeout time.Duration `envconfig:"PIPECAST_COLLECT_REQUEST_TIMEOUT" default:"60s"`
	MaxBodyBytes   int64         `envconfig:"PIPECAST_COLLECT_MAX_BODY_BYTES" default:"67108864"`
}
