package predict

import "time"

type Config struct {
	RequestTimeout  time.Duration `envconfig:"PIPECAST_PREDICT_REQUEST_TIMEOUT" default:"30s"`
	MaxDataItemsLen int           `envconfig:"PIPECAST_PREDICT_MAX_DATA_ITEMS_LEN" default:"100"`
	MaxBodyBytes    int64         `envconfig:"PIPECAST_PREDICT_MAX_BODY_BYTES" default:"1048576"`
}
