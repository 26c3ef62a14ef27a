package modelstore

type StoreType string

const (
	StoreTypeBolt  StoreType = "BOLT"
	StoreTypeRedis StoreType = "REDIS"
)

type Config struct {
	Type StoreType `envconfig:"PIPECAST_MODEL_STORE" default:"BOLT"`
	// Number of trained models kept by the bolt backend.
	Keep          int    `envconfig:"PIPECAST_MODEL_KEEP" default:"10"`
	RedisAddr     string `envconfig:"PIPECAST_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"PIPECAST_REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"PIPECAST_REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"PIPECAST_REDIS_PREFIX" default:"pipecast:model"`
}

func (c *Config) ModelStoreConfig() *Config {
	return c
}
