// Package config holds the service configuration of pipecast-srv.
package config

import (
	"github.com/go-sod/pipecast/internal/alert"
	"github.com/go-sod/pipecast/internal/collect"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/inspect"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predict"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/predictor/cart"
	"github.com/go-sod/pipecast/internal/setup"
	"github.com/go-sod/pipecast/internal/source"
)

var (
	_ setup.SvcModeConfigProvider    = (*Config)(nil)
	_ setup.DatabaseConfigProvider   = (*Config)(nil)
	_ setup.NotifierConfigProvider   = (*Config)(nil)
	_ setup.PredictorConfigProvider  = (*Config)(nil)
	_ setup.ModelStoreConfigProvider = (*Config)(nil)
	_ setup.DispatcherConfigProvider = (*Config)(nil)
	_ setup.SourceConfigProvider     = (*Config)(nil)
	_ setup.HandlerConfigProvider    = (*Config)(nil)
)

// Config is the root of the service configuration. Sections are ignored by
// the root pass and processed by setup under their own keys.
type Config struct {
	SvcModeType    string `envconfig:"PIPECAST_SVC_MODE" default:"COLLECT"`
	SrvAddr        string `envconfig:"PIPECAST_ADDR" default:":8787"`
	MetricsAddr    string `envconfig:"PIPECAST_METRICS_ADDR" default:":8080"`
	GRPCAddr       string `envconfig:"PIPECAST_GRPC_ADDR"`
	MaxConnections int    `envconfig:"PIPECAST_MAX_CONNECTIONS" default:"1024"`
	LogLevel       string `envconfig:"PIPECAST_LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"PIPECAST_LOG_DEVELOPMENT" default:"false"`

	Dispatcher dispatcher.Config `ignored:"true"`
	Collect    collect.Config    `ignored:"true"`
	Predict    predict.Config    `ignored:"true"`
	Inspect    inspect.Config    `ignored:"true"`
	Database   database.Config   `ignored:"true"`
	Source     source.Config     `ignored:"true"`
	Predictor  predictor.Config  `ignored:"true"`
	CART       cart.Config       `ignored:"true"`
	Alert      alert.Config      `ignored:"true"`
	ModelStore modelstore.Config `ignored:"true"`
}

func (c *Config) SvcMode() string {
	return c.SvcModeType
}

func (c *Config) DispatcherConfig() *dispatcher.Config {
	return &c.Dispatcher
}

func (c *Config) NotifyConfig() *alert.Config {
	return &c.Alert
}

func (c *Config) SourceConfig() *source.Config {
	return &c.Source
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}

func (c *Config) PredictType() predictor.AlgType {
	return c.Predictor.Type
}

func (c *Config) PredictConfig() *predictor.Config {
	return &c.Predictor
}

func (c *Config) CARTConfig() *cart.Config {
	return &c.CART
}

func (c *Config) ModelStoreConfig() *modelstore.Config {
	return &c.ModelStore
}

func (c *Config) CollectConfig() *collect.Config {
	return &c.Collect
}

func (c *Config) PredictHandlerConfig() *predict.Config {
	return &c.Predict
}

func (c *Config) InspectConfig() *inspect.Config {
	return &c.Inspect
}
