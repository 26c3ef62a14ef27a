package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sod/pipecast/internal/logging"
	bolt "go.etcd.io/bbolt"
)

type Config struct {
	FileName    string        `envconfig:"PIPECAST_DB_FILE" default:"pipecast.db"`
	OpenTimeout time.Duration `envconfig:"PIPECAST_DB_OPEN_TIMEOUT" default:"5s"`
}

type DB struct {
	DB *bolt.DB
}

func NewFromEnv(ctx context.Context, config *Config) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening db file %s", config.FileName)

	db, err := bolt.Open(config.FileName, 0600, &bolt.Options{Timeout: config.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", config.FileName, err)
	}

	return &DB{DB: db}, nil
}

func (db *DB) Close(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	logger.Infof("closing db")

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing db: %w", err)
	}

	return nil
}
