package modelstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/predictor"
)

var ErrNotFound = errors.New("model not found")

// Store persists trained models. Latest returns ErrNotFound while nothing has
// been saved yet.
type Store interface {
	Save(ctx context.Context, m predictor.Model) error
	Latest(ctx context.Context) (predictor.Model, error)
	Close() error
}

// New picks the backend named by the config. The bolt backend shares the
// service database.
func New(ctx context.Context, config *Config, db *database.DB, decode predictor.DecodeFn) (Store, error) {
	if decode == nil {
		return nil, fmt.Errorf("model decoder is not set")
	}
	switch config.Type {
	case StoreTypeBolt, "":
		if db == nil {
			return nil, fmt.Errorf("bolt model store: database is not opened")
		}
		return NewBolt(db, decode, config.Keep)
	case StoreTypeRedis:
		return NewRedis(ctx, config, decode)
	default:
		return nil, fmt.Errorf("unknown model store type %q", config.Type)
	}
}
