package srvenv

import (
	"context"
	"fmt"

	"github.com/go-sod/pipecast/internal/alert"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/source"
)

type Option func(*SrvEnv) *SrvEnv

func New(opts ...Option) *SrvEnv {
	env := &SrvEnv{}
	for _, f := range opts {
		env = f(env)
	}

	return env
}

// SrvEnv carries what setup built: open resources and the provider functions
// of the components that still need a shutdown channel or a dependency.
type SrvEnv struct {
	database   *database.DB
	modelStore modelstore.Store
	predictor  predictor.ProvideFn
	dispatcher dispatcher.ProvideFn
	notifier   alert.ProvideFn
	source     source.ProvideFn
}

func (s *SrvEnv) ProvideSource() source.ProvideFn {
	return s.source
}

func (s *SrvEnv) ProvideNotifier() alert.ProvideFn {
	return s.notifier
}

func (s *SrvEnv) ProvideDispatcher() dispatcher.ProvideFn {
	return s.dispatcher
}

func (s *SrvEnv) ProvidePredictor() predictor.ProvideFn {
	return s.predictor
}

func (s *SrvEnv) ModelStore() modelstore.Store {
	return s.modelStore
}

func (s *SrvEnv) Database() *database.DB {
	return s.database
}

func WithSource(fn source.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.source = fn
		return s
	}
}

func WithNotifier(fn alert.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.notifier = fn
		return s
	}
}

func WithDispatcher(fn dispatcher.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.dispatcher = fn
		return s
	}
}

func WithPredictor(fn predictor.ProvideFn) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.predictor = fn
		return s
	}
}

func WithModelStore(store modelstore.Store) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.modelStore = store
		return s
	}
}

func WithDatabase(db *database.DB) Option {
	return func(s *SrvEnv) *SrvEnv {
		s.database = db
		return s
	}
}

// Close releases the model store before the database it may live in.
func (s *SrvEnv) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}

	var firstErr error
	if s.modelStore != nil {
		if err := s.modelStore.Close(); err != nil {
			firstErr = fmt.Errorf("closing model store: %w", err)
		}
	}
	if s.database != nil {
		if err := s.database.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
