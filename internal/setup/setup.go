// Package setup reads the environment into a service configuration and
// builds the provider functions the binaries start components from.
package setup

import (
	"context"
	"fmt"

	"github.com/go-sod/pipecast/internal/alert"
	"github.com/go-sod/pipecast/internal/collect"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/inspect"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predict"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/predictor/cart"
	"github.com/go-sod/pipecast/internal/source"
	"github.com/go-sod/pipecast/internal/srvenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	SvcModeScrape  string = "SCRAPE"
	SvcModeCollect string = "COLLECT"
)

type SvcModeConfigProvider interface {
	SvcMode() string
}

type DispatcherConfigProvider interface {
	DispatcherConfig() *dispatcher.Config
}

type NotifierConfigProvider interface {
	NotifyConfig() *alert.Config
}

type SourceConfigProvider interface {
	SourceConfig() *source.Config
}

type PredictorConfigProvider interface {
	PredictConfig() *predictor.Config
	PredictType() predictor.AlgType
	CARTConfig() *cart.Config
}

type ModelStoreConfigProvider interface {
	ModelStoreConfig() *modelstore.Config
}

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

type HandlerConfigProvider interface {
	CollectConfig() *collect.Config
	PredictHandlerConfig() *predict.Config
	InspectConfig() *inspect.Config
}

func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	var (
		serverEnvOpts       []srvenv.Option
		db                  *database.DB
		store               modelstore.Store
		trainerProvideFn    predictor.ProvideFn
		decodeFn            predictor.DecodeFn
		notifierProvideFn   alert.ProvideFn
		dispatcherProvideFn dispatcher.ProvideFn
	)

	mode := SvcModeCollect
	if p, ok := config.(SvcModeConfigProvider); ok {
		mode = p.SvcMode()
	}
	if mode != SvcModeCollect && mode != SvcModeScrape {
		return nil, fmt.Errorf("unknown service mode: %s", mode)
	}

	if p, ok := config.(HandlerConfigProvider); ok {
		for _, cfg := range []interface{}{p.CollectConfig(), p.PredictHandlerConfig(), p.InspectConfig()} {
			if err := envconfig.Process("", cfg); err != nil {
				return nil, fmt.Errorf("dont process handler env: %w", err)
			}
		}
	}

	if dbConfigProvider, ok := config.(DatabaseConfigProvider); ok {
		logger.Info("Configuring db")
		cfg := dbConfigProvider.DatabaseConfig()
		if err := envconfig.Process("", cfg); err != nil {
			return nil, fmt.Errorf("dont process db env: %w", err)
		}
		dbFromEnv, err := database.NewFromEnv(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		db = dbFromEnv
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	fail := func(err error) (*srvenv.SrvEnv, error) {
		_ = srvenv.New(serverEnvOpts...).Close(ctx)
		return nil, err
	}

	if predictConfigProvider, ok := config.(PredictorConfigProvider); ok {
		logger.Info("Configuring predictor")
		provideFn, decode, err := ProvidePredictorFor(predictConfigProvider)
		if err != nil {
			return fail(fmt.Errorf("unable create predictor provide function: %w", err))
		}
		trainerProvideFn, decodeFn = provideFn, decode
		serverEnvOpts = append(serverEnvOpts, srvenv.WithPredictor(trainerProvideFn))
	}

	if storeConfigProvider, ok := config.(ModelStoreConfigProvider); ok {
		logger.Info("Configuring model store")
		s, err := ProvideModelStoreFor(ctx, storeConfigProvider, db, decodeFn)
		if err != nil {
			return fail(fmt.Errorf("unable create model store: %w", err))
		}
		store = s
		serverEnvOpts = append(serverEnvOpts, srvenv.WithModelStore(store))
	}

	if notifyConfigProvider, ok := config.(NotifierConfigProvider); ok {
		logger.Info("Configuring notifier")
		provideFn, err := ProvideNotifierFor(notifyConfigProvider, db)
		if err != nil {
			return fail(fmt.Errorf("unable create notifier provide function: %w", err))
		}
		notifierProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithNotifier(notifierProvideFn))
	}

	if dispatcherConfigProvider, ok := config.(DispatcherConfigProvider); ok {
		logger.Info("Configuring dispatcher")
		provideFn, err := ProvideDispatcherFor(dispatcherConfigProvider, trainerProvideFn, store, db)
		if err != nil {
			return fail(fmt.Errorf("unable create dispatcher provide function: %w", err))
		}
		dispatcherProvideFn = provideFn
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDispatcher(dispatcherProvideFn))
	}

	if mode == SvcModeScrape {
		sourceConfigProvider, ok := config.(SourceConfigProvider)
		if !ok {
			return fail(fmt.Errorf("scrape mode requires a source config"))
		}
		logger.Info("Configuring source")
		provideFn, err := ProvideSourceFor(sourceConfigProvider)
		if err != nil {
			return fail(fmt.Errorf("unable create source provide function: %w", err))
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithSource(provideFn))
	}

	return srvenv.New(serverEnvOpts...), nil
}

// ProvidePredictorFor returns the trainer factory and the snapshot decoder of
// the configured algorithm.
func ProvidePredictorFor(provider PredictorConfigProvider) (predictor.ProvideFn, predictor.DecodeFn, error) {
	if err := envconfig.Process("", provider.PredictConfig()); err != nil {
		return nil, nil, fmt.Errorf("dont process predictor env: %w", err)
	}
	switch provider.PredictType() {
	case predictor.AlgTypeCART:
		cfgCART := provider.CARTConfig()
		if err := envconfig.Process("", cfgCART); err != nil {
			return nil, nil, fmt.Errorf("error loading environment variables: %w", err)
		}
		if _, err := cart.New(cart.WithMaxDepth(cfgCART.MaxDepth), cart.WithMinSamplesLeaf(cfgCART.MinSamplesLeaf)); err != nil {
			return nil, nil, fmt.Errorf("invalid cart config: %w", err)
		}
		return func() (predictor.Trainer, error) {
			t, err := cart.New(
				cart.WithMaxDepth(cfgCART.MaxDepth),
				cart.WithMinSamplesLeaf(cfgCART.MinSamplesLeaf),
			)
			if err != nil {
				return nil, fmt.Errorf("unable create cart instance: %w", err)
			}
			return t, nil
		}, cart.DecodeModel, nil
	default:
		return nil, nil, fmt.Errorf("unknown predictor type: %s", provider.PredictType())
	}
}

func ProvideModelStoreFor(ctx context.Context, provider ModelStoreConfigProvider, db *database.DB, decode predictor.DecodeFn) (modelstore.Store, error) {
	cfg := provider.ModelStoreConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("dont process model store env: %w", err)
	}
	return modelstore.New(ctx, cfg, db, decode)
}

func ProvideNotifierFor(provider NotifierConfigProvider, db *database.DB) (alert.ProvideFn, error) {
	cfg := provider.NotifyConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("dont process notifier env: %w", err)
	}
	return func(shutdownCh chan<- error) (alert.Manager, error) {
		return alert.New(
			db,
			shutdownCh,
			alert.WithAllowAlerts(cfg.AllowAlerts),
			alert.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			alert.WithMaxPending(cfg.MaxPending),
			alert.WithInterval(cfg.Interval),
			alert.WithTargets(cfg.Targets),
		)
	}, nil
}

func ProvideDispatcherFor(
	provider DispatcherConfigProvider,
	provideTrainerFn predictor.ProvideFn,
	store modelstore.Store,
	db *database.DB,
) (dispatcher.ProvideFn, error) {
	cfg := provider.DispatcherConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("dont process dispatcher env: %w", err)
	}
	return func(notifier alert.Manager, shutdownCh chan<- error) (dispatcher.Manager, error) {
		return dispatcher.New(
			db,
			provideTrainerFn,
			store,
			notifier,
			shutdownCh,
			dispatcher.WithRebuildDBTime(cfg.RebuildDBTime),
			dispatcher.WithMaxItemsStored(cfg.MaxItemsStored),
			dispatcher.WithMaxStorageTime(cfg.MaxStorageTime),
			dispatcher.WithDBFlushSize(cfg.DBFlushSize),
			dispatcher.WithDBFlushTime(cfg.DBFlushTime),
			dispatcher.WithRetrainInterval(cfg.RetrainInterval),
			dispatcher.WithMinTrainingRecords(cfg.MinTrainingRecords),
		)
	}, nil
}

func ProvideSourceFor(provider SourceConfigProvider) (source.ProvideFn, error) {
	cfg := provider.SourceConfig()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("dont process source env: %w", err)
	}
	return func(collector dispatcher.Collector, shutdownCh chan<- error) (source.Manager, error) {
		return source.New(
			collector,
			shutdownCh,
			source.WithInterval(cfg.Interval),
			source.WithMaxConcurrentRequest(cfg.MaxConcurrentRequest),
			source.WithTargets(cfg.Targets),
		)
	}, nil
}
