package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-sod/pipecast/internal/buildinfo"
	"github.com/go-sod/pipecast/internal/collect"
	"github.com/go-sod/pipecast/internal/config"
	"github.com/go-sod/pipecast/internal/inspect"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/predict"
	"github.com/go-sod/pipecast/internal/server"
	"github.com/go-sod/pipecast/internal/setup"
	"github.com/go-sod/pipecast/internal/shutdown"
	"github.com/go-sod/pipecast/internal/stats"
	"go.opencensus.io/stats/view"
)

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	buildinfo.Info.Print(os.Stdout)

	ctx, done := shutdown.New()
	logger := logging.FromContext(ctx)
	if err := run(ctx, done); err != nil {
		logger.Fatal(err)
	}

	defer done()
}

func run(ctx context.Context, cancel func()) error {
	var (
		shutdownCh chan error
		// dispatcher flusher and alert notifier
		shutdownCount = 2
	)
	cfg := config.Config{}
	env, err := setup.Setup(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer func() {
		if err := env.Close(context.Background()); err != nil {
			logging.FromContext(ctx).Errorf("closing environment: %v", err)
		}
	}()

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	ctx = logging.WithLogger(ctx, logger)
	defer func() { _ = logger.Sync() }()

	if err := stats.Register(); err != nil {
		return fmt.Errorf("stats.Register: %w", err)
	}
	exporter, err := stats.NewExporter("pipecast")
	if err != nil {
		return fmt.Errorf("stats.NewExporter: %w", err)
	}
	view.RegisterExporter(exporter)
	defer view.UnregisterExporter(exporter)

	if cfg.SvcMode() == setup.SvcModeScrape {
		shutdownCount++
	}

	shutdownCh = make(chan error, shutdownCount)
	notifier, err := env.ProvideNotifier()(shutdownCh)
	if err != nil {
		return fmt.Errorf("notifier provider function error: %w", err)
	}
	dispatcher, err := env.ProvideDispatcher()(notifier, shutdownCh)
	if err != nil {
		return fmt.Errorf("dispatcher provider function error: %w", err)
	}
	if err := dispatcher.Run(ctx); err != nil {
		return fmt.Errorf("dispatcher.Run: %w", err)
	}

	if cfg.SvcMode() == setup.SvcModeScrape {
		src, err := env.ProvideSource()(dispatcher, shutdownCh)
		if err != nil {
			return fmt.Errorf("source provider function error: %w", err)
		}
		if err := src.Run(ctx); err != nil {
			return fmt.Errorf("source.Run: %w", err)
		}
	}

	srv, err := server.New(cfg.SrvAddr, cfg.MaxConnections)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	mux := http.NewServeMux()

	predictHandler, err := predict.NewHandler(&cfg.Predict, dispatcher)
	if err != nil {
		return fmt.Errorf("predict.NewHandler: %w", err)
	}
	modelHandler, err := inspect.NewModelHandler(&cfg.Inspect, dispatcher)
	if err != nil {
		return fmt.Errorf("inspect.NewModelHandler: %w", err)
	}
	retrainHandler, err := inspect.NewRetrainHandler(&cfg.Inspect, dispatcher)
	if err != nil {
		return fmt.Errorf("inspect.NewRetrainHandler: %w", err)
	}

	mux.Handle("/predict", predictHandler)
	mux.Handle("/model", modelHandler)
	mux.Handle("/model/retrain", retrainHandler)
	mux.Handle("/health", server.HandleHealth(ctx))

	if cfg.SvcMode() == setup.SvcModeCollect {
		collectHandler, err := collect.NewHandler(&cfg.Collect, dispatcher)
		if err != nil {
			return fmt.Errorf("collect.NewHandler: %w", err)
		}
		mux.Handle("/collect", collectHandler)
	}

	go func() {
		if err := srv.ServeHTTPHandler(ctx, mux); err != nil {
			logger.Errorf("http server: %v", err)
			cancel()
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", exporter)
	metricsMux.Handle("/debug/pprof/", http.DefaultServeMux)
	metricsSrv, err := server.New(cfg.MetricsAddr, 0)
	if err != nil {
		return fmt.Errorf("metrics server.New: %w", err)
	}
	go func() {
		if err := metricsSrv.ServeHTTPHandler(ctx, metricsMux); err != nil {
			logger.Errorf("metrics server: %v", err)
			cancel()
		}
	}()

	if cfg.GRPCAddr != "" {
		grpcSrv, err := server.New(cfg.GRPCAddr, cfg.MaxConnections)
		if err != nil {
			return fmt.Errorf("grpc server.New: %w", err)
		}
		grpcServer, _ := server.NewGRPC()
		go func() {
			if err := grpcSrv.ServeGRPC(ctx, grpcServer); err != nil {
				logger.Errorf("grpc server: %v", err)
				cancel()
			}
		}()
	}

	logger.Infof("%s serving on %s in %s mode", buildinfo.Name, srv.Addr(), cfg.SvcMode())

	var firstErr error
	for i := 0; i < shutdownCount; i++ {
		if err := <-shutdownCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
