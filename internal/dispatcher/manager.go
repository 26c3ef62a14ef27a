package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sod/pipecast/internal/alert"
	alertModel "github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predictor"
	recordDb "github.com/go-sod/pipecast/internal/record/database"
	"github.com/go-sod/pipecast/internal/record/model"
	"github.com/go-sod/pipecast/internal/stats"
)

var (
	ErrNoModel          = errors.New("no model trained yet")
	ErrNotEnoughRecords = errors.New("not enough records to train")
	ErrShuttingDown     = errors.New("dispatcher is shutting down")
)

type ProvideFn func(alert.Manager, chan<- error) (Manager, error)

// Manager is the background service: it stores labelled records, keeps a
// trained model current and answers predictions with it.
type Manager interface {
	CollectPredictor
	ModelProvider
	Run(context.Context) error
	Stop()
}

type Collector interface {
	// Collect validates the records and queues them for storage.
	Collect(in ...model.Record) error
}

type Predictor interface {
	Predict(ctx context.Context, pipelineID string, v feature.Vector) (*predictor.Conclusion, error)
}

type CollectPredictor interface {
	Collector
	Predictor
}

type ModelProvider interface {
	// Model returns the published model or nil.
	Model() predictor.Model
	// Retrain trains on the stored records now and publishes the result.
	Retrain(ctx context.Context) (predictor.Model, error)
}

type (
	fetchRecordsFn           func(context.Context, recordDb.FilterFn) ([]model.Record, error)
	fetchRecordsByPipelineFn func(string, recordDb.FilterFn) ([]model.Record, error)
	deleteRecordsFn          func(context.Context, []model.Record) error
	appendRecordsFn          func(context.Context, []model.Record) error
	fetchKeysFn              func() ([]string, error)
	countByPipelineFn        func(string) (int, error)
)

// pullDependencies is the storage surface the background loops work with.
type pullDependencies struct {
	fetchRecords           fetchRecordsFn
	fetchRecordsByPipeline fetchRecordsByPipelineFn
	deleteRecords          deleteRecordsFn
	appendRecords          appendRecordsFn
	fetchKeys              fetchKeysFn
	countByPipeline        countByPipelineFn
}

type Options struct {
	maxItemsStored     int
	maxStorageTime     time.Duration
	dbFlushTime        time.Duration
	dbFlushSize        int
	rebuildDBTime      time.Duration
	retrainInterval    time.Duration
	minTrainingRecords int
	now                func() time.Time
	deps               pullDependencies
}

type Option func(*manager)

func WithDBFlushTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.dbFlushTime = t
	}
}

func WithDBFlushSize(n int) Option {
	return func(o *manager) {
		o.opts.dbFlushSize = n
	}
}

func WithRebuildDBTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.rebuildDBTime = t
	}
}

func WithMaxItemsStored(n int) Option {
	return func(o *manager) {
		o.opts.maxItemsStored = n
	}
}

func WithMaxStorageTime(t time.Duration) Option {
	return func(o *manager) {
		o.opts.maxStorageTime = t
	}
}

func WithRetrainInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.retrainInterval = t
	}
}

func WithMinTrainingRecords(n int) Option {
	return func(o *manager) {
		o.opts.minTrainingRecords = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *manager) {
		o.opts.now = now
	}
}

func New(
	db *database.DB,
	provideTrainerFn predictor.ProvideFn,
	store modelstore.Store,
	notifier alert.Manager,
	shutdownCh chan<- error,
	opts ...Option,
) (*manager, error) {
	if db == nil {
		return nil, fmt.Errorf("record storage is not opened")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier instance is not created")
	}
	if provideTrainerFn == nil {
		return nil, fmt.Errorf("trainer instance is not created")
	}
	if store == nil {
		return nil, fmt.Errorf("model store is not created")
	}
	trainer, err := provideTrainerFn()
	if err != nil {
		return nil, fmt.Errorf("can not create trainer instance: %w", err)
	}

	d := &manager{
		recordDB:   recordDb.New(db),
		ctx:        context.Background(),
		done:       make(chan struct{}),
		shutDownCh: shutdownCh,
		notifier:   notifier,
		opts: Options{
			dbFlushTime:        5 * time.Second,
			dbFlushSize:        10,
			rebuildDBTime:      15 * time.Second,
			retrainInterval:    10 * time.Minute,
			minTrainingRecords: 10,
			now:                time.Now,
		},
	}

	for _, f := range opts {
		f(d)
	}

	if d.opts.dbFlushTime <= 0 || d.opts.rebuildDBTime <= 0 || d.opts.retrainInterval <= 0 {
		return nil, fmt.Errorf("dispatcher intervals must be positive")
	}

	d.opts.deps = pullDependencies{
		fetchRecords:           d.recordDB.FindAll,
		fetchRecordsByPipeline: d.recordDB.FindByPipeline,
		deleteRecords:          d.recordDB.DeleteMany,
		appendRecords:          d.recordDB.AppendMany,
		fetchKeys:              d.recordDB.Keys,
		countByPipeline:        d.recordDB.CountByPipeline,
	}

	d.dbScheduler = newDBScheduler(dbSchedulerConfig{
		deps:           d.opts.deps,
		maxItemsStored: d.opts.maxItemsStored,
		maxStorageTime: d.opts.maxStorageTime,
		rebuildDBTime:  d.opts.rebuildDBTime,
		now:            d.opts.now,
	})

	d.dbTxExecutor = newDBTxExecutor(
		dbTxExecutorOptions{
			deps:      d.opts.deps,
			flushTime: d.opts.dbFlushTime,
			flushSize: d.opts.dbFlushSize,
		},
		shutdownCh,
	)

	d.retrainer = newRetrainer(retrainerOptions{
		interval:   d.opts.retrainInterval,
		minRecords: d.opts.minTrainingRecords,
		trainer:    trainer,
		store:      store,
		deps:       d.opts.deps,
		publish:    d.publish,
	})
	d.store = store

	return d, nil
}

type published struct {
	model predictor.Model
}

type manager struct {
	opts Options

	recordDB *recordDb.DB
	store    modelstore.Store
	notifier alert.Manager

	dbTxExecutor *dbTxExecutor
	dbScheduler  *dbScheduler
	retrainer    *retrainer

	mtx    sync.RWMutex
	closed bool
	// context of the running service, used by Collect
	ctx context.Context
	// closed once Collect stops accepting records
	done       chan struct{}
	shutDownCh chan<- error

	// holds published
	current atomic.Value

	cancel func()
}

// Run publishes the last saved model, or trains one if none was saved, and
// starts the background loops.
func (d *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mtx.Lock()
	d.ctx = ctx
	d.mtx.Unlock()

	if err := d.notifier.Run(ctx); err != nil {
		cancel()
		return fmt.Errorf("alert.Run: %w", err)
	}

	d.bootstrap(ctx)

	go d.closer(ctx)
	go d.dbTxExecutor.flusher(ctx, d.done)
	go d.dbScheduler.schedule(ctx)
	go d.retrainer.loop(ctx)

	return nil
}

func (d *manager) bootstrap(ctx context.Context) {
	logger := logging.FromContext(ctx)
	m, err := d.store.Latest(ctx)
	switch {
	case err == nil:
		d.publish(m)
		logger.Infof("loaded model %s trained at %s", m.ID(), m.TrainedAt().Format(time.RFC3339))
		return
	case errors.Is(err, modelstore.ErrNotFound):
		logger.Info("no saved model, training from stored records")
	default:
		logger.Errorf("unable load saved model, training from stored records: %v", err)
	}

	if _, err := d.retrainer.retrain(ctx); err != nil {
		if errors.Is(err, ErrNotEnoughRecords) {
			logger.Infof("waiting for records: %v", err)
			return
		}
		logger.Errorf("initial training failed: %v", err)
	}
}

func (d *manager) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *manager) publish(m predictor.Model) {
	d.current.Store(published{model: m})
}

func (d *manager) Model() predictor.Model {
	p, ok := d.current.Load().(published)
	if !ok {
		return nil
	}
	return p.model
}

// Retrain writes buffered records first so they take part in training.
func (d *manager) Retrain(ctx context.Context) (predictor.Model, error) {
	d.mtx.RLock()
	closed := d.closed
	d.mtx.RUnlock()
	if closed {
		return nil, ErrShuttingDown
	}
	d.dbTxExecutor.bulkAppend(ctx)
	return d.retrainer.retrain(ctx)
}

func (d *manager) Predict(ctx context.Context, pipelineID string, v feature.Vector) (*predictor.Conclusion, error) {
	if err := v.CheckFinite(); err != nil {
		return nil, err
	}
	m := d.Model()
	if m == nil {
		return nil, ErrNoModel
	}
	result, err := m.Predict(v)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.ID(), err)
	}
	stats.RecordPrediction(ctx, result.WillFail)
	if result.WillFail {
		d.notifier.Notify(alertModel.NewFailure(pipelineID, v, result, m.ID(), d.opts.now()))
	}
	return result, nil
}

// Collect rejects the whole batch if any record is invalid.
func (d *manager) Collect(data ...model.Record) error {
	for i := range data {
		if err := data[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	d.mtx.RLock()
	defer d.mtx.RUnlock()
	if d.closed {
		return ErrShuttingDown
	}
	for i := range data {
		d.dbTxExecutor.append(d.ctx, data[i])
	}
	stats.RecordCollected(d.ctx, len(data))
	return nil
}

// closer stops accepting records once ctx is done. Collect calls in flight
// finish first, so the flusher drains everything that was accepted.
func (d *manager) closer(ctx context.Context) {
	<-ctx.Done()
	d.mtx.Lock()
	d.closed = true
	d.mtx.Unlock()
	close(d.done)
}
