package dispatcher

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	alertModel "github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/predictor/cart"
	"github.com/go-sod/pipecast/internal/record/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap/zaptest"
)

type notifierSpy struct {
	mtx      sync.Mutex
	failures []alertModel.Failure
}

func (n *notifierSpy) Notify(failures ...alertModel.Failure) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.failures = append(n.failures, failures...)
}

func (n *notifierSpy) Run(context.Context) error { return nil }
func (n *notifierSpy) Stop()                     {}

func (n *notifierSpy) received() []alertModel.Failure {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return append([]alertModel.Failure(nil), n.failures...)
}

func fullVector(hours float64) feature.Vector {
	return feature.Vector{
		feature.HoursSinceLastRun:  hours,
		feature.AvgFailureRate:     20,
		feature.DataVolumeVariance: 30,
		feature.DayOfWeek:          3,
		feature.HourOfDay:          12,
	}
}

// clusters labels runs idle for more than five hours as failing.
func clusters(n int) []model.Record {
	out := make([]model.Record, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, model.NewRecord("etl-orders", fullVector(1), false, time.Now()))
		out = append(out, model.NewRecord("etl-orders", fullVector(10), true, time.Now()))
	}
	return out
}

func provideTrainer() (predictor.Trainer, error) {
	return cart.New(cart.WithMaxDepth(3), cart.WithMinSamplesLeaf(2))
}

type fixture struct {
	db         *database.DB
	store      *modelstore.BoltStore
	notifier   *notifierSpy
	shutdownCh chan error
	manager    *manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	bdb, err := bolt.Open(filepath.Join(t.TempDir(), "pipecast.db"), 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	db := &database.DB{DB: bdb}
	store, err := modelstore.NewBolt(db, cart.DecodeModel, 3)
	require.NoError(t, err)

	f := &fixture{db: db, store: store, notifier: &notifierSpy{}, shutdownCh: make(chan error, 1)}
	opts = append([]Option{WithMinTrainingRecords(10), WithDBFlushSize(1000)}, opts...)
	f.manager, err = New(db, provideTrainer, store, f.notifier, f.shutdownCh, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) run(t *testing.T) context.Context {
	t.Helper()
	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, f.manager.Run(ctx))
	t.Cleanup(func() {
		f.manager.Stop()
		select {
		case <-f.shutdownCh:
		case <-time.After(time.Second):
			t.Error("dispatcher did not report shutdown")
		}
	})
	return ctx
}

func TestManager_PredictBeforeModel(t *testing.T) {
	f := newFixture(t)
	ctx := f.run(t)

	assert.Nil(t, f.manager.Model())
	_, err := f.manager.Predict(ctx, "etl-orders", fullVector(3))
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("predicting without model got: %v, expected: %v", err, ErrNoModel)
	}

	_, err = f.manager.Retrain(ctx)
	if !errors.Is(err, ErrNotEnoughRecords) {
		t.Errorf("retraining without records got: %v, expected: %v", err, ErrNotEnoughRecords)
	}
}

func TestManager_CollectRetrainPredict(t *testing.T) {
	f := newFixture(t)
	ctx := f.run(t)

	require.NoError(t, f.manager.Collect(clusters(10)...))
	m, err := f.manager.Retrain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.TrainingAccuracy())
	assert.Equal(t, m.ID(), f.manager.Model().ID())

	saved, err := f.store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, m.ID(), saved.ID())

	ok, err := f.manager.Predict(ctx, "etl-orders", fullVector(3))
	require.NoError(t, err)
	assert.False(t, ok.WillFail)
	assert.Empty(t, f.notifier.received())

	fail, err := f.manager.Predict(ctx, "etl-orders", fullVector(12))
	require.NoError(t, err)
	assert.True(t, fail.WillFail)
	assert.Equal(t, []string{"hoursSinceLastRun (12) > 5.5"}, fail.DecisionPath())

	alerts := f.notifier.received()
	require.Len(t, alerts, 1)
	assert.Equal(t, "etl-orders", alerts[0].PipelineID)
	assert.Equal(t, m.ID(), alerts[0].ModelID)
	assert.Equal(t, 1.0, alerts[0].Confidence)
}

func TestManager_RejectsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := f.run(t)

	missing := fullVector(1)
	delete(missing, feature.HourOfDay)
	nan := fullVector(1)
	nan[feature.AvgFailureRate] = math.NaN()

	batch := clusters(1)
	batch = append(batch, model.NewRecord("etl-orders", nan, true, time.Now()))
	err := f.manager.Collect(batch...)
	if !errors.Is(err, feature.ErrNonFiniteFeature) {
		t.Errorf("collecting NaN got: %v, expected: %v", err, feature.ErrNonFiniteFeature)
	}
	assert.Zero(t, f.manager.dbTxExecutor.len(), "no record of a rejected batch is queued")

	require.NoError(t, f.manager.Collect(clusters(10)...))
	_, err = f.manager.Retrain(ctx)
	require.NoError(t, err)

	tests := []struct {
		name        string
		vector      feature.Vector
		expectedErr error
	}{
		{name: "missing", vector: missing, expectedErr: feature.ErrMissingFeature},
		{name: "nan", vector: nan, expectedErr: feature.ErrNonFiniteFeature},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := f.manager.Predict(ctx, "etl-orders", test.vector)
			if !errors.Is(err, test.expectedErr) {
				t.Errorf("predicting got: %v, expected: %v", err, test.expectedErr)
			}
		})
	}
}

func TestManager_LoadsSavedModel(t *testing.T) {
	f := newFixture(t)
	tr, err := provideTrainer()
	require.NoError(t, err)
	samples := make([]predictor.Sample, 0, 20)
	for _, r := range clusters(10) {
		samples = append(samples, r)
	}
	saved, err := tr.Train(samples...)
	require.NoError(t, err)
	require.NoError(t, f.store.Save(context.Background(), saved))

	f.run(t)
	require.NotNil(t, f.manager.Model())
	assert.Equal(t, saved.ID(), f.manager.Model().ID())
}

func TestManager_TrainsOnStart(t *testing.T) {
	f := newFixture(t)
	recordDB := f.manager.recordDB
	require.NoError(t, recordDB.AppendMany(context.Background(), clusters(10)))

	f.run(t)
	require.NotNil(t, f.manager.Model())
	assert.Equal(t, 20, f.manager.Model().(*cart.Model).Samples())
}

func TestManager_ShutdownFlushes(t *testing.T) {
	f := newFixture(t)
	ctx := logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, f.manager.Run(ctx))
	require.NoError(t, f.manager.Collect(clusters(3)...))

	f.manager.Stop()
	select {
	case err := <-f.shutdownCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not report shutdown")
	}

	stored, err := f.manager.recordDB.FindAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, stored, 6)

	err = f.manager.Collect(clusters(1)...)
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("collecting after stop got: %v, expected: %v", err, ErrShuttingDown)
	}

	_, err = f.manager.Retrain(ctx)
	if !errors.Is(err, ErrShuttingDown) {
		t.Errorf("retraining after stop got: %v, expected: %v", err, ErrShuttingDown)
	}
}

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		call func() error
	}{
		{name: "no_db", call: func() error {
			_, err := New(nil, provideTrainer, f.store, f.notifier, nil)
			return err
		}},
		{name: "no_store", call: func() error {
			_, err := New(f.db, provideTrainer, nil, f.notifier, nil)
			return err
		}},
		{name: "no_trainer", call: func() error {
			_, err := New(f.db, nil, f.store, f.notifier, nil)
			return err
		}},
		{name: "zero_interval", call: func() error {
			_, err := New(f.db, provideTrainer, f.store, f.notifier, nil, WithRetrainInterval(0))
			return err
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.call(); err == nil {
				t.Errorf("creating manager got: nil, expected an error")
			}
		})
	}
}
