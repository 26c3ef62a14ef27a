package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/feature"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap/zaptest"
)

type hook struct {
	mtx      sync.Mutex
	status   int
	requests []request
}

func (h *hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.requests = append(h.requests, req)
	if h.status != 0 {
		w.WriteHeader(h.status)
	}
}

func (h *hook) received() []request {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return append([]request(nil), h.requests...)
}

func openDB(t *testing.T, path string) *database.DB {
	t.Helper()
	bdb, err := bolt.Open(path, 0600, nil)
	require.NoError(t, err)
	return &database.DB{DB: bdb}
}

func failure(pipeline string) model.Failure {
	return model.Failure{
		PipelineID:   pipeline,
		Features:     feature.Vector{feature.HoursSinceLastRun: 12},
		Confidence:   0.8,
		DecisionPath: []string{"hoursSinceLastRun (12) > 5.5"},
		ModelID:      "m1",
		PredictedAt:  time.Now().UTC(),
	}
}

func testCtx(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t).Sugar())
}

func TestManager_Flush(t *testing.T) {
	ordersHook, allHook := &hook{}, &hook{}
	ordersSrv, allSrv := httptest.NewServer(ordersHook), httptest.NewServer(allHook)
	defer ordersSrv.Close()
	defer allSrv.Close()

	db := openDB(t, filepath.Join(t.TempDir(), "alerts.db"))
	defer db.DB.Close()

	m, err := New(db, make(chan error, 1), WithTargets(Targets{
		{URL: ordersSrv.URL, PipelineID: "etl-orders"},
		{URL: allSrv.URL, PipelineID: AnyPipeline},
	}))
	require.NoError(t, err)

	m.Notify(failure("etl-orders"), failure("etl-orders"), failure("ingest-clicks"))
	m.flush(testCtx(t), t.Errorf)

	orders := ordersHook.received()
	require.Len(t, orders, 1)
	assert.Equal(t, "etl-orders", orders[0].PipelineID)
	assert.Len(t, orders[0].Data, 2)
	assert.Equal(t, 12.0, orders[0].Data[0].Features["hoursSinceLastRun"])
	assert.Equal(t, []string{"hoursSinceLastRun (12) > 5.5"}, orders[0].Data[0].DecisionPath)

	all := allHook.received()
	require.Len(t, all, 2)
	total := 0
	for _, r := range all {
		total += len(r.Data)
	}
	if total != 3 {
		t.Errorf("failures delivered to catch-all target got: %v, expected: %v", total, 3)
	}

	assert.Empty(t, m.take())
}

func TestManager_RetryAndPersist(t *testing.T) {
	h := &hook{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(h)
	defer srv.Close()
	path := filepath.Join(t.TempDir(), "alerts.db")
	targets := Targets{{URL: srv.URL, PipelineID: "etl-orders"}}

	db := openDB(t, path)
	m, err := New(db, make(chan error, 1), WithTargets(targets), WithMaxPending(2))
	require.NoError(t, err)

	m.Notify(failure("etl-orders"), failure("etl-orders"), failure("etl-orders"), failure("unwatched"))
	m.flush(testCtx(t), func(string, ...interface{}) {})
	require.Len(t, h.received(), 1)
	assert.Len(t, h.received()[0].Data, 2, "oldest failure beyond max pending is dropped")

	require.NoError(t, m.shutdown())
	require.NoError(t, db.DB.Close())

	db = openDB(t, path)
	defer db.DB.Close()
	restored, err := New(db, make(chan error, 1), WithTargets(targets))
	require.NoError(t, err)
	require.NoError(t, restored.initialize(testCtx(t)))

	backlog := restored.take()
	require.Len(t, backlog, 1)
	assert.Len(t, backlog[delivery{target: 0, pipeline: "etl-orders"}], 2)

	left, err := restored.alertDb.FindAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestManager_RunStop(t *testing.T) {
	h := &hook{}
	srv := httptest.NewServer(h)
	defer srv.Close()
	db := openDB(t, filepath.Join(t.TempDir(), "alerts.db"))
	defer db.DB.Close()

	shutdownCh := make(chan error, 1)
	m, err := New(db, shutdownCh, WithTargets(Targets{{URL: srv.URL, PipelineID: AnyPipeline}}), WithInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, m.Run(testCtx(t)))

	m.Notify(failure("etl-orders"))
	require.Eventually(t, func() bool { return len(h.received()) == 1 }, time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case err := <-shutdownCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("alert manager did not report shutdown")
	}
}

func TestNew(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "alerts.db"))
	defer db.DB.Close()

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "no_targets"},
		{name: "valid", opts: []Option{WithTargets(Targets{{URL: "http://hooks.local/a", PipelineID: "*"}})}},
		{name: "bad_url", opts: []Option{WithTargets(Targets{{URL: "not a url", PipelineID: "*"}})}, wantErr: true},
		{name: "bad_auth", opts: []Option{WithTargets(Targets{{
			URL: "http://hooks.local/a", PipelineID: "*",
			HTTPConfig: httputilConfigWithBoth(),
		}})}, wantErr: true},
		{name: "zero_interval", opts: []Option{WithInterval(0)}, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(db, nil, test.opts...)
			if (err != nil) != test.wantErr {
				t.Errorf("creating manager got: %v, expected error: %v", err, test.wantErr)
			}
		})
	}
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestNotify_Disabled(t *testing.T) {
	db := openDB(t, filepath.Join(t.TempDir(), "alerts.db"))
	defer db.DB.Close()
	m, err := New(db, nil, WithAllowAlerts(false), WithTargets(Targets{{URL: "http://hooks.local/a", PipelineID: "*"}}))
	require.NoError(t, err)
	m.Notify(failure("etl-orders"))
	assert.Empty(t, m.take())
}

func TestTargets_Decode(t *testing.T) {
	var ts Targets
	require.NoError(t, ts.Decode(`[{"url":"http://a","pipeline":"*","httpConfig":{"bearerToken":"x"}}]`))
	require.Len(t, ts, 1)
	assert.True(t, ts[0].Matches("anything"))
	assert.Equal(t, "x", ts[0].HTTPConfig.BearerToken)
	assert.Error(t, ts.Decode(`{`))
}

func httputilConfigWithBoth() httputil.HTTPClientConfig {
	return httputil.HTTPClientConfig{BearerToken: "t", BasicAuth: &httputil.BasicAuth{Username: "u"}}
}
