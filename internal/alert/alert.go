package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sync"
	"time"

	alertDb "github.com/go-sod/pipecast/internal/alert/database"
	"github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/pkg/rworker"
)

type ProvideFn = func(chan<- error) (Manager, error)

type Options struct {
	allowAlerts          bool
	maxConcurrentRequest int
	maxPending           int
	alertInterval        time.Duration
	targets              Targets
}

type Option func(*manager)

func WithAllowAlerts(allow bool) Option {
	return func(o *manager) {
		o.opts.allowAlerts = allow
	}
}

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithMaxPending(n int) Option {
	return func(o *manager) {
		o.opts.maxPending = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.alertInterval = t
	}
}

func WithTargets(m Targets) Option {
	return func(o *manager) {
		o.opts.targets = m
	}
}

type data struct {
	Features     map[string]float64 `json:"features"`
	Confidence   float64            `json:"confidence"`
	DecisionPath []string           `json:"decisionPath"`
	ModelID      string             `json:"modelId"`
	PredictedAt  time.Time          `json:"predictedAt"`
}

type request struct {
	PipelineID string `json:"pipeline"`
	Data       []data `json:"data"`
}

// delivery addresses the backlog of one pipeline at one target.
type delivery struct {
	target   int
	pipeline string
}

func New(db *database.DB, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	if db == nil {
		return nil, fmt.Errorf("alert storage is not opened")
	}
	m := &manager{
		alertDb:    alertDb.New(db),
		shutdownCh: shutdownCh,
		pending:    map[delivery][]model.Failure{},
		opts: Options{
			allowAlerts:          true,
			maxConcurrentRequest: 64,
			maxPending:           1000,
			alertInterval:        5 * time.Second,
		},
	}
	for _, f := range opts {
		f(m)
	}
	if m.opts.alertInterval <= 0 {
		return nil, fmt.Errorf("alert interval must be positive, got %s", m.opts.alertInterval)
	}
	m.clients = make([]*http.Client, len(m.opts.targets))
	for i, target := range m.opts.targets {
		if u, err := url.Parse(target.URL); err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid alert target url %q", target.URL)
		}
		client, err := httputil.NewClientFromConfig(target.HTTPConfig, true)
		if err != nil {
			return nil, fmt.Errorf("unable create client for target %s: %w", target.URL, err)
		}
		m.clients[i] = client
	}
	return m, nil
}

type Notifier interface {
	Notify(failures ...model.Failure)
}

type Manager interface {
	Notifier
	Run(context.Context) error
	Stop()
}

type manager struct {
	mtx        sync.Mutex
	opts       Options
	alertDb    *alertDb.DB
	shutdownCh chan<- error
	clients    []*http.Client
	pending    map[delivery][]model.Failure
	cancel     func()
}

// Run restores the backlog saved at the last shutdown and starts delivering.
func (m *manager) Run(ctx context.Context) error {
	if err := m.initialize(ctx); err != nil {
		return fmt.Errorf("can not start alert manager: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.notifier(ctx)
	return nil
}

func (m *manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

// Notify queues the failures for every target watching their pipeline.
func (m *manager) Notify(failures ...model.Failure) {
	if !m.opts.allowAlerts {
		return
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for _, f := range failures {
		for i, target := range m.opts.targets {
			if target.Matches(f.PipelineID) {
				m.enqueue(delivery{target: i, pipeline: f.PipelineID}, f)
			}
		}
	}
}

func (m *manager) enqueue(d delivery, failures ...model.Failure) {
	q := append(m.pending[d], failures...)
	if over := len(q) - m.opts.maxPending; m.opts.maxPending > 0 && over > 0 {
		q = q[over:]
	}
	m.pending[d] = q
}

func (m *manager) targetIndex(url string) int {
	for i, target := range m.opts.targets {
		if target.URL == url {
			return i
		}
	}
	return -1
}

func (m *manager) initialize(ctx context.Context) error {
	logger := logging.FromContext(ctx)
	alerts, err := m.alertDb.FindAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("fetching stored alerts: %w", err)
	}
	for _, a := range alerts {
		if i := m.targetIndex(a.TargetURL); i >= 0 {
			m.mtx.Lock()
			m.enqueue(delivery{target: i, pipeline: a.PipelineID}, a.Failures...)
			m.mtx.Unlock()
		} else {
			logger.Warnf("dropping %d stored alerts of %s, target %s is no longer configured",
				len(a.Failures), a.PipelineID, a.TargetURL)
		}
		if err := m.alertDb.Delete(ctx, a); err != nil {
			return fmt.Errorf("unable delete alert on initialize: %w", err)
		}
	}
	if len(alerts) > 0 {
		logger.Infof("restored %d stored alerts", len(alerts))
	}
	return nil
}

// shutdown saves the undelivered backlog.
func (m *manager) shutdown() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	for d, failures := range m.pending {
		if len(failures) == 0 {
			continue
		}
		a := model.NewAlert(d.pipeline, m.opts.targets[d.target].URL, failures)
		if err := m.alertDb.Store(context.Background(), a); err != nil {
			return fmt.Errorf("alert shutdown: unable store alert: %w", err)
		}
	}
	m.pending = map[delivery][]model.Failure{}
	return nil
}

func (m *manager) take() map[delivery][]model.Failure {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	batch := m.pending
	m.pending = map[delivery][]model.Failure{}
	return batch
}

func (m *manager) notifier(ctx context.Context) {
	logger := logging.FromContext(ctx)
	defer func() {
		m.shutdownCh <- m.shutdown()
	}()
	ticker := time.NewTicker(m.opts.alertInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.flush(ctx, logger.Errorf)
		case <-ctx.Done():
			return
		}
	}
}

// flush sends every queued backlog once. Failed deliveries go back to the
// queue.
func (m *manager) flush(ctx context.Context, logf func(string, ...interface{})) {
	batch := m.take()
	if len(batch) == 0 {
		return
	}
	errCh := make(chan error, len(batch))
	group := rworker.New(m.opts.maxConcurrentRequest, errCh)
	for d, failures := range batch {
		d, failures := d, failures
		group.Go(func() error {
			if err := m.do(ctx, d, failures); err != nil {
				m.mtx.Lock()
				m.enqueue(d, failures...)
				m.mtx.Unlock()
				return fmt.Errorf("alert %s to %s: %w", d.pipeline, m.opts.targets[d.target].URL, err)
			}
			return nil
		})
	}
	group.Wait()
	close(errCh)
	for err := range errCh {
		logf("alert error: %v", err)
	}
}

func (m *manager) do(ctx context.Context, d delivery, failures []model.Failure) error {
	req := request{PipelineID: d.pipeline, Data: make([]data, len(failures))}
	for i, f := range failures {
		features := make(map[string]float64, len(f.Features))
		for k, v := range f.Features {
			features[string(k)] = v
		}
		req.Data[i] = data{
			Features:     features,
			Confidence:   f.Confidence,
			DecisionPath: f.DecisionPath,
			ModelID:      f.ModelID,
			PredictedAt:  f.PredictedAt,
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("unable encode json data: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.targets[d.target].URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request error: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.clients[d.target].Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request error: %w", err)
	}
	defer resp.Body.Close()

	msg, err := ioutil.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("response was %s: %s", resp.Status, msg)
	}
	return nil
}
