// Package source polls upstream generators for labelled records.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/go-sod/pipecast/internal/dispatcher"
	"github.com/go-sod/pipecast/internal/httputil"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/record/model"
	"github.com/go-sod/pipecast/pkg/rworker"
)

// maxResponseSize caps one upstream response body.
const maxResponseSize = 32 << 20

type Manager interface {
	Run(context.Context) error
	Stop()
}

type ProvideFn = func(dispatcher.Collector, chan<- error) (Manager, error)

type Options struct {
	maxConcurrentRequest int
	interval             time.Duration
	now                  func() time.Time
}

type Option func(*manager)

func WithMaxConcurrentRequest(n int) Option {
	return func(o *manager) {
		o.opts.maxConcurrentRequest = n
	}
}

func WithInterval(t time.Duration) Option {
	return func(o *manager) {
		o.opts.interval = t
	}
}

func WithTargets(ts Targets) Option {
	return func(o *manager) {
		o.targets = ts
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *manager) {
		o.opts.now = now
	}
}

func New(collector dispatcher.Collector, shutdownCh chan<- error, opts ...Option) (*manager, error) {
	if collector == nil {
		return nil, fmt.Errorf("collector instance is not defined")
	}
	m := &manager{
		collector:  collector,
		shutdownCh: shutdownCh,
		opts: Options{
			maxConcurrentRequest: 16,
			interval:             time.Minute,
			now:                  time.Now,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.opts.interval <= 0 {
		return nil, fmt.Errorf("scrape interval must be positive, got %s", m.opts.interval)
	}
	m.clients = make([]*http.Client, len(m.targets))
	for i, target := range m.targets {
		if u, err := url.Parse(target.URL); err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid source url %q", target.URL)
		}
		client, err := httputil.NewClientFromConfig(target.HTTPConfig, false)
		if err != nil {
			return nil, fmt.Errorf("unable create client for %s: %w", target.URL, err)
		}
		m.clients[i] = client
	}
	return m, nil
}

type manager struct {
	opts       Options
	targets    Targets
	clients    []*http.Client
	collector  dispatcher.Collector
	shutdownCh chan<- error
	cancel     func()
}

func (s *manager) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer func() {
			s.shutdownCh <- nil
		}()
		ticker := time.NewTicker(s.opts.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.scrapeAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (s *manager) scrape(ctx context.Context, i int) (model.Batch, error) {
	var batch model.Batch
	target := s.targets[i]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return batch, fmt.Errorf("creating request error: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.clients[i].Do(req)
	if err != nil {
		return batch, fmt.Errorf("sending request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 1024))
		return batch, fmt.Errorf("response was %s: %s", resp.Status, msg)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&batch); err != nil {
		return batch, fmt.Errorf("decoding response error: %w", err)
	}
	if batch.PipelineID == "" {
		batch.PipelineID = target.PipelineID
	}
	return batch, nil
}

// scrapeAll polls every target once and collects what they return.
func (s *manager) scrapeAll(ctx context.Context) {
	logger := logging.FromContext(ctx)
	errCh := make(chan error, len(s.targets))
	group := rworker.New(s.opts.maxConcurrentRequest, errCh)
	for i := range s.targets {
		i := i
		group.Go(func() error {
			batch, err := s.scrape(ctx, i)
			if err != nil {
				return fmt.Errorf("scrape %s: %w", s.targets[i].URL, err)
			}
			records, err := batch.Records(s.opts.now())
			if err != nil {
				return fmt.Errorf("scrape %s: %w", s.targets[i].URL, err)
			}
			if err := s.collector.Collect(records...); err != nil {
				return fmt.Errorf("send to collect error: %w", err)
			}
			logger.Debugf("collected %d records of %s from %s", len(records), batch.PipelineID, s.targets[i].URL)
			return nil
		})
	}
	group.Wait()
	close(errCh)
	for err := range errCh {
		logger.Errorf("scrape manager error: %v", err)
	}
}
