package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/modelstore"
	"github.com/go-sod/pipecast/internal/predictor"
	"github.com/go-sod/pipecast/internal/stats"
)

type retrainerOptions struct {
	interval   time.Duration
	minRecords int
	trainer    predictor.Trainer
	store      modelstore.Store
	deps       pullDependencies
	publish    func(predictor.Model)
}

func newRetrainer(opts retrainerOptions) *retrainer {
	return &retrainer{opts: opts}
}

// retrainer grows a new tree from every stored record and publishes it.
type retrainer struct {
	// one training run at a time
	mtx  sync.Mutex
	opts retrainerOptions
}

func (r *retrainer) retrain(ctx context.Context) (predictor.Model, error) {
	logger := logging.FromContext(ctx)
	r.mtx.Lock()
	defer r.mtx.Unlock()

	records, err := r.opts.deps.fetchRecords(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching records: %w", err)
	}
	if len(records) < r.opts.minRecords || len(records) == 0 {
		stats.RecordTrainingSkipped(ctx)
		return nil, fmt.Errorf("%w: have %d, need %d", ErrNotEnoughRecords, len(records), r.opts.minRecords)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	samples := make([]predictor.Sample, len(records))
	for i := range records {
		samples[i] = records[i]
	}

	start := time.Now()
	m, err := r.opts.trainer.Train(samples...)
	took := time.Since(start)
	if err != nil {
		stats.RecordTrainingFailed(ctx, took)
		return nil, fmt.Errorf("training on %d records: %w", len(samples), err)
	}
	r.opts.publish(m)
	stats.RecordTrained(ctx, took, m.TrainingAccuracy(), m.NodeCount())
	logger.Infof("model %s trained on %d records in %s, nodes %d, training accuracy %.3f",
		m.ID(), len(samples), took, m.NodeCount(), m.TrainingAccuracy())

	if err := r.opts.store.Save(ctx, m); err != nil {
		logger.Errorf("unable save model %s: %v", m.ID(), err)
	}
	return m, nil
}

func (r *retrainer) loop(ctx context.Context) {
	logger := logging.FromContext(ctx)
	ticker := time.NewTicker(r.opts.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := r.retrain(ctx); err != nil {
				if errors.Is(err, ErrNotEnoughRecords) {
					logger.Debugf("retrain skipped: %v", err)
					continue
				}
				logger.Errorf("retrain failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
