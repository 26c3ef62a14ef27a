package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/record/model"
)

type dbSchedulerConfig struct {
	maxItemsStored int
	maxStorageTime time.Duration
	rebuildDBTime  time.Duration
	now            func() time.Time
	deps           pullDependencies
}

func newDBScheduler(config dbSchedulerConfig) *dbScheduler {
	if config.now == nil {
		config.now = time.Now
	}
	return &dbScheduler{opts: config}
}

// dbScheduler enforces record retention: a per-pipeline count cap and a
// maximum age.
type dbScheduler struct {
	opts dbSchedulerConfig
}

// processOutdatedRecords deletes the records of a pipeline older than
// maxStorageTime.
func (s *dbScheduler) processOutdatedRecords(pipelineID string) (int, error) {
	deadline := s.opts.now().Add(-s.opts.maxStorageTime)
	records, err := s.opts.deps.fetchRecordsByPipeline(pipelineID, func(record model.Record) bool {
		return record.CreatedAt.Before(deadline)
	})
	if err != nil {
		return 0, fmt.Errorf("unable find records by pipeline %s: %w", pipelineID, err)
	}
	if err := s.opts.deps.deleteRecords(context.Background(), records); err != nil {
		return 0, fmt.Errorf("unable delete outdated records of pipeline %s: %w", pipelineID, err)
	}
	return len(records), nil
}

// processOverSizeRecords deletes the oldest records of a pipeline beyond
// maxItemsStored.
func (s *dbScheduler) processOverSizeRecords(pipelineID string) (int, error) {
	records, err := s.opts.deps.fetchRecordsByPipeline(pipelineID, nil)
	if err != nil {
		return 0, fmt.Errorf("unable find records by pipeline %s: %w", pipelineID, err)
	}
	excess := len(records) - s.opts.maxItemsStored
	if excess <= 0 {
		return 0, nil
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	if err := s.opts.deps.deleteRecords(context.Background(), records[:excess]); err != nil {
		return 0, fmt.Errorf("unable delete oversize records of pipeline %s: %w", pipelineID, err)
	}
	return excess, nil
}

func (s *dbScheduler) rebuildOutdated() (int, error) {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return 0, fmt.Errorf("unable to fetch pipeline keys: %w", err)
	}
	var deleted int
	for i := range keys {
		n, err := s.processOutdatedRecords(keys[i])
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

func (s *dbScheduler) rebuildSize() (int, error) {
	keys, err := s.opts.deps.fetchKeys()
	if err != nil {
		return 0, fmt.Errorf("unable fetch keys: %w", err)
	}
	var deleted int
	for i := range keys {
		length, err := s.opts.deps.countByPipeline(keys[i])
		if err != nil {
			return deleted, fmt.Errorf("unable count by pipeline %s: %w", keys[i], err)
		}
		if length <= s.opts.maxItemsStored {
			continue
		}
		n, err := s.processOverSizeRecords(keys[i])
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	return deleted, nil
}

// rebuild applies both retention rules once.
func (s *dbScheduler) rebuild(ctx context.Context) {
	logger := logging.FromContext(ctx)
	if s.opts.maxItemsStored > 0 {
		n, err := s.rebuildSize()
		if err != nil {
			logger.Errorf("unable db rebuild size: %v", err)
		}
		if n > 0 {
			logger.Debugf("retention removed %d records over the size limit", n)
		}
	}
	if s.opts.maxStorageTime > 0 {
		n, err := s.rebuildOutdated()
		if err != nil {
			logger.Errorf("unable db rebuild outdated: %v", err)
		}
		if n > 0 {
			logger.Debugf("retention removed %d outdated records", n)
		}
	}
}

func (s *dbScheduler) schedule(ctx context.Context) {
	ticker := time.NewTicker(s.opts.rebuildDBTime)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.rebuild(ctx)
		case <-ctx.Done():
			return
		}
	}
}
