// Package stats holds the opencensus measures and views of the service.
package stats

import (
	"context"
	"fmt"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	ocstats "go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	OutcomeFail = "fail"
	OutcomeOK   = "ok"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	RecordsCollected = ocstats.Int64("pipecast/records_collected", "Number of labelled records accepted", ocstats.UnitDimensionless)
	Predictions      = ocstats.Int64("pipecast/predictions", "Number of predictions served", ocstats.UnitDimensionless)
	TrainingRuns     = ocstats.Int64("pipecast/training_runs", "Number of training attempts", ocstats.UnitDimensionless)
	TrainingLatency  = ocstats.Float64("pipecast/training_latency", "Time spent growing a tree", ocstats.UnitMilliseconds)
	TrainingAccuracy = ocstats.Float64("pipecast/training_accuracy", "In-sample accuracy of the last trained tree", ocstats.UnitDimensionless)
	TreeNodes        = ocstats.Int64("pipecast/tree_nodes", "Node count of the last trained tree", ocstats.UnitDimensionless)

	KeyOutcome = tag.MustNewKey("outcome")
	KeyResult  = tag.MustNewKey("result")
)

func Views() []*view.View {
	return []*view.View{
		{
			Name:        "pipecast/records_collected",
			Measure:     RecordsCollected,
			Description: RecordsCollected.Description(),
			Aggregation: view.Sum(),
		},
		{
			Name:        "pipecast/predictions",
			Measure:     Predictions,
			Description: Predictions.Description(),
			TagKeys:     []tag.Key{KeyOutcome},
			Aggregation: view.Count(),
		},
		{
			Name:        "pipecast/training_runs",
			Measure:     TrainingRuns,
			Description: TrainingRuns.Description(),
			TagKeys:     []tag.Key{KeyResult},
			Aggregation: view.Count(),
		},
		{
			Name:        "pipecast/training_latency",
			Measure:     TrainingLatency,
			Description: TrainingLatency.Description(),
			Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000),
		},
		{
			Name:        "pipecast/training_accuracy",
			Measure:     TrainingAccuracy,
			Description: TrainingAccuracy.Description(),
			Aggregation: view.LastValue(),
		},
		{
			Name:        "pipecast/tree_nodes",
			Measure:     TreeNodes,
			Description: TreeNodes.Description(),
			Aggregation: view.LastValue(),
		},
	}
}

func Register() error {
	if err := view.Register(Views()...); err != nil {
		return fmt.Errorf("register views: %w", err)
	}
	return nil
}

// NewExporter returns the prometheus exporter serving every registered view.
func NewExporter(namespace string) (*prometheus.Exporter, error) {
	pe, err := prometheus.NewExporter(prometheus.Options{Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return pe, nil
}

func RecordCollected(ctx context.Context, n int) {
	ocstats.Record(ctx, RecordsCollected.M(int64(n)))
}

func RecordPrediction(ctx context.Context, willFail bool) {
	outcome := OutcomeOK
	if willFail {
		outcome = OutcomeFail
	}
	_ = ocstats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyOutcome, outcome)}, Predictions.M(1))
}

func RecordTrainingSkipped(ctx context.Context) {
	_ = ocstats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyResult, ResultSkipped)}, TrainingRuns.M(1))
}

func RecordTrainingFailed(ctx context.Context, took time.Duration) {
	_ = ocstats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyResult, ResultError)},
		TrainingRuns.M(1), TrainingLatency.M(millis(took)))
}

func RecordTrained(ctx context.Context, took time.Duration, accuracy float64, nodes int) {
	_ = ocstats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(KeyResult, ResultSuccess)},
		TrainingRuns.M(1),
		TrainingLatency.M(millis(took)),
		TrainingAccuracy.M(accuracy),
		TreeNodes.M(int64(nodes)),
	)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
