package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats/view"
)

func rows(t *testing.T, name string) []*view.Row {
	t.Helper()
	rows, err := view.RetrieveData(name)
	require.NoError(t, err)
	return rows
}

func countFor(t *testing.T, name, value string) int64 {
	t.Helper()
	for _, row := range rows(t, name) {
		for _, tg := range row.Tags {
			if tg.Value == value {
				return row.Data.(*view.CountData).Value
			}
		}
	}
	return 0
}

func TestRecord(t *testing.T) {
	require.NoError(t, Register())
	defer view.Unregister(Views()...)
	ctx := context.Background()

	RecordCollected(ctx, 3)
	RecordCollected(ctx, 2)
	RecordPrediction(ctx, true)
	RecordPrediction(ctx, false)
	RecordPrediction(ctx, false)
	RecordTrainingSkipped(ctx)
	RecordTrainingFailed(ctx, time.Millisecond)
	RecordTrained(ctx, 20*time.Millisecond, 0.75, 7)
	RecordTrained(ctx, 10*time.Millisecond, 0.9, 3)

	collected := rows(t, "pipecast/records_collected")
	require.Len(t, collected, 1)
	assert.Equal(t, 5.0, collected[0].Data.(*view.SumData).Value)

	assert.Equal(t, int64(1), countFor(t, "pipecast/predictions", OutcomeFail))
	assert.Equal(t, int64(2), countFor(t, "pipecast/predictions", OutcomeOK))
	assert.Equal(t, int64(2), countFor(t, "pipecast/training_runs", ResultSuccess))
	assert.Equal(t, int64(1), countFor(t, "pipecast/training_runs", ResultSkipped))
	assert.Equal(t, int64(1), countFor(t, "pipecast/training_runs", ResultError))

	accuracy := rows(t, "pipecast/training_accuracy")
	require.Len(t, accuracy, 1)
	assert.Equal(t, 0.9, accuracy[0].Data.(*view.LastValueData).Value)

	nodes := rows(t, "pipecast/tree_nodes")
	require.Len(t, nodes, 1)
	assert.Equal(t, 3.0, nodes[0].Data.(*view.LastValueData).Value)

	latency := rows(t, "pipecast/training_latency")
	require.Len(t, latency, 1)
	assert.Equal(t, int64(3), latency[0].Data.(*view.DistributionData).Count)
}

func TestNewExporter(t *testing.T) {
	pe, err := NewExporter("pipecast_test")
	require.NoError(t, err)
	assert.NotNil(t, pe)
}
