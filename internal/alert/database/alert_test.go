package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestDB(t *testing.T) {
	bdb, err := bolt.Open(filepath.Join(t.TempDir(), "alerts.db"), 0600, nil)
	require.NoError(t, err)
	defer bdb.Close()
	db := New(&database.DB{DB: bdb})
	ctx := context.Background()

	all, err := db.FindAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	failure := model.Failure{PipelineID: "etl-orders", Confidence: 0.9, PredictedAt: time.Now().UTC()}
	a1 := model.NewAlert("etl-orders", "http://hooks/a", []model.Failure{failure})
	a2 := model.NewAlert("ingest-clicks", "http://hooks/b", nil)
	require.NoError(t, db.Store(ctx, a1))
	require.NoError(t, db.Store(ctx, a2))

	keys, err := db.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"etl-orders", "ingest-clicks"}, keys)

	found, err := db.FindAll(ctx, func(a model.Alert) bool { return a.TargetURL == "http://hooks/a" })
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a1.ID, found[0].ID)
	assert.Equal(t, 0.9, found[0].Failures[0].Confidence)

	require.NoError(t, db.Delete(ctx, a1))
	require.NoError(t, db.Delete(ctx, model.NewAlert("unknown", "", nil)))
	all, err = db.FindAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, a2.ID, all[0].ID)
}
