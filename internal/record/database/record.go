package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/record/model"
	bolt "go.etcd.io/bbolt"
)

const (
	pipelineKeys = "pipeline:keys:"
	prefix       = "record:"
)

type FilterFn func(record model.Record) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

// DB keeps records in one bucket per pipeline, plus an index bucket of the
// pipeline buckets.
type DB struct {
	sDB *database.DB
}

func (db *DB) extractKey(key string) string {
	return strings.TrimPrefix(key, prefix)
}

func (db *DB) Keys() ([]string, error) {
	var keys []string
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pipelineKeys))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, db.extractKey(string(k)))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return keys, nil
}

func put(tx *bolt.Tx, record model.Record) error {
	bytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	b, err := tx.CreateBucketIfNotExists([]byte(prefix + record.PipelineID))
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	if err := b.Put([]byte(record.ID.String()), bytes); err != nil {
		return fmt.Errorf("put to bucket error: %w", err)
	}
	keys, err := tx.CreateBucketIfNotExists([]byte(pipelineKeys))
	if err != nil {
		return fmt.Errorf("unable create pipelines bucket: %w", err)
	}
	if err := keys.Put([]byte(prefix+record.PipelineID), []byte{0x0}); err != nil {
		return fmt.Errorf("unable put to pipelines bucket: %w", err)
	}
	return nil
}

func (db *DB) Store(_ context.Context, record model.Record) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		return put(tx, record)
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) AppendMany(_ context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for i := range records {
			if err := put(tx, records[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("batch transaction error: %w", err)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, record model.Record) error {
	return db.DeleteMany(ctx, []model.Record{record})
}

func (db *DB) DeleteMany(_ context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := db.sDB.DB.Batch(func(tx *bolt.Tx) error {
		for _, record := range records {
			b := tx.Bucket([]byte(prefix + record.PipelineID))
			if b == nil {
				continue
			}
			if err := b.Delete([]byte(record.ID.String())); err != nil {
				return fmt.Errorf("unable delete: %w", err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("batch transaction error: %w", err)
	}
	return nil
}

func scan(b *bolt.Bucket, filter FilterFn, out []model.Record) ([]model.Record, error) {
	err := b.ForEach(func(k, v []byte) error {
		var record model.Record
		if err := json.Unmarshal(v, &record); err != nil {
			return fmt.Errorf("record %s unmarshal error: %w", k, err)
		}
		if filter == nil || filter(record) {
			out = append(out, record)
		}
		return nil
	})
	return out, err
}

// FindAll returns the matching records of every pipeline, pipelines in key
// order and records in id order within a pipeline.
func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Record, error) {
	var records []model.Record
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket([]byte(pipelineKeys))
		if keys == nil {
			return nil
		}
		return keys.ForEach(func(k, _ []byte) error {
			b := tx.Bucket(k)
			if b == nil {
				return nil
			}
			var err error
			records, err = scan(b, filter, records)
			return err
		})
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return records, nil
}

func (db *DB) CountByPipeline(pipelineID string) (int, error) {
	var length int
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + pipelineID))
		if b == nil {
			return nil
		}
		length = b.Stats().KeyN
		return nil
	}); err != nil {
		return 0, fmt.Errorf("view transaction error: %w", err)
	}
	return length, nil
}

func (db *DB) FindByPipeline(pipelineID string, filter FilterFn) ([]model.Record, error) {
	var records []model.Record
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + pipelineID))
		if b == nil {
			return nil
		}
		var err error
		records, err = scan(b, filter, records)
		return err
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return records, nil
}
