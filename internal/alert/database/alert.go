package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-sod/pipecast/internal/alert/model"
	"github.com/go-sod/pipecast/internal/database"
	bolt "go.etcd.io/bbolt"
)

const (
	alertKeys = "alert:keys:"
	prefix    = "alert:"
)

type FilterFn func(alert model.Alert) bool

func New(db *database.DB) *DB {
	return &DB{sDB: db}
}

type DB struct {
	sDB *database.DB
}

func (db *DB) Keys() ([]string, error) {
	var bucketKeys []string
	err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(alertKeys))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			bucketKeys = append(bucketKeys, strings.TrimPrefix(string(k), prefix))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return bucketKeys, nil
}

func (db *DB) Store(_ context.Context, alert model.Alert) error {
	bytes, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert %s: %w", alert.ID, err)
	}
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(prefix + alert.PipelineID))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		if err := b.Put([]byte(alert.ID.String()), bytes); err != nil {
			return fmt.Errorf("put to bucket error: %w", err)
		}
		keys, err := tx.CreateBucketIfNotExists([]byte(alertKeys))
		if err != nil {
			return fmt.Errorf("unable create pipelines bucket: %w", err)
		}
		if err := keys.Put([]byte(prefix+alert.PipelineID), []byte{0x0}); err != nil {
			return fmt.Errorf("unable put to pipelines bucket: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) Delete(_ context.Context, alert model.Alert) error {
	if err := db.sDB.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(prefix + alert.PipelineID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(alert.ID.String()))
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}
	return nil
}

func (db *DB) FindAll(_ context.Context, filter FilterFn) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := db.sDB.DB.View(func(tx *bolt.Tx) error {
		keys := tx.Bucket([]byte(alertKeys))
		if keys == nil {
			return nil
		}
		return keys.ForEach(func(key, _ []byte) error {
			b := tx.Bucket(key)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, v []byte) error {
				var a model.Alert
				if err := json.Unmarshal(v, &a); err != nil {
					return fmt.Errorf("alert %s unmarshal error: %w", k, err)
				}
				if filter == nil || filter(a) {
					alerts = append(alerts, a)
				}
				return nil
			})
		})
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return alerts, nil
}
