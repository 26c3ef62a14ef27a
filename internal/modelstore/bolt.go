package modelstore

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/go-sod/pipecast/internal/database"
	"github.com/go-sod/pipecast/internal/logging"
	"github.com/go-sod/pipecast/internal/predictor"
	bolt "go.etcd.io/bbolt"
)

const modelsBucket = "models"

var _ Store = (*BoltStore)(nil)

// BoltStore keeps snapshots keyed by big-endian training time, so the last
// key is the newest model.
type BoltStore struct {
	db     *database.DB
	decode predictor.DecodeFn
	keep   int
}

func NewBolt(db *database.DB, decode predictor.DecodeFn, keep int) (*BoltStore, error) {
	if keep < 1 {
		return nil, fmt.Errorf("model store must keep at least one model, got %d", keep)
	}
	if err := db.DB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(modelsBucket))
		return err
	}); err != nil {
		return nil, fmt.Errorf("create models bucket: %w", err)
	}
	return &BoltStore{db: db, decode: decode, keep: keep}, nil
}

func modelKey(m predictor.Model) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(m.TrainedAt().UnixNano()))
	return k
}

func (s *BoltStore) Save(ctx context.Context, m predictor.Model) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode model %s: %w", m.ID(), err)
	}

	var pruned int
	if err := s.db.DB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		if err := b.Put(modelKey(m), data); err != nil {
			return fmt.Errorf("put model: %w", err)
		}
		// Stats only sees committed pages, so count the keys of this transaction.
		c := b.Cursor()
		n := 0
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			n++
		}
		excess := n - s.keep
		if excess <= 0 {
			return nil
		}
		stale := make([][]byte, 0, excess)
		for k, _ := c.First(); k != nil && len(stale) < excess; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("prune model: %w", err)
			}
		}
		pruned = len(stale)
		return nil
	}); err != nil {
		return fmt.Errorf("update transaction error: %w", err)
	}

	logging.FromContext(ctx).Debugf("model %s saved, %d old models pruned", m.ID(), pruned)
	return nil
}

func (s *BoltStore) Latest(_ context.Context) (predictor.Model, error) {
	var data []byte
	if err := s.db.DB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(modelsBucket))
		if b == nil {
			return nil
		}
		if _, v := b.Cursor().Last(); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	m, err := s.decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode latest model: %w", err)
	}
	return m, nil
}

// Count reports how many models are kept.
func (s *BoltStore) Count() (int, error) {
	var n int
	err := s.db.DB.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(modelsBucket)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Close is a no-op, the database belongs to the caller.
func (s *BoltStore) Close() error {
	return nil
}
