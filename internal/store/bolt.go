package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var usersBucket = []byte("users")

// BoltStore keeps one JSON-encoded UserRecord per email in a bbolt bucket.
// Unlike JSONStore, a Save is atomic.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

var _ Backend = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Load() (*UserDatabase, error) {
	db := NewUserDatabase()
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec UserRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decoding user %s: %w", k, err)
			}
			rec.Email = string(k)
			db.Users[rec.Email] = &rec
			return nil
		})
	})
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	return db, nil
}

func (s *BoltStore) Save(db *UserDatabase) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(usersBucket) != nil {
			if err := tx.DeleteBucket(usersBucket); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(usersBucket)
		if err != nil {
			return err
		}
		for email, rec := range db.Users {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encoding user %s: %w", email, err)
			}
			if err := b.Put([]byte(email), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}
