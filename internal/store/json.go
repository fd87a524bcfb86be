package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
)

// JSONStore keeps the user database in a single pretty-printed JSON file.
// Writes are plain overwrites: a crash mid-write can corrupt the file.
type JSONStore struct {
	path string
}

var _ Backend = (*JSONStore)(nil)

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Path() string {
	return s.path
}

func (s *JSONStore) Load() (*UserDatabase, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewUserDatabase(), nil
		}
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}

	db := &UserDatabase{}
	if err := json.Unmarshal(data, db); err != nil {
		return nil, &StorageError{Op: "parse", Path: s.path, Err: err}
	}
	db.normalize()
	return db, nil
}

func (s *JSONStore) Save(db *UserDatabase) error {
	data, err := json.MarshalIndent(db, "", "    ")
	if err != nil {
		return &StorageError{Op: "encode", Path: s.path, Err: err}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: err}
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}
