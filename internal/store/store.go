package store

import (
	"fmt"
)

// Backend persists the whole user database. Every Save rewrites all users;
// there is no protection against a second process saving concurrently.
type Backend interface {
	Load() (*UserDatabase, error)
	Save(db *UserDatabase) error
	Close() error
}

// StorageError is a read, parse or write failure of the user database.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("user store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Open returns the backend for driver: "json", "sqlite" or "bolt".
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "", "json":
		return NewJSONStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	case "bolt":
		return NewBoltStore(path)
	default:
		return nil, fmt.Errorf("unknown user store driver %q", driver)
	}
}
