package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Backend = (*SQLiteStore)(nil)

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, path: dataSourceName}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        email TEXT PRIMARY KEY,
        username TEXT NOT NULL,
        password TEXT NOT NULL,
        created_at TEXT NOT NULL,
        last_login TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load() (*UserDatabase, error) {
	rows, err := s.db.Query("SELECT email, username, password, created_at, last_login FROM users")
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: fmt.Errorf("failed to query users: %w", err)}
	}
	defer rows.Close()

	db := NewUserDatabase()
	for rows.Next() {
		var rec UserRecord
		var createdAt, lastLogin string
		if err := rows.Scan(&rec.Email, &rec.Username, &rec.Password, &createdAt, &lastLogin); err != nil {
			return nil, &StorageError{Op: "read", Path: s.path, Err: fmt.Errorf("failed to scan user row: %w", err)}
		}
		if rec.CreatedAt, err = ParseTimestamp(createdAt); err != nil {
			return nil, &StorageError{Op: "parse", Path: s.path, Err: err}
		}
		if rec.LastLogin, err = ParseTimestamp(lastLogin); err != nil {
			return nil, &StorageError{Op: "parse", Path: s.path, Err: err}
		}
		db.Users[rec.Email] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Path: s.path, Err: err}
	}
	return db, nil
}

// Save replaces the users table with the contents of db in one transaction.
func (s *SQLiteStore) Save(db *UserDatabase) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM users"); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: fmt.Errorf("failed to clear users: %w", err)}
	}

	stmt, err := tx.Prepare("INSERT INTO users (email, username, password, created_at, last_login) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: fmt.Errorf("failed to prepare user insert: %w", err)}
	}
	defer stmt.Close()

	for email, rec := range db.Users {
		if _, err := stmt.Exec(email, rec.Username, rec.Password, rec.CreatedAt.String(), rec.LastLogin.String()); err != nil {
			return &StorageError{Op: "write", Path: s.path, Err: fmt.Errorf("failed to insert user %s: %w", email, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "write", Path: s.path, Err: fmt.Errorf("failed to commit users: %w", err)}
	}
	return nil
}
