package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookbotinsight/bookbot/internal/auth"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrUnknownEmail   = errors.New("email not found")
	ErrWrongPassword  = errors.New("incorrect password")
)

// Timestamp is an ISO-8601 instant. It is written as RFC 3339 and also reads
// the offset-less form found in older user files.
type Timestamp struct {
	time.Time
}

const naiveISOLayout = "2006-01-02T15:04:05.999999999"

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	t, err := time.ParseInLocation(naiveISOLayout, s, time.Local)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) String() string {
	return t.Time.Format(time.RFC3339Nano)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

type UserRecord struct {
	Email     string    `json:"-"` // the map key in UserDatabase
	Username  string    `json:"username"`
	Password  string    `json:"password"` // salt:hashHex
	CreatedAt Timestamp `json:"created_at"`
	LastLogin Timestamp `json:"last_login"`
}

type UserDatabase struct {
	Users map[string]*UserRecord `json:"users"`
}

func NewUserDatabase() *UserDatabase {
	return &UserDatabase{Users: make(map[string]*UserRecord)}
}

// normalize restores the invariants a freshly decoded document may lack.
func (db *UserDatabase) normalize() {
	if db.Users == nil {
		db.Users = make(map[string]*UserRecord)
	}
	for email, rec := range db.Users {
		if rec == nil {
			delete(db.Users, email)
			continue
		}
		rec.Email = email
	}
}

// Lookup matches email by exact string equality.
func (db *UserDatabase) Lookup(email string) (*UserRecord, bool) {
	rec, ok := db.Users[email]
	return rec, ok
}

// Signup inserts a new user. The database is left untouched on error.
func (db *UserDatabase) Signup(username, email, password string, now time.Time) (*UserRecord, error) {
	if _, exists := db.Users[email]; exists {
		return nil, ErrDuplicateEmail
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := &UserRecord{
		Email:     email,
		Username:  username,
		Password:  hashed,
		CreatedAt: NewTimestamp(now),
		LastLogin: NewTimestamp(now),
	}
	db.Users[email] = rec
	return rec, nil
}

// Authenticate checks the credentials. Updating LastLogin and persisting are
// left to the caller.
func (db *UserDatabase) Authenticate(email, password string) (*UserRecord, error) {
	rec, ok := db.Users[email]
	if !ok {
		return nil, ErrUnknownEmail
	}

	match, err := auth.VerifyPassword(rec.Password, password)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", email, err)
	}
	if !match {
		return nil, ErrWrongPassword
	}
	return rec, nil
}

func (db *UserDatabase) SetPassword(email, password string) error {
	rec, ok := db.Users[email]
	if !ok {
		return ErrUnknownEmail
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	rec.Password = hashed
	return nil
}
