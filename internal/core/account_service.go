package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/auth"
	"github.com/bookbotinsight/bookbot/internal/store"
	"github.com/bookbotinsight/bookbot/internal/utils"
)

// AccountService runs the signup, login and password flows on top of a
// whole-database Backend. Load-modify-save cycles are serialised within the
// process; another process writing the same store can still lose updates.
type AccountService struct {
	backend  store.Backend
	sessions *SessionManager
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
}

func NewAccountService(backend store.Backend, sessions *SessionManager, logger *zap.Logger) *AccountService {
	return &AccountService{
		backend:  backend,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *AccountService) SetClock(now func() time.Time) {
	s.now = now
}

// PasswordStrength is the live strength check shown while a password is typed.
func (s *AccountService) PasswordStrength(password string) (bool, string) {
	return utils.IsStrongPassword(password)
}

func (s *AccountService) Signup(username, email, password, confirm string) (*store.UserRecord, error) {
	if username == "" || email == "" || password == "" || confirm == "" {
		return nil, utils.NewValidationError("", "All fields are required")
	}
	if !utils.IsValidEmail(email) {
		return nil, utils.NewValidationError("email", "Please enter a valid email address")
	}
	if strong, msg := utils.IsStrongPassword(password); !strong {
		return nil, utils.NewValidationError("password", msg)
	}
	if password != confirm {
		return nil, utils.NewValidationError("confirm_password", "Passwords do not match")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load user database: %w", err)
	}

	rec, err := db.Signup(username, email, password, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.backend.Save(db); err != nil {
		return nil, fmt.Errorf("failed to save user database: %w", err)
	}

	s.logger.Info("User signed up", zap.String("email", email), zap.String("username", username))
	return rec, nil
}

// Login authenticates the credentials, records the login time and returns the
// new logged-in session that replaces sess. A failed attempt changes neither
// the store nor the session.
func (s *AccountService) Login(sess *Session, email, password string) (*store.UserRecord, *Session, error) {
	if email == "" || password == "" {
		return nil, nil, utils.NewValidationError("", "Please enter both email and password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.backend.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user database: %w", err)
	}

	rec, err := db.Authenticate(email, password)
	if err != nil {
		if errors.Is(err, store.ErrUnknownEmail) || errors.Is(err, store.ErrWrongPassword) {
			s.logger.Info("Login rejected", zap.String("email", email), zap.Error(err))
		}
		return nil, nil, err
	}

	rec.LastLogin = store.NewTimestamp(s.now())
	if err := s.backend.Save(db); err != nil {
		return nil, nil, fmt.Errorf("failed to save user database: %w", err)
	}

	next := s.sessions.Login(sess, rec.Username, email)
	s.logger.Info("User logged in",
		zap.String("email", email),
		zap.String("previous_session_id", sess.ID),
		zap.String("session_id", next.ID))
	return rec, next, nil
}

// Account returns the stored record for the account settings view.
func (s *AccountService) Account(email string) (*store.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.backend.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load user database: %w", err)
	}
	rec, ok := db.Lookup(email)
	if !ok {
		return nil, store.ErrUnknownEmail
	}
	return rec, nil
}

func (s *AccountService) ChangePassword(email, current, newPassword, confirm string) error {
	if current == "" || newPassword == "" || confirm == "" {
		return utils.NewValidationError("", "All fields are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.backend.Load()
	if err != nil {
		return fmt.Errorf("failed to load user database: %w", err)
	}
	rec, ok := db.Lookup(email)
	if !ok {
		return store.ErrUnknownEmail
	}

	match, err := auth.VerifyPassword(rec.Password, current)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	if !match {
		return utils.NewValidationError("current_password", "Current password is incorrect")
	}
	if strong, msg := utils.IsStrongPassword(newPassword); !strong {
		return utils.NewValidationError("new_password", msg)
	}
	if newPassword != confirm {
		return utils.NewValidationError("confirm_new_password", "New passwords do not match")
	}

	if err := db.SetPassword(email, newPassword); err != nil {
		return err
	}
	if err := s.backend.Save(db); err != nil {
		return fmt.Errorf("failed to save user database: %w", err)
	}

	s.logger.Info("Password updated", zap.String("email", email))
	return nil
}
