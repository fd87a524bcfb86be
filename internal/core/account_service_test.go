package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookbotinsight/bookbot/internal/store"
	"github.com/bookbotinsight/bookbot/internal/utils"
)

type accountFixture struct {
	svc      *AccountService
	sessions *SessionManager
	backend  *store.JSONStore
	clock    *fakeClock
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	clock := newFakeClock()
	sessions := newTestSessions(clock)
	backend := store.NewJSONStore(filepath.Join(t.TempDir(), "user_database.json"))
	svc := NewAccountService(backend, sessions, zap.NewNop())
	svc.SetClock(clock.Now)
	return &accountFixture{svc: svc, sessions: sessions, backend: backend, clock: clock}
}

func (f *accountFixture) fileContents(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.backend.Path())
	require.NoError(t, err)
	return string(data)
}

func TestAccountService_SignupValidation(t *testing.T) {
	tests := []struct {
		name                               string
		username, email, password, confirm string
		field, message                     string
	}{
		{"missing_field", "", "a@b.com", "Abc123!@", "Abc123!@", "", "All fields are required"},
		{"bad_email", "al", "not-an-email", "Abc123!@", "Abc123!@", "email", "Please enter a valid email address"},
		{"weak_password", "al", "a@b.com", "abc12345", "abc12345", "password", "Password must contain at least one uppercase letter"},
		{"mismatch", "al", "a@b.com", "Abc123!@", "Abc123!#", "confirm_password", "Passwords do not match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t)

			_, err := f.svc.Signup(tt.username, tt.email, tt.password, tt.confirm)

			var ve *utils.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.message, ve.Message)

			_, statErr := os.Stat(f.backend.Path())
			assert.True(t, os.IsNotExist(statErr), "store must not be written")
		})
	}
}

func TestAccountService_SignupPersists(t *testing.T) {
	f := newAccountFixture(t)

	rec, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	db, err := f.backend.Load()
	require.NoError(t, err)
	stored, ok := db.Lookup("alice@example.com")
	require.True(t, ok)
	assert.True(t, stored.CreatedAt.Equal(f.clock.Now()))
	assert.True(t, stored.LastLogin.Equal(f.clock.Now()))
}

func TestAccountService_DuplicateSignupLeavesStoreUnchanged(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)
	before := f.fileContents(t)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Signup("mallory", "alice@example.com", "Xyz789#$", "Xyz789#$")
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)

	assert.Equal(t, before, f.fileContents(t))
}

func TestAccountService_LoginSuccess(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	sess := f.sessions.New()

	rec, next, err := f.svc.Login(sess, "alice@example.com", "Abc123!@")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	assert.NotEqual(t, sess.ID, next.ID)
	_, ok := f.sessions.Get(sess.ID)
	assert.False(t, ok, "pre-login session id must be retired")
	got, ok := f.sessions.Get(next.ID)
	require.True(t, ok)
	assert.Same(t, next, got)

	id := next.Identity()
	assert.True(t, id.Authenticated)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "alice@example.com", id.Email)
	assert.Equal(t, f.clock.Now(), id.LastActivity)

	db, err := f.backend.Load()
	require.NoError(t, err)
	stored, _ := db.Lookup("alice@example.com")
	assert.True(t, stored.LastLogin.Equal(f.clock.Now()))
	assert.True(t, stored.CreatedAt.Before(stored.LastLogin.Time))
}

func TestAccountService_LoginStartsFromClearedSession(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)
	_, err = f.svc.Signup("bob", "bob@example.com", "Xyz789#$", "Xyz789#$")
	require.NoError(t, err)

	_, alice, err := f.svc.Login(f.sessions.New(), "alice@example.com", "Abc123!@")
	require.NoError(t, err)
	alice.SetPDFText("alice private corpus")
	alice.appendTurn(ChatTurn{User: "alice q", Bot: "alice a"})

	// Idle past the timeout without any checked request in between.
	f.clock.Advance(45 * time.Minute)

	_, bob, err := f.svc.Login(alice, "bob@example.com", "Xyz789#$")
	require.NoError(t, err)

	assert.Equal(t, "bob", bob.Identity().Username)
	assert.Empty(t, bob.PDFText())
	assert.Empty(t, bob.History())

	assert.False(t, alice.IsAuthenticated())
	assert.Empty(t, alice.PDFText())
	assert.Empty(t, alice.History())
}

func TestAccountService_LoginFailuresChangeNothing(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)
	before := f.fileContents(t)
	f.clock.Advance(time.Hour)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"wrong_password", "alice@example.com", "Wrong123!", store.ErrWrongPassword},
		{"unknown_email", "bob@example.com", "Abc123!@", store.ErrUnknownEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := f.sessions.New()
			_, _, err := f.svc.Login(sess, tt.email, tt.password)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, sess.IsAuthenticated())
			assert.Equal(t, before, f.fileContents(t))
		})
	}

	t.Run("missing_fields", func(t *testing.T) {
		sess := f.sessions.New()
		_, _, err := f.svc.Login(sess, "", "")
		var ve *utils.ValidationError
		assert.ErrorAs(t, err, &ve)
	})
}

func TestAccountService_CorruptStoreIsStorageError(t *testing.T) {
	f := newAccountFixture(t)
	require.NoError(t, os.WriteFile(f.backend.Path(), []byte("{"), 0o600))

	_, _, err := f.svc.Login(f.sessions.New(), "alice@example.com", "Abc123!@")

	var se *store.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestAccountService_Account(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)

	rec, err := f.svc.Account("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	_, err = f.svc.Account("nobody@example.com")
	assert.ErrorIs(t, err, store.ErrUnknownEmail)
}

func TestAccountService_ChangePassword(t *testing.T) {
	f := newAccountFixture(t)
	_, err := f.svc.Signup("alice", "alice@example.com", "Abc123!@", "Abc123!@")
	require.NoError(t, err)

	tests := []struct {
		name                   string
		current, next, confirm string
		message                string
	}{
		{"missing", "", "Newpass1!", "Newpass1!", "All fields are required"},
		{"wrong_current", "Nope123!", "Newpass1!", "Newpass1!", "Current password is incorrect"},
		{"weak_new", "Abc123!@", "newpass1!", "newpass1!", "Password must contain at least one uppercase letter"},
		{"mismatch", "Abc123!@", "Newpass1!", "Newpass2!", "New passwords do not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ChangePassword("alice@example.com", tt.current, tt.next, tt.confirm)
			var ve *utils.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.message, ve.Message)
		})
	}

	require.NoError(t, f.svc.ChangePassword("alice@example.com", "Abc123!@", "Newpass1!", "Newpass1!"))

	_, _, err = f.svc.Login(f.sessions.New(), "alice@example.com", "Abc123!@")
	assert.ErrorIs(t, err, store.ErrWrongPassword)
	_, _, err = f.svc.Login(f.sessions.New(), "alice@example.com", "Newpass1!")
	assert.NoError(t, err)
}

func TestAccountService_PasswordStrength(t *testing.T) {
	f := newAccountFixture(t)

	strong, msg := f.svc.PasswordStrength("Abc123!@")
	assert.True(t, strong)
	assert.Equal(t, "Password is strong", msg)

	strong, _ = f.svc.PasswordStrength("short")
	assert.False(t, strong)
}
