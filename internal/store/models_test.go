package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestUserDatabase_Signup(t *testing.T) {
	db := NewUserDatabase()

	rec, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "alice@example.com", rec.Email)
	assert.True(t, rec.CreatedAt.Equal(fixedNow))
	assert.True(t, rec.LastLogin.Equal(fixedNow))
	assert.Contains(t, rec.Password, ":")
	assert.NotContains(t, rec.Password, "Abc123!@")
}

func TestUserDatabase_SignupDuplicateLeavesDatabaseUnchanged(t *testing.T) {
	db := NewUserDatabase()
	_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)
	before := *db.Users["alice@example.com"]

	_, err = db.Signup("mallory", "alice@example.com", "Other123!", fixedNow.Add(time.Hour))
	require.ErrorIs(t, err, ErrDuplicateEmail)

	assert.Len(t, db.Users, 1)
	assert.Equal(t, before, *db.Users["alice@example.com"])
}

func TestUserDatabase_EmailsMatchExactly(t *testing.T) {
	db := NewUserDatabase()
	_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)

	_, err = db.Signup("alice2", "Alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)
	assert.Len(t, db.Users, 2)

	_, err = db.Authenticate("ALICE@example.com", "Abc123!@")
	assert.ErrorIs(t, err, ErrUnknownEmail)
}

func TestUserDatabase_Authenticate(t *testing.T) {
	db := NewUserDatabase()
	_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)

	rec, err := db.Authenticate("alice@example.com", "Abc123!@")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)

	_, err = db.Authenticate("alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = db.Authenticate("bob@example.com", "Abc123!@")
	assert.ErrorIs(t, err, ErrUnknownEmail)
}

func TestUserDatabase_SetPassword(t *testing.T) {
	db := NewUserDatabase()
	_, err := db.Signup("alice", "alice@example.com", "Abc123!@", fixedNow)
	require.NoError(t, err)

	require.NoError(t, db.SetPassword("alice@example.com", "Newpass1!"))

	_, err = db.Authenticate("alice@example.com", "Abc123!@")
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, err = db.Authenticate("alice@example.com", "Newpass1!")
	assert.NoError(t, err)

	assert.ErrorIs(t, db.SetPassword("nobody@example.com", "Newpass1!"), ErrUnknownEmail)
}

func TestTimestamp_ParsesNaiveISO(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T10:20:30.123456"`), &ts))

	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, time.May, ts.Month())
	assert.Equal(t, 30, ts.Second())
	assert.Equal(t, 123456000, ts.Nanosecond())
}

func TestTimestamp_RoundTrip(t *testing.T) {
	in := NewTimestamp(fixedNow)

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-14T09:26:53Z"`, string(data))

	var out Timestamp
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Equal(fixedNow))
}

func TestTimestamp_Invalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}
