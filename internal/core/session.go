package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultSessionTimeout = 30 * time.Minute

var (
	ErrSessionExpired = errors.New("session expired due to inactivity")
	ErrSessionEnded   = errors.New("session ended while the request was in flight")
)

// ChatTurn is one question and the model's answer.
type ChatTurn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Session is the per-browser state. It is anonymous until a successful login
// and goes back to anonymous on logout or inactivity timeout.
type Session struct {
	ID string

	mu            sync.Mutex
	authenticated bool
	username      string
	email         string
	lastActivity  time.Time
	chatHistory   []ChatTurn
	pdfText       string
	// generation changes every time the session is cleared.
	generation uint64
}

// Identity is a read-only snapshot of who is logged in.
type Identity struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	LastActivity  time.Time `json:"last_activity"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{ID: id, lastActivity: now}
}

func (s *Session) login(username, email string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.username = username
	s.email = email
	s.lastActivity = now
}

// clear drops every field, leaving the session anonymous.
func (s *Session) clear(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.username = ""
	s.email = ""
	s.chatHistory = nil
	s.pdfText = ""
	s.lastActivity = now
	s.generation++
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Identity{
		Authenticated: s.authenticated,
		Username:      s.username,
		Email:         s.email,
		LastActivity:  s.lastActivity,
	}
}

func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *Session) PDFText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pdfText
}

// SetPDFText replaces the document corpus wholesale.
func (s *Session) SetPDFText(text string) {
	s.mu.Lock()
	s.pdfText = text
	s.mu.Unlock()
}

func (s *Session) appendTurn(turn ChatTurn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatHistory = append(s.chatHistory, turn)
	return len(s.chatHistory)
}

func (s *Session) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// appendTurnIfCurrent appends turn only if the session is still logged in and
// has not been cleared since gen was read.
func (s *Session) appendTurnIfCurrent(gen uint64, turn ChatTurn) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated || s.generation != gen {
		return len(s.chatHistory), false
	}
	s.chatHistory = append(s.chatHistory, turn)
	return len(s.chatHistory), true
}

// History returns the chat turns most recent first.
func (s *Session) History() []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatTurn, len(s.chatHistory))
	for i, turn := range s.chatHistory {
		out[len(out)-1-i] = turn
	}
	return out
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// SessionManager owns all live sessions of the process.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessionManager(timeout time.Duration, logger *zap.Logger) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source. Intended for tests.
func (m *SessionManager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *SessionManager) Timeout() time.Duration {
	return m.timeout
}

// New initialises a fresh anonymous session with empty defaults.
func (m *SessionManager) New() *Session {
	sess := newSession(uuid.NewString(), m.now())
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// CheckTimeout expires an authenticated session that has been idle longer
// than the timeout, returning ErrSessionExpired. Otherwise it refreshes the
// activity time, so the timeout slides with every interaction.
func (m *SessionManager) CheckTimeout(sess *Session) error {
	now := m.now()
	if sess.IsAuthenticated() && sess.idleSince(now) > m.timeout {
		email := sess.Identity().Email
		sess.clear(now)
		m.logger.Info("Session expired due to inactivity",
			zap.String("session_id", sess.ID),
			zap.String("email", email))
		return ErrSessionExpired
	}
	sess.touch(now)
	return nil
}

// Touch records activity without checking the timeout.
func (m *SessionManager) Touch(sess *Session) {
	sess.touch(m.now())
}

// Login retires sess and returns a fresh logged-in session with a new id.
// Nothing from the previous session carries over, whoever owned it.
func (m *SessionManager) Login(sess *Session, username, email string) *Session {
	now := m.now()
	sess.clear(now)

	next := newSession(uuid.NewString(), now)
	next.login(username, email, now)

	m.mu.Lock()
	delete(m.sessions, sess.ID)
	m.sessions[next.ID] = next
	m.mu.Unlock()
	return next
}

// Logout unconditionally clears the session.
func (m *SessionManager) Logout(sess *Session) {
	sess.clear(m.now())
}

// Sweep forgets sessions idle for longer than twice the timeout and returns
// how many were dropped. The extra grace keeps an expired session around
// long enough for CheckTimeout to report the expiry to its owner.
func (m *SessionManager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, sess := range m.sessions {
		if sess.idleSince(now) > 2*m.timeout {
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Run sweeps idle sessions every interval until ctx is done.
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Swept idle sessions", zap.Int("dropped", n), zap.Int("remaining", m.Len()))
			}
		}
	}
}
