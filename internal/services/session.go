package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/store"
	"github.com/bruinswipes/bruinswipes-backend/pkg/utils"
)

const (
	// DefaultSessionTTL is how long a session stays valid after its last issue.
	DefaultSessionTTL = 24 * time.Hour
	sessionTokenBytes = 32
)

// Session verification outcomes, carried in SessionStatus.Info.
const (
	SessionValid   = "VALID"
	SessionExpired = "EXPIRED"
	SessionInvalid = "INVALID"
)

var ErrEmptyUserID = errors.New("user id is empty")

type SessionStatus struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Info   string `json:"info"`
}

// SessionManager issues opaque bearer tokens, one live session per user.
// Expiry is lazy: an old session is reported EXPIRED on verify and refreshed
// in place on the next login.
type SessionManager struct {
	sessions store.SessionRepository
	ttl      time.Duration
	timeout  time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewSessionManager(sessions store.SessionRepository, ttl, timeout time.Duration, logger logrus.FieldLogger) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: sessions,
		ttl:      ttl,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// TTL is the session lifetime; cookies use it as max-age.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// IssueSession refreshes the user's existing session (token kept) or creates
// a new one with a fresh random token. Returns the stored document.
func (m *SessionManager) IssueSession(ctx context.Context, userID string) (*models.Session, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	now := m.now().UTC()
	_, err := m.sessions.FindByUserID(ctx, userID)
	switch {
	case err == nil:
		if err := m.sessions.Touch(ctx, userID, now); err != nil {
			return nil, err
		}
	case errors.Is(err, store.ErrNotFound):
		token, err := utils.GenerateToken(sessionTokenBytes)
		if err != nil {
			return nil, err
		}
		err = m.sessions.Create(ctx, &models.Session{UserID: userID, Token: token, IssuedAt: now})
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent login created it first; refresh that one instead.
			err = m.sessions.Touch(ctx, userID, now)
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return m.sessions.FindByUserID(ctx, userID)
}

// VerifySession resolves a token to its user. Faults fail closed as INVALID.
func (m *SessionManager) VerifySession(ctx context.Context, token string) SessionStatus {
	invalid := SessionStatus{Info: SessionInvalid}
	if token == "" {
		return invalid
	}
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	sess, err := m.sessions.FindByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.WithField("error", err.Error()).Warn("session lookup failed")
		}
		return invalid
	}

	if m.now().Sub(sess.IssuedAt) > m.ttl {
		return SessionStatus{Info: SessionExpired}
	}
	if sess.UserID == "" || subtle.ConstantTimeCompare([]byte(sess.Token), []byte(token)) != 1 {
		return invalid
	}
	return SessionStatus{Valid: true, UserID: sess.UserID, Info: SessionValid}
}

// RevokeSession deletes the session holding token. Unknown tokens are not an error.
func (m *SessionManager) RevokeSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()
	return m.sessions.DeleteByToken(ctx, token)
}
