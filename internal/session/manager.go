// Package session caches the two credential artifacts the vendor API
// hands out: a session handle with sliding expiration and a bearer
// token with an explicit lifetime. Repeated authentication failures
// are throttled with exponential backoff.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"heating_bridge/internal/clock"
	"heating_bridge/internal/logger"
)

// tokenSafetyMargin is shaved off the issuer-provided lifetime so a
// token is refreshed before it can expire mid-request.
const tokenSafetyMargin = 5 * time.Minute

// Auth-failure backoff: 30s doubling per consecutive failure, capped
// at 30s * 2^3 = 4 minutes.
const (
	authBackoffBase   = 30 * time.Second
	authBackoffMaxExp = 3
)

// Credentials identify the account against the vendor API.
type Credentials struct {
	Username      string
	Password      string
	ApplicationID string
}

// Session is the sliding-expiration credential: valid until a caller
// observes an authorization failure and clears it.
type Session struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Token is the explicit-expiration credential.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenGrant is what the issuer returns: a bearer token plus its
// advertised lifetime.
type TokenGrant struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Authenticator performs the opaque remote authentication calls.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
	RequestToken(ctx context.Context, creds Credentials) (TokenGrant, error)
}

// Manager caches both credential flavors. Safe for concurrent use;
// callers re-authenticating queue behind the in-flight attempt.
type Manager struct {
	auth Authenticator
	clk  clock.Clock
	log  *logger.Logger

	mu           sync.Mutex
	session      *Session
	token        *Token
	failureCount int
	lastFailure  time.Time
}

func NewManager(auth Authenticator, clk clock.Clock, log *logger.Logger) *Manager {
	return &Manager{auth: auth, clk: clk, log: log}
}

// GetSession returns the cached session if present, otherwise
// authenticates and caches the result. There is no proactive expiry:
// a session stays valid until ClearSession is called after an
// observed authorization failure.
func (m *Manager) GetSession(ctx context.Context, creds Credentials) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return *m.session, nil
	}

	if err := m.waitForBackoffLocked(ctx); err != nil {
		return Session{}, err
	}
	s, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.recordFailureLocked()
		return Session{}, fmt.Errorf("session login: %w", err)
	}
	m.recordSuccessLocked()
	m.session = &s
	if m.log != nil {
		m.log.Infow("session established", "user_id", s.UserID)
	}
	return s, nil
}

// GetToken returns the cached token while now < expiresAt, otherwise
// requests a fresh one. The stored expiry is the issuer lifetime minus
// a safety margin.
func (m *Manager) GetToken(ctx context.Context, creds Credentials) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != nil && m.clk.Now().Before(m.token.ExpiresAt) {
		return *m.token, nil
	}

	if err := m.waitForBackoffLocked(ctx); err != nil {
		return Token{}, err
	}
	grant, err := m.auth.RequestToken(ctx, creds)
	if err != nil {
		m.recordFailureLocked()
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	m.recordSuccessLocked()
	tok := Token{
		AccessToken: grant.AccessToken,
		ExpiresAt:   m.clk.Now().Add(grant.ExpiresIn - tokenSafetyMargin),
	}
	m.token = &tok
	if m.log != nil {
		m.log.Infow("token refreshed", "expires_at", tok.ExpiresAt)
	}
	return tok, nil
}

// ClearSession drops the cached session. Callers invoke this after the
// vendor rejects the handle (HTTP 401); the next GetSession then
// performs a fresh login.
func (m *Manager) ClearSession() {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
}

// ClearToken drops the cached token.
func (m *Manager) ClearToken() {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()
}

// waitForBackoffLocked blocks until the failure-backoff delay since
// the last failed attempt has elapsed. Called with m.mu held so that
// concurrent callers line up behind one re-auth attempt instead of
// herding the vendor.
func (m *Manager) waitForBackoffLocked(ctx context.Context) error {
	if m.failureCount == 0 {
		return nil
	}
	exp := m.failureCount - 1
	if exp > authBackoffMaxExp {
		exp = authBackoffMaxExp
	}
	delay := authBackoffBase << uint(exp)
	elapsed := m.clk.Now().Sub(m.lastFailure)
	if elapsed >= delay {
		return nil
	}
	remaining := delay - elapsed
	if m.log != nil {
		m.log.Warnw("authentication backoff", "wait", remaining, "failures", m.failureCount)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clk.After(remaining):
		return nil
	}
}

func (m *Manager) recordFailureLocked() {
	m.failureCount++
	m.lastFailure = m.clk.Now()
}

func (m *Manager) recordSuccessLocked() {
	m.failureCount = 0
}
