// Package session tracks who is logged in. A Session is created once per
// surface (terminal, command line, or Telegram chat) and passed to whatever
// needs it.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"dailydigest/internal/api"
	"dailydigest/internal/domain"
)

// State is the authentication state.
type State int

const (
	Uninitialized State = iota
	Checking
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	loginFailed        = "Login failed"
	registrationFailed = "Registration failed"
)

// AuthAPI is the part of the backend the session talks to.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*domain.Token, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Me(ctx context.Context) (*domain.User, error)
}

// Navigator moves the surface to its login screen.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// AuthError is returned by Login and Register. Message is ready to show.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// Snapshot is a consistent read of the session.
type Snapshot struct {
	State State
	User  *domain.User
}

// Session is the auth state machine. Safe for concurrent use.
type Session struct {
	api    AuthAPI
	tokens api.TokenStore
	nav    Navigator
	log    logrus.FieldLogger

	startOnce sync.Once

	mu        sync.RWMutex
	state     State
	user      *domain.User
	listeners []func(Snapshot)
}

// New creates a session in the Uninitialized state. nav may be nil.
func New(authAPI AuthAPI, tokens api.TokenStore, nav Navigator, log logrus.FieldLogger) *Session {
	return &Session{
		api:    authAPI,
		tokens: tokens,
		nav:    nav,
		log:    log.WithField("component", "session"),
	}
}

// OnChange registers fn to be called after every state transition.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the current state and user.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{State: s.state, User: s.user}
}

// State returns the current state.
func (s *Session) State() State { return s.Snapshot().State }

// User returns the logged in user or nil.
func (s *Session) User() *domain.User { return s.Snapshot().User }

// Start runs CheckAuth the first time it is called and does nothing after.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if err := s.CheckAuth(ctx); err != nil {
			s.log.WithError(err).Info("Stored session is no longer valid")
		}
	})
}

// CheckAuth validates the stored token. Without a token the session becomes
// Anonymous. With one, the user is fetched; any failure clears the token.
// The returned error explains why a stored token was dropped.
func (s *Session) CheckAuth(ctx context.Context) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		s.log.WithError(err).Error("Failed to read stored token")
		s.set(Anonymous, nil)
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		s.set(Anonymous, nil)
		return nil
	}

	s.set(Checking, nil)
	user, err := s.api.Me(ctx)
	if err != nil {
		s.signOut(ctx)
		return fmt.Errorf("failed to fetch current user: %w", err)
	}

	s.log.WithField("user_id", user.ID).Debug("Session validated")
	s.set(Authenticated, user)
	return nil
}

// Login exchanges credentials for a token and loads the user. On failure the
// session is Anonymous, any previously stored token is dropped and the error
// is an *AuthError.
func (s *Session) Login(ctx context.Context, email, password string) error {
	token, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.signOut(ctx)
		s.log.WithError(err).WithField("email", email).Info("Login rejected")
		return &AuthError{Message: api.DetailOf(err, loginFailed), Err: err}
	}

	if err := s.tokens.SetToken(ctx, token.AccessToken); err != nil {
		s.signOut(ctx)
		s.log.WithError(err).Error("Failed to store token")
		return &AuthError{Message: loginFailed, Err: err}
	}

	if err := s.CheckAuth(ctx); err != nil {
		return &AuthError{Message: api.DetailOf(err, loginFailed), Err: err}
	}
	if s.State() != Authenticated {
		return &AuthError{Message: loginFailed}
	}
	return nil
}

// Register creates the account and logs straight in with the same
// credentials.
func (s *Session) Register(ctx context.Context, email, password, fullName string) error {
	_, err := s.api.Register(ctx, domain.Registration{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		s.signOut(ctx)
		s.log.WithError(err).WithField("email", email).Info("Registration rejected")
		return &AuthError{Message: api.DetailOf(err, registrationFailed), Err: err}
	}
	return s.Login(ctx, email, password)
}

// Logout drops the token and returns to the login screen. It never calls
// the backend.
func (s *Session) Logout(ctx context.Context) {
	if err := s.tokens.ClearToken(ctx); err != nil {
		s.log.WithError(err).Error("Failed to clear token")
	}
	s.set(Anonymous, nil)
	s.toLogin()
}

// HandleUnauthorized is installed as the api client's 401 callback. The
// client has already cleared the token.
func (s *Session) HandleUnauthorized() {
	s.log.Info("Session rejected by server")
	s.set(Anonymous, nil)
	s.toLogin()
}

// signOut drops the stored token and becomes Anonymous without navigating.
func (s *Session) signOut(ctx context.Context) {
	if err := s.tokens.ClearToken(context.WithoutCancel(ctx)); err != nil {
		s.log.WithError(err).Error("Failed to clear token")
	}
	s.set(Anonymous, nil)
}

func (s *Session) toLogin() {
	if s.nav != nil {
		s.nav.ToLogin()
	}
}

func (s *Session) set(state State, user *domain.User) {
	s.mu.Lock()
	changed := s.state != state || s.user != user
	s.state, s.user = state, user
	snap := Snapshot{State: state, User: user}
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(snap)
	}
}
