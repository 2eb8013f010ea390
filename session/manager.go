// Package session owns the login state of the admin client: who is signed in, whether
// that is still being worked out, and what happens when it stops being true.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/auth"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/notify"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuthAPI is the slice of the auth endpoints the session drives. *auth.Service
// satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)
	Logout(ctx context.Context) (string, error)
	Me(ctx context.Context) (*auth.User, error)
}

var (
	_ AuthAPI                      = (*auth.Service)(nil)
	_ apiclient.AuthFailureHandler = (*Manager)(nil)
)

// Manager is the session state machine. Every phase change goes through transition,
// which keeps the user and phase consistent and tells subscribers.
type Manager struct {
	api      AuthAPI
	store    *tokenstore.Store
	nav      routes.Navigator
	notifier notify.Notifier
	logger   zerolog.Logger

	mu        sync.RWMutex
	state     State
	observers map[int]func(State)
	nextID    int
}

type Option func(*Manager)

func WithNavigator(nav routes.Navigator) Option {
	return func(m *Manager) {
		m.nav = nav
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session in the Initializing phase. store must be the same store
// the api client reads from.
func NewManager(api AuthAPI, store *tokenstore.Store, options ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		nav:       routes.NewHistory(routes.RouteRoot),
		notifier:  notify.Nop{},
		logger:    log.Logger,
		state:     State{Phase: Initializing},
		observers: make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Phase returns the current phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Phase
}

// Subscribe registers fn to be called with the new state after every change. Observers
// run synchronously on the goroutine that made the change. The returned func removes fn.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.observers, id)
		})
	}
}

// observersLocked copies the subscriber list. Callers hold m.mu.
func (m *Manager) observersLocked() []func(State) {
	out := make([]func(State), 0, len(m.observers))
	for _, fn := range m.observers {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) transition(phase Phase, user *auth.User) error {
	m.mu.Lock()
	next, err := m.state.next(phase, user)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	from := m.state.Phase
	m.state = next
	observers := m.observersLocked()
	m.mu.Unlock()

	m.logger.Debug().Stringer("from", from).Stringer("to", next.Phase).Msg("session transition")
	for _, fn := range observers {
		fn(next.clone())
	}
	return nil
}

// Initialize resolves the session on startup for the route at path. Public auth routes
// skip the profile fetch. Elsewhere the current user is fetched, which also restores a
// session from the refresh cookie when no access token is held.
func (m *Manager) Initialize(ctx context.Context, path string) error {
	if routes.IsPublicAuth(path) {
		return m.transition(Unauthenticated, nil)
	}
	if err := m.transition(Authenticating, nil); err != nil {
		return fmt.Errorf("[session.Initialize] %w", err)
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.store.Clear()
		_ = m.transition(Unauthenticated, nil)
		m.toLogin(routes.NavigateOptions{Replace: true})
		m.logger.Info().Err(err).Str("path", path).Msg("no session to restore")
		return fmt.Errorf("[session.Initialize] %w", err)
	}
	if err := m.transition(Authenticated, user); err != nil {
		// A logout or auth failure landed while the profile was in flight.
		return fmt.Errorf("[session.Initialize] %w", err)
	}
	if path == routes.RouteRoot {
		m.nav.Navigate(routes.RouteDashboard, routes.NavigateOptions{Replace: true})
	}
	return nil
}

// Login signs in with req, stores the access token and loads the profile. If the
// profile cannot be loaded the token is dropped again and the error wraps
// ErrProfileFetchFailed.
func (m *Manager) Login(ctx context.Context, req auth.LoginRequest) (*auth.User, error) {
	if err := m.transition(Authenticating, nil); err != nil {
		return nil, fmt.Errorf("[session.Login] %w", err)
	}

	resp, err := m.api.Login(ctx, req)
	if err != nil {
		_ = m.transition(Unauthenticated, nil)
		notify.Error(m.notifier, liberrors.Message(err))
		return nil, fmt.Errorf("[session.Login] %w", err)
	}
	m.store.Set(resp.Token)

	user, err := m.api.Me(ctx)
	if err != nil {
		m.store.Clear()
		_ = m.transition(Unauthenticated, nil)
		m.logger.Warn().Err(err).Str("user", resp.User.Name).Msg("profile fetch failed after login")
		notify.Error(m.notifier, "Failed to load user profile.")
		m.toLogin(routes.NavigateOptions{})
		return nil, fmt.Errorf("[session.Login] %w: %w", liberrors.ErrProfileFetchFailed, err)
	}
	if err := m.transition(Authenticated, user); err != nil {
		return nil, fmt.Errorf("[session.Login] %w", err)
	}

	m.logger.Info().Str("user", user.Name).Msg("logged in")
	notify.Success(m.notifier, fmt.Sprintf("Welcome back, %s!", resp.User.Name))
	m.nav.Navigate(routes.RouteDashboard, routes.NavigateOptions{})
	return user.Clone(), nil
}

// Logout ends the session. The server call is best effort; local state is always
// cleared, so calling Logout twice is harmless.
func (m *Manager) Logout(ctx context.Context) {
	if msg, err := m.api.Logout(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("server-side logout failed")
	} else {
		notify.Success(m.notifier, msg)
	}
	m.store.Clear()
	_ = m.transition(Unauthenticated, nil)
	m.toLogin(routes.NavigateOptions{})
}

// UpdateProfile replaces the signed-in user's profile, e.g. after an edit. The phase
// never changes.
func (m *Manager) UpdateProfile(user *auth.User) error {
	if user == nil {
		return fmt.Errorf("[session.UpdateProfile] nil user: %w", liberrors.ErrInvalidRequest)
	}
	m.mu.Lock()
	if m.state.Phase != Authenticated {
		phase := m.state.Phase
		m.mu.Unlock()
		return fmt.Errorf("[session.UpdateProfile] %s: %w", phase, liberrors.ErrNotAuthenticated)
	}
	m.state.User = user.Clone()
	next := m.state
	observers := m.observersLocked()
	m.mu.Unlock()

	for _, fn := range observers {
		fn(next.clone())
	}
	return nil
}

// HandleAuthFailure tears the session down after the api client gave up on a request.
// The client has already cleared the token.
func (m *Manager) HandleAuthFailure(_ context.Context, cause error) {
	wasAuthenticated := m.Phase() == Authenticated
	m.store.Clear()
	_ = m.transition(Unauthenticated, nil)
	m.logger.Warn().Err(cause).Msg("session ended by authentication failure")
	if wasAuthenticated {
		notify.Info(m.notifier, "Your session has expired. Please log in again.")
	}
	m.toLogin(routes.NavigateOptions{Replace: true})
}

// toLogin navigates to the login page unless the navigator reports it is already
// there, which happens when an auth failure tore the session down mid-call.
func (m *Manager) toLogin(opts routes.NavigateOptions) {
	if loc, ok := m.nav.(routes.Locator); ok && loc.Current() == routes.RouteLogin {
		return
	}
	m.nav.Navigate(routes.RouteLogin, opts)
}
