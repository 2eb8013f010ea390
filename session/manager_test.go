package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/auth"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/notify"
	"github.com/jrsteele09/bookclub-admin/refresh"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/session"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

// scriptedBackend answers the auth endpoints from a few knobs. A request is authorized
// when it carries "Bearer <valid>".
type scriptedBackend struct {
	mu            sync.Mutex
	loginToken    string
	valid         string
	refreshToken  string
	refreshStatus int
	meStatus      int
	logoutStatus  int
	calls         map[string]int
}

func (b *scriptedBackend) set(fn func(b *scriptedBackend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *scriptedBackend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *scriptedBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.calls[r.Method+" "+r.URL.Path]++
	authorized := r.Header.Get("Authorization") == "Bearer "+b.valid && b.valid != ""
	loginToken, refreshToken := b.loginToken, b.refreshToken
	refreshStatus, meStatus, logoutStatus := b.refreshStatus, b.meStatus, b.logoutStatus
	b.mu.Unlock()

	user := auth.User{ID: "u1", Name: "lib1", Email: "lib1@bookclub.test", Role: auth.RoleLibrarian}
	notAuthorized := map[string]string{"message": "Not authorized, token failed"}

	switch r.Method + " " + r.URL.Path {
	case "POST " + routes.APIAuthLogin:
		var req auth.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Name != "lib1" || req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		b.set(func(b *scriptedBackend) { b.valid = loginToken })
		writeJSON(w, http.StatusOK, auth.LoginResponse{User: user, Token: loginToken, Message: "Login successful"})
	case "POST " + routes.APIAuthLogout:
		if logoutStatus != 0 {
			writeJSON(w, logoutStatus, map[string]string{"message": "logout broke"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	case "POST " + routes.APIAuthRefreshToken:
		if refreshStatus != 0 {
			writeJSON(w, refreshStatus, map[string]string{"message": "Invalid or expired refresh token"})
			return
		}
		b.set(func(b *scriptedBackend) { b.valid = refreshToken })
		writeJSON(w, http.StatusOK, refresh.TokenResponse{AccessToken: refreshToken})
	case "GET " + routes.APIAuthMe:
		if meStatus != 0 {
			writeJSON(w, meStatus, map[string]string{"message": "Failed to load user profile"})
			return
		}
		if !authorized {
			writeJSON(w, http.StatusUnauthorized, notAuthorized)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case "GET " + routes.APIBooks:
		if !authorized {
			writeJSON(w, http.StatusUnauthorized, notAuthorized)
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	default:
		http.NotFound(w, r)
	}
}

type testFixture struct {
	backend  *scriptedBackend
	store    *tokenstore.Store
	client   *apiclient.Client
	history  *routes.History
	notes    *notify.Recorder
	manager  *session.Manager
	observed *observedStates
}

// observedStates records every state a subscriber sees.
type observedStates struct {
	mu     sync.Mutex
	states []session.State
}

func (o *observedStates) add(s session.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *observedStates) All() []session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.State(nil), o.states...)
}

func (o *observedStates) Phases() []session.Phase {
	var out []session.Phase
	for _, s := range o.All() {
		out = append(out, s.Phase)
	}
	return out
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	b := &scriptedBackend{loginToken: "T1", refreshToken: "T2", calls: map[string]int{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	store := tokenstore.New()
	hc := apiclient.NewHTTPClient(5 * time.Second)
	client := apiclient.New(srv.URL, store, apiclient.WithHTTPClient(hc))
	client.SetRefresher(refresh.New(srv.URL, hc))

	history := routes.NewHistory(routes.RouteRoot)
	notes := &notify.Recorder{}
	m := session.NewManager(auth.NewService(client), store,
		session.WithNavigator(history),
		session.WithNotifier(notes),
	)
	client.SetAuthFailureHandler(m)

	observed := &observedStates{}
	t.Cleanup(m.Subscribe(observed.add))

	return &testFixture{backend: b, store: store, client: client, history: history, notes: notes, manager: m, observed: observed}
}

func requireInvariant(t *testing.T, s session.State) {
	t.Helper()
	require.Equal(t, s.Phase == session.Authenticated, s.User != nil, "phase %s with user %v", s.Phase, s.User)
}

func TestLogin_Succeeds(t *testing.T) {
	f := setupTestFixture(t)

	user, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "lib1", user.Name)

	tok, ok := f.store.Get()
	require.True(t, ok)
	require.Equal(t, "T1", tok)

	state := f.manager.State()
	require.Equal(t, session.Authenticated, state.Phase)
	require.Equal(t, "lib1", state.User.Name)
	require.Equal(t, routes.RouteDashboard, f.history.Current())
	require.Contains(t, f.notes.Drain(), notify.Message{Level: notify.LevelSuccess, Text: "Welcome back, lib1!"})
	require.Equal(t, []session.Phase{session.Authenticating, session.Authenticated}, f.observed.Phases())
}

func TestLogin_BadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "wrong"})
	var apiErr *liberrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	require.Equal(t, session.Unauthenticated, f.manager.Phase())
	_, ok := f.store.Get()
	require.False(t, ok)
	require.Zero(t, f.backend.Calls(http.MethodPost, routes.APIAuthRefreshToken), "bad credentials are not a stale session")
	require.Equal(t, []notify.Message{{Level: notify.LevelError, Text: "Invalid credentials"}}, f.notes.Drain())
}

func TestLogin_ValidationFailureNeverCallsBackend(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1"})
	require.ErrorIs(t, err, liberrors.ErrInvalidRequest)
	require.Zero(t, f.backend.Calls(http.MethodPost, routes.APIAuthLogin))
	require.Equal(t, session.Unauthenticated, f.manager.Phase())
}

func TestLogin_ProfileFailureLogsOut(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.set(func(b *scriptedBackend) {
		b.loginToken = "T3"
		b.meStatus = http.StatusInternalServerError
	})

	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.ErrorIs(t, err, liberrors.ErrProfileFetchFailed)

	state := f.manager.State()
	require.Equal(t, session.Unauthenticated, state.Phase)
	require.Nil(t, state.User)
	_, ok := f.store.Get()
	require.False(t, ok, "no token may outlive a failed profile fetch")
	require.Equal(t, routes.RouteLogin, f.history.Current())
	require.Contains(t, f.notes.Drain(), notify.Message{Level: notify.LevelError, Text: "Failed to load user profile."})
}

func TestLogin_WhileAuthenticatedIsRejected(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)

	_, err = f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.ErrorIs(t, err, liberrors.ErrInvalidTransition)
	require.Equal(t, session.Authenticated, f.manager.Phase())
	require.Equal(t, 1, f.backend.Calls(http.MethodPost, routes.APIAuthLogin))
}

func TestExpiredToken_RecoversTransparently(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)

	// T1 expires server-side; the refresh cookie still yields T2.
	f.backend.set(func(b *scriptedBackend) { b.valid = "expired" })

	var books []any
	require.NoError(t, f.client.Get(context.Background(), routes.APIBooks, &books))

	tok, _ := f.store.Get()
	require.Equal(t, "T2", tok)
	require.Equal(t, session.Authenticated, f.manager.Phase())
	require.Equal(t, 1, f.backend.Calls(http.MethodPost, routes.APIAuthRefreshToken))
	require.Equal(t, 2, f.backend.Calls(http.MethodGet, routes.APIBooks))
}

func TestRefreshFailure_CascadesToLogout(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)
	f.notes.Drain()

	f.backend.set(func(b *scriptedBackend) {
		b.valid = "expired"
		b.refreshStatus = http.StatusUnauthorized
	})

	err = f.client.Get(context.Background(), routes.APIBooks, nil)
	require.ErrorIs(t, err, liberrors.ErrAuthRequired)
	require.ErrorIs(t, err, liberrors.ErrRefreshFailed)

	_, ok := f.store.Get()
	require.False(t, ok)
	state := f.manager.State()
	require.Equal(t, session.Unauthenticated, state.Phase)
	require.Nil(t, state.User)
	require.Equal(t, routes.RouteLogin, f.history.Current())
	require.Equal(t, 1, f.backend.Calls(http.MethodPost, routes.APIAuthRefreshToken))
	require.Equal(t, 1, f.backend.Calls(http.MethodGet, routes.APIBooks), "no retry after a failed refresh")
	require.Equal(t, []notify.Message{{Level: notify.LevelInfo, Text: "Your session has expired. Please log in again."}}, f.notes.Drain())
}

func TestInitialize_PublicRouteSkipsProfile(t *testing.T) {
	for _, path := range []string{routes.RouteLogin, routes.RouteSignup, routes.RouteForgotPassword, routes.ResetPasswordPath("abc")} {
		t.Run(path, func(t *testing.T) {
			f := setupTestFixture(t)
			f.store.Set("T1")
			f.backend.set(func(b *scriptedBackend) { b.valid = "T1" })

			require.NoError(t, f.manager.Initialize(context.Background(), path))
			require.Equal(t, session.Unauthenticated, f.manager.Phase())
			require.Zero(t, f.backend.Calls(http.MethodGet, routes.APIAuthMe))
		})
	}
}

func TestInitialize_RestoresSessionAndLeavesRoot(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Set("T1")
	f.backend.set(func(b *scriptedBackend) { b.valid = "T1" })

	require.NoError(t, f.manager.Initialize(context.Background(), routes.RouteRoot))
	state := f.manager.State()
	require.Equal(t, session.Authenticated, state.Phase)
	require.Equal(t, "lib1", state.User.Name)
	require.Equal(t, []string{routes.RouteDashboard}, f.history.Entries(), "root is replaced, not pushed")
}

func TestInitialize_RestoresFromRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.manager.Initialize(context.Background(), routes.RouteBooks))
	require.Equal(t, session.Authenticated, f.manager.Phase())
	tok, _ := f.store.Get()
	require.Equal(t, "T2", tok)
	require.Equal(t, routes.RouteRoot, f.history.Current(), "non-root protected routes are left alone")
}

func TestInitialize_NoSessionRedirectsToLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.set(func(b *scriptedBackend) { b.refreshStatus = http.StatusUnauthorized })

	err := f.manager.Initialize(context.Background(), routes.RouteBooks)
	require.ErrorIs(t, err, liberrors.ErrAuthRequired)
	require.Equal(t, session.Unauthenticated, f.manager.Phase())
	require.Equal(t, []string{routes.RouteLogin}, f.history.Entries())
	require.Empty(t, f.notes.Drain(), "nobody was signed in, so nothing expired")
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)

	f.manager.Logout(context.Background())
	require.Equal(t, session.Unauthenticated, f.manager.Phase())
	_, ok := f.store.Get()
	require.False(t, ok)
	require.Equal(t, routes.RouteLogin, f.history.Current())

	require.NotPanics(t, func() { f.manager.Logout(context.Background()) })
	require.Equal(t, session.Unauthenticated, f.manager.Phase())
}

func TestLogout_ServerFailureStillClearsLocalState(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)
	f.backend.set(func(b *scriptedBackend) { b.logoutStatus = http.StatusServiceUnavailable })

	f.manager.Logout(context.Background())
	state := f.manager.State()
	require.Equal(t, session.Unauthenticated, state.Phase)
	require.Nil(t, state.User)
	_, ok := f.store.Get()
	require.False(t, ok)
}

func TestLogout_RejectedSessionLandsOnLoginOnce(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, []string{routes.RouteRoot, routes.RouteDashboard}, f.history.Entries())

	f.backend.set(func(b *scriptedBackend) {
		b.valid = "expired"
		b.logoutStatus = http.StatusUnauthorized
		b.refreshStatus = http.StatusUnauthorized
	})
	f.manager.Logout(context.Background())

	require.Equal(t, session.Unauthenticated, f.manager.Phase())
	require.Equal(t, []string{routes.RouteRoot, routes.RouteLogin}, f.history.Entries())

	f.manager.Logout(context.Background())
	require.Equal(t, []string{routes.RouteRoot, routes.RouteLogin}, f.history.Entries())
}

func TestLogin_ProfileAuthFailureLandsOnLoginOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.set(func(b *scriptedBackend) {
		b.loginToken = "T1"
		b.meStatus = http.StatusUnauthorized
		b.refreshStatus = http.StatusUnauthorized
	})

	_, err := f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.ErrorIs(t, err, liberrors.ErrProfileFetchFailed)
	require.Equal(t, []string{routes.RouteLogin}, f.history.Entries())
}

func TestUpdateProfile(t *testing.T) {
	f := setupTestFixture(t)

	err := f.manager.UpdateProfile(&auth.User{ID: "u1", Name: "renamed"})
	require.ErrorIs(t, err, liberrors.ErrNotAuthenticated)

	_, err = f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})
	require.NoError(t, err)

	updated := &auth.User{ID: "u1", Name: "renamed"}
	require.NoError(t, f.manager.UpdateProfile(updated))
	updated.Name = "mutated after the call"

	state := f.manager.State()
	require.Equal(t, session.Authenticated, state.Phase)
	require.Equal(t, "renamed", state.User.Name)

	require.ErrorIs(t, f.manager.UpdateProfile(nil), liberrors.ErrInvalidRequest)
}

func TestSubscribe_Cancel(t *testing.T) {
	f := setupTestFixture(t)
	var seen []session.Phase
	cancel := f.manager.Subscribe(func(s session.State) { seen = append(seen, s.Phase) })

	require.NoError(t, f.manager.Initialize(context.Background(), routes.RouteLogin))
	cancel()
	cancel()
	_, _ = f.manager.Login(context.Background(), auth.LoginRequest{Name: "lib1", Password: "secret1"})

	require.Equal(t, []session.Phase{session.Unauthenticated}, seen)
}

// fakeAuthAPI scripts the auth endpoints without HTTP.
type fakeAuthAPI struct {
	loginErr error
	meErr    error
}

func (f *fakeAuthAPI) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &auth.LoginResponse{User: auth.User{ID: "u1", Name: req.Name}, Token: "tok"}, nil
}

func (f *fakeAuthAPI) Logout(context.Context) (string, error) { return "bye", nil }

func (f *fakeAuthAPI) Me(context.Context) (*auth.User, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &auth.User{ID: "u1", Name: "lib1"}, nil
}

func TestInvariant_HoldsAcrossEveryTransition(t *testing.T) {
	api := &fakeAuthAPI{}
	store := tokenstore.New()
	m := session.NewManager(api, store)
	observed := &observedStates{}
	defer m.Subscribe(observed.add)()

	ctx := context.Background()
	boom := errors.New("boom")
	steps := []func(){
		func() { _ = m.Initialize(ctx, routes.RouteDashboard) },
		func() { m.Logout(ctx) },
		func() { api.meErr = boom; _, _ = m.Login(ctx, auth.LoginRequest{Name: "a", Password: "b"}) },
		func() { api.meErr = nil; _, _ = m.Login(ctx, auth.LoginRequest{Name: "a", Password: "b"}) },
		func() { _ = m.UpdateProfile(&auth.User{ID: "u1", Name: "c"}) },
		func() { m.HandleAuthFailure(ctx, boom) },
		func() { api.loginErr = boom; _, _ = m.Login(ctx, auth.LoginRequest{Name: "a", Password: "b"}) },
		func() { m.HandleAuthFailure(ctx, boom) },
		func() { _ = m.Initialize(ctx, routes.RouteLogin) },
	}
	for _, step := range steps {
		step()
		requireInvariant(t, m.State())
	}

	require.NotEmpty(t, observed.All())
	for _, s := range observed.All() {
		requireInvariant(t, s)
	}
}

func TestPhase_String(t *testing.T) {
	require.Equal(t, "initializing", session.Initializing.String())
	require.Equal(t, "authenticated", session.Authenticated.String())
	require.Equal(t, "phase(9)", session.Phase(9).String())
}
