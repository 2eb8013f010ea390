package console_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/console"
	"github.com/jrsteele09/bookclub-admin/fakebackend"
	"github.com/jrsteele09/bookclub-admin/guard"
	"github.com/jrsteele09/bookclub-admin/internal/app"
	"github.com/jrsteele09/bookclub-admin/internal/config"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	backend *fakebackend.Server
	app     *app.App
	console *console.Console
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend, ts := fakebackend.Start(t)
	a, err := app.New(config.New(),
		app.WithBaseURL(fakebackend.BaseURL(ts)),
		app.WithHTTPClient(apiclient.NewHTTPClient(5*time.Second)),
		app.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return &testFixture{backend: backend, app: a, console: console.New(a, console.WithEnv("TEST"))}
}

func (f *testFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == nil {
		r = httptest.NewRequest(method, path, nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, strings.NewReader(string(raw)))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.console.ServeHTTP(rec, r)
	return rec
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, routes.RouteLogin, auth.LoginRequest{Name: fakebackend.TestLibrarian, Password: fakebackend.TestPassword})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func TestRoot_RedirectsToDashboard(t *testing.T) {
	f := setupTestFixture(t)
	rec := f.do(t, http.MethodGet, routes.RouteRoot, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, routes.RouteDashboard, rec.Header().Get("Location"))
}

func TestGuardedRoutes_FollowSessionPhase(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, routes.RouteDashboard, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, "session still initializing")
	require.Contains(t, rec.Body.String(), guard.LoadingMessage)

	require.Error(t, f.app.Session.Initialize(context.Background(), routes.RouteDashboard))
	require.Equal(t, session.Unauthenticated, f.app.Session.Phase())

	for _, path := range []string{routes.RouteDashboard, routes.RouteBooks, routes.RouteOverdue, routes.RouteProfile} {
		rec = f.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusSeeOther, rec.Code, path)
		require.Equal(t, routes.RouteLogin, rec.Header().Get("Location"), path)
	}

	rec = f.do(t, http.MethodGet, routes.RouteLogin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"phase":"unauthenticated"}`, rec.Body.String())
}

func TestLogin_FormPostOpensDashboard(t *testing.T) {
	f := setupTestFixture(t)

	form := url.Values{"name": {fakebackend.TestLibrarian}, "password": {fakebackend.TestPassword}}
	r := httptest.NewRequest(http.MethodPost, routes.RouteLogin, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.console.ServeHTTP(rec, r)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, routes.RouteDashboard, rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, routes.RouteDashboard, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[struct {
		User             auth.User          `json:"user"`
		Stats            library.Stats      `json:"stats"`
		RecentActivities []library.Activity `json:"recentActivities"`
	}](t, rec)
	require.Equal(t, fakebackend.TestLibrarian, dash.User.Name)
	require.Equal(t, library.Stats{}, dash.Stats)
	require.NotEmpty(t, dash.RecentActivities)
	require.Equal(t, "Librarian 'lib1' logged in.", dash.RecentActivities[0].Message)

	rec = f.do(t, http.MethodGet, routes.RouteLogin, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, "signed-in users skip the login page")

	toasts := decode[[]toast](t, f.do(t, http.MethodGet, console.RouteToasts, nil))
	require.Equal(t, []toast{{Level: "success", Message: "Welcome back, lib1!"}}, toasts)
	require.Empty(t, decode[[]toast](t, f.do(t, http.MethodGet, console.RouteToasts, nil)), "toasts are drained")
}

func TestLogin_BadCredentials(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodPost, routes.RouteLogin, auth.LoginRequest{Name: fakebackend.TestLibrarian, Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"message":"Invalid credentials"}`, rec.Body.String())
	require.Equal(t, 0, f.backend.Calls(http.MethodPost, routes.APIAuthRefreshToken))

	rec = f.do(t, http.MethodPost, routes.RouteLogin, auth.LoginRequest{Name: fakebackend.TestLibrarian})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout_ReturnsToLogin(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, console.RouteLogout, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, routes.RouteLogin, rec.Header().Get("Location"))
	require.Equal(t, session.Unauthenticated, f.app.Session.Phase())
	require.Equal(t, http.StatusSeeOther, f.do(t, http.MethodGet, routes.RouteDashboard, nil).Code)
}

func TestExpiredSession_EndsWithLoginRedirect(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.app.Notes.Drain()

	f.backend.ExpireAccessTokens()
	rec := f.do(t, http.MethodGet, routes.RouteBooks, nil)
	require.Equal(t, http.StatusOK, rec.Code, "refresh cookie restores the session")

	f.backend.ExpireAccessTokens()
	f.backend.RevokeRefreshTokens()
	rec = f.do(t, http.MethodGet, routes.RouteBooks, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Equal(t, session.Unauthenticated, f.app.Session.Phase())
	require.Equal(t, routes.RouteLogin, f.app.History.Current())
	toasts := decode[[]toast](t, f.do(t, http.MethodGet, console.RouteToasts, nil))
	require.Contains(t, toasts, toast{Level: "info", Message: "Your session has expired. Please log in again."})

	rec = f.do(t, http.MethodGet, routes.RouteDashboard, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestBooks_CRUDAndPagination(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	var firstID string
	for i := 1; i <= 12; i++ {
		rec := f.do(t, http.MethodPost, routes.RouteBooks, library.BookInput{Title: fmt.Sprintf("Book %02d", i), Author: "Anon", TotalCopies: 1})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		if i == 1 {
			firstID = decode[library.Book](t, rec).ID
		}
	}

	page := decode[library.Page[library.Book]](t, f.do(t, http.MethodGet, routes.RouteBooks+"?page=2", nil))
	require.Equal(t, 2, page.Page)
	require.Equal(t, 2, page.TotalPages)
	require.Equal(t, 12, page.Total)
	require.Len(t, page.Items, 2)

	page = decode[library.Page[library.Book]](t, f.do(t, http.MethodGet, routes.RouteBooks+"?perPage=5&page=9", nil))
	require.Equal(t, 3, page.Page, "out-of-range pages are clamped")

	rec := f.do(t, http.MethodPut, routes.RouteBooks+"/"+firstID, library.BookInput{Title: "Renamed", Author: "Anon", TotalCopies: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Renamed", decode[library.Book](t, rec).Title)

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, routes.RouteBooks+"/"+firstID, nil).Code)
	rec = f.do(t, http.MethodDelete, routes.RouteBooks+"/"+firstID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverdueAndNotifications(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodPost, routes.RouteNotifications, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"message":"No overdue readers to notify."}`, rec.Body.String())

	book := decode[library.Book](t, f.do(t, http.MethodPost, routes.RouteBooks, library.BookInput{Title: "Dune", Author: "Herbert", TotalCopies: 1}))
	reader := decode[library.Reader](t, f.do(t, http.MethodPost, routes.RouteReaders, library.ReaderInput{Name: "Ada", Email: "ada@example.com"}))
	rec = f.do(t, http.MethodPost, routes.RouteLending, library.LendRequest{BookID: book.ID, ReaderID: reader.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	tx := decode[library.LendingTransaction](t, rec)
	require.NoError(t, f.backend.Backdate(tx.ID, 20*24*time.Hour))

	type overdueView struct {
		Items     []library.OverdueBook `json:"items"`
		Total     int                   `json:"total"`
		ReaderIDs []string              `json:"readerIds"`
	}
	overdue := decode[overdueView](t, f.do(t, http.MethodGet, routes.RouteOverdue+"?q=DUNE", nil))
	require.Equal(t, 1, overdue.Total)
	require.Equal(t, tx.ID, overdue.Items[0].ID)
	require.Positive(t, overdue.Items[0].DaysOverdue)
	require.Equal(t, []string{reader.ID}, overdue.ReaderIDs)

	overdue = decode[overdueView](t, f.do(t, http.MethodGet, routes.RouteOverdue+"?q=tolkien", nil))
	require.Zero(t, overdue.Total)
	require.NotNil(t, overdue.Items)

	rec = f.do(t, http.MethodPost, routes.RouteNotifications, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, decode[library.SendOverdueResponse](t, rec).SentCount)

	history := decode[[]library.LendingTransaction](t, f.do(t, http.MethodGet, routes.RouteReaders+"/"+reader.ID+"/history", nil))
	require.Len(t, history, 1)

	rec = f.do(t, http.MethodPut, routes.RouteLending+"/"+tx.ID+"/return", library.ReturnRequest{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, library.StatusReturned, decode[library.LendingTransaction](t, rec).Status)

	audit := decode[library.Page[library.Activity]](t, f.do(t, http.MethodGet, routes.RouteAuditLog+"?perPage=100", nil))
	types := map[library.ActivityType]bool{}
	for _, a := range audit.Items {
		types[a.Type] = true
	}
	require.True(t, types[library.ActivityReturn])
	require.True(t, types[library.ActivityOverdue])
}

func TestProfile_UpdateRefreshesSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodGet, routes.RouteProfile, nil)
	require.Equal(t, fakebackend.TestEmail, decode[auth.User](t, rec).Email)

	name := "lib1-renamed"
	rec = f.do(t, http.MethodPut, routes.RouteProfile, auth.ProfileUpdate{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, name, f.app.Session.State().User.Name)

	rec = f.do(t, http.MethodPut, routes.RouteProfile, auth.ProfileUpdate{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics_ExposesClientCounters(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	rec := f.do(t, http.MethodGet, console.RouteMetrics, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "libadmin_apiclient_requests_total")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request from backend", &liberrors.APIError{Status: http.StatusBadRequest}, http.StatusBadRequest},
		{"backend not found", &liberrors.APIError{Status: http.StatusNotFound}, http.StatusNotFound},
		{"backend forbidden", &liberrors.APIError{Status: http.StatusForbidden}, http.StatusUnauthorized},
		{"backend failure", &liberrors.APIError{Status: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{"auth required", fmt.Errorf("x: %w", liberrors.ErrAuthRequired), http.StatusUnauthorized},
		{"validation", fmt.Errorf("x: %w", liberrors.ErrInvalidRequest), http.StatusBadRequest},
		{"transition", liberrors.ErrInvalidTransition, http.StatusConflict},
		{"network", liberrors.ErrTransientNetwork, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, console.StatusFor(tc.err))
		})
	}
}
