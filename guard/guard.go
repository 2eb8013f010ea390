// Package guard decides whether protected views may render for the current session.
package guard

import (
	"net/http"

	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/server"
	"github.com/jrsteele09/bookclub-admin/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoadingMessage is shown while the session is still being resolved.
const LoadingMessage = "Checking authentication..."

// Action is what a protected view should do.
type Action int

const (
	Loading Action = iota
	Redirect
	Render
)

func (a Action) String() string {
	switch a {
	case Loading:
		return "loading"
	case Redirect:
		return "redirect"
	case Render:
		return "render"
	}
	return "unknown"
}

// Decision is the guard's verdict for one navigation. To is set for Redirect.
type Decision struct {
	Action Action
	To     string
}

// Decide maps a session state to a decision. It keeps no memory between calls.
func Decide(state session.State) Decision {
	switch {
	case state.IsLoading():
		return Decision{Action: Loading}
	case state.IsAuthenticated():
		return Decision{Action: Render}
	}
	return Decision{Action: Redirect, To: routes.RouteLogin}
}

// StateSource exposes the live session. *session.Manager satisfies it.
type StateSource interface {
	State() session.State
}

var _ StateSource = (*session.Manager)(nil)

// Guard applies Decide to the live session on every navigation.
type Guard struct {
	source StateSource
	nav    routes.Navigator
	logger zerolog.Logger
}

type Option func(*Guard)

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

func New(source StateSource, nav routes.Navigator, options ...Option) *Guard {
	g := &Guard{
		source: source,
		nav:    nav,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Check decides for a navigation to path and, when the answer is Redirect, replaces the
// current location with the login route.
func (g *Guard) Check(path string) Decision {
	d := Decide(g.source.State())
	if d.Action == Redirect {
		g.logger.Debug().Str("path", path).Str("to", d.To).Msg("protected route requires login")
		g.nav.Navigate(d.To, routes.NavigateOptions{Replace: true})
	}
	return d
}

// Middleware guards an HTTP route group: 202 with a loading message while the session
// resolves, 303 to the login route when signed out, the wrapped handler otherwise.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := Decide(g.source.State())
		switch d.Action {
		case Loading:
			w.Header().Set("Retry-After", "1")
			server.WriteMessage(w, http.StatusAccepted, LoadingMessage)
		case Redirect:
			http.Redirect(w, r, d.To, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
