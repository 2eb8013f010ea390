// Package console serves a local JSON view of the admin application. Every dashboard
// route sits behind the route guard, so the console behaves exactly like the navigation
// rules it is built on.
package console

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/internal/app"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	defaultPerPage = 10

	RouteLogout  = "/logout"
	RouteToasts  = "/toasts"
	RouteMetrics = "/metrics"
)

type Console struct {
	env    string
	logger zerolog.Logger
	router chi.Router
	app    *app.App
}

type Option func(*Console)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Console) {
		c.logger = logger
	}
}

// WithEnv overrides the environment name taken from the app config.
func WithEnv(env string) Option {
	return func(c *Console) {
		c.env = env
	}
}

// New builds the console router on top of a wired application.
func New(a *app.App, options ...Option) *Console {
	c := &Console{
		env:    a.Config.GetEnv(),
		logger: a.Logger,
		router: chi.NewRouter(),
		app:    a,
	}
	for _, opt := range options {
		opt(c)
	}
	c.initRoutes()
	server.LogRoutes(c.logger, c.env, c.router)
	return c
}

func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

func (c *Console) initRoutes() {
	r := c.router
	r.Use(
		server.RecoverMiddleware(c.logger),
		server.LoggingMiddleware(c.logger, c.env),
		server.FrameSecurityMiddleware,
	)

	r.Get(routes.RouteRoot, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, routes.RouteDashboard, http.StatusSeeOther)
	})
	r.Get(routes.RouteLogin, c.LoginPageHandler())
	r.Post(routes.RouteLogin, c.LoginHandler())
	r.Post(routes.RouteSignup, c.SignupHandler())
	r.Post(routes.RouteForgotPassword, c.ForgotPasswordHandler())
	r.Post(routes.RouteResetPassword+"{token}", c.ResetPasswordHandler())
	r.Post(RouteLogout, c.LogoutHandler())
	r.Get(RouteToasts, c.ToastsHandler())
	r.Method(http.MethodGet, RouteMetrics, promhttp.HandlerFor(c.app.Registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(c.app.Guard.Middleware)

		r.Get(routes.RouteDashboard, c.DashboardHandler())

		r.Get(routes.RouteBooks, c.ListBooksHandler())
		r.Post(routes.RouteBooks, c.AddBookHandler())
		r.Put(routes.RouteBooks+"/{id}", c.EditBookHandler())
		r.Delete(routes.RouteBooks+"/{id}", c.RemoveBookHandler())
		r.Get(routes.RouteBooks+"/{id}/history", c.BookHistoryHandler())

		r.Get(routes.RouteReaders, c.ListReadersHandler())
		r.Post(routes.RouteReaders, c.AddReaderHandler())
		r.Put(routes.RouteReaders+"/{id}", c.EditReaderHandler())
		r.Delete(routes.RouteReaders+"/{id}", c.RemoveReaderHandler())
		r.Get(routes.RouteReaders+"/{id}/history", c.ReaderHistoryHandler())

		r.Get(routes.RouteLending, c.ListLendingHandler())
		r.Post(routes.RouteLending, c.LendHandler())
		r.Put(routes.RouteLending+"/{id}/return", c.ReturnHandler())

		r.Get(routes.RouteOverdue, c.OverdueHandler())
		r.Post(routes.RouteNotifications, c.SendNotificationsHandler())
		r.Get(routes.RouteAuditLog, c.AuditLogHandler())

		r.Get(routes.RouteProfile, c.ProfileHandler())
		r.Put(routes.RouteProfile, c.UpdateProfileHandler())
		r.Put(routes.RouteProfile+"/password", c.ChangePasswordHandler())
	})
}
