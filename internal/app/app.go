// Package app is the composition root: it builds the token store, api client, session
// and services once and hands the same instances to every caller.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/guard"
	"github.com/jrsteele09/bookclub-admin/internal/config"
	"github.com/jrsteele09/bookclub-admin/internal/tracing"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/notify"
	"github.com/jrsteele09/bookclub-admin/refresh"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/session"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// App holds the wired components of the admin client.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	BaseURL  string
	Store    *tokenstore.Store
	History  *routes.History
	Notes    *notify.Recorder
	Notifier notify.Notifier
	Registry *prometheus.Registry
	Tracer   trace.TracerProvider
	Client   *apiclient.Client
	Auth     *auth.Service
	Session  *session.Manager
	Guard    *guard.Guard
	Library  *library.Service

	shutdown []func(context.Context) error
}

type options struct {
	logger     *zerolog.Logger
	baseURL    string
	httpClient *http.Client
	notifiers  []notify.Notifier
	startPath  string
	tracer     trace.TracerProvider
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient replaces the default cookie-jar client. The same client is used for
// refresh calls, so it must keep cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithNotifier adds a notifier alongside the in-memory recorder and the log.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) {
		o.notifiers = append(o.notifiers, n)
	}
}

// WithStartPath sets the location the navigation history starts at.
func WithStartPath(path string) Option {
	return func(o *options) {
		o.startPath = path
	}
}

// WithTracerProvider traces backend calls with tp. Without it, TRACE_REQUESTS selects
// a provider that logs spans at debug level, and otherwise the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// New wires the application from cfg.
func New(cfg config.Config, opts ...Option) (*App, error) {
	o := &options{startPath: routes.RouteRoot}
	for _, opt := range opts {
		opt(o)
	}
	logger := log.Logger
	if o.logger != nil {
		logger = *o.logger
	}
	baseURL := cfg.GetAPIBaseURL()
	if o.baseURL != "" {
		baseURL = o.baseURL
	}
	hc := o.httpClient
	if hc == nil {
		hc = apiclient.NewHTTPClient(cfg.GetRequestTimeout())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := apiclient.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("[app.New] metrics: %w", err)
	}

	var shutdown []func(context.Context) error
	tp := o.tracer
	if tp == nil && cfg.GetTraceRequests() {
		sdkProvider := tracing.NewProvider(logger)
		shutdown = append(shutdown, sdkProvider.Shutdown)
		tp = sdkProvider
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	store := tokenstore.New()
	refresher := refresh.New(baseURL, hc, refresh.WithLogger(logger))

	clientOpts := []apiclient.Option{
		apiclient.WithHTTPClient(hc),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(metrics),
		apiclient.WithTracerProvider(tp),
		apiclient.WithRefresher(refresher),
		apiclient.WithRateLimit(cfg.GetRequestsPerSecond(), cfg.GetRequestBurst()),
	}
	if cfg.GetCoalesceRefresh() {
		clientOpts = append(clientOpts, apiclient.WithRefreshCoalescing())
	}
	client := apiclient.New(baseURL, store, clientOpts...)

	notes := &notify.Recorder{}
	notifier := append(notify.Tee{notes, notify.LogNotifier{Logger: logger}}, o.notifiers...)
	history := routes.NewHistory(o.startPath)

	authService := auth.NewService(client)
	manager := session.NewManager(authService, store,
		session.WithNavigator(history),
		session.WithNotifier(notifier),
		session.WithLogger(logger),
	)
	client.SetAuthFailureHandler(manager)

	return &App{
		Config:   cfg,
		Logger:   logger,
		BaseURL:  baseURL,
		Store:    store,
		History:  history,
		Notes:    notes,
		Notifier: notifier,
		Registry: registry,
		Tracer:   tp,
		Client:   client,
		Auth:     authService,
		Session:  manager,
		Guard:    guard.New(manager, history, guard.WithLogger(logger)),
		Library:  library.NewService(client),
		shutdown: shutdown,
	}, nil
}

// Close releases what New started, flushing any spans still buffered.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for _, fn := range a.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("[app.Close] %w", errors.Join(errs...))
	}
	return nil
}
