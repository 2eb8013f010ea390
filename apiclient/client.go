package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/jrsteele09/bookclub-admin/apiclient"

// Refresher exchanges the server-held refresh credential for a new access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// AuthFailureHandler is told when a request fails authentication and no session could
// be recovered. The session layer uses it to tear down and redirect to login.
type AuthFailureHandler interface {
	HandleAuthFailure(ctx context.Context, cause error)
}

// AuthFailureFunc adapts a function to AuthFailureHandler.
type AuthFailureFunc func(ctx context.Context, cause error)

func (f AuthFailureFunc) HandleAuthFailure(ctx context.Context, cause error) {
	f(ctx, cause)
}

// Client sends requests to the backend with the current access token attached and
// recovers from a stale token with a single refresh-and-retry.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	store       *tokenstore.Store
	logger      zerolog.Logger
	refreshPath string

	metrics      *Metrics
	tracer       trace.Tracer
	limiter      *rate.Limiter
	coalesce     bool
	refreshGroup singleflight.Group
	extra        []Interceptor

	mu            sync.RWMutex
	refresher     Refresher
	onAuthFailure AuthFailureHandler

	handler Handler
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. It should carry a cookie jar so the
// refresh cookie travels with credentialed calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records request and refresh counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithTracerProvider takes the client's tracer from tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

// WithRateLimit caps outgoing dispatches. rps <= 0 leaves requests unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRefreshCoalescing makes simultaneous auth failures share one in-flight refresh
// call. Off by default: each failing request runs its own refresh.
func WithRefreshCoalescing() Option {
	return func(c *Client) {
		c.coalesce = true
	}
}

// WithRefreshPath overrides the refresh endpoint path used by the no-loop rule.
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		c.refreshPath = path
	}
}

// WithInterceptors adds interceptors that run after the built-in ones and before the
// bearer header is attached. The request already carries its request id, and headers
// set here are sent with every dispatch of it.
func WithInterceptors(mw ...Interceptor) Option {
	return func(c *Client) {
		c.extra = append(c.extra, mw...)
	}
}

// WithRefresher sets the refresh protocol at construction time.
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

// NewHTTPClient returns an HTTP client with a cookie jar and the given timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil) // only fails for a non-nil PublicSuffixList
	return &http.Client{Jar: jar, Timeout: timeout}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, store *tokenstore.Store, options ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		store:       store,
		logger:      log.Logger,
		refreshPath: routes.APIAuthRefreshToken,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(30 * time.Second)
	}
	if c.store == nil {
		c.store = tokenstore.New()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	mw := []Interceptor{
		c.authRetryInterceptor,
		requestIDInterceptor,
		c.tracingInterceptor,
		c.metricsInterceptor,
		c.rateLimitInterceptor,
	}
	mw = append(mw, c.extra...)
	mw = append(mw, c.bearerInterceptor)
	c.handler = Chain(c.dispatch, mw...)
	return c
}

// SetRefresher installs the refresh protocol.
func (c *Client) SetRefresher(r Refresher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresher = r
}

// SetAuthFailureHandler installs the handler told about unrecoverable auth failures.
func (c *Client) SetAuthFailureHandler(h AuthFailureHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthFailure = h
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client, shared with the refresh protocol so
// both see the same cookies.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Store returns the token store consulted by every request.
func (c *Client) Store() *tokenstore.Store {
	return c.store
}

// Send dispatches req through the interceptor chain. Responses whose status is not
// 401/403 are returned unchanged, whatever their status. Auth failures are recovered by
// at most one refresh-and-retry; unrecoverable ones return an error matching
// ErrAuthRequired.
//
// Send works on a copy of req, so the same Request may be sent again.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("[apiclient.Send] nil request: %w", liberrors.ErrInvalidRequest)
	}
	r := *req
	r.Header = req.Header.Clone()
	if r.Method == "" {
		r.Method = http.MethodGet
	}
	return c.handler(ctx, &r)
}

// Do sends a JSON request and decodes a 2xx JSON response into out (if non-nil). Any
// other status is returned as *errors.APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	return c.Call(ctx, &Request{Method: method, Path: path, Body: in}, out)
}

// Call is Do for a prepared request.
func (c *Client) Call(ctx context.Context, req *Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return resp.APIError(req)
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.Do(ctx, http.MethodPut, path, in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// dispatch performs one HTTP round trip.
func (c *Client) dispatch(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("[apiclient.dispatch] encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.dispatch] %s %s: %w", req.Method, req.Path, err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.dispatch] %s %s: %w: %w", req.Method, req.Path, liberrors.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient.dispatch] read %s %s: %w: %w", req.Method, req.Path, liberrors.ErrTransientNetwork, err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) currentRefresher() Refresher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refresher
}

func (c *Client) currentAuthFailureHandler() AuthFailureHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onAuthFailure
}
