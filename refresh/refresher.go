package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Doer performs an HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// TokenResponse is the refresh endpoint's success body.
type TokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresher calls the refresh endpoint. The refresh credential is an HTTP-only cookie
// carried by the Doer's cookie jar; Refresher never reads or stores it.
type Refresher struct {
	baseURL string
	path    string
	doer    Doer
	logger  zerolog.Logger
}

type Option func(*Refresher)

func WithPath(path string) Option {
	return func(r *Refresher) {
		r.path = path
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Refresher) {
		r.logger = logger
	}
}

// New creates a Refresher for the API rooted at baseURL. doer must share its cookie jar
// with the client that performed login.
func New(baseURL string, doer Doer, options ...Option) *Refresher {
	r := &Refresher{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    routes.APIAuthRefreshToken,
		doer:    doer,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Refresh returns a new access token. Every failure wraps ErrRefreshFailed; no retry is
// attempted here.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.path, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("[Refresher.Refresh] build request: %w: %w", liberrors.ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.doer.Do(req)
	if err != nil {
		return "", fmt.Errorf("[Refresher.Refresh] %w: %w", liberrors.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[Refresher.Refresh] read body: %w: %w", liberrors.ErrRefreshFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &liberrors.APIError{Status: resp.StatusCode, Method: http.MethodPost, Path: r.path}
		var m struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &m) == nil {
			apiErr.Message = m.Message
		}
		r.logger.Debug().Int("status", resp.StatusCode).Msg("refresh credential rejected")
		return "", fmt.Errorf("[Refresher.Refresh] %w: %w", liberrors.ErrRefreshFailed, apiErr)
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("[Refresher.Refresh] decode: %w: %w", liberrors.ErrRefreshFailed, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("[Refresher.Refresh] empty access token: %w", liberrors.ErrRefreshFailed)
	}
	return tr.AccessToken, nil
}
