package apiclient

import (
	"context"
	"fmt"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
)

// authRetryInterceptor turns a 401/403 into one refresh-and-retry cycle:
// mark retried, refresh, store the new token, re-dispatch. A 401/403 on a request that
// was already retried, or on the refresh endpoint itself, is terminal.
func (c *Client) authRetryInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		for {
			resp, err := next(ctx, req)
			if err != nil || req.Anonymous || !liberrors.IsAuthStatus(resp.Status) {
				return resp, err
			}

			if req.Retried || req.Path == c.refreshPath {
				apiErr := resp.APIError(req)
				c.logger.Warn().
					Str("method", req.Method).
					Str("path", req.Path).
					Int("status", resp.Status).
					Bool("retried", req.Retried).
					Msg("authentication failed, session cannot be recovered")
				c.failAuth(ctx, apiErr)
				return nil, fmt.Errorf("[apiclient.Send] %s %s: %w: %w", req.Method, req.Path, liberrors.ErrAuthRequired, apiErr)
			}

			req.Retried = true
			ev := c.logger.Info().Str("method", req.Method).Str("path", req.Path).Int("status", resp.Status)
			if exp, ok := c.store.ExpiresAt(); ok {
				ev = ev.Time("token_exp", exp)
			}
			ev.Msg("access token rejected, refreshing")

			token, err := c.refresh(ctx)
			if err != nil {
				c.metrics.observeRefresh(refreshOutcomeFailure)
				c.logger.Warn().Err(err).Str("path", req.Path).Msg("token refresh failed")
				c.failAuth(ctx, err)
				return nil, fmt.Errorf("[apiclient.Send] %s %s: %w: %w", req.Method, req.Path, liberrors.ErrAuthRequired, err)
			}
			c.metrics.observeRefresh(refreshOutcomeSuccess)
			c.store.Set(token)
			c.logger.Debug().Str("path", req.Path).Msg("token refreshed, retrying request")
		}
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	r := c.currentRefresher()
	if r == nil {
		return "", fmt.Errorf("[apiclient.refresh] no refresher configured: %w", liberrors.ErrRefreshFailed)
	}
	if !c.coalesce {
		return r.Refresh(ctx)
	}
	v, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		return r.Refresh(ctx)
	})
	if shared {
		c.logger.Debug().Msg("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// failAuth clears the token before anyone is told, so no caller can observe a session
// that still looks authenticated.
func (c *Client) failAuth(ctx context.Context, cause error) {
	c.store.Clear()
	if h := c.currentAuthFailureHandler(); h != nil {
		h.HandleAuthFailure(ctx, cause)
	}
}
