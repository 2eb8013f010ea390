package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader correlates a request and its retry in backend logs.
const RequestIDHeader = "X-Request-ID"

// Handler sends a Request and returns its Response.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor wraps a Handler.
type Interceptor func(next Handler) Handler

// Chain wraps h so the first interceptor is outermost.
func Chain(h Handler, mw ...Interceptor) Handler {
	chained := h
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

func requestIDInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if req.Header == nil {
			req.Header = http.Header{}
		}
		if req.Header.Get(RequestIDHeader) == "" {
			req.Header.Set(RequestIDHeader, uuid.NewString())
		}
		return next(ctx, req)
	}
}

// bearerInterceptor reads the token store at dispatch time, so a retry after refresh
// carries the new token.
func (c *Client) bearerInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if req.Header == nil {
			req.Header = http.Header{}
		}
		if value, ok := c.store.AuthorizationHeader(); ok && !req.Anonymous {
			req.Header.Set("Authorization", value)
		} else {
			req.Header.Del("Authorization")
		}
		return next(ctx, req)
	}
}

func (c *Client) rateLimitInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("[apiclient.rateLimit] %s %s: %w: %w", req.Method, req.Path, liberrors.ErrTransientNetwork, err)
			}
		}
		return next(ctx, req)
	}
}

func (c *Client) metricsInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := "error"
		if resp != nil {
			code = strconv.Itoa(resp.Status)
		}
		c.metrics.observeRequest(req.Method, code, time.Since(start))
		return resp, err
	}
}

func (c *Client) tracingInterceptor(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		ctx, span := c.tracer.Start(ctx, "apiclient "+req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", req.Path),
				attribute.Bool("apiclient.retried", req.Retried),
			))
		defer span.End()

		resp, err := next(ctx, req)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case resp != nil:
			span.SetAttributes(attribute.Int("http.status_code", resp.Status))
			if resp.Status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(resp.Status))
			}
		}
		return resp, err
	}
}
