package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
)

// Request describes one call to the backend. It is dispatched at most twice: the
// original attempt and, after a successful token refresh, a single retry.
type Request struct {
	Method string
	Path   string      // relative to the API base URL, e.g. "/books"
	Body   any         // JSON-encoded on every dispatch; nil sends no body
	Header http.Header // extra headers; Authorization is managed by the client

	// Anonymous requests carry no bearer token, and a 401/403 answer is returned to the
	// caller like any other status. Used for credential endpoints such as login, where
	// a rejection means bad credentials rather than a stale session.
	Anonymous bool

	// Retried is set once the request has been through a refresh-and-retry cycle.
	// A second 401/403 on a retried request is terminal.
	Retried bool
}

// Response is a fully-read backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[apiclient.Response.Decode] %w", err)
	}
	return nil
}

type messageBody struct {
	Message string `json:"message"`
}

// Message returns the backend's {"message": ...} text, if present.
func (r *Response) Message() string {
	var m messageBody
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return ""
	}
	return m.Message
}

// APIError builds the error for a non-2xx response to req.
func (r *Response) APIError(req *Request) *liberrors.APIError {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return &liberrors.APIError{
		Status:  r.Status,
		Message: r.Message(),
		Method:  method,
		Path:    req.Path,
	}
}
