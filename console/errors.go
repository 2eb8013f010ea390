package console

import (
	"errors"
	"net/http"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/server"
)

// statusFor maps a service error onto the status the console answers with. Backend
// 5xx responses become 502 because the console itself is healthy.
func statusFor(err error) int {
	var apiErr *liberrors.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Status >= http.StatusInternalServerError {
			return http.StatusBadGateway
		}
		if apiErr.IsAuthFailure() {
			return http.StatusUnauthorized
		}
		return apiErr.Status
	case errors.Is(err, liberrors.ErrAuthRequired), errors.Is(err, liberrors.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, liberrors.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, liberrors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, liberrors.ErrTransientNetwork), errors.Is(err, liberrors.ErrProfileFetchFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (c *Console) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := c.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = c.logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("console request failed")
	server.WriteMessage(w, status, liberrors.Message(err))
}
