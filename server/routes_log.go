package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// LogRoutes prints every route mounted on r, one coloured line each. Only DEV logs.
func LogRoutes(logger zerolog.Logger, env string, r chi.Routes) {
	if env != "DEV" {
		return
	}
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logger.Debug().Msg(formatRouteLine(method, route))
		return nil
	})
}

func formatRouteLine(method, path string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	return fmt.Sprintf("[%s%s%s] %s", color, paddedMethod, ResetColor, path)
}
