package main

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/fakebackend"
	"github.com/jrsteele09/bookclub-admin/internal/config"
	"github.com/jrsteele09/bookclub-admin/internal/logging"
	"github.com/jrsteele09/bookclub-admin/server"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("error running fake backend")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("fake backend stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	cfg := config.New()
	logger := logging.New(cfg)
	server.DisplayAppName(cfg.GetAppName() + " API")

	backend := fakebackend.New(
		fakebackend.WithConfig(cfg),
		fakebackend.WithEnv(cfg.GetEnv()),
		fakebackend.WithLogger(logger),
		fakebackend.WithAllowedOrigins("http://localhost:5173"),
	)
	email := cfg.GetSeedLibrarian() + "@bookclub.local"
	if err := backend.SeedLibrarian(cfg.GetSeedLibrarian(), email, cfg.GetSeedPassword()); err != nil {
		return err
	}
	logger.Info().Str("name", cfg.GetSeedLibrarian()).Str("email", email).Msg("seeded librarian")

	handler := backend.Handler()
	if r, ok := handler.(chi.Routes); ok {
		server.LogRoutes(logger, cfg.GetEnv(), r)
	}
	return server.Run(context.Background(), cfg.GetPort(), handler)
}
