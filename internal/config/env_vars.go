package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVar          = "ENV"
	appNameVar      = "APP_NAME"
	logLevelVar     = "LOG_LEVEL"
	consolePortVar  = "CONSOLE_PORT"
	apiBaseURLVar   = "API_BASE_URL"
	timeoutVar      = "REQUEST_TIMEOUT"
	rpsVar          = "REQUESTS_PER_SECOND"
	burstVar        = "REQUEST_BURST"
	coalesceVar     = "COALESCE_REFRESH"
	traceVar        = "TRACE_REQUESTS"
	portEnvVar      = "PORT"
	accessExpVar    = "ACCESS_TOKEN_EXPIRY"
	refreshExpVar   = "REFRESH_TOKEN_EXPIRY"
	tokenSecretVar  = "TOKEN_SECRET"
	seedLibrarian   = "SEED_LIBRARIAN"
	seedPasswordVar = "SEED_PASSWORD"
)

// source resolves a setting from the environment, then the optional config file.
type source struct {
	file map[string]any
}

func (s *source) get(name, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	if s != nil && s.file != nil {
		if value, ok := s.file[strings.ToLower(name)]; ok {
			return fmt.Sprint(value)
		}
	}
	return defaultValue
}

func (s *source) duration(name string, defaultValue time.Duration) time.Duration {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return d
}

func (s *source) floatValue(name string, defaultValue float64) float64 {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func (s *source) intValue(name string, defaultValue int) int {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return i
}

func (s *source) boolValue(name string, defaultValue bool) bool {
	raw := s.get(name, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return b
}

type EnvVars struct {
	src *source
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.src.get(envVar, "DEV"))
}

func (e EnvVars) GetAppName() string {
	return e.src.get(appNameVar, "Book-Club Library")
}

func (e EnvVars) GetLogLevel() string {
	return e.src.get(logLevelVar, "info")
}

func (e EnvVars) GetConsolePort() string {
	return port(e.src.get(consolePortVar, "8081"))
}

func port(p string) string {
	if p != "" && p[0] != ':' {
		p = fmt.Sprintf(":%s", p)
	}
	return p
}
