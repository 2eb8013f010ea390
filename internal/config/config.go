package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Config interface {
	EnvConfig
	APIConfig
	BackendConfig
}

type EnvConfig interface {
	GetEnv() string
	GetAppName() string
	GetLogLevel() string
	GetConsolePort() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
	GetRequestsPerSecond() float64
	GetRequestBurst() int
	GetCoalesceRefresh() bool
	GetTraceRequests() bool
}

type mainConfig struct {
	EnvVars
	API
	Backend
}

func newMainConfig(src *source) mainConfig {
	return mainConfig{
		EnvVars: EnvVars{src: src},
		API:     API{src: src},
		Backend: Backend{src: src},
	}
}

// New returns a Config backed by environment variables and built-in defaults.
func New() Config {
	return newMainConfig(&source{})
}

// Load returns a Config that reads environment variables first, then the TOML file at
// path, then the built-in defaults. An empty path behaves like New.
//
// File keys are the lower-case environment variable names, e.g. api_base_url = "...".
func Load(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}
	file := map[string]any{}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("[config.Load] decode %s: %w", path, err)
	}
	return newMainConfig(&source{file: file}), nil
}
