package config

import "time"

// BackendConfig configures the in-memory fake backend used for local development.
type BackendConfig interface {
	GetPort() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetTokenSecret() string
	GetSeedLibrarian() string
	GetSeedPassword() string
}

type Backend struct {
	src *source
}

var _ BackendConfig = Backend{}

func (b Backend) GetPort() string {
	return port(b.src.get(portEnvVar, "3000"))
}

func (b Backend) GetAccessTokenExpiry() time.Duration {
	return b.src.duration(accessExpVar, 15*time.Minute)
}

func (b Backend) GetRefreshTokenExpiry() time.Duration {
	return b.src.duration(refreshExpVar, 7*24*time.Hour) // 7 days
}

func (b Backend) GetTokenSecret() string {
	return b.src.get(tokenSecretVar, "dev-only-secret")
}

func (b Backend) GetSeedLibrarian() string {
	return b.src.get(seedLibrarian, "lib1")
}

func (b Backend) GetSeedPassword() string {
	return b.src.get(seedPasswordVar, "secret1")
}
