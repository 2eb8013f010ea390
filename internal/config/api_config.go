package config

import (
	"strings"
	"time"
)

type API struct {
	src *source
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the backend REST root, without a trailing slash.
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.src.get(apiBaseURLVar, "http://localhost:3000/api"), "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.src.duration(timeoutVar, 30*time.Second)
}

// GetRequestsPerSecond returns the outgoing request rate limit. Zero disables limiting.
func (a API) GetRequestsPerSecond() float64 {
	return a.src.floatValue(rpsVar, 0)
}

func (a API) GetRequestBurst() int {
	return a.src.intValue(burstVar, 10)
}

// GetCoalesceRefresh reports whether simultaneous 401s should share one refresh call.
func (a API) GetCoalesceRefresh() bool {
	return a.src.boolValue(coalesceVar, false)
}

// GetTraceRequests reports whether backend calls are traced to the debug log.
func (a API) GetTraceRequests() bool {
	return a.src.boolValue(traceVar, false)
}
