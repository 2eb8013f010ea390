package routes

import "sync"

// NavigateOptions controls how a navigation is applied.
type NavigateOptions struct {
	// Replace swaps the current history entry instead of pushing a new one.
	Replace bool
}

// Navigator issues navigation commands. Route definitions belong to the caller.
type Navigator interface {
	Navigate(path string, opts NavigateOptions)
}

// Locator is implemented by navigators that know the current location.
type Locator interface {
	Current() string
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string, opts NavigateOptions)

func (f NavigatorFunc) Navigate(path string, opts NavigateOptions) {
	f(path, opts)
}

// History is an in-memory Navigator that tracks the current location and the entries
// visited. Safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []string
}

var (
	_ Navigator = (*History)(nil)
	_ Locator   = (*History)(nil)
)

// NewHistory starts a history at path.
func NewHistory(path string) *History {
	return &History{entries: []string{path}}
}

func (h *History) Navigate(path string, opts NavigateOptions) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if opts.Replace && len(h.entries) > 0 {
		h.entries[len(h.entries)-1] = path
		return
	}
	h.entries = append(h.entries, path)
}

// Current returns the location at the top of the history.
func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Entries returns a copy of the history, oldest first.
func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}
