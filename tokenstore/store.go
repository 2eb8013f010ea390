package tokenstore

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by Token when no access token is held.
var ErrNoToken = errors.New("no access token")

// Store holds the current access token in memory. It is the single source of truth for
// the bearer credential attached to outgoing requests. The zero value is an empty store.
type Store struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

var _ oauth2.TokenSource = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Set replaces the stored token. An empty value clears the store.
func (s *Store) Set(accessToken string) {
	if accessToken == "" {
		s.Clear()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
}

// Clear removes the stored token.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

// Get returns the current access token, if any.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return "", false
	}
	return s.token.AccessToken, true
}

// Token implements oauth2.TokenSource.
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil, ErrNoToken
	}
	tok := *s.token
	return &tok, nil
}

// AuthorizationHeader returns the Authorization header value for the current token.
func (s *Store) AuthorizationHeader() (string, bool) {
	tok, err := s.Token()
	if err != nil {
		return "", false
	}
	return tok.Type() + " " + tok.AccessToken, true
}

// ExpiresAt reads the exp claim of the current token without verifying its signature.
// Tokens that are not JWTs, or carry no exp, report false. Diagnostic only.
func (s *Store) ExpiresAt() (time.Time, bool) {
	raw, ok := s.Get()
	if !ok {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
