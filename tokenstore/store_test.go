package tokenstore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetClear(t *testing.T) {
	s := tokenstore.New()

	_, ok := s.Get()
	require.False(t, ok)

	s.Set("T1")
	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "T1", tok)

	s.Set("T2")
	tok, _ = s.Get()
	require.Equal(t, "T2", tok, "Set must replace the previous token")

	s.Clear()
	_, ok = s.Get()
	require.False(t, ok)
}

func TestStore_SetEmptyClears(t *testing.T) {
	s := tokenstore.New()
	s.Set("T1")
	s.Set("")
	_, ok := s.Get()
	require.False(t, ok)
}

func TestStore_TokenSource(t *testing.T) {
	s := tokenstore.New()
	_, err := s.Token()
	require.ErrorIs(t, err, tokenstore.ErrNoToken)

	s.Set("T1")
	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, "T1", tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
}

func TestStore_ExpiresAt(t *testing.T) {
	s := tokenstore.New()
	_, ok := s.ExpiresAt()
	require.False(t, ok)

	s.Set("opaque-token")
	_, ok = s.ExpiresAt()
	require.False(t, ok)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	s.Set(signed)
	got, ok := s.ExpiresAt()
	require.True(t, ok)
	require.True(t, exp.Equal(got))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := tokenstore.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set("T")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Get()
		}()
	}
	wg.Wait()
	tok, ok := s.Get()
	require.True(t, ok)
	require.Equal(t, "T", tok)
}

func TestStore_AuthorizationHeader(t *testing.T) {
	s := tokenstore.New()
	_, ok := s.AuthorizationHeader()
	require.False(t, ok)

	s.Set("T1")
	h, ok := s.AuthorizationHeader()
	require.True(t, ok)
	require.Equal(t, "Bearer T1", h)
}
