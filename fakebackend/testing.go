package fakebackend

import (
	"net/http/httptest"
	"testing"
)

const (
	TestLibrarian = "lib1"
	TestEmail     = "lib1@bookclub.test"
	TestPassword  = "secret1"
)

// Start runs a backend seeded with the test librarian on an httptest server that is
// closed when the test ends. The API base URL is ts.URL + APIPrefix.
func Start(t testing.TB, options ...Option) (*Server, *httptest.Server) {
	t.Helper()
	s := New(options...)
	if err := s.SeedLibrarian(TestLibrarian, TestEmail, TestPassword); err != nil {
		t.Fatalf("seed librarian: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// BaseURL is the API root of a server started with Start.
func BaseURL(ts *httptest.Server) string {
	return ts.URL + APIPrefix
}
