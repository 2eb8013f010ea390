package library_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/fakebackend"
	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/refresh"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/tokenstore"
	"github.com/stretchr/testify/require"
)

// clock is shared between the test, the backend and the service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	backend *fakebackend.Server
	clock   *clock
	service *library.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	backend, ts := fakebackend.Start(t, fakebackend.WithNow(c.Now))
	baseURL := fakebackend.BaseURL(ts)

	store := tokenstore.New()
	hc := apiclient.NewHTTPClient(5 * time.Second)
	client := apiclient.New(baseURL, store, apiclient.WithHTTPClient(hc), apiclient.WithRefresher(refresh.New(baseURL, hc)))

	resp, err := auth.NewService(client).Login(context.Background(), auth.LoginRequest{Name: fakebackend.TestLibrarian, Password: fakebackend.TestPassword})
	require.NoError(t, err)
	store.Set(resp.Token)

	return &testFixture{backend: backend, clock: c, service: library.NewService(client, library.WithNow(c.Now))}
}

func TestBooksAndReaders(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	book, err := f.service.AddBook(ctx, library.BookInput{Title: "Dune", Author: "Herbert", TotalCopies: 2})
	require.NoError(t, err)
	require.Equal(t, 2, book.AvailableCopies)

	book, err = f.service.EditBook(ctx, book.ID, library.BookInput{Title: "Dune", Author: "Frank Herbert", TotalCopies: 3})
	require.NoError(t, err)
	require.Equal(t, "Frank Herbert", book.Author)

	reader, err := f.service.AddReader(ctx, library.ReaderInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	_, err = f.service.EditReader(ctx, reader.ID, library.ReaderInput{Name: "Ada L", Email: "ada@example.com"})
	require.NoError(t, err)

	books, err := f.service.Books(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	readers, err := f.service.Readers(ctx)
	require.NoError(t, err)
	require.Equal(t, "Ada L", readers[0].Name)

	require.NoError(t, f.service.RemoveBook(ctx, book.ID))
	require.NoError(t, f.service.RemoveReader(ctx, reader.ID))

	err = f.service.RemoveBook(ctx, book.ID)
	require.ErrorIs(t, err, liberrors.ErrNotFound)
}

func TestLendReturnAndDashboard(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	dune, err := f.service.AddBook(ctx, library.BookInput{Title: "Dune", Author: "Herbert", TotalCopies: 1})
	require.NoError(t, err)
	emma, err := f.service.AddBook(ctx, library.BookInput{Title: "Emma", Author: "Austen", TotalCopies: 1})
	require.NoError(t, err)
	ada, err := f.service.AddReader(ctx, library.ReaderInput{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	late, err := f.service.Lend(ctx, library.LendRequest{BookID: dune.ID, ReaderID: ada.ID})
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	onTime, err := f.service.Lend(ctx, library.LendRequest{BookID: emma.ID, ReaderID: ada.ID})
	require.NoError(t, err)

	_, err = f.service.Lend(ctx, library.LendRequest{BookID: dune.ID, ReaderID: ada.ID})
	var apiErr *liberrors.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)

	require.NoError(t, f.backend.Backdate(late.ID, 20*24*time.Hour))
	returned, err := f.service.Return(ctx, onTime.ID, library.ReturnRequest{})
	require.NoError(t, err)
	require.Equal(t, library.StatusReturned, returned.Status)

	overdue, err := f.service.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, late.ID, overdue[0].ID)
	require.Equal(t, 6, overdue[0].DaysOverdue)

	f.clock.Advance(24 * time.Hour)
	overdue, err = f.service.Overdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, overdue[0].DaysOverdue, "days overdue follow the local clock")

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, &library.Stats{TotalReaders: 1, TotalBooks: 2, BooksCurrentlyLent: 1, OverdueBooks: 1}, stats)

	history, err := f.service.HistoryByBook(ctx, dune.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	history, err = f.service.HistoryByReader(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	sent, err := f.service.SendOverdueNotifications(ctx, library.UniqueReaderIDs(overdue))
	require.NoError(t, err)
	require.Equal(t, 1, sent.SentCount)

	activities, err := f.service.RecentActivities(ctx)
	require.NoError(t, err)
	require.Equal(t, "Overdue notifications sent to 1 readers by 'lib1'.", activities[0].Message)
	require.Equal(t, library.ActivityOverdue, activities[0].Type)

	monthly, err := f.service.MonthlyLending(ctx)
	require.NoError(t, err)
	require.Equal(t, []library.MonthlyLending{
		{Month: "2024-02", Lent: 1},
		{Month: "2024-03", Lent: 1, Returned: 1},
	}, monthly)
}

func TestStats_FailsWhenAnyCallFails(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.RevokeRefreshTokens()
	f.backend.ExpireAccessTokens()

	_, err := f.service.Stats(context.Background())
	require.ErrorIs(t, err, liberrors.ErrAuthRequired)
	require.GreaterOrEqual(t, f.backend.Calls(http.MethodPost, routes.APIAuthRefreshToken), 1)
}
