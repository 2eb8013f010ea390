package library_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/bookclub-admin/internal/utils"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		log     library.AuditLog
		typ     library.ActivityType
		message string
	}{
		{
			library.AuditLog{Action: library.ActionUserLogin, PerformedBy: "lib1"},
			library.ActivityReader, "Librarian 'lib1' logged in.",
		},
		{
			library.AuditLog{Action: library.ActionBookAdded, PerformedBy: "lib1", Details: map[string]any{"title": "Dune"}},
			library.ActivityBook, "Book 'Dune' added by 'lib1'.",
		},
		{
			library.AuditLog{Action: library.ActionBookDeleted, PerformedBy: "lib1", EntityID: "b1"},
			library.ActivityBook, "Book 'b1' deleted by 'lib1'.",
		},
		{
			library.AuditLog{Action: library.ActionReaderAdded, PerformedBy: "lib1", Details: map[string]any{"name": "Ada"}},
			library.ActivityReader, "New reader 'Ada' registered by 'lib1'.",
		},
		{
			library.AuditLog{Action: library.ActionBookLent, PerformedBy: "lib1", Details: map[string]any{"bookTitle": "Dune", "readerName": "Ada"}},
			library.ActivityLending, "Book 'Dune' lent to 'Ada' by 'lib1'.",
		},
		{
			library.AuditLog{Action: library.ActionBookReturned, PerformedBy: "lib1", Details: map[string]any{"bookTitle": "Dune"}},
			library.ActivityReturn, "Book 'Dune' returned by 'Unknown Reader' (handled by 'lib1').",
		},
		{
			library.AuditLog{Action: library.ActionOverdueNotifySent, PerformedBy: "lib1", Details: map[string]any{"sentCount": float64(3)}},
			library.ActivityOverdue, "Overdue notifications sent to 3 readers by 'lib1'.",
		},
		{
			library.AuditLog{Action: "SOMETHING_ELSE", PerformedBy: "lib1"},
			library.ActivityGeneral, "Activity: SOMETHING_ELSE (by lib1)",
		},
	}
	for _, tc := range tests {
		t.Run(tc.log.Action, func(t *testing.T) {
			typ, msg := library.Describe(tc.log)
			require.Equal(t, tc.typ, typ)
			require.Equal(t, tc.message, msg)
		})
	}
}

func TestRecentActivities_NewestFirstAndLimited(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var logs []library.AuditLog
	for i := 0; i < 12; i++ {
		logs = append(logs, library.AuditLog{
			ID:          string(rune('a' + i)),
			Action:      library.ActionUserLogin,
			PerformedBy: "lib1",
			Timestamp:   base.Add(time.Duration(i) * time.Hour),
		})
	}

	got := library.RecentActivities(logs, 10)
	require.Len(t, got, 10)
	require.Equal(t, "l", got[0].ID)
	require.Equal(t, "c", got[9].ID)
	require.Equal(t, "a", logs[0].ID, "input is left in place")
}

func TestMonthlyLendingFor(t *testing.T) {
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	april := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	txs := []library.LendingTransaction{
		{BorrowDate: april, Status: library.StatusBorrowed},
		{BorrowDate: march, Status: library.StatusReturned, ReturnDate: utils.Ptr(march.AddDate(0, 0, 3))},
		{BorrowDate: march, Status: library.StatusReturned, ReturnDate: utils.Ptr(april)},
		{BorrowDate: march, Status: library.StatusOverdue},
	}

	require.Equal(t, []library.MonthlyLending{
		{Month: "2024-03", Lent: 3, Returned: 1},
		{Month: "2024-04", Lent: 1, Returned: 0},
	}, library.MonthlyLendingFor(txs))
	require.Empty(t, library.MonthlyLendingFor(nil))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := library.Paginate(items, 2, 2)
	require.Equal(t, []int{3, 4}, p.Items)
	require.Equal(t, 3, p.TotalPages)
	require.Equal(t, 5, p.Total)

	require.Equal(t, []int{5}, library.Paginate(items, 99, 2).Items)
	require.Equal(t, 1, library.Paginate(items, -1, 2).Page)
	require.Equal(t, items, library.Paginate(items, 1, 0).Items)

	empty := library.Paginate([]int{}, 3, 10)
	require.Equal(t, library.Page[int]{Items: []int{}, Page: 1}, empty)
}
