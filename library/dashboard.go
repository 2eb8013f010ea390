package library

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const recentActivityLimit = 10

// Stats are the dashboard's headline counts.
type Stats struct {
	TotalReaders       int `json:"totalReaders"`
	TotalBooks         int `json:"totalBooks"`
	BooksCurrentlyLent int `json:"booksCurrentlyLent"`
	OverdueBooks       int `json:"overdueBooks"`
}

type ActivityType string

const (
	ActivityReader  ActivityType = "reader"
	ActivityBook    ActivityType = "book"
	ActivityLending ActivityType = "lending"
	ActivityReturn  ActivityType = "return"
	ActivityOverdue ActivityType = "overdue"
	ActivityGeneral ActivityType = "general"
)

type Activity struct {
	ID      string       `json:"id"`
	Type    ActivityType `json:"type"`
	Message string       `json:"message"`
	Time    time.Time    `json:"time"`
}

// MonthlyLending counts lending per calendar month (YYYY-MM, UTC). Returned counts only
// returns that happened in the month the book was lent.
type MonthlyLending struct {
	Month    string `json:"month"`
	Lent     int    `json:"lent"`
	Returned int    `json:"returned"`
}

// Stats fetches readers, books, lending and overdue lists concurrently and counts them.
// Any single failure fails the whole call.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var (
		readers []Reader
		books   []Book
		txs     []LendingTransaction
		overdue []OverdueBook
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		readers, err = s.Readers(gctx)
		return err
	})
	g.Go(func() (err error) {
		books, err = s.Books(gctx)
		return err
	})
	g.Go(func() (err error) {
		txs, err = s.Transactions(gctx)
		return err
	})
	g.Go(func() (err error) {
		overdue, err = s.Overdue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("[library.Stats] %w", err)
	}

	stats := &Stats{
		TotalReaders: len(readers),
		TotalBooks:   len(books),
		OverdueBooks: len(overdue),
	}
	for _, tx := range txs {
		if tx.Status.Lent() {
			stats.BooksCurrentlyLent++
		}
	}
	return stats, nil
}

// RecentActivities returns the newest audit entries as dashboard activity items.
func (s *Service) RecentActivities(ctx context.Context) ([]Activity, error) {
	logs, err := s.AuditLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("[library.RecentActivities] %w", err)
	}
	return RecentActivities(logs, recentActivityLimit), nil
}

// MonthlyLending buckets every lending transaction by the month it was lent.
func (s *Service) MonthlyLending(ctx context.Context) ([]MonthlyLending, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("[library.MonthlyLending] %w", err)
	}
	return MonthlyLendingFor(txs), nil
}

// RecentActivities sorts logs newest first and describes at most limit of them.
// logs is not modified.
func RecentActivities(logs []AuditLog, limit int) []Activity {
	sorted := make([]AuditLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})
	if limit >= 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Activity, 0, len(sorted))
	for _, l := range sorted {
		typ, msg := Describe(l)
		out = append(out, Activity{ID: l.ID, Type: typ, Message: msg, Time: l.Timestamp})
	}
	return out
}

// Describe renders an audit entry as a human-readable activity line.
func Describe(l AuditLog) (ActivityType, string) {
	by := l.PerformedBy
	switch l.Action {
	case ActionUserSignup:
		return ActivityReader, fmt.Sprintf("New librarian '%s' registered.", by)
	case ActionUserLogin:
		return ActivityReader, fmt.Sprintf("Librarian '%s' logged in.", by)
	case ActionBookAdded:
		return ActivityBook, fmt.Sprintf("Book '%s' added by '%s'.", firstOf(l.Detail("title"), l.EntityID, "Unknown Book"), by)
	case ActionBookUpdated:
		return ActivityBook, fmt.Sprintf("Book '%s' updated by '%s'.", firstOf(l.Detail("title"), l.EntityID, "Unknown Book"), by)
	case ActionBookDeleted:
		return ActivityBook, fmt.Sprintf("Book '%s' deleted by '%s'.", firstOf(l.Detail("title"), l.EntityID, "Unknown Book"), by)
	case ActionReaderAdded:
		return ActivityReader, fmt.Sprintf("New reader '%s' registered by '%s'.", firstOf(l.Detail("name"), l.EntityID, "Unknown Reader"), by)
	case ActionReaderUpdated:
		return ActivityReader, fmt.Sprintf("Reader '%s' updated by '%s'.", firstOf(l.Detail("name"), l.EntityID, "Unknown Reader"), by)
	case ActionReaderDeleted:
		return ActivityReader, fmt.Sprintf("Reader '%s' deleted by '%s'.", firstOf(l.Detail("name"), l.EntityID, "Unknown Reader"), by)
	case ActionBookLent:
		return ActivityLending, fmt.Sprintf("Book '%s' lent to '%s' by '%s'.",
			firstOf(l.Detail("bookTitle"), "Unknown Book"), firstOf(l.Detail("readerName"), "Unknown Reader"), by)
	case ActionBookReturned:
		return ActivityReturn, fmt.Sprintf("Book '%s' returned by '%s' (handled by '%s').",
			firstOf(l.Detail("bookTitle"), "Unknown Book"), firstOf(l.Detail("readerName"), "Unknown Reader"), by)
	case ActionOverdueNotifySent:
		return ActivityOverdue, fmt.Sprintf("Overdue notifications sent to %s readers by '%s'.", firstOf(l.Detail("sentCount"), "0"), by)
	}
	return ActivityGeneral, fmt.Sprintf("Activity: %s (by %s)", l.Action, by)
}

// MonthlyLendingFor buckets txs by borrow month, sorted by month.
func MonthlyLendingFor(txs []LendingTransaction) []MonthlyLending {
	buckets := map[string]*MonthlyLending{}
	for _, tx := range txs {
		key := monthKey(tx.BorrowDate)
		b, ok := buckets[key]
		if !ok {
			b = &MonthlyLending{Month: key}
			buckets[key] = b
		}
		b.Lent++
		if tx.Status == StatusReturned && tx.ReturnDate != nil && monthKey(*tx.ReturnDate) == key {
			b.Returned++
		}
	}

	out := make([]MonthlyLending, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
