package library

import (
	"strings"
	"time"
)

// DaysOverdue is the number of whole calendar days from due to now, in now's location.
// A book due today or later is 0 days overdue.
func DaysOverdue(due, now time.Time) int {
	loc := now.Location()
	d := due.In(loc)
	dueDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(today.Sub(dueDay).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// FilterOverdue keeps the items whose book title, author, reader name, reader email or
// transaction id contains term, case-insensitively. An empty term keeps everything.
func FilterOverdue(items []OverdueBook, term string) []OverdueBook {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return items
	}
	out := make([]OverdueBook, 0, len(items))
	for _, it := range items {
		fields := []string{it.Book.Title, it.Book.Author, it.Reader.Name, it.Reader.Email, it.ID}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), term) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// UniqueReaderIDs returns each reader with an overdue book once, in first-seen order.
func UniqueReaderIDs(items []OverdueBook) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		id := it.Reader.ID
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
