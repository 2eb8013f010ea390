package fakebackend

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/bookclub-admin/library"
)

const loanPeriod = 14 * 24 * time.Hour

var (
	errNotFound    = errors.New("not found")
	errUnavailable = errors.New("no copies available")
	errOnLoan      = errors.New("copies are on loan")
	errReturned    = errors.New("already returned")
)

// catalog is the in-memory library: books, readers, lending transactions and the audit
// trail every mutation writes to.
type catalog struct {
	now func() time.Time

	mu      sync.RWMutex
	books   map[string]*library.Book
	readers map[string]*library.Reader
	lending map[string]*lendingRecord
	audit   []library.AuditLog
}

// lendingRecord stores references so lists always show current book and reader data.
type lendingRecord struct {
	id         string
	bookID     string
	readerID   string
	borrowDate time.Time
	dueDate    time.Time
	returnDate *time.Time
	fine       float64
	createdAt  time.Time
	updatedAt  time.Time
}

func newCatalog(now func() time.Time) *catalog {
	return &catalog{
		now:     now,
		books:   make(map[string]*library.Book),
		readers: make(map[string]*library.Reader),
		lending: make(map[string]*lendingRecord),
	}
}

func (c *catalog) record(action string, entity library.EntityType, entityID, by string, details map[string]any) {
	c.audit = append(c.audit, library.AuditLog{
		ID:          uuid.New().String(),
		Action:      action,
		EntityType:  entity,
		EntityID:    entityID,
		PerformedBy: by,
		Timestamp:   c.now(),
		Details:     details,
	})
}

// Record appends an audit entry for actions outside the catalog, such as logins.
func (c *catalog) Record(action string, entity library.EntityType, entityID, by string, details map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(action, entity, entityID, by, details)
}

func (c *catalog) listBooks() []library.Book {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]library.Book, 0, len(c.books))
	for _, b := range c.books {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out
}

func (c *catalog) addBook(in library.BookInput, by string) library.Book {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	b := &library.Book{
		ID:              uuid.New().String(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		Genre:           in.Genre,
		PublicationYear: in.PublicationYear,
		Publisher:       in.Publisher,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	c.books[b.ID] = b
	c.record(library.ActionBookAdded, library.EntityBook, b.ID, by, map[string]any{"title": b.Title})
	return *b
}

func (c *catalog) editBook(id string, in library.BookInput, by string) (library.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[id]
	if !ok {
		return library.Book{}, errNotFound
	}
	onLoan := b.TotalCopies - b.AvailableCopies
	if in.TotalCopies < onLoan {
		return library.Book{}, errOnLoan
	}
	b.Title, b.Author, b.ISBN, b.Genre = in.Title, in.Author, in.ISBN, in.Genre
	b.PublicationYear, b.Publisher = in.PublicationYear, in.Publisher
	b.TotalCopies = in.TotalCopies
	b.AvailableCopies = in.TotalCopies - onLoan
	b.UpdatedAt = c.now()
	c.record(library.ActionBookUpdated, library.EntityBook, b.ID, by, map[string]any{"title": b.Title})
	return *b, nil
}

func (c *catalog) removeBook(id, by string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[id]
	if !ok {
		return errNotFound
	}
	if b.AvailableCopies < b.TotalCopies {
		return errOnLoan
	}
	delete(c.books, id)
	c.record(library.ActionBookDeleted, library.EntityBook, id, by, map[string]any{"title": b.Title})
	return nil
}

func (c *catalog) listReaders() []library.Reader {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]library.Reader, 0, len(c.readers))
	for _, r := range c.readers {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) || (out[i].CreatedAt.Equal(out[j].CreatedAt) && out[i].ID < out[j].ID) })
	return out
}

func (c *catalog) addReader(in library.ReaderInput, by string) library.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	r := &library.Reader{
		ID:             uuid.New().String(),
		Name:           in.Name,
		Email:          in.Email,
		Phone:          in.Phone,
		Address:        in.Address,
		RegisteredDate: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.readers[r.ID] = r
	c.record(library.ActionReaderAdded, library.EntityReader, r.ID, by, map[string]any{"name": r.Name})
	return *r
}

func (c *catalog) editReader(id string, in library.ReaderInput, by string) (library.Reader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.readers[id]
	if !ok {
		return library.Reader{}, errNotFound
	}
	r.Name, r.Email, r.Phone, r.Address = in.Name, in.Email, in.Phone, in.Address
	r.UpdatedAt = c.now()
	c.record(library.ActionReaderUpdated, library.EntityReader, r.ID, by, map[string]any{"name": r.Name})
	return *r, nil
}

func (c *catalog) removeReader(id, by string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.readers[id]
	if !ok {
		return errNotFound
	}
	for _, l := range c.lending {
		if l.readerID == id && l.returnDate == nil {
			return errOnLoan
		}
	}
	delete(c.readers, id)
	c.record(library.ActionReaderDeleted, library.EntityReader, id, by, map[string]any{"name": r.Name})
	return nil
}

// view renders a record with its current book and reader. Callers hold c.mu.
func (c *catalog) view(l *lendingRecord, now time.Time) library.LendingTransaction {
	tx := library.LendingTransaction{
		ID:         l.id,
		BorrowDate: l.borrowDate,
		DueDate:    l.dueDate,
		ReturnDate: l.returnDate,
		FineAmount: l.fine,
		CreatedAt:  l.createdAt,
		UpdatedAt:  l.updatedAt,
	}
	if b, ok := c.books[l.bookID]; ok {
		tx.Book = *b
	} else {
		tx.Book = library.Book{ID: l.bookID}
	}
	if r, ok := c.readers[l.readerID]; ok {
		tx.Reader = *r
	} else {
		tx.Reader = library.Reader{ID: l.readerID}
	}
	switch {
	case l.returnDate != nil:
		tx.Status = library.StatusReturned
	case now.After(l.dueDate):
		tx.Status = library.StatusOverdue
	default:
		tx.Status = library.StatusBorrowed
	}
	return tx
}

func (c *catalog) transactions(keep func(*lendingRecord) bool) []library.LendingTransaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	out := make([]library.LendingTransaction, 0)
	for _, l := range c.lending {
		if keep == nil || keep(l) {
			out = append(out, c.view(l, now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BorrowDate.After(out[j].BorrowDate) || (out[i].BorrowDate.Equal(out[j].BorrowDate) && out[i].ID < out[j].ID) })
	return out
}

func (c *catalog) overdue() []library.OverdueBook {
	now := c.now()
	txs := c.transactions(func(l *lendingRecord) bool {
		return l.returnDate == nil && now.After(l.dueDate)
	})
	out := make([]library.OverdueBook, 0, len(txs))
	for _, tx := range txs {
		out = append(out, library.OverdueBook{LendingTransaction: tx, DaysOverdue: library.DaysOverdue(tx.DueDate, now)})
	}
	return out
}

func (c *catalog) lend(req library.LendRequest, by string) (library.LendingTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[req.BookID]
	if !ok {
		return library.LendingTransaction{}, errNotFound
	}
	r, ok := c.readers[req.ReaderID]
	if !ok {
		return library.LendingTransaction{}, errNotFound
	}
	if b.AvailableCopies < 1 {
		return library.LendingTransaction{}, errUnavailable
	}

	now := c.now()
	b.AvailableCopies--
	b.UpdatedAt = now
	l := &lendingRecord{
		id:         uuid.New().String(),
		bookID:     b.ID,
		readerID:   r.ID,
		borrowDate: now,
		dueDate:    now.Add(loanPeriod),
		createdAt:  now,
		updatedAt:  now,
	}
	c.lending[l.id] = l
	c.record(library.ActionBookLent, library.EntityLending, l.id, by, map[string]any{"bookTitle": b.Title, "readerName": r.Name})
	return c.view(l, now), nil
}

func (c *catalog) returnBook(id string, req library.ReturnRequest, by string) (library.LendingTransaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lending[id]
	if !ok {
		return library.LendingTransaction{}, errNotFound
	}
	if l.returnDate != nil {
		return library.LendingTransaction{}, errReturned
	}

	now := c.now()
	returned := now
	if req.ReturnDate != nil {
		returned = *req.ReturnDate
	}
	l.returnDate = &returned
	l.fine = req.FineAmount
	l.updatedAt = now

	details := map[string]any{}
	if b, ok := c.books[l.bookID]; ok {
		b.AvailableCopies++
		b.UpdatedAt = now
		details["bookTitle"] = b.Title
	}
	if r, ok := c.readers[l.readerID]; ok {
		details["readerName"] = r.Name
	}
	c.record(library.ActionBookReturned, library.EntityLending, l.id, by, details)
	return c.view(l, now), nil
}

// notifyOverdue counts the requested readers that actually have overdue books.
func (c *catalog) notifyOverdue(readerIDs []string, by string) int {
	wanted := make(map[string]struct{}, len(readerIDs))
	for _, id := range readerIDs {
		wanted[strings.TrimSpace(id)] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	notified := map[string]struct{}{}
	for _, l := range c.lending {
		if l.returnDate != nil || !now.After(l.dueDate) {
			continue
		}
		if _, ok := wanted[l.readerID]; ok {
			notified[l.readerID] = struct{}{}
		}
	}
	c.record(library.ActionOverdueNotifySent, "", "", by, map[string]any{"sentCount": len(notified)})
	return len(notified)
}

func (c *catalog) auditLogs() []library.AuditLog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]library.AuditLog, len(c.audit))
	copy(out, c.audit)
	return out
}

// backdate moves a lending record's dates back by d so tests can create overdue loans.
func (c *catalog) backdate(id string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lending[id]
	if !ok {
		return errNotFound
	}
	l.borrowDate = l.borrowDate.Add(-d)
	l.dueDate = l.dueDate.Add(-d)
	return nil
}
