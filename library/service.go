package library

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/routes"
)

// Service wraps the backend's library endpoints: books, readers, lending, audit logs
// and overdue notifications.
type Service struct {
	client *apiclient.Client
	now    func() time.Time
}

type Option func(*Service)

// WithNow sets the clock used to compute days overdue.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(client *apiclient.Client, options ...Option) *Service {
	s := &Service{client: client, now: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Service) Books(ctx context.Context) ([]Book, error) {
	var books []Book
	if err := s.client.Get(ctx, routes.APIBooks, &books); err != nil {
		return nil, fmt.Errorf("[library.Books] %w", err)
	}
	return books, nil
}

func (s *Service) AddBook(ctx context.Context, in BookInput) (*Book, error) {
	var book Book
	if err := s.client.Post(ctx, routes.APIBooks, in, &book); err != nil {
		return nil, fmt.Errorf("[library.AddBook] %w", err)
	}
	return &book, nil
}

func (s *Service) EditBook(ctx context.Context, id string, in BookInput) (*Book, error) {
	var book Book
	if err := s.client.Put(ctx, itemPath(routes.APIBooks, id), in, &book); err != nil {
		return nil, fmt.Errorf("[library.EditBook] %s: %w", id, err)
	}
	return &book, nil
}

func (s *Service) RemoveBook(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, itemPath(routes.APIBooks, id)); err != nil {
		return fmt.Errorf("[library.RemoveBook] %s: %w", id, err)
	}
	return nil
}

func (s *Service) Readers(ctx context.Context) ([]Reader, error) {
	var readers []Reader
	if err := s.client.Get(ctx, routes.APIReaders, &readers); err != nil {
		return nil, fmt.Errorf("[library.Readers] %w", err)
	}
	return readers, nil
}

func (s *Service) AddReader(ctx context.Context, in ReaderInput) (*Reader, error) {
	var reader Reader
	if err := s.client.Post(ctx, routes.APIReaders, in, &reader); err != nil {
		return nil, fmt.Errorf("[library.AddReader] %w", err)
	}
	return &reader, nil
}

func (s *Service) EditReader(ctx context.Context, id string, in ReaderInput) (*Reader, error) {
	var reader Reader
	if err := s.client.Put(ctx, itemPath(routes.APIReaders, id), in, &reader); err != nil {
		return nil, fmt.Errorf("[library.EditReader] %s: %w", id, err)
	}
	return &reader, nil
}

func (s *Service) RemoveReader(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, itemPath(routes.APIReaders, id)); err != nil {
		return fmt.Errorf("[library.RemoveReader] %s: %w", id, err)
	}
	return nil
}

// Transactions lists every lending transaction.
func (s *Service) Transactions(ctx context.Context) ([]LendingTransaction, error) {
	var txs []LendingTransaction
	if err := s.client.Get(ctx, routes.APILending, &txs); err != nil {
		return nil, fmt.Errorf("[library.Transactions] %w", err)
	}
	return txs, nil
}

func (s *Service) Lend(ctx context.Context, req LendRequest) (*LendingTransaction, error) {
	var tx LendingTransaction
	if err := s.client.Post(ctx, routes.APILending, req, &tx); err != nil {
		return nil, fmt.Errorf("[library.Lend] %w", err)
	}
	return &tx, nil
}

func (s *Service) Return(ctx context.Context, transactionID string, req ReturnRequest) (*LendingTransaction, error) {
	var tx LendingTransaction
	path := itemPath(routes.APILending, transactionID) + "/return"
	if err := s.client.Put(ctx, path, req, &tx); err != nil {
		return nil, fmt.Errorf("[library.Return] %s: %w", transactionID, err)
	}
	return &tx, nil
}

func (s *Service) HistoryByBook(ctx context.Context, bookID string) ([]LendingTransaction, error) {
	var txs []LendingTransaction
	if err := s.client.Get(ctx, routes.APILendingBook+url.PathEscape(bookID), &txs); err != nil {
		return nil, fmt.Errorf("[library.HistoryByBook] %s: %w", bookID, err)
	}
	return txs, nil
}

func (s *Service) HistoryByReader(ctx context.Context, readerID string) ([]LendingTransaction, error) {
	var txs []LendingTransaction
	if err := s.client.Get(ctx, routes.APILendingReader+url.PathEscape(readerID), &txs); err != nil {
		return nil, fmt.Errorf("[library.HistoryByReader] %s: %w", readerID, err)
	}
	return txs, nil
}

// Overdue lists overdue transactions with DaysOverdue recomputed against the local clock.
func (s *Service) Overdue(ctx context.Context) ([]OverdueBook, error) {
	var overdue []OverdueBook
	if err := s.client.Get(ctx, routes.APILendingOver, &overdue); err != nil {
		return nil, fmt.Errorf("[library.Overdue] %w", err)
	}
	now := s.now()
	for i := range overdue {
		overdue[i].DaysOverdue = DaysOverdue(overdue[i].DueDate, now)
	}
	return overdue, nil
}

func (s *Service) AuditLogs(ctx context.Context) ([]AuditLog, error) {
	var logs []AuditLog
	if err := s.client.Get(ctx, routes.APIAuditLogs, &logs); err != nil {
		return nil, fmt.Errorf("[library.AuditLogs] %w", err)
	}
	return logs, nil
}

// SendOverdueNotifications asks the backend to email the given readers about their
// overdue books.
func (s *Service) SendOverdueNotifications(ctx context.Context, readerIDs []string) (*SendOverdueResponse, error) {
	var resp SendOverdueResponse
	if err := s.client.Post(ctx, routes.APISendOverdue, SendOverdueRequest{ReaderIDs: readerIDs}, &resp); err != nil {
		return nil, fmt.Errorf("[library.SendOverdueNotifications] %w", err)
	}
	return &resp, nil
}

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
