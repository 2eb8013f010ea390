package library

import (
	"fmt"
	"time"
)

type Book struct {
	ID              string    `json:"_id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Genre           string    `json:"genre"`
	PublicationYear int       `json:"publicationYear"`
	Publisher       string    `json:"publisher"`
	AvailableCopies int       `json:"availableCopies"`
	TotalCopies     int       `json:"totalCopies"`
	CreatedAt       time.Time `json:"createdAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt,omitempty"`
}

// BookInput is the body of POST /books and PUT /books/{id}.
type BookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Genre           string `json:"genre"`
	PublicationYear int    `json:"publicationYear"`
	Publisher       string `json:"publisher"`
	TotalCopies     int    `json:"totalCopies"`
}

type Reader struct {
	ID             string    `json:"_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	RegisteredDate time.Time `json:"registeredDate"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// ReaderInput is the body of POST /readers and PUT /readers/{id}.
type ReaderInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type LendingStatus string

const (
	StatusBorrowed LendingStatus = "borrowed"
	StatusReturned LendingStatus = "returned"
	StatusOverdue  LendingStatus = "overdue"
)

// Lent reports whether the copy is still out with the reader.
func (s LendingStatus) Lent() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

type LendingTransaction struct {
	ID         string        `json:"_id"`
	Book       Book          `json:"book"`
	Reader     Reader        `json:"reader"`
	BorrowDate time.Time     `json:"borrowDate"`
	DueDate    time.Time     `json:"dueDate"`
	ReturnDate *time.Time    `json:"returnDate,omitempty"`
	Status     LendingStatus `json:"status"`
	FineAmount float64       `json:"fineAmount,omitempty"`
	CreatedAt  time.Time     `json:"createdAt,omitempty"`
	UpdatedAt  time.Time     `json:"updatedAt,omitempty"`
}

type LendRequest struct {
	BookID   string `json:"bookId"`
	ReaderID string `json:"readerId"`
}

// ReturnRequest is the body of PUT /lending/{id}/return. Zero fields are omitted and
// left to the backend.
type ReturnRequest struct {
	ReturnDate *time.Time    `json:"returnDate,omitempty"`
	Status     LendingStatus `json:"status,omitempty"`
	FineAmount float64       `json:"fineAmount,omitempty"`
}

// OverdueBook is a lending transaction past its due date.
type OverdueBook struct {
	LendingTransaction
	DaysOverdue int `json:"daysOverdue"`
}

type EntityType string

const (
	EntityBook    EntityType = "Book"
	EntityReader  EntityType = "Reader"
	EntityLending EntityType = "LendingTransaction"
	EntityUser    EntityType = "User"
)

// Audit actions recorded by the backend.
const (
	ActionUserSignup        = "USER_SIGNUP"
	ActionUserLogin         = "USER_LOGIN"
	ActionBookAdded         = "BOOK_ADDED"
	ActionBookUpdated       = "BOOK_UPDATED"
	ActionBookDeleted       = "BOOK_DELETED"
	ActionReaderAdded       = "READER_ADDED"
	ActionReaderUpdated     = "READER_UPDATED"
	ActionReaderDeleted     = "READER_DELETED"
	ActionBookLent          = "BOOK_LENT"
	ActionBookReturned      = "BOOK_RETURNED"
	ActionOverdueNotifySent = "OVERDUE_NOTIFICATIONS_SENT"
)

type AuditLog struct {
	ID          string         `json:"_id"`
	Action      string         `json:"action"`
	EntityType  EntityType     `json:"entityType,omitempty"`
	EntityID    string         `json:"entityId,omitempty"`
	PerformedBy string         `json:"performedBy"`
	Timestamp   time.Time      `json:"timestamp"`
	Details     map[string]any `json:"details,omitempty"`
}

// Detail returns the string form of details[key], or "" when absent.
func (a AuditLog) Detail(key string) string {
	v, ok := a.Details[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

type SendOverdueRequest struct {
	ReaderIDs []string `json:"readerIds"`
}

type SendOverdueResponse struct {
	Message   string `json:"message"`
	SentCount int    `json:"sentCount,omitempty"`
}
