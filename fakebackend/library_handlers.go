package fakebackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/server"
)

// performedBy names the librarian making the request, for the audit trail.
func (s *Server) performedBy(r *http.Request) string {
	id, ok := server.SubjectFromContext(r.Context())
	if !ok {
		return "unknown"
	}
	user, err := s.accounts.get(id)
	if err != nil {
		return id
	}
	return user.Name
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		server.WriteMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, errUnavailable):
		server.WriteMessage(w, http.StatusBadRequest, "No copies available to lend")
	case errors.Is(err, errOnLoan):
		server.WriteMessage(w, http.StatusBadRequest, "Copies are still on loan")
	case errors.Is(err, errReturned):
		server.WriteMessage(w, http.StatusBadRequest, "Book already returned")
	default:
		server.WriteMessage(w, http.StatusInternalServerError, err.Error())
	}
}

func validBook(in library.BookInput) bool {
	return strings.TrimSpace(in.Title) != "" && strings.TrimSpace(in.Author) != "" && in.TotalCopies >= 0
}

func validReader(in library.ReaderInput) bool {
	return strings.TrimSpace(in.Name) != "" && strings.TrimSpace(in.Email) != ""
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, s.catalog.listBooks())
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var in library.BookInput
	if err := server.DecodeJSON(r, &in); err != nil || !validBook(in) {
		server.WriteMessage(w, http.StatusBadRequest, "Title and author are required")
		return
	}
	server.WriteJSON(w, http.StatusCreated, s.catalog.addBook(in, s.performedBy(r)))
}

func (s *Server) handleEditBook(w http.ResponseWriter, r *http.Request) {
	var in library.BookInput
	if err := server.DecodeJSON(r, &in); err != nil || !validBook(in) {
		server.WriteMessage(w, http.StatusBadRequest, "Title and author are required")
		return
	}
	book, err := s.catalog.editBook(chi.URLParam(r, "id"), in, s.performedBy(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, book)
}

func (s *Server) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.removeBook(chi.URLParam(r, "id"), s.performedBy(r)); err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteMessage(w, http.StatusOK, "Book removed")
}

func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, s.catalog.listReaders())
}

func (s *Server) handleAddReader(w http.ResponseWriter, r *http.Request) {
	var in library.ReaderInput
	if err := server.DecodeJSON(r, &in); err != nil || !validReader(in) {
		server.WriteMessage(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	server.WriteJSON(w, http.StatusCreated, s.catalog.addReader(in, s.performedBy(r)))
}

func (s *Server) handleEditReader(w http.ResponseWriter, r *http.Request) {
	var in library.ReaderInput
	if err := server.DecodeJSON(r, &in); err != nil || !validReader(in) {
		server.WriteMessage(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	reader, err := s.catalog.editReader(chi.URLParam(r, "id"), in, s.performedBy(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, reader)
}

func (s *Server) handleRemoveReader(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.removeReader(chi.URLParam(r, "id"), s.performedBy(r)); err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteMessage(w, http.StatusOK, "Reader removed")
}

func (s *Server) handleListLending(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, s.catalog.transactions(nil))
}

func (s *Server) handleLend(w http.ResponseWriter, r *http.Request) {
	var req library.LendRequest
	if err := server.DecodeJSON(r, &req); err != nil || req.BookID == "" || req.ReaderID == "" {
		server.WriteMessage(w, http.StatusBadRequest, "bookId and readerId are required")
		return
	}
	tx, err := s.catalog.lend(req, s.performedBy(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req library.ReturnRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	tx, err := s.catalog.returnBook(chi.URLParam(r, "id"), req, s.performedBy(r))
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, tx)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, s.catalog.overdue())
}

func (s *Server) handleHistoryByBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	server.WriteJSON(w, http.StatusOK, s.catalog.transactions(func(l *lendingRecord) bool {
		return l.bookID == id
	}))
}

func (s *Server) handleHistoryByReader(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	server.WriteJSON(w, http.StatusOK, s.catalog.transactions(func(l *lendingRecord) bool {
		return l.readerID == id
	}))
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, s.catalog.auditLogs())
}

func (s *Server) handleSendOverdue(w http.ResponseWriter, r *http.Request) {
	var req library.SendOverdueRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.ReaderIDs) == 0 {
		server.WriteMessage(w, http.StatusBadRequest, "No readers selected")
		return
	}
	sent := s.catalog.notifyOverdue(req.ReaderIDs, s.performedBy(r))
	server.WriteJSON(w, http.StatusOK, library.SendOverdueResponse{
		Message:   "Overdue notifications sent",
		SentCount: sent,
	})
}
