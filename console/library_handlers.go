package console

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/notify"
	"github.com/jrsteele09/bookclub-admin/server"
	"golang.org/x/sync/errgroup"
)

type dashboardResponse struct {
	User             *auth.User               `json:"user"`
	Stats            *library.Stats           `json:"stats"`
	RecentActivities []library.Activity       `json:"recentActivities"`
	MonthlyLending   []library.MonthlyLending `json:"monthlyLending"`
}

type overdueResponse struct {
	Items     []library.OverdueBook `json:"items"`
	Total     int                   `json:"total"`
	ReaderIDs []string              `json:"readerIds"`
}

// pageParams reads ?page and ?perPage, falling back to the first page of defaultPerPage.
func pageParams(r *http.Request) (page, perPage int) {
	page, perPage = 1, defaultPerPage
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("perPage")); err == nil {
		perPage = v
	}
	return page, perPage
}

func writePage[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, perPage := pageParams(r)
	server.WriteJSON(w, http.StatusOK, library.Paginate(items, page, perPage))
}

func (c *Console) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := dashboardResponse{User: c.app.Session.State().User}
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() (err error) {
			resp.Stats, err = c.app.Library.Stats(ctx)
			return err
		})
		g.Go(func() (err error) {
			resp.RecentActivities, err = c.app.Library.RecentActivities(ctx)
			return err
		})
		g.Go(func() (err error) {
			resp.MonthlyLending, err = c.app.Library.MonthlyLending(ctx)
			return err
		})
		if err := g.Wait(); err != nil {
			c.writeError(w, r, err)
			return
		}
		server.WriteJSON(w, http.StatusOK, resp)
	}
}

func (c *Console) ListBooksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		books, err := c.app.Library.Books(r.Context())
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		writePage(w, r, books)
	}
}

func (c *Console) AddBookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in library.BookInput
		if err := server.DecodeJSON(r, &in); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		book, err := c.app.Library.AddBook(r.Context(), in)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Book added successfully!")
		server.WriteJSON(w, http.StatusCreated, book)
	}
}

func (c *Console) EditBookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in library.BookInput
		if err := server.DecodeJSON(r, &in); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		book, err := c.app.Library.EditBook(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Book updated successfully!")
		server.WriteJSON(w, http.StatusOK, book)
	}
}

func (c *Console) RemoveBookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.app.Library.RemoveBook(r.Context(), chi.URLParam(r, "id")); err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Book deleted successfully!")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Console) BookHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := c.app.Library.HistoryByBook(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		server.WriteJSON(w, http.StatusOK, history)
	}
}

func (c *Console) ListReadersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readers, err := c.app.Library.Readers(r.Context())
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		writePage(w, r, readers)
	}
}

func (c *Console) AddReaderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in library.ReaderInput
		if err := server.DecodeJSON(r, &in); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		reader, err := c.app.Library.AddReader(r.Context(), in)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Reader added successfully!")
		server.WriteJSON(w, http.StatusCreated, reader)
	}
}

func (c *Console) EditReaderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in library.ReaderInput
		if err := server.DecodeJSON(r, &in); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		reader, err := c.app.Library.EditReader(r.Context(), chi.URLParam(r, "id"), in)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Reader updated successfully!")
		server.WriteJSON(w, http.StatusOK, reader)
	}
}

func (c *Console) RemoveReaderHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.app.Library.RemoveReader(r.Context(), chi.URLParam(r, "id")); err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Reader deleted successfully!")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (c *Console) ReaderHistoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := c.app.Library.HistoryByReader(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		server.WriteJSON(w, http.StatusOK, history)
	}
}

func (c *Console) ListLendingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txs, err := c.app.Library.Transactions(r.Context())
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		writePage(w, r, txs)
	}
}

func (c *Console) LendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req library.LendRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		tx, err := c.app.Library.Lend(r.Context(), req)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Book lent successfully!")
		server.WriteJSON(w, http.StatusCreated, tx)
	}
}

func (c *Console) ReturnHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req library.ReturnRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		tx, err := c.app.Library.Return(r.Context(), chi.URLParam(r, "id"), req)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Book returned successfully!")
		server.WriteJSON(w, http.StatusOK, tx)
	}
}

// OverdueHandler lists overdue books filtered by ?q.
func (c *Console) OverdueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overdue, err := c.app.Library.Overdue(r.Context())
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		items := library.FilterOverdue(overdue, r.URL.Query().Get("q"))
		if items == nil {
			items = []library.OverdueBook{}
		}
		server.WriteJSON(w, http.StatusOK, overdueResponse{
			Items:     items,
			Total:     len(items),
			ReaderIDs: library.UniqueReaderIDs(items),
		})
	}
}

// SendNotificationsHandler emails the readers in the body, or every reader with an
// overdue book when the body names none.
func (c *Console) SendNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req library.SendOverdueRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.ReaderIDs) == 0 {
			overdue, err := c.app.Library.Overdue(r.Context())
			if err != nil {
				c.writeError(w, r, err)
				return
			}
			req.ReaderIDs = library.UniqueReaderIDs(overdue)
		}
		if len(req.ReaderIDs) == 0 {
			server.WriteMessage(w, http.StatusBadRequest, "No overdue readers to notify.")
			return
		}

		resp, err := c.app.Library.SendOverdueNotifications(r.Context(), req.ReaderIDs)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, resp.Message)
		server.WriteJSON(w, http.StatusOK, resp)
	}
}

func (c *Console) AuditLogHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := c.app.Library.AuditLogs(r.Context())
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		writePage(w, r, library.RecentActivities(logs, -1))
	}
}

func (c *Console) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server.WriteJSON(w, http.StatusOK, c.app.Session.State().User)
	}
}

func (c *Console) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update auth.ProfileUpdate
		if err := server.DecodeJSON(r, &update); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		user, err := c.app.Auth.UpdateMe(r.Context(), update)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		if err := c.app.Session.UpdateProfile(user); err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, "Profile updated successfully!")
		server.WriteJSON(w, http.StatusOK, user)
	}
}

func (c *Console) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.ChangePasswordRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		msg, err := c.app.Auth.ChangePassword(r.Context(), req)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, msg)
		server.WriteMessage(w, http.StatusOK, msg)
	}
}
