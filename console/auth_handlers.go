package console

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/notify"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/server"
)

type loginPageResponse struct {
	Phase string `json:"phase"`
}

type toast struct {
	Level   notify.Level `json:"level"`
	Message string       `json:"message"`
}

// LoginPageHandler reports the session phase, or sends a signed-in user on to the
// dashboard.
func (c *Console) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := c.app.Session.State()
		if state.IsAuthenticated() {
			http.Redirect(w, r, routes.RouteDashboard, http.StatusSeeOther)
			return
		}
		server.WriteJSON(w, http.StatusOK, loginPageResponse{Phase: state.Phase.String()})
	}
}

// LoginHandler accepts a JSON body or a form post with name and password.
func (c *Console) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				server.WriteMessage(w, http.StatusBadRequest, "Invalid form")
				return
			}
			req.Name = r.PostForm.Get("name")
			req.Password = r.PostForm.Get("password")
		} else if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if _, err := c.app.Session.Login(r.Context(), req); err != nil {
			c.writeError(w, r, err)
			return
		}
		http.Redirect(w, r, c.app.History.Current(), http.StatusSeeOther)
	}
}

func (c *Console) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.app.Session.Logout(r.Context())
		http.Redirect(w, r, c.app.History.Current(), http.StatusSeeOther)
	}
}

func (c *Console) SignupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.SignupRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		resp, err := c.app.Auth.Signup(r.Context(), req)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, resp.Message)
		server.WriteJSON(w, http.StatusCreated, resp)
	}
}

func (c *Console) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		msg, err := c.app.Auth.ForgotPassword(r.Context(), req.Email)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		server.WriteMessage(w, http.StatusOK, msg)
	}
}

func (c *Console) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.ResetPasswordRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		msg, err := c.app.Auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), req)
		if err != nil {
			c.writeError(w, r, err)
			return
		}
		notify.Success(c.app.Notifier, msg)
		http.Redirect(w, r, routes.RouteLogin, http.StatusSeeOther)
	}
}

// ToastsHandler drains the notifications raised since the last call.
func (c *Console) ToastsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages := c.app.Notes.Drain()
		out := make([]toast, 0, len(messages))
		for _, m := range messages {
			out = append(out, toast{Level: m.Level, Message: m.Text})
		}
		server.WriteJSON(w, http.StatusOK, out)
	}
}
