package fakebackend

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/auth"
	"github.com/jrsteele09/bookclub-admin/library"
	"github.com/jrsteele09/bookclub-admin/server"
)

const minPasswordLength = 6

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     APIPrefix + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.refresh.expiry.Seconds()),
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     APIPrefix + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		server.WriteMessage(w, http.StatusBadRequest, "Please provide name, email and password")
		return
	}
	if len(req.Password) < minPasswordLength {
		server.WriteMessage(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	user, err := s.accounts.create(req.Name, req.Email, req.Password, s.now())
	if errors.Is(err, errAccountExists) {
		server.WriteMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("signup failed")
		server.WriteMessage(w, http.StatusInternalServerError, "Signup failed")
		return
	}
	s.catalog.Record(library.ActionUserSignup, library.EntityUser, user.ID, user.Name, nil)
	server.WriteJSON(w, http.StatusCreated, auth.SignupResponse{User: user, Message: "User registered successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, ok := s.accounts.authenticate(req.Name, req.Password)
	if !ok {
		server.WriteMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, err := s.access.create(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("access token creation failed")
		server.WriteMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}
	refresh, err := s.refresh.create(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("refresh token creation failed")
		server.WriteMessage(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.setRefreshCookie(w, refresh)
	s.catalog.Record(library.ActionUserLogin, library.EntityUser, user.ID, user.Name, nil)
	server.WriteJSON(w, http.StatusOK, auth.LoginResponse{User: user, Token: access, Message: "Login successful"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		s.refresh.delete(c.Value)
	}
	s.clearRefreshCookie(w)
	server.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil || c.Value == "" {
		server.WriteMessage(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}
	userID, replacement, err := s.refresh.rotate(c.Value)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			s.clearRefreshCookie(w)
		}
		server.WriteMessage(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	access, err := s.access.create(userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("access token creation failed")
		server.WriteMessage(w, http.StatusInternalServerError, "Refresh failed")
		return
	}
	s.setRefreshCookie(w, replacement)
	server.WriteJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (auth.User, bool) {
	id, ok := server.SubjectFromContext(r.Context())
	if !ok {
		server.WriteMessage(w, http.StatusUnauthorized, "Not authorized")
		return auth.User{}, false
	}
	user, err := s.accounts.get(id)
	if err != nil {
		server.WriteMessage(w, http.StatusUnauthorized, "Not authorized, user not found")
		return auth.User{}, false
	}
	return user, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if status := s.profileFailure(); status != 0 {
		server.WriteMessage(w, status, "Failed to load user profile")
		return
	}
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	server.WriteJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var update auth.ProfileUpdate
	if err := server.DecodeJSON(r, &update); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	updated, err := s.accounts.update(user.ID, update, s.now())
	if errors.Is(err, errAccountExists) {
		server.WriteMessage(w, http.StatusBadRequest, "Name or email already in use")
		return
	}
	if err != nil {
		server.WriteMessage(w, http.StatusNotFound, "User not found")
		return
	}
	server.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	var req auth.ChangePasswordRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !s.accounts.checkPassword(user.ID, req.CurrentPassword) {
		server.WriteMessage(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if len(req.NewPassword) < minPasswordLength || req.NewPassword != req.ConfirmNewPassword {
		server.WriteMessage(w, http.StatusBadRequest, "New passwords do not match or are too short")
		return
	}
	if err := s.accounts.setPassword(user.ID, req.NewPassword); err != nil {
		server.WriteMessage(w, http.StatusInternalServerError, "Password change failed")
		return
	}
	server.WriteMessage(w, http.StatusOK, "Password changed successfully")
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := server.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		server.WriteMessage(w, http.StatusBadRequest, "Please provide an email")
		return
	}
	// Unknown addresses get the same answer so accounts cannot be enumerated.
	if id, ok := s.accounts.idByEmail(req.Email); ok {
		if _, err := s.resets.create(id); err != nil {
			server.WriteMessage(w, http.StatusInternalServerError, "Could not create reset token")
			return
		}
	}
	server.WriteMessage(w, http.StatusOK, "If that email is registered, a reset link has been sent")
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.NewPassword) < minPasswordLength || req.NewPassword != req.ConfirmNewPassword {
		server.WriteMessage(w, http.StatusBadRequest, "New passwords do not match or are too short")
		return
	}
	id, ok := s.resets.consume(chi.URLParam(r, "token"))
	if !ok {
		server.WriteMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err := s.accounts.setPassword(id, req.NewPassword); err != nil {
		server.WriteMessage(w, http.StatusInternalServerError, "Password reset failed")
		return
	}
	server.WriteMessage(w, http.StatusOK, "Password has been reset")
}
