package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/bookclub-admin/apiclient"
	"github.com/jrsteele09/bookclub-admin/refresh"
	"github.com/jrsteele09/bookclub-admin/routes"
)

// Service wraps the backend's /auth endpoints. Every call goes through the api client, so
// a stale access token is refreshed once and auth failures reach the session layer.
type Service struct {
	client    *apiclient.Client
	validator *Validator
}

func NewService(client *apiclient.Client) *Service {
	return &Service{
		client:    client,
		validator: NewValidator(),
	}
}

// anonymousPost builds a credential request: no bearer header, and a 401 is an answer
// for the caller rather than a stale session.
func anonymousPost(path string, body any) *apiclient.Request {
	return &apiclient.Request{Method: http.MethodPost, Path: path, Body: body, Anonymous: true}
}

// Login posts the credentials and returns the user and access token. It does not touch
// the token store; the session layer decides what to do with the result.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, err
	}
	var resp LoginResponse
	if err := s.client.Call(ctx, anonymousPost(routes.APIAuthLogin, req), &resp); err != nil {
		return nil, fmt.Errorf("[auth.Login] %w", err)
	}
	return &resp, nil
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	if err := s.validator.ValidateSignup(req); err != nil {
		return nil, err
	}
	var resp SignupResponse
	if err := s.client.Call(ctx, anonymousPost(routes.APIAuthSignup, req), &resp); err != nil {
		return nil, fmt.Errorf("[auth.Signup] %w", err)
	}
	return &resp, nil
}

// Logout asks the backend to drop the refresh cookie.
func (s *Service) Logout(ctx context.Context) (string, error) {
	var resp MessageResponse
	if err := s.client.Post(ctx, routes.APIAuthLogout, nil, &resp); err != nil {
		return "", fmt.Errorf("[auth.Logout] %w", err)
	}
	return resp.Message, nil
}

// RefreshToken calls the refresh endpoint through the client. A 401/403 here is terminal
// and never triggers another refresh.
func (s *Service) RefreshToken(ctx context.Context) (string, error) {
	var resp refresh.TokenResponse
	if err := s.client.Post(ctx, routes.APIAuthRefreshToken, nil, &resp); err != nil {
		return "", fmt.Errorf("[auth.RefreshToken] %w", err)
	}
	return resp.AccessToken, nil
}

// Me fetches the current user's profile.
func (s *Service) Me(ctx context.Context) (*User, error) {
	var user User
	if err := s.client.Get(ctx, routes.APIAuthMe, &user); err != nil {
		return nil, fmt.Errorf("[auth.Me] %w", err)
	}
	return &user, nil
}

func (s *Service) UpdateMe(ctx context.Context, update ProfileUpdate) (*User, error) {
	if err := s.validator.ValidateProfileUpdate(update); err != nil {
		return nil, err
	}
	var user User
	if err := s.client.Do(ctx, http.MethodPut, routes.APIAuthMe, update, &user); err != nil {
		return nil, fmt.Errorf("[auth.UpdateMe] %w", err)
	}
	return &user, nil
}

func (s *Service) ChangePassword(ctx context.Context, req ChangePasswordRequest) (string, error) {
	if err := s.validator.ValidateChangePassword(req); err != nil {
		return "", err
	}
	var resp MessageResponse
	if err := s.client.Put(ctx, routes.APIAuthChangePassword, req, &resp); err != nil {
		return "", fmt.Errorf("[auth.ChangePassword] %w", err)
	}
	return resp.Message, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := s.validator.ValidateEmail(email); err != nil {
		return "", invalid("ForgotPassword", err)
	}
	var resp MessageResponse
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	if err := s.client.Call(ctx, anonymousPost(routes.APIAuthForgotPassword, body), &resp); err != nil {
		return "", fmt.Errorf("[auth.ForgotPassword] %w", err)
	}
	return resp.Message, nil
}

func (s *Service) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (string, error) {
	if err := s.validator.ValidateResetPassword(token, req); err != nil {
		return "", err
	}
	var resp MessageResponse
	if err := s.client.Call(ctx, anonymousPost(routes.APIResetPasswordPath(token), req), &resp); err != nil {
		return "", fmt.Errorf("[auth.ResetPassword] %w", err)
	}
	return resp.Message, nil
}
