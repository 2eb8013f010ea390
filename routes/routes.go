package routes

import (
	"net/url"
	"strings"
)

// Navigational routes of the admin application.
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteRoot = "/"

	// Public auth routes
	RouteLogin          = "/login"
	RouteSignup         = "/signup"
	RouteForgotPassword = "/forgot-password"
	RouteResetPassword  = "/reset-password/" // followed by the reset token

	// Protected routes
	RouteDashboard     = "/dashboard"
	RouteReaders       = "/dashboard/readers"
	RouteBooks         = "/dashboard/books"
	RouteLending       = "/dashboard/lending"
	RouteOverdue       = "/dashboard/overdue"
	RouteNotifications = "/dashboard/notifications"
	RouteAuditLog      = "/dashboard/audit-log"
	RouteProfile       = "/dashboard/profile"
)

// Backend REST endpoints, relative to the API base URL.
const (
	APIAuthLogin          = "/auth/login"
	APIAuthSignup         = "/auth/signup"
	APIAuthLogout         = "/auth/logout"
	APIAuthRefreshToken   = "/auth/refresh-token"
	APIAuthMe             = "/auth/me"
	APIAuthChangePassword = "/auth/change-password"
	APIAuthForgotPassword = "/auth/forgot-password"
	APIAuthResetPassword  = "/auth/reset-password/" // followed by the reset token

	APIBooks         = "/books"
	APIReaders       = "/readers"
	APILending       = "/lending"
	APILendingOver   = "/lending/overdue"
	APILendingBook   = "/lending/book/"
	APILendingReader = "/lending/reader/"
	APIAuditLogs     = "/audit-logs"
	APISendOverdue   = "/notifications/send-overdue-emails"
)

// IsPublicAuth reports whether path is reachable without a session: login, signup,
// forgot-password and any reset-password link.
func IsPublicAuth(path string) bool {
	switch path {
	case RouteLogin, RouteSignup, RouteForgotPassword:
		return true
	}
	return strings.HasPrefix(path, RouteResetPassword)
}

// ResetPasswordPath builds the reset-password route for token.
func ResetPasswordPath(token string) string {
	return RouteResetPassword + token
}

// APIResetPasswordPath builds the backend endpoint that consumes a reset token.
func APIResetPasswordPath(token string) string {
	return APIAuthResetPassword + url.PathEscape(token)
}
