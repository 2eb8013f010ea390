package auth

import "errors"

var (
	NameRequiredErr       = errors.New("name is required")
	NameTooShortErr       = errors.New("name must be at least 2 characters")
	EmailRequiredErr      = errors.New("email is required")
	EmailInvalidErr       = errors.New("invalid email address")
	PasswordRequiredErr   = errors.New("password is required")
	PasswordTooShortErr   = errors.New("password must be at least 6 characters")
	PasswordsDontMatchErr = errors.New("passwords do not match")
	ResetTokenRequiredErr = errors.New("reset token is required")
	EmptyProfileUpdateErr = errors.New("profile update has no fields")
)
