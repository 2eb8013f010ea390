package auth

import (
	"fmt"
	"regexp"
	"strings"

	liberrors "github.com/jrsteele09/bookclub-admin/internal/errors"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator holds the client-side precondition checks run before a request is sent.
// Every failure wraps ErrInvalidRequest.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLogin requires a name and a password. Length rules are the backend's business.
func (v *Validator) ValidateLogin(req LoginRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("ValidateLogin", NameRequiredErr)
	}
	if req.Password == "" {
		return invalid("ValidateLogin", PasswordRequiredErr)
	}
	return nil
}

func (v *Validator) ValidateSignup(req SignupRequest) error {
	if err := v.validateName(req.Name); err != nil {
		return invalid("ValidateSignup", err)
	}
	if err := v.ValidateEmail(req.Email); err != nil {
		return invalid("ValidateSignup", err)
	}
	if err := v.validateNewPassword(req.Password); err != nil {
		return invalid("ValidateSignup", err)
	}
	return nil
}

// ValidateProfileUpdate checks only the fields present in the update.
func (v *Validator) ValidateProfileUpdate(update ProfileUpdate) error {
	if update.Name == nil && update.Email == nil {
		return invalid("ValidateProfileUpdate", EmptyProfileUpdateErr)
	}
	if update.Name != nil {
		if err := v.validateName(*update.Name); err != nil {
			return invalid("ValidateProfileUpdate", err)
		}
	}
	if update.Email != nil {
		if err := v.ValidateEmail(*update.Email); err != nil {
			return invalid("ValidateProfileUpdate", err)
		}
	}
	return nil
}

func (v *Validator) ValidateChangePassword(req ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return invalid("ValidateChangePassword", PasswordRequiredErr)
	}
	if err := v.validatePasswordPair(req.NewPassword, req.ConfirmNewPassword); err != nil {
		return invalid("ValidateChangePassword", err)
	}
	return nil
}

func (v *Validator) ValidateResetPassword(token string, req ResetPasswordRequest) error {
	if strings.TrimSpace(token) == "" {
		return invalid("ValidateResetPassword", ResetTokenRequiredErr)
	}
	if err := v.validatePasswordPair(req.NewPassword, req.ConfirmNewPassword); err != nil {
		return invalid("ValidateResetPassword", err)
	}
	return nil
}

// ValidateEmail checks the address has a local part, an @ and a dotted domain.
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return EmailRequiredErr
	}
	if !emailPattern.MatchString(email) {
		return EmailInvalidErr
	}
	return nil
}

func (v *Validator) validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NameRequiredErr
	}
	if len(name) < minNameLength {
		return NameTooShortErr
	}
	return nil
}

func (v *Validator) validateNewPassword(password string) error {
	if password == "" {
		return PasswordRequiredErr
	}
	if len(password) < minPasswordLength {
		return PasswordTooShortErr
	}
	return nil
}

func (v *Validator) validatePasswordPair(password, confirm string) error {
	if err := v.validateNewPassword(password); err != nil {
		return err
	}
	if password != confirm {
		return PasswordsDontMatchErr
	}
	return nil
}

func invalid(op string, err error) error {
	return fmt.Errorf("[auth.%s] %w: %w", op, liberrors.ErrInvalidRequest, err)
}
