package auth

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{4,16}$`)
	mobilePattern   = regexp.MustCompile(`^1\d{10}$`)
	smsCodePattern  = regexp.MustCompile(`^\d{4,6}$`)
)

// LoginRequest is one of the supported login variants.
type LoginRequest interface {
	Validate() error
	endpoint() string
}

// PasswordLogin is the username/password form.
type PasswordLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// CaptchaVerification is forwarded untouched when the backend has captcha enabled.
	CaptchaVerification string `json:"captchaVerification,omitempty"`
}

func (PasswordLogin) endpoint() string { return pathLogin }

func (r PasswordLogin) Validate() error {
	if !usernamePattern.MatchString(r.Username) {
		return errors.Wrap(apperrors.ErrInvalidRequest, "username must be 4-16 letters or digits")
	}
	return validatePassword(r.Password)
}

// MobilePasswordLogin logs in with a mobile number and password.
type MobilePasswordLogin struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func (MobilePasswordLogin) endpoint() string { return pathLogin }

func (r MobilePasswordLogin) Validate() error {
	if !mobilePattern.MatchString(r.Mobile) {
		return errors.Wrap(apperrors.ErrInvalidRequest, "mobile must be 11 digits starting with 1")
	}
	return validatePassword(r.Password)
}

// SMSLogin logs in with a mobile number and a code sent by SMS.
type SMSLogin struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

func (SMSLogin) endpoint() string { return pathSMSLogin }

func (r SMSLogin) Validate() error {
	if !mobilePattern.MatchString(r.Mobile) {
		return errors.Wrap(apperrors.ErrInvalidRequest, "mobile must be 11 digits starting with 1")
	}
	if !smsCodePattern.MatchString(r.Code) {
		return errors.Wrap(apperrors.ErrInvalidRequest, "sms code must be 4-6 digits")
	}
	return nil
}

func validatePassword(p string) error {
	if n := len(p); n < 4 || n > 16 || strings.TrimSpace(p) == "" {
		return errors.Wrap(apperrors.ErrInvalidRequest, "password must be 4-16 characters")
	}
	return nil
}
