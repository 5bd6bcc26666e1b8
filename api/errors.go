package api

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/pkg/errors"
)

// ErrLoginRequired is returned without sending when an auth-required request
// has no stored token.
var ErrLoginRequired = apperrors.ErrLoginRequired

// Kind classifies a failed call.
type Kind int

const (
	// KindTransport means no envelope was received: dial error, timeout,
	// non-JSON body or a non-2xx status without an envelope.
	KindTransport Kind = iota
	// KindUnauthorized means the backend rejected the credentials (code 401).
	KindUnauthorized
	// KindBusiness means the backend answered with a non-zero code other than 401.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindBusiness:
		return "business"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error describes a failed backend call.
type Error struct {
	Kind    Kind
	Backend string
	Method  string
	Path    string
	Status  int    // HTTP status, 0 when no response arrived
	Code    int    // envelope code
	Msg     string // envelope message
	Err     error  // underlying cause for transport failures
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTransport:
		if e.Err != nil {
			return fmt.Sprintf("%s %s %s: transport error: %v", e.Backend, e.Method, e.Path, e.Err)
		}
		return fmt.Sprintf("%s %s %s: transport error: http status %d", e.Backend, e.Method, e.Path, e.Status)
	default:
		return fmt.Sprintf("%s %s %s: %s (code %d): %s", e.Backend, e.Method, e.Path, e.Kind, e.Code, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func kindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsUnauthorized reports whether err is a 401 from either backend.
func IsUnauthorized(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindUnauthorized
}

// IsBusiness reports whether err is a non-401 backend rejection.
func IsBusiness(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindBusiness
}

// IsTransport reports whether err carries no backend answer.
func IsTransport(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransport
}
