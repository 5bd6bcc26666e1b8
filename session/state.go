package session

import (
	"time"

	"github.com/jrsteele09/go-cooking-client/credentials"
	"github.com/jrsteele09/go-cooking-client/users"
)

// Status is the controller's lifecycle state.
type Status int

const (
	// StatusUnknown is the state before Initialize has finished.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is a snapshot of the session. IsAuthenticated holds exactly when
// AccessToken is set and User is not nil.
type State struct {
	Status          Status
	IsAuthenticated bool
	User            *users.User
	AccessToken     string
	RefreshToken    string
	ExpiresAt       time.Time // zero when absent
}

// Expired reports whether the access token's expiry has passed at now.
func (s State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func unauthenticatedState() State {
	return State{Status: StatusUnauthenticated}
}

func authenticatedState(creds credentials.StoredCredentials) State {
	return State{
		Status:          StatusAuthenticated,
		IsAuthenticated: creds.AccessToken != "" && creds.User != nil,
		User:            creds.User,
		AccessToken:     creds.AccessToken,
		RefreshToken:    creds.RefreshToken,
		ExpiresAt:       creds.ExpiresAt,
	}
}

func (s State) same(o State) bool {
	return s.Status == o.Status &&
		s.AccessToken == o.AccessToken &&
		s.RefreshToken == o.RefreshToken &&
		s.User == o.User &&
		s.ExpiresAt.Equal(o.ExpiresAt)
}
