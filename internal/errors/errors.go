package errors

import "errors"

// Common error types for the cooking client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginRequired    = errors.New("login required")

	// Credential storage errors
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrKeyNotFound         = errors.New("key not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")

	// Token errors
	ErrNoRefreshToken         = errors.New("no refresh token")
	ErrInvalidTokenResponse   = errors.New("invalid token response")
	ErrRefreshSuperseded      = errors.New("refresh superseded by a newer session")
	ErrProfileMissingFromInfo = errors.New("permission info has no user")

	// Navigation errors
	ErrUnknownRoute = errors.New("unknown route")
	ErrAuthRequired = errors.New("route requires authentication")
	ErrThrottled    = errors.New("navigation throttled")

	// General errors
	ErrInvalidRequest = errors.New("invalid request")
)
