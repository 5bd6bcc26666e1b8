package credentials

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/users"
	"github.com/pkg/errors"
)

// Persisted entry names. Each field of a session is stored as its own entry.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUserInfo     = "userInfo"
	KeyExpiresTime  = "expiresTime"
)

// Keys lists every persisted entry. KeyExpiresTime is last: it is the entry
// whose presence marks a complete record.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUserInfo, KeyExpiresTime}

var (
	// ErrNotFound is returned by Load when no complete record is stored.
	ErrNotFound = apperrors.ErrCredentialsNotFound
	// ErrKeyNotFound is returned by a KV when a single entry is missing.
	ErrKeyNotFound = apperrors.ErrKeyNotFound
	// ErrInvalid is returned by Save when the record is incomplete.
	ErrInvalid = apperrors.ErrInvalidCredentials
)

// TokenPair is the token half of a session as returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// StoredCredentials is a persisted session: the four entries read and written as a unit.
type StoredCredentials struct {
	AccessToken  string
	RefreshToken string
	User         *users.User
	ExpiresAt    time.Time
}

// Tokens returns the token half of the record.
func (c StoredCredentials) Tokens() TokenPair {
	return TokenPair{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken, ExpiresAt: c.ExpiresAt}
}

// Validate checks that every field is present.
func (c StoredCredentials) Validate() error {
	switch {
	case c.AccessToken == "":
		return errors.Wrap(ErrInvalid, "missing access token")
	case c.RefreshToken == "":
		return errors.Wrap(ErrInvalid, "missing refresh token")
	case c.User == nil:
		return errors.Wrap(ErrInvalid, "missing user")
	case c.ExpiresAt.IsZero():
		return errors.Wrap(ErrInvalid, "missing expiry")
	}
	return nil
}

// Store persists a single session.
type Store interface {
	// Load returns the stored record, or ErrNotFound when nothing usable is stored.
	// A partially written or corrupt record is reported as ErrNotFound.
	Load(ctx context.Context) (*StoredCredentials, error)
	// Save writes all four entries as a unit.
	Save(ctx context.Context, creds StoredCredentials) error
	// SaveTokens writes the tokens and expiry and removes the user entry, so the
	// access token is attachable while Load still reports no session.
	SaveTokens(ctx context.Context, tokens TokenPair) error
	// Clear removes all four entries.
	Clear(ctx context.Context) error
	// AccessToken reads the access token entry on its own.
	AccessToken(ctx context.Context) (string, error)
}

// FormatExpiry encodes an expiry as epoch milliseconds.
func FormatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseExpiry decodes an epoch milliseconds string.
func ParseExpiry(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "[ParseExpiry] invalid expiry")
	}
	if ms <= 0 {
		return time.Time{}, errors.New("[ParseExpiry] non-positive expiry")
	}
	return time.UnixMilli(ms), nil
}

// Encode renders a record as its four entries.
func Encode(creds StoredCredentials) (map[string]string, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return nil, errors.Wrap(err, "[Encode] marshal user")
	}
	return map[string]string{
		KeyAccessToken:  creds.AccessToken,
		KeyRefreshToken: creds.RefreshToken,
		KeyUserInfo:     string(userJSON),
		KeyExpiresTime:  FormatExpiry(creds.ExpiresAt),
	}, nil
}

// Decode rebuilds a record from its entries. Any missing, empty or unparsable
// entry yields ErrNotFound so a half-populated session is never surfaced.
func Decode(entries map[string]string) (*StoredCredentials, error) {
	for _, k := range Keys {
		if strings.TrimSpace(entries[k]) == "" {
			return nil, errors.Wrapf(ErrNotFound, "entry %q missing", k)
		}
	}
	expiresAt, err := ParseExpiry(entries[KeyExpiresTime])
	if err != nil {
		return nil, errors.Wrap(ErrNotFound, err.Error())
	}
	var user users.User
	if err := json.Unmarshal([]byte(entries[KeyUserInfo]), &user); err != nil {
		return nil, errors.Wrap(ErrNotFound, "user entry is not valid JSON")
	}
	if user.ID == 0 && user.Username == "" {
		return nil, errors.Wrap(ErrNotFound, "user entry is empty")
	}
	return &StoredCredentials{
		AccessToken:  entries[KeyAccessToken],
		RefreshToken: entries[KeyRefreshToken],
		User:         &user,
		ExpiresAt:    expiresAt,
	}, nil
}
