package mockbackend

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TokenPair is a pair handed out by the login and refresh endpoints.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// tokenIssuer signs access tokens with HMAC-SHA256 and hands out opaque
// refresh tokens. Fixed pairs queued with WithTokenSequence are used first.
type tokenIssuer struct {
	secret []byte
	issuer string
	queued []TokenPair
}

func newTokenIssuer(secret string) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), issuer: "cooking-mock"}
}

func (ti *tokenIssuer) issue(userID int64, tenantID string, now time.Time, ttl time.Duration) (TokenPair, error) {
	if len(ti.queued) > 0 {
		next := ti.queued[0]
		ti.queued = ti.queued[1:]
		return next, nil
	}

	claims := jwt.MapClaims{
		"iss":    ti.issuer,
		"sub":    strconv.FormatInt(userID, 10),
		"tenant": tenantID,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
		"jti":    uuid.New().String(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "failed to sign access token")
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: strings.ReplaceAll(uuid.New().String(), "-", ""),
	}, nil
}

// verify checks signature and expiry of a token issued by issue. Queued fixed
// tokens are not JWTs and are accepted on the session table alone.
func (ti *tokenIssuer) verify(raw string, now time.Time) error {
	if strings.Count(raw, ".") != 2 {
		return nil
	}
	_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.secret, nil
	},
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	return err
}
