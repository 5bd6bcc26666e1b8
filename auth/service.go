// Package auth wraps the admin backend's authentication endpoints.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/credentials"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/users"
)

const (
	pathLogin          = "/system/auth/login"
	pathSMSLogin       = "/system/auth/sms-login"
	pathRefreshToken   = "/system/auth/refresh-token"
	pathPermissionInfo = "/system/auth/get-permission-info"
	pathLogout         = "/system/auth/logout"
)

// ErrInvalidTokenResponse is returned when login or refresh succeeds but the
// payload lacks a token or expiry.
var ErrInvalidTokenResponse = apperrors.ErrInvalidTokenResponse

// TokenResponse is the data of a successful login or refresh.
type TokenResponse struct {
	UserID       int64  `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresTime  int64  `json:"expiresTime"` // epoch millis
}

// Pair converts the response into a storable token pair.
func (r *TokenResponse) Pair() (credentials.TokenPair, error) {
	if r == nil || r.AccessToken == "" || r.RefreshToken == "" || r.ExpiresTime <= 0 {
		return credentials.TokenPair{}, ErrInvalidTokenResponse
	}
	return credentials.TokenPair{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    time.UnixMilli(r.ExpiresTime),
	}, nil
}

// Service calls the admin auth endpoints.
type Service struct {
	client *api.Client
}

func NewService(admin *api.Client) *Service {
	return &Service{client: admin}
}

// Login validates req locally and exchanges it for a token pair.
func (s *Service) Login(ctx context.Context, req LoginRequest) (credentials.TokenPair, error) {
	if req == nil {
		return credentials.TokenPair{}, errors.Wrap(apperrors.ErrInvalidRequest, "[Service.Login] nil request")
	}
	if err := req.Validate(); err != nil {
		return credentials.TokenPair{}, errors.Wrap(err, "[Service.Login]")
	}

	var resp TokenResponse
	if err := s.client.Post(ctx, req.endpoint(), req, &resp); err != nil {
		return credentials.TokenPair{}, errors.Wrap(err, "[Service.Login]")
	}
	pair, err := resp.Pair()
	if err != nil {
		return credentials.TokenPair{}, errors.Wrap(err, "[Service.Login]")
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. Refresh tokens are single use.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (credentials.TokenPair, error) {
	if refreshToken == "" {
		return credentials.TokenPair{}, apperrors.ErrNoRefreshToken
	}

	var resp TokenResponse
	req := api.Request{
		Method: http.MethodPost,
		Path:   pathRefreshToken,
		Query:  url.Values{"refreshToken": {refreshToken}},
	}
	if err := s.client.Do(ctx, req, &resp); err != nil {
		return credentials.TokenPair{}, errors.Wrap(err, "[Service.Refresh]")
	}
	pair, err := resp.Pair()
	if err != nil {
		return credentials.TokenPair{}, errors.Wrap(err, "[Service.Refresh]")
	}
	return pair, nil
}

// PermissionInfo fetches the signed-in user's profile, roles and menus.
func (s *Service) PermissionInfo(ctx context.Context) (*users.PermissionInfo, error) {
	var info users.PermissionInfo
	req := api.Request{Method: http.MethodGet, Path: pathPermissionInfo, RequiresAuth: true}
	if err := s.client.Do(ctx, req, &info); err != nil {
		return nil, errors.Wrap(err, "[Service.PermissionInfo]")
	}
	if info.User == nil {
		return nil, errors.Wrap(apperrors.ErrProfileMissingFromInfo, "[Service.PermissionInfo]")
	}
	return &info, nil
}

// Profile returns just the user of PermissionInfo.
func (s *Service) Profile(ctx context.Context) (*users.User, error) {
	info, err := s.PermissionInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// Logout tells the backend to revoke the current token.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.client.Post(ctx, pathLogout, nil, nil); err != nil {
		log.Debug().Err(err).Msg("backend logout failed")
		return errors.Wrap(err, "[Service.Logout]")
	}
	return nil
}
