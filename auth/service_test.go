package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/credentials"
	"github.com/jrsteele09/go-cooking-client/credentials/repofake"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/internal/mockbackend"
)

type testFixture struct {
	mock    *mockbackend.Server
	store   *credentials.KVStore
	service *auth.Service
}

func setupTestFixture(t *testing.T, options ...mockbackend.Option) *testFixture {
	t.Helper()

	mock := mockbackend.New(options...)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	store, _ := repofake.NewFakeStore()
	client := api.NewClient(api.Backend{
		Name:     api.AdminBackend,
		BaseURL:  srv.URL,
		BasePath: "/admin-api",
		TenantID: "1",
		Platform: "cli",
	}, api.WithTokenReader(store))

	return &testFixture{mock: mock, store: store, service: auth.NewService(client)}
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, mockbackend.WithTokenSequence(mockbackend.TokenPair{AccessToken: "A1", RefreshToken: "R1"}))

	t.Run("bad password is a business error", func(t *testing.T) {
		_, err := f.service.Login(ctx, auth.PasswordLogin{Username: "admin", Password: "nope1"})
		require.True(t, api.IsBusiness(err))
	})

	t.Run("password login", func(t *testing.T) {
		pair, err := f.service.Login(ctx, auth.PasswordLogin{Username: "admin", Password: "admin123"})
		require.NoError(t, err)
		require.Equal(t, "A1", pair.AccessToken)
		require.Equal(t, "R1", pair.RefreshToken)
		require.False(t, pair.ExpiresAt.IsZero())
	})

	t.Run("mobile password login", func(t *testing.T) {
		pair, err := f.service.Login(ctx, auth.MobilePasswordLogin{Mobile: mockbackend.DefaultAdminMobile, Password: "admin123"})
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
	})

	t.Run("sms login", func(t *testing.T) {
		f.mock.SetSMSCode(mockbackend.DefaultAdminMobile, "8888")
		pair, err := f.service.Login(ctx, auth.SMSLogin{Mobile: mockbackend.DefaultAdminMobile, Code: "8888"})
		require.NoError(t, err)
		require.NotEmpty(t, pair.RefreshToken)
	})
}

func TestService_LoginValidation(t *testing.T) {
	f := setupTestFixture(t)
	tests := []struct {
		name string
		req  auth.LoginRequest
	}{
		{name: "short username", req: auth.PasswordLogin{Username: "ab", Password: "admin123"}},
		{name: "symbols in username", req: auth.PasswordLogin{Username: "adm-in", Password: "admin123"}},
		{name: "long password", req: auth.PasswordLogin{Username: "admin", Password: "0123456789abcdefg"}},
		{name: "bad mobile", req: auth.MobilePasswordLogin{Mobile: "12345", Password: "admin123"}},
		{name: "bad sms code", req: auth.SMSLogin{Mobile: mockbackend.DefaultAdminMobile, Code: "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), tt.req)
			require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		})
	}
	require.Zero(t, f.mock.TotalCalls())
}

func TestService_RefreshAndProfile(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	_, err := f.service.Profile(ctx)
	require.ErrorIs(t, err, api.ErrLoginRequired)

	pair, err := f.service.Login(ctx, auth.PasswordLogin{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveTokens(ctx, pair))

	user, err := f.service.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	next, err := f.service.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, next.AccessToken)

	_, err = f.service.Refresh(ctx, pair.RefreshToken)
	require.True(t, api.IsBusiness(err))

	_, err = f.service.Refresh(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrNoRefreshToken)
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	pair, err := f.service.Login(ctx, auth.PasswordLogin{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveTokens(ctx, pair))

	require.NoError(t, f.service.Logout(ctx))
	require.Zero(t, f.mock.ActiveAccessTokens())

	f.mock.FailNext(mockbackend.RouteLogout, mockbackend.Failure{Transport: true})
	require.True(t, api.IsTransport(f.service.Logout(ctx)))
}

func TestTokenResponse_Pair(t *testing.T) {
	_, err := (&auth.TokenResponse{AccessToken: "a", RefreshToken: "r"}).Pair()
	require.ErrorIs(t, err, auth.ErrInvalidTokenResponse)

	pair, err := (&auth.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresTime: 1767225600000}).Pair()
	require.NoError(t, err)
	require.Equal(t, int64(1767225600000), pair.ExpiresAt.UnixMilli())
}
