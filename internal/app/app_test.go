package app_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/credentials"
	"github.com/jrsteele09/go-cooking-client/internal/app"
	"github.com/jrsteele09/go-cooking-client/internal/config"
	"github.com/jrsteele09/go-cooking-client/internal/mockbackend"
	"github.com/jrsteele09/go-cooking-client/router"
)

type testFixture struct {
	mock *mockbackend.Server
	app  *app.App
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mock := mockbackend.New()
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	t.Setenv("BASE_URL", srv.URL)
	t.Setenv("TENANT_ID", "1")
	t.Setenv("STORE_DRIVER", config.StoreDriverMemory)
	t.Setenv("NAV_THROTTLE", "0s")

	a, err := app.New(context.Background(), config.New(), app.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return &testFixture{mock: mock, app: a}
}

func TestApp_SignedOutFlow(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.app.Initialize(ctx))
	require.False(t, f.app.Session.IsAuthenticated())

	err := f.app.Router.Go(ctx, router.SettingsPath, nil, router.Options{})
	require.ErrorIs(t, err, router.ErrAuthRequired)
	require.Equal(t, router.AuthPath+"?redirect="+url.QueryEscape(router.SettingsPath), f.app.Pages.Current())

	_, err = f.app.Cooking.Favorites(ctx)
	require.ErrorIs(t, err, api.ErrLoginRequired)
	require.Equal(t, router.AuthPath, f.app.Pages.Current())

	categories, err := f.app.Cooking.Categories(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	require.False(t, f.app.Busy.Busy())
}

func TestApp_UnauthorizedSignsOutAndPrompts(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	require.NoError(t, f.app.Initialize(ctx))

	require.NoError(t, f.app.Session.Login(ctx, auth.PasswordLogin{
		Username: mockbackend.DefaultAdminUsername,
		Password: mockbackend.DefaultAdminPassword,
	}))
	require.NoError(t, f.app.Router.Go(ctx, router.SettingsPath, nil, router.Options{}))
	require.Equal(t, router.SettingsPath, f.app.Pages.Current())
	require.NoError(t, f.app.Cooking.Favorite(ctx, 1))

	f.mock.ExpireAccessTokens()
	_, err := f.app.Cooking.Favorites(ctx)
	require.True(t, api.IsUnauthorized(err))

	require.False(t, f.app.Session.IsAuthenticated())
	require.Equal(t, router.AuthPath, f.app.Pages.Current())
	_, err = f.app.Store.Load(ctx)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

type storageConfig struct {
	driver string
	folder string
}

func (c storageConfig) GetDataFolder() string { return c.folder }
func (c storageConfig) GetStoreDriver() string { return c.driver }
func (c storageConfig) GetStorageRetries() uint64 { return 1 }

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	creds := credentials.StoredCredentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.UnixMilli(time.Now().Add(time.Hour).UnixMilli()),
	}

	for _, driver := range []string{config.StoreDriverMemory, config.StoreDriverFile, config.StoreDriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			store, closer, err := app.OpenStore(ctx, storageConfig{driver: driver, folder: t.TempDir()}, zerolog.Nop())
			require.NoError(t, err)
			if closer != nil {
				t.Cleanup(func() { require.NoError(t, closer.Close()) })
			}

			require.NoError(t, store.SaveTokens(ctx, creds.Tokens()))
			token, err := store.AccessToken(ctx)
			require.NoError(t, err)
			require.Equal(t, "access", token)
			require.NoError(t, store.Clear(ctx))
		})
	}

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := app.OpenStore(ctx, storageConfig{driver: "etcd"}, zerolog.Nop())
		require.Error(t, err)
	})
}
