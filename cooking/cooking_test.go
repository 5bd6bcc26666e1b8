package cooking_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/cooking"
	"github.com/jrsteele09/go-cooking-client/credentials"
	"github.com/jrsteele09/go-cooking-client/credentials/repofake"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/internal/mockbackend"
)

type testFixture struct {
	mock    *mockbackend.Server
	store   *credentials.KVStore
	auth    *auth.Service
	service *cooking.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	mock := mockbackend.New()
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	store, _ := repofake.NewFakeStore()
	backend := api.Backend{BaseURL: srv.URL, TenantID: "1", Platform: "cli"}
	admin, app := backend, backend
	admin.Name, admin.BasePath = api.AdminBackend, "/admin-api"
	app.Name, app.BasePath = api.AppBackend, "/app-api"
	clients := api.NewClients(admin, app, api.WithTokenReader(store))

	return &testFixture{
		mock:    mock,
		store:   store,
		auth:    auth.NewService(clients.Admin),
		service: cooking.NewService(clients.App),
	}
}

func (f *testFixture) signIn(t *testing.T) {
	t.Helper()
	pair, err := f.auth.Login(context.Background(), auth.PasswordLogin{
		Username: mockbackend.DefaultAdminUsername,
		Password: mockbackend.DefaultAdminPassword,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveTokens(context.Background(), pair))
}

func TestService_Browse(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	categories, err := f.service.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 3)

	t.Run("paging", func(t *testing.T) {
		page, err := f.service.RecipePage(ctx, cooking.PageQuery{PageNo: 2, PageSize: 3})
		require.NoError(t, err)
		require.Equal(t, int64(4), page.Total)
		require.Len(t, page.List, 1)
	})

	t.Run("by category", func(t *testing.T) {
		page, err := f.service.RecipePage(ctx, cooking.PageQuery{CategoryID: categories[0].ID})
		require.NoError(t, err)
		require.Equal(t, int64(2), page.Total)
		for _, r := range page.List {
			require.Equal(t, categories[0].ID, r.CategoryID)
		}
	})

	t.Run("invalid paging is rejected locally", func(t *testing.T) {
		f.mock.ResetCalls()
		_, err := f.service.RecipePage(ctx, cooking.PageQuery{PageSize: 1000})
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		_, err = f.service.Popular(ctx, 0)
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		require.Zero(t, f.mock.TotalCalls())
	})

	t.Run("popular", func(t *testing.T) {
		popular, err := f.service.Popular(ctx, 2)
		require.NoError(t, err)
		require.Len(t, popular, 2)
		require.GreaterOrEqual(t, popular[0].Views, popular[1].Views)
	})

	t.Run("recipe", func(t *testing.T) {
		r, err := f.service.Recipe(ctx, 2)
		require.NoError(t, err)
		require.Equal(t, "Scallion oil noodles", r.Title)
		require.NotEmpty(t, r.Steps)

		_, err = f.service.Recipe(ctx, 999)
		var apiErr *api.Error
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, api.KindBusiness, apiErr.Kind)
		require.Equal(t, mockbackend.CodeRecipeNotFound, apiErr.Code)
	})
}

func TestService_Favorites(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	t.Run("signed out is refused without a request", func(t *testing.T) {
		f.mock.ResetCalls()
		_, err := f.service.Favorites(ctx)
		require.ErrorIs(t, err, api.ErrLoginRequired)
		require.ErrorIs(t, f.service.Favorite(ctx, 1), api.ErrLoginRequired)
		require.Zero(t, f.mock.TotalCalls())
	})

	f.signIn(t)

	require.NoError(t, f.service.Favorite(ctx, 1))
	require.NoError(t, f.service.Favorite(ctx, 3))
	favs, err := f.service.Favorites(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), favs.Total)

	r, err := f.service.Recipe(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), r.Favorites)

	require.NoError(t, f.service.Unfavorite(ctx, 1))
	favs, err = f.service.Favorites(ctx)
	require.NoError(t, err)
	require.Len(t, favs.List, 1)
	require.Equal(t, int64(3), favs.List[0].ID)

	require.True(t, api.IsBusiness(f.service.Favorite(ctx, 999)))
}

func TestService_ExpiredTokenIsUnauthorized(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)
	f.signIn(t)
	f.mock.ExpireAccessTokens()

	_, err := f.service.Favorites(ctx)
	require.True(t, api.IsUnauthorized(err))
}
