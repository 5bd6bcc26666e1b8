package mockbackend_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/internal/mockbackend"
)

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("tenant-id", "1")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func TestServer_LoginRefreshLogout(t *testing.T) {
	mock := mockbackend.New()
	srv := httptest.NewServer(mock)
	defer srv.Close()

	env := call(t, srv, http.MethodPost, "/admin-api/system/auth/login", "", map[string]string{
		"username": "admin", "password": "wrong",
	})
	require.Equal(t, mockbackend.CodeBadCredentials, env.Code)

	env = call(t, srv, http.MethodPost, "/admin-api/system/auth/login", "", map[string]string{
		"username": "admin", "password": "admin123",
	})
	require.Equal(t, 0, env.Code)
	var tokens struct {
		UserID       int64  `json:"userId"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.Equal(t, int64(1), tokens.UserID)

	env = call(t, srv, http.MethodGet, "/admin-api/system/auth/get-permission-info", tokens.AccessToken, nil)
	require.Equal(t, 0, env.Code)

	t.Run("refresh tokens are single use", func(t *testing.T) {
		env := call(t, srv, http.MethodPost, "/admin-api/system/auth/refresh-token?refreshToken="+tokens.RefreshToken, "", nil)
		require.Equal(t, 0, env.Code)
		env = call(t, srv, http.MethodPost, "/admin-api/system/auth/refresh-token?refreshToken="+tokens.RefreshToken, "", nil)
		require.Equal(t, mockbackend.CodeInvalidRefresh, env.Code)

		// The access token of the consumed pair is revoked too.
		env = call(t, srv, http.MethodGet, "/admin-api/system/auth/get-permission-info", tokens.AccessToken, nil)
		require.Equal(t, mockbackend.CodeUnauthorized, env.Code)
	})

	require.Equal(t, 2, mock.Calls(mockbackend.RouteLogin))
	require.Equal(t, 2, mock.Calls(mockbackend.RouteRefreshToken))
}

func TestServer_FixedTokenSequence(t *testing.T) {
	mock := mockbackend.New(mockbackend.WithTokenSequence(mockbackend.TokenPair{AccessToken: "A1", RefreshToken: "R1"}))
	srv := httptest.NewServer(mock)
	defer srv.Close()

	env := call(t, srv, http.MethodPost, "/admin-api/system/auth/login", "", map[string]string{
		"username": "admin", "password": "admin123",
	})
	require.Equal(t, 0, env.Code)
	require.Contains(t, string(env.Data), `"accessToken":"A1"`)

	env = call(t, srv, http.MethodGet, "/app-api/cooking/app/recipe/favorites", "A1", nil)
	require.Equal(t, 0, env.Code)

	mock.ExpireAccessTokens()
	env = call(t, srv, http.MethodGet, "/app-api/cooking/app/recipe/favorites", "A1", nil)
	require.Equal(t, mockbackend.CodeUnauthorized, env.Code)
}

func TestServer_InjectedFailure(t *testing.T) {
	mock := mockbackend.New()
	srv := httptest.NewServer(mock)
	defer srv.Close()

	mock.FailNext(mockbackend.RouteCategories, mockbackend.Failure{Code: 500, Msg: "boom"})
	env := call(t, srv, http.MethodGet, "/app-api/cooking/app/category/list", "", nil)
	require.Equal(t, 500, env.Code)

	env = call(t, srv, http.MethodGet, "/app-api/cooking/app/category/list", "", nil)
	require.Equal(t, 0, env.Code)
	require.Equal(t, 2, mock.Calls(mockbackend.RouteCategories))
}
