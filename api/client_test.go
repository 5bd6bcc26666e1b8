package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/credentials"
)

type stubTokens struct {
	token string
}

func (s *stubTokens) AccessToken(context.Context) (string, error) {
	if s.token == "" {
		return "", credentials.ErrNotFound
	}
	return s.token, nil
}

type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingInvalidator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type countingPrompter struct {
	n atomic.Int32
}

func (p *countingPrompter) PromptLogin(context.Context) {
	p.n.Add(1)
}

type testFixture struct {
	server      *httptest.Server
	hits        atomic.Int32
	lastRequest *http.Request
	handler     http.HandlerFunc
	tokens      *stubTokens
	invalidator *recordingInvalidator
	prompter    *countingPrompter
	busy        *api.BusyCounter
	client      *api.Client
}

func setupTestFixture(t *testing.T, handler http.HandlerFunc) *testFixture {
	t.Helper()

	f := &testFixture{
		handler:     handler,
		tokens:      &stubTokens{},
		invalidator: &recordingInvalidator{},
		prompter:    &countingPrompter{},
		busy:        &api.BusyCounter{},
	}
	var mu sync.Mutex
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		mu.Lock()
		f.lastRequest = r.Clone(context.Background())
		mu.Unlock()
		f.handler(w, r)
	}))
	t.Cleanup(f.server.Close)

	f.client = api.NewClient(api.Backend{
		Name:     api.AppBackend,
		BaseURL:  f.server.URL,
		BasePath: "/app-api",
		TenantID: "1",
		Platform: "cli",
		Terminal: "20",
		Timeout:  2 * time.Second,
	},
		api.WithTokenReader(f.tokens),
		api.WithInvalidator(f.invalidator),
		api.WithLoginPrompter(f.prompter),
		api.WithBusyIndicator(f.busy),
	)
	return f
}

func writeEnvelope(w http.ResponseWriter, status, code int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "data": data, "msg": msg})
}

func TestClient_AttachesHeaders(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, 0, map[string]string{"name": "soup"}, "")
	})

	t.Run("with token", func(t *testing.T) {
		f.tokens.token = "A1"
		var out struct{ Name string }
		err := f.client.Get(context.Background(), "/cooking/app/recipe/1", url.Values{"x": {"y"}}, &out)
		require.NoError(t, err)
		require.Equal(t, "soup", out.Name)

		req := f.lastRequest
		require.Equal(t, "/app-api/cooking/app/recipe/1", req.URL.Path)
		require.Equal(t, "y", req.URL.Query().Get("x"))
		require.Equal(t, "Bearer A1", req.Header.Get(api.HeaderAuthorization))
		require.Equal(t, "1", req.Header.Get(api.HeaderTenantID))
		require.Equal(t, "cli", req.Header.Get(api.HeaderPlatform))
		require.Equal(t, "20", req.Header.Get(api.HeaderTerminal))
		require.NotEmpty(t, req.Header.Get(api.HeaderRequestID))
	})

	t.Run("without token", func(t *testing.T) {
		f.tokens.token = ""
		require.NoError(t, f.client.Get(context.Background(), "/cooking/app/category/list", nil, nil))
		require.Empty(t, f.lastRequest.Header.Get(api.HeaderAuthorization))
		require.Equal(t, "1", f.lastRequest.Header.Get(api.HeaderTenantID))
	})

	t.Run("query carried in path", func(t *testing.T) {
		require.NoError(t, f.client.Post(context.Background(), "/system/auth/refresh-token?refreshToken=R1", nil, nil))
		require.Equal(t, "R1", f.lastRequest.URL.Query().Get("refreshToken"))
		require.Equal(t, http.MethodPost, f.lastRequest.Method)
	})
}

func TestClient_RequiresAuthWithoutToken(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, 0, nil, "")
	})

	err := f.client.Do(context.Background(), api.Request{
		Method:       http.MethodPost,
		Path:         "/cooking/app/recipe/1/favorite",
		RequiresAuth: true,
	}, nil)
	require.ErrorIs(t, err, api.ErrLoginRequired)
	require.Equal(t, int32(0), f.hits.Load())
	require.Equal(t, int32(1), f.prompter.n.Load())
	require.Zero(t, f.invalidator.count())
}

func TestClient_ResponseKinds(t *testing.T) {
	tests := []struct {
		name             string
		handler          http.HandlerFunc
		check            func(error) bool
		wantInvalidation bool
	}{
		{
			name: "envelope 401",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, 401, nil, "token expired")
			},
			check:            api.IsUnauthorized,
			wantInvalidation: true,
		},
		{
			name: "http 401 without envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			},
			check:            api.IsUnauthorized,
			wantInvalidation: true,
		},
		{
			name: "business error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, 1002000000, nil, "bad password")
			},
			check: api.IsBusiness,
		},
		{
			name: "non json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			check: api.IsTransport,
		},
		{
			name: "malformed data",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, http.StatusOK, 0, "not an object", "")
			},
			check: api.IsTransport,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t, tt.handler)
			f.tokens.token = "A1"

			var out struct{ Name string }
			err := f.client.Get(context.Background(), "/anything", nil, &out)
			require.Error(t, err)
			require.True(t, tt.check(err), "unexpected error kind: %v", err)
			if tt.wantInvalidation {
				require.Equal(t, 1, f.invalidator.count())
			} else {
				require.Zero(t, f.invalidator.count())
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {})
	f.server.Close()

	err := f.client.Get(context.Background(), "/cooking/app/category/list", nil, nil)
	require.True(t, api.IsTransport(err))
	require.Zero(t, f.invalidator.count())
	require.False(t, f.busy.Busy())
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	f := setupTestFixture(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.client.Get(ctx, "/slow", nil, nil)
	require.True(t, api.IsTransport(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBusyCounter(t *testing.T) {
	var b api.BusyCounter
	b.End()
	require.Equal(t, int64(0), b.Count())

	b.Begin()
	b.Begin()
	require.True(t, b.Busy())
	b.End()
	b.End()
	b.End()
	require.Equal(t, int64(0), b.Count())
	require.False(t, b.Busy())
}

func TestClients_SharedHooks(t *testing.T) {
	var adminHits, appHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path[:len("/admin-api")] == "/admin-api" {
			adminHits.Add(1)
		} else {
			appHits.Add(1)
		}
		writeEnvelope(w, http.StatusOK, 401, nil, "expired")
	}))
	defer server.Close()

	admin := api.Backend{Name: api.AdminBackend, BaseURL: server.URL, BasePath: "/admin-api", TenantID: "1"}
	app := api.Backend{Name: api.AppBackend, BaseURL: server.URL, BasePath: "/app-api", TenantID: "1"}
	clients := api.NewClients(admin, app, api.WithTokenReader(&stubTokens{token: "A1"}))
	inv := &recordingInvalidator{}
	clients.SetInvalidator(inv)

	require.True(t, api.IsUnauthorized(clients.Admin.Get(context.Background(), "/system/auth/get-permission-info", nil, nil)))
	require.True(t, api.IsUnauthorized(clients.App.Get(context.Background(), "/cooking/app/recipe/favorites", nil, nil)))
	require.Equal(t, 2, inv.count())
	require.Equal(t, int32(1), adminHits.Load())
	require.Equal(t, int32(1), appHits.Load())
}
