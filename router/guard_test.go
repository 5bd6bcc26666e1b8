package router_test

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-cooking-client/router"
)

type fakeChecker struct {
	authenticated atomic.Bool
	checks        atomic.Int32
}

func (f *fakeChecker) CheckStatus(context.Context) bool {
	f.checks.Add(1)
	return f.authenticated.Load()
}

type countingPrompter struct {
	n atomic.Int32
}

func (p *countingPrompter) PromptLogin(context.Context) {
	p.n.Add(1)
}

type testFixture struct {
	stack   *router.Stack
	checker *fakeChecker
	guard   *router.Guard
}

func setupTestFixture(t *testing.T, options ...router.Option) *testFixture {
	t.Helper()
	stack := router.NewStack(router.HomePath)
	checker := &fakeChecker{}
	options = append([]router.Option{router.WithThrottle(0)}, options...)
	return &testFixture{
		stack:   stack,
		checker: checker,
		guard:   router.New(router.DefaultRoutes(), stack, checker, nil, options...),
	}
}

func TestGuard_UnprotectedNavigation(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	require.NoError(t, f.guard.Go(ctx, router.ForgotPasswordPath+"?from=auth", url.Values{"step": {"1"}}, router.Options{}))
	require.Equal(t, router.ForgotPasswordPath+"?from=auth&step=1", f.stack.Current())
	require.Zero(t, f.checker.checks.Load())
}

func TestGuard_ProtectedNavigation(t *testing.T) {
	ctx := context.Background()

	t.Run("signed out opens the auth page instead", func(t *testing.T) {
		f := setupTestFixture(t)
		err := f.guard.Go(ctx, router.SettingsPath, nil, router.Options{})
		require.ErrorIs(t, err, router.ErrAuthRequired)

		want := []string{router.HomePath, router.AuthPath + "?redirect=" + url.QueryEscape(router.SettingsPath)}
		if diff := cmp.Diff(want, f.stack.Pages()); diff != "" {
			t.Fatalf("pages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("signed in navigates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.checker.authenticated.Store(true)
		require.NoError(t, f.guard.Go(ctx, router.SettingsPath, nil, router.Options{}))
		require.Equal(t, router.SettingsPath, f.stack.Current())
		require.Equal(t, int32(1), f.checker.checks.Load())
	})

	t.Run("custom prompter", func(t *testing.T) {
		stack := router.NewStack(router.HomePath)
		prompter := &countingPrompter{}
		guard := router.New(router.DefaultRoutes(), stack, &fakeChecker{}, prompter, router.WithThrottle(0))

		require.ErrorIs(t, guard.Go(ctx, router.SettingsPath, nil, router.Options{}), router.ErrAuthRequired)
		require.Equal(t, int32(1), prompter.n.Load())
		require.Equal(t, []string{router.HomePath}, stack.Pages())
	})
}

func TestGuard_UnknownRoute(t *testing.T) {
	f := setupTestFixture(t)
	err := f.guard.Go(context.Background(), "/pages/nowhere", nil, router.Options{})
	require.ErrorIs(t, err, router.ErrUnknownRoute)
	require.Equal(t, []string{router.HomePath}, f.stack.Pages())
}

func TestGuard_NavigationKinds(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	require.NoError(t, f.guard.Go(ctx, router.ForgotPasswordPath, nil, router.Options{}))
	require.NoError(t, f.guard.Redirect(ctx, router.AuthPath, nil))
	require.Equal(t, []string{router.HomePath, router.AuthPath}, f.stack.Pages())

	require.NoError(t, f.guard.Go(ctx, "https://example.com/recipe?id=1", nil, router.Options{}))
	top, err := url.Parse(f.stack.Current())
	require.NoError(t, err)
	require.Equal(t, router.WebviewPath, top.Path)
	require.Equal(t, "https://example.com/recipe?id=1", top.Query().Get("url"))

	require.NoError(t, f.guard.Back(ctx, 5))
	require.Equal(t, []string{router.HomePath}, f.stack.Pages())

	require.NoError(t, f.guard.Go(ctx, router.AuthPath, nil, router.Options{}))
	require.NoError(t, f.guard.Go(ctx, router.SearchPath+"?q=soup", nil, router.Options{}))
	require.Equal(t, []string{router.HomePath, router.AuthPath, router.SearchPath + "?q=soup"}, f.stack.Pages())

	require.NoError(t, f.guard.Error(ctx, 404, "not found"))
	require.Equal(t, []string{router.HomePath, router.AuthPath, router.ErrorPath + "?errCode=404&errMsg=not+found"}, f.stack.Pages())

	require.NoError(t, f.guard.Error(ctx, 500, ""))
	require.Equal(t, router.ErrorPath+"?errCode=500", f.stack.Current())
}

func TestGuard_TabBarSwitch(t *testing.T) {
	ctx := context.Background()
	table := router.NewTable(
		router.Descriptor{Path: router.HomePath, Title: "Home", TabBar: true},
		router.Descriptor{Path: router.AuthPath, Title: "Sign in"},
	)
	stack := router.NewStack(router.HomePath)
	guard := router.New(table, stack, &fakeChecker{}, nil, router.WithThrottle(0))

	require.NoError(t, guard.Go(ctx, router.AuthPath, nil, router.Options{}))
	require.NoError(t, guard.Go(ctx, router.HomePath+"?tab=1", url.Values{"x": {"y"}}, router.Options{}))
	require.Equal(t, []string{router.HomePath}, stack.Pages())
}

func TestGuard_Throttle(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, router.WithThrottle(50*time.Millisecond))

	require.NoError(t, f.guard.Go(ctx, router.AuthPath, nil, router.Options{}))
	require.ErrorIs(t, f.guard.Go(ctx, router.ForgotPasswordPath, nil, router.Options{}), router.ErrThrottled)
	require.Equal(t, router.AuthPath, f.stack.Current())

	// The error page and the login prompt bypass the throttle.
	require.NoError(t, f.guard.Error(ctx, 500, ""))
	f.guard.PromptLogin(ctx)
	require.Equal(t, router.AuthPath, f.stack.Current())

	require.Eventually(t, func() bool {
		return f.guard.Go(ctx, router.ForgotPasswordPath, nil, router.Options{}) == nil
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, router.ForgotPasswordPath, f.stack.Current())
}

func TestTable_Lookup(t *testing.T) {
	table := router.DefaultRoutes()

	d, err := table.Lookup("pages/home/settings/?tab=1")
	require.NoError(t, err)
	require.True(t, d.RequiresAuth)

	_, err = table.Lookup("/pages/unknown")
	require.ErrorIs(t, err, router.ErrUnknownRoute)
	require.Len(t, table.Paths(), 7)
}
