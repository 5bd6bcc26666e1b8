package main

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/internal/app"
	"github.com/jrsteele09/go-cooking-client/internal/config"
	"github.com/jrsteele09/go-cooking-client/internal/mockbackend"
	"github.com/jrsteele09/go-cooking-client/router"
)

// demoConfig points the client at an in-process backend with a memory store.
type demoConfig struct {
	config.Config
	baseURL string
}

func (c demoConfig) GetBaseURL() string { return c.baseURL }
func (c demoConfig) GetAdminAPIPath() string { return "/admin-api" }
func (c demoConfig) GetAppAPIPath() string { return "/app-api" }
func (c demoConfig) GetTenantID() string { return mockbackend.DefaultTenantID }
func (c demoConfig) GetStoreDriver() string { return config.StoreDriverMemory }
func (c demoConfig) GetNavThrottle() time.Duration { return 0 }

func demoCommand(c config.Config) *cobra.Command {
	var accessTTL time.Duration
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through a session against an in-process mock backend",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		displayAppname(c.GetAppName())

		mock := mockbackend.New(mockbackend.WithAccessTokenTTL(accessTTL))
		srv := httptest.NewServer(mock)
		defer srv.Close()

		cfg := demoConfig{Config: c, baseURL: srv.URL}
		return runWithApp(cmd.Context(), cfg, cmd.OutOrStdout(), nil, func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
			return runDemo(ctx, a, mock, out, accessTTL)
		})
	}
	cmd.Flags().DurationVar(&accessTTL, "access-ttl", 2*time.Second, "lifetime of access tokens issued by the mock backend")
	return cmd
}

func runDemo(ctx context.Context, a *app.App, mock *mockbackend.Server, out io.Writer, accessTTL time.Duration) error {
	step := func(format string, args ...any) {
		fmt.Fprintf(out, "\n==> "+format+"\n", args...)
	}

	step("opening settings while signed out")
	err := a.Router.Go(ctx, router.SettingsPath, nil, router.Options{})
	fmt.Fprintf(out, "result: %v\npage:   %s\n", err, a.Pages.Current())

	step("signing in as %s", mockbackend.DefaultAdminUsername)
	if err := a.Session.Login(ctx, auth.PasswordLogin{
		Username: mockbackend.DefaultAdminUsername,
		Password: mockbackend.DefaultAdminPassword,
	}); err != nil {
		return err
	}
	printState(out, a.Session.State())
	if target := redirectTarget(a.Pages.Current()); target != "" {
		if err := a.Router.Redirect(ctx, target, nil); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "page:   %s\n", a.Pages.Current())

	step("adding a favourite")
	if err := a.Cooking.Favorite(ctx, 2); err != nil {
		return err
	}

	step("waiting %s for the access token to expire", accessTTL)
	select {
	case <-time.After(accessTTL):
	case <-ctx.Done():
		return ctx.Err()
	}
	fmt.Fprintf(out, "authenticated: %v (checked with one refresh call: %d)\n",
		a.Session.CheckStatus(ctx), mock.Calls(mockbackend.RouteRefreshToken))
	page, err := a.Cooking.Favorites(ctx)
	if err != nil {
		return err
	}
	printRecipes(out, page.List)

	step("backend revokes the session")
	mock.ExpireAccessTokens()
	_, err = a.Cooking.Favorites(ctx)
	fmt.Fprintf(out, "unauthorized: %v\nstatus:       %s\npage:         %s\n",
		api.IsUnauthorized(err), a.Session.Status(), a.Pages.Current())

	step("signing in again and out")
	if err := a.Session.Login(ctx, auth.MobilePasswordLogin{
		Mobile:   mockbackend.DefaultAdminMobile,
		Password: mockbackend.DefaultAdminPassword,
	}); err != nil {
		return err
	}
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	printState(out, a.Session.State())
	fmt.Fprintf(out, "backend calls: %d\n", mock.TotalCalls())
	return nil
}

// redirectTarget extracts the page the auth screen should return to.
func redirectTarget(page string) string {
	u, err := url.Parse(page)
	if err != nil || u.Path != router.AuthPath {
		return ""
	}
	return u.Query().Get("redirect")
}
