package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/cooking"
	"github.com/jrsteele09/go-cooking-client/internal/app"
	"github.com/jrsteele09/go-cooking-client/router"
)

type appRunner func(appFunc) func(*cobra.Command, []string) error

type loginFlags struct {
	username string
	password string
	mobile   string
	smsCode  string
	captcha  string
}

// request picks the login variant from the flags that are set.
func (f loginFlags) request() (auth.LoginRequest, error) {
	switch {
	case f.mobile != "" && f.smsCode != "":
		return auth.SMSLogin{Mobile: f.mobile, Code: f.smsCode}, nil
	case f.mobile != "":
		return auth.MobilePasswordLogin{Mobile: f.mobile, Password: f.password}, nil
	case f.username != "":
		return auth.PasswordLogin{Username: f.username, Password: f.password, CaptchaVerification: f.captcha}, nil
	default:
		return nil, errors.New("either --username or --mobile is required")
	}
}

func loginCommand(withApp appRunner) *cobra.Command {
	var flags loginFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		req, err := flags.request()
		if err != nil {
			return err
		}
		if err := a.Session.Login(ctx, req); err != nil {
			return err
		}
		fmt.Fprintf(out, "signed in as %s\n", a.Session.User().DisplayName())
		return nil
	})

	f := cmd.Flags()
	f.StringVarP(&flags.username, "username", "u", "", "account name")
	f.StringVarP(&flags.password, "password", "p", "", "account password")
	f.StringVar(&flags.mobile, "mobile", "", "mobile number, for mobile or SMS login")
	f.StringVar(&flags.smsCode, "sms-code", "", "one-time SMS code")
	f.StringVar(&flags.captcha, "captcha", "", "captcha verification token")
	return cmd
}

func logoutCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		if err := a.Session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "signed out")
		return nil
	})
	return cmd
}

func statusCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session, refreshing it when expired",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		a.Session.CheckStatus(ctx)
		printState(out, a.Session.State())
		return nil
	})
	return cmd
}

func whoamiCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user with roles and permissions",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		if !a.Session.CheckStatus(ctx) {
			return errors.New("not signed in")
		}
		info, err := a.Auth.PermissionInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (id %d, %s)\n", info.User.DisplayName(), info.User.ID, info.User.Username)
		fmt.Fprintf(out, "roles:       %s\n", strings.Join(info.Roles, ", "))
		fmt.Fprintf(out, "permissions: %d\n", len(info.Permissions))
		return nil
	})
	return cmd
}

func refreshCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		if err := a.Session.Refresh(ctx); err != nil {
			return err
		}
		printState(out, a.Session.State())
		return nil
	})
	return cmd
}

func categoriesCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List recipe categories",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		categories, err := a.Cooking.Categories(ctx)
		if err != nil {
			return err
		}
		for _, c := range categories {
			fmt.Fprintf(out, "%4d  %s\n", c.ID, c.Name)
		}
		return nil
	})
	return cmd
}

func recipesCommand(withApp appRunner) *cobra.Command {
	var q cooking.PageQuery
	var popular int
	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List recipes page by page, or the most popular ones",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		if popular > 0 {
			recipes, err := a.Cooking.Popular(ctx, popular)
			if err != nil {
				return err
			}
			printRecipes(out, recipes)
			return nil
		}
		page, err := a.Cooking.RecipePage(ctx, q)
		if err != nil {
			return err
		}
		printRecipes(out, page.List)
		fmt.Fprintf(out, "%d of %d\n", len(page.List), page.Total)
		return nil
	})

	f := cmd.Flags()
	f.IntVar(&q.PageNo, "page", 1, "page number")
	f.IntVar(&q.PageSize, "size", 10, "page size")
	f.Int64Var(&q.CategoryID, "category", 0, "category id, 0 for all")
	f.IntVar(&popular, "popular", 0, "show this many popular recipes instead")
	return cmd
}

func favoritesCommand(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List your favourite recipes",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, _ []string) error {
		a.Session.CheckStatus(ctx)
		page, err := a.Cooking.Favorites(ctx)
		if err != nil {
			return err
		}
		printRecipes(out, page.List)
		return nil
	})
	return cmd
}

func favoriteCommand(withApp appRunner) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "favorite <recipe-id>",
		Short: "Add a recipe to your favourites",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "recipe id %q", args[0])
		}
		a.Session.CheckStatus(ctx)
		if remove {
			err = a.Cooking.Unfavorite(ctx, id)
		} else {
			err = a.Cooking.Favorite(ctx, id)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	})
	cmd.Flags().BoolVar(&remove, "remove", false, "remove instead of add")
	return cmd
}

func goCommand(withApp appRunner) *cobra.Command {
	var redirect bool
	cmd := &cobra.Command{
		Use:   "go <page>",
		Short: "Check a navigation against the route guard",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(func(ctx context.Context, a *app.App, out io.Writer, args []string) error {
		err := a.Router.Go(ctx, args[0], nil, router.Options{Redirect: redirect})
		fmt.Fprintf(out, "page: %s\n", a.Pages.Current())
		return err
	})
	cmd.Flags().BoolVar(&redirect, "redirect", false, "replace the current page")
	return cmd
}

func printRecipes(out io.Writer, recipes []cooking.Recipe) {
	for _, r := range recipes {
		fmt.Fprintf(out, "%4d  %-32s %3d min  %5d views  %d favourites\n", r.ID, r.Title, r.Minutes, r.Views, r.Favorites)
	}
}
