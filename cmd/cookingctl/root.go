package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-cooking-client/internal/app"
	"github.com/jrsteele09/go-cooking-client/internal/config"
	"github.com/jrsteele09/go-cooking-client/session"
)

type appFunc func(ctx context.Context, a *app.App, out io.Writer, args []string) error

func newRootCmd(c config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:          "cookingctl",
		Short:        "Command line client for the cooking community backend",
		SilenceUsage: true,
	}

	withApp := func(fn appFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd.Context(), c, cmd.OutOrStdout(), args, fn)
		}
	}

	root.AddCommand(
		loginCommand(withApp),
		logoutCommand(withApp),
		statusCommand(withApp),
		whoamiCommand(withApp),
		refreshCommand(withApp),
		categoriesCommand(withApp),
		recipesCommand(withApp),
		favoritesCommand(withApp),
		favoriteCommand(withApp),
		goCommand(withApp),
		demoCommand(c),
	)
	return root
}

// runWithApp opens the configured client, restores the session and runs fn.
func runWithApp(ctx context.Context, c config.Config, out io.Writer, args []string, fn appFunc, opts ...app.Option) error {
	a, err := app.New(ctx, c, append([]app.Option{app.WithLogger(log.Logger)}, opts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("closing credential store")
		}
	}()

	if err := a.Initialize(ctx); err != nil {
		return errors.Wrap(err, "restoring session")
	}
	return fn(ctx, a, out, args)
}

func printState(out io.Writer, st session.State) {
	fmt.Fprintf(out, "status:  %s\n", st.Status)
	if !st.IsAuthenticated {
		return
	}
	fmt.Fprintf(out, "user:    %s (id %d)\n", st.User.DisplayName(), st.User.ID)
	if !st.ExpiresAt.IsZero() {
		fmt.Fprintf(out, "expires: %s (in %s)\n", st.ExpiresAt.Format(time.RFC3339), time.Until(st.ExpiresAt).Round(time.Second))
	}
}
