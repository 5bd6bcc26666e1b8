package session

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx        context.Context
	controller *Controller
}

// TokenSource adapts the controller to oauth2.TokenSource. Token refreshes an
// expired session first and fails with ErrNotAuthenticated when signed out.
func (c *Controller) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, controller: c}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	if !ts.controller.CheckStatus(ts.ctx) {
		return nil, ErrNotAuthenticated
	}
	st := ts.controller.State()
	if !st.IsAuthenticated {
		return nil, ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: st.RefreshToken,
		Expiry:       st.ExpiresAt,
	}, nil
}

// HTTPClient returns a client that sends the session's bearer token on every
// request, for endpoints outside the two backend clients.
func (c *Controller) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}
