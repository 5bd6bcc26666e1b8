package router

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultThrottle is the minimum gap between two navigations.
const DefaultThrottle = 500 * time.Millisecond

// Navigator performs the actual page transitions.
type Navigator interface {
	Push(ctx context.Context, url string) error
	Redirect(ctx context.Context, url string) error
	SwitchTab(ctx context.Context, path string) error
	Back(ctx context.Context, delta int) error
}

// AuthChecker reports whether protected pages may be opened. CheckStatus may
// refresh an expired session.
type AuthChecker interface {
	CheckStatus(ctx context.Context) bool
}

// AuthPrompter shows the login screen.
type AuthPrompter interface {
	PromptLogin(ctx context.Context)
}

// Options modify a single navigation.
type Options struct {
	// Redirect replaces the current page instead of pushing.
	Redirect bool
}

// Guard checks navigations against the route table and session.
type Guard struct {
	table    *Table
	nav      Navigator
	checker  AuthChecker
	prompter AuthPrompter
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithThrottle sets the minimum gap between navigations. Zero disables throttling.
func WithThrottle(d time.Duration) Option {
	return func(g *Guard) {
		if d <= 0 {
			g.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		g.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// New creates a Guard. When prompter is nil the guard opens the auth page itself.
func New(table *Table, nav Navigator, checker AuthChecker, prompter AuthPrompter, options ...Option) *Guard {
	g := &Guard{
		table:    table,
		nav:      nav,
		checker:  checker,
		prompter: prompter,
		limiter:  rate.NewLimiter(rate.Every(DefaultThrottle), 1),
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Go navigates to target, a page path with an optional query or an external
// http(s) URL, which opens in the webview page.
func (g *Guard) Go(ctx context.Context, target string, params url.Values, opts Options) error {
	if !g.limiter.Allow() {
		g.logger.Debug().Str("target", target).Msg("navigation throttled")
		return ErrThrottled
	}
	return g.navigate(ctx, target, params, opts)
}

// Redirect is Go with Options.Redirect set.
func (g *Guard) Redirect(ctx context.Context, target string, params url.Values) error {
	return g.Go(ctx, target, params, Options{Redirect: true})
}

// Back pops delta pages.
func (g *Guard) Back(ctx context.Context, delta int) error {
	if delta < 1 {
		delta = 1
	}
	if !g.limiter.Allow() {
		return ErrThrottled
	}
	return g.nav.Back(ctx, delta)
}

// Error replaces the current page with the error page. It is not throttled.
func (g *Guard) Error(ctx context.Context, code int, msg string) error {
	q := url.Values{}
	q.Set("errCode", strconv.Itoa(code))
	if msg != "" {
		q.Set("errMsg", msg)
	}
	return g.nav.Redirect(ctx, ErrorPath+"?"+q.Encode())
}

// PromptLogin opens the auth page. It is wired as the login prompter of the
// backend clients and is not throttled.
func (g *Guard) PromptLogin(ctx context.Context) {
	g.promptLogin(ctx, "")
}

func (g *Guard) promptLogin(ctx context.Context, redirect string) {
	if g.prompter != nil {
		g.prompter.PromptLogin(ctx)
		return
	}
	target := AuthPath
	if redirect != "" {
		target += "?" + url.Values{"redirect": {redirect}}.Encode()
	}
	if err := g.nav.Push(ctx, target); err != nil {
		g.logger.Err(err).Msg("opening auth page")
	}
}

func (g *Guard) navigate(ctx context.Context, target string, params url.Values, opts Options) error {
	if isExternal(target) {
		params = mergeQuery(url.Values{"url": {target}}, params)
		target = WebviewPath
	}

	path, rawQuery, _ := strings.Cut(target, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return errors.Wrapf(ErrUnknownRoute, "bad query in %q: %v", target, err)
	}
	query = mergeQuery(query, params)

	desc, err := g.table.Lookup(path)
	if err != nil {
		g.logger.Error().Err(err).Str("target", target).Msg("navigation to unknown page")
		return errors.Wrap(err, "[Guard.Go]")
	}

	full := desc.Path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	if desc.RequiresAuth && (g.checker == nil || !g.checker.CheckStatus(ctx)) {
		g.logger.Info().Str("target", desc.Path).Msg("page requires login")
		g.promptLogin(ctx, full)
		return errors.Wrapf(ErrAuthRequired, "%q", desc.Path)
	}

	switch {
	case desc.TabBar:
		err = g.nav.SwitchTab(ctx, desc.Path)
	case opts.Redirect:
		err = g.nav.Redirect(ctx, full)
	default:
		err = g.nav.Push(ctx, full)
	}
	return errors.Wrap(err, "[Guard.Go]")
}

func isExternal(target string) bool {
	lower := strings.ToLower(target)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func mergeQuery(dst, src url.Values) url.Values {
	if dst == nil {
		dst = url.Values{}
	}
	for k, vs := range src {
		dst.Del(k)
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	return dst
}
