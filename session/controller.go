// Package session owns the signed-in state of the client. It is the only
// component that turns backend and storage failures into state transitions.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/credentials"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/token/refresh"
	"github.com/jrsteele09/go-cooking-client/users"
)

var ErrNotAuthenticated = apperrors.ErrNotAuthenticated

// AuthBackend is the subset of auth.Service the controller uses.
type AuthBackend interface {
	Login(ctx context.Context, req auth.LoginRequest) (credentials.TokenPair, error)
	Profile(ctx context.Context) (*users.User, error)
	Logout(ctx context.Context) error
}

// Refresher is the single-flight refresh coordinator. Its generation counter
// is shared with the controller: every login, logout and invalidation starts
// a new generation, and writes from an older one are refused.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*refresh.Result, error)
	Generation() uint64
	Invalidate() uint64
	Commit(gen uint64, write func() error) error
}

// Controller is the session state machine. All methods are safe for
// concurrent use; no lock is held across backend or storage calls.
type Controller struct {
	backend   AuthBackend
	refresher Refresher
	store     credentials.Store
	now       func() time.Time
	logger    zerolog.Logger

	mu    sync.RWMutex
	state State

	loading      atomic.Bool
	loginLoading atomic.Bool
	ready        chan struct{}
	readyOnce    sync.Once

	listenersMu sync.Mutex
	listeners   []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithNowTime sets the clock used for expiry checks.
func WithNowTime(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a controller in StatusUnknown. Call Initialize before use.
func NewController(backend AuthBackend, refresher Refresher, store credentials.Store, options ...Option) *Controller {
	c := &Controller{
		backend:   backend,
		refresher: refresher,
		store:     store,
		now:       time.Now,
		logger:    log.Logger,
		ready:     make(chan struct{}),
	}
	c.loading.Store(true)
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Initialize restores the persisted session. A stored session that has
// expired is refreshed once; if that fails the session is dropped. Storage
// problems are logged and treated as "no session", so Initialize only
// returns an error when ctx is done.
func (c *Controller) Initialize(ctx context.Context) error {
	defer c.markReady()

	creds, err := c.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			c.logger.Warn().Err(err).Msg("loading stored session")
		}
		// Leftovers of a partial write must not keep authorizing requests.
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Warn().Err(clearErr).Msg("clearing partial session")
		}
		c.setState(unauthenticatedState())
		return ctx.Err()
	}

	if !creds.ExpiresAt.After(c.now()) {
		c.logger.Info().Msg("stored session expired, refreshing")
		err := c.refreshWith(ctx, c.refresher.Generation(), creds.RefreshToken)
		if err != nil {
			c.logger.Warn().Err(err).Msg("refreshing stored session")
		}
		if err != nil && ctx.Err() != nil && c.Status() == StatusUnknown {
			// The exchange keeps running; its late commit must not revive a
			// session the controller already reports as signed out.
			c.refresher.Invalidate()
			if clearErr := c.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				c.logger.Warn().Err(clearErr).Msg("clearing abandoned session")
			}
		}
		if c.Status() == StatusUnknown {
			c.setState(unauthenticatedState())
		}
		return ctx.Err()
	}

	c.setState(authenticatedState(*creds))
	c.logger.Debug().Int64("user_id", creds.User.ID).Msg("session restored")
	return nil
}

func (c *Controller) markReady() {
	c.loading.Store(false)
	c.readyOnce.Do(func() { close(c.ready) })
}

// Loading reports whether Initialize is still running.
func (c *Controller) Loading() bool {
	return c.loading.Load()
}

// Ready is closed once Initialize has returned.
func (c *Controller) Ready() <-chan struct{} {
	return c.ready
}

// LoginLoading reports whether a Login call is in progress.
func (c *Controller) LoginLoading() bool {
	return c.loginLoading.Load()
}

// Login signs in. The tokens are stored before the profile is fetched so the
// profile call is authorized by them. Any failure leaves the controller
// unauthenticated with empty storage.
func (c *Controller) Login(ctx context.Context, req auth.LoginRequest) error {
	c.loginLoading.Store(true)
	defer c.loginLoading.Store(false)

	gen := c.refresher.Invalidate()

	pair, err := c.backend.Login(ctx, req)
	if err != nil {
		return c.failClosed(ctx, gen, errors.Wrap(err, "[Controller.Login]"))
	}
	if err := c.refresher.Commit(gen, func() error { return c.store.SaveTokens(ctx, pair) }); err != nil {
		return c.failClosed(ctx, gen, errors.Wrap(err, "[Controller.Login] save tokens"))
	}

	user, err := c.backend.Profile(ctx)
	if err != nil {
		return c.failClosed(ctx, gen, errors.Wrap(err, "[Controller.Login] profile"))
	}

	creds := credentials.StoredCredentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		ExpiresAt:    pair.ExpiresAt,
	}
	if err := c.refresher.Commit(gen, func() error { return c.store.Save(ctx, creds) }); err != nil {
		return c.failClosed(ctx, gen, errors.Wrap(err, "[Controller.Login] save"))
	}
	if !c.setStateIfCurrent(gen, authenticatedState(creds)) {
		return errors.Wrap(refresh.ErrSuperseded, "[Controller.Login]")
	}

	c.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("logged in")
	return nil
}

// Logout tells the backend (best effort) and then always clears the session.
// Only a storage failure is returned.
func (c *Controller) Logout(ctx context.Context) error {
	c.refresher.Invalidate()

	if token, err := c.store.AccessToken(ctx); err == nil && token != "" {
		if err := c.backend.Logout(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("backend logout failed, clearing local session anyway")
		}
	}

	err := c.store.Clear(ctx)
	c.setState(unauthenticatedState())
	if err != nil {
		return errors.Wrap(err, "[Controller.Logout]")
	}
	c.logger.Info().Msg("logged out")
	return nil
}

// Refresh renews the session with the stored refresh token. Concurrent calls
// share one exchange. On failure the session is dropped and the error returned.
func (c *Controller) Refresh(ctx context.Context) error {
	gen := c.refresher.Generation()
	return c.refreshWith(ctx, gen, c.State().RefreshToken)
}

func (c *Controller) refreshWith(ctx context.Context, gen uint64, refreshToken string) error {
	if refreshToken == "" {
		return c.failClosed(ctx, gen, errors.Wrap(refresh.ErrNoRefreshToken, "[Controller.Refresh]"))
	}

	res, err := c.refresher.Refresh(ctx, refreshToken)
	switch {
	case errors.Is(err, refresh.ErrSuperseded):
		return err
	case err != nil && ctx.Err() != nil:
		// Only this caller gave up. The shared exchange continues and a later
		// call picks up its result.
		return err
	case err != nil:
		c.setStateIfCurrent(gen, unauthenticatedState())
		return errors.Wrap(err, "[Controller.Refresh]")
	}

	creds := credentials.StoredCredentials{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		User:         res.User,
		ExpiresAt:    res.Tokens.ExpiresAt,
	}
	if !c.setStateIfCurrent(res.Generation, authenticatedState(creds)) {
		return errors.Wrap(refresh.ErrSuperseded, "[Controller.Refresh]")
	}
	return nil
}

// CheckStatus reports whether requests can proceed authenticated. An expired
// session is refreshed inline; an unexpired one costs no I/O.
func (c *Controller) CheckStatus(ctx context.Context) bool {
	st := c.State()
	if !st.IsAuthenticated || st.ExpiresAt.IsZero() {
		return false
	}
	if !st.Expired(c.now()) {
		return true
	}
	if err := c.Refresh(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("session refresh during status check failed")
		return false
	}
	return true
}

// Invalidate drops the session after a backend rejected its credentials.
// It is wired as the api.Invalidator of both backend clients.
func (c *Controller) Invalidate(ctx context.Context, reason error) {
	c.refresher.Invalidate()
	c.logger.Warn().Err(reason).Msg("session invalidated")
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Err(err).Msg("clearing invalidated session")
	}
	c.setState(unauthenticatedState())
}

// failClosed clears storage and state for generation gen, unless a newer
// generation already owns them, and returns cause.
func (c *Controller) failClosed(ctx context.Context, gen uint64, cause error) error {
	if errors.Is(cause, refresh.ErrSuperseded) {
		return cause
	}
	if err := c.refresher.Commit(gen, func() error { return c.store.Clear(ctx) }); err != nil && !errors.Is(err, refresh.ErrSuperseded) {
		c.logger.Err(err).Msg("clearing session after failure")
	}
	c.setStateIfCurrent(gen, unauthenticatedState())
	return cause
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Status() Status {
	return c.State().Status
}

func (c *Controller) IsAuthenticated() bool {
	return c.State().IsAuthenticated
}

func (c *Controller) User() *users.User {
	return c.State().User
}

// Subscribe registers fn to be called after every state change. fn runs
// outside the controller's lock.
func (c *Controller) Subscribe(fn func(State)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if !prev.same(next) {
		c.notify(next)
	}
}

// setStateIfCurrent applies next only while gen is the current generation.
// Invalidate bumps the generation before taking the lock, so a stale apply
// either fails here or is overwritten afterwards.
func (c *Controller) setStateIfCurrent(gen uint64, next State) bool {
	c.mu.Lock()
	if c.refresher.Generation() != gen {
		c.mu.Unlock()
		return false
	}
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if !prev.same(next) {
		c.notify(next)
	}
	return true
}

func (c *Controller) notify(st State) {
	c.listenersMu.Lock()
	listeners := append([]func(State){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}
