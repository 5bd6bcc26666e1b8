package refresh

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-cooking-client/credentials"
	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
	"github.com/jrsteele09/go-cooking-client/users"
)

var (
	// ErrSuperseded is returned when the session was invalidated while the
	// refresh was in flight. Nothing was written to storage.
	ErrSuperseded = apperrors.ErrRefreshSuperseded
	// ErrNoRefreshToken is returned when there is nothing to exchange.
	ErrNoRefreshToken = apperrors.ErrNoRefreshToken
)

// Exchanger talks to the backend on behalf of the coordinator.
type Exchanger interface {
	// Refresh exchanges a single-use refresh token for a new pair.
	Refresh(ctx context.Context, refreshToken string) (credentials.TokenPair, error)
	// Profile fetches the user authorized by the stored access token.
	Profile(ctx context.Context) (*users.User, error)
}

// Result is the outcome of a successful refresh.
type Result struct {
	Tokens     credentials.TokenPair
	User       *users.User
	Generation uint64 // session generation the refresh ran under
}

type lastRefresh struct {
	consumed   string
	generation uint64
	result     *Result
}

// Coordinator runs at most one refresh at a time per refresh token and
// generation. Every session change (login, logout, invalidation) bumps the
// generation; a refresh started under an older generation never writes.
type Coordinator struct {
	exchanger Exchanger
	store     credentials.Store
	group     singleflight.Group
	logger    zerolog.Logger

	generation atomic.Uint64
	writeMu    sync.Mutex // orders storage commits against Invalidate

	lastMu sync.Mutex
	last   *lastRefresh
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a Coordinator writing results to store.
func NewCoordinator(exchanger Exchanger, store credentials.Store, options ...Option) *Coordinator {
	c := &Coordinator{
		exchanger: exchanger,
		store:     store,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Generation returns the current session generation.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Invalidate starts a new generation. In-flight refreshes finish without
// writing and report ErrSuperseded.
func (c *Coordinator) Invalidate() uint64 {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.generation.Add(1)
}

// Commit runs write only if gen is still the current generation. No
// Invalidate can interleave with write.
func (c *Coordinator) Commit(gen uint64, write func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.generation.Load() != gen {
		return ErrSuperseded
	}
	return write()
}

// Refresh exchanges refreshToken, stores the new pair, fetches the profile
// and stores the full record. Concurrent callers with the same token share
// one exchange. A caller arriving after the exchange finished, still holding
// the consumed token, gets the same result instead of a second exchange.
//
// On failure the store is cleared, unless the session was superseded.
func (c *Coordinator) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	gen := c.generation.Load()
	if r := c.cached(refreshToken, gen); r != nil {
		return r, nil
	}

	key := strconv.FormatUint(gen, 10) + ":" + refreshToken
	// The shared exchange must not die with the first caller's context.
	runCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(runCtx, gen, refreshToken)
	})

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "[Coordinator.Refresh]")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (c *Coordinator) run(ctx context.Context, gen uint64, refreshToken string) (*Result, error) {
	c.logger.Debug().Uint64("generation", gen).Msg("refreshing session")

	pair, err := c.exchanger.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, c.fail(ctx, gen, errors.Wrap(err, "[Coordinator.Refresh] exchange"))
	}

	// The profile call is authorized by the stored token, so the new pair
	// has to be in storage first.
	if err := c.Commit(gen, func() error { return c.store.SaveTokens(ctx, pair) }); err != nil {
		return nil, c.fail(ctx, gen, errors.Wrap(err, "[Coordinator.Refresh] save tokens"))
	}

	user, err := c.exchanger.Profile(ctx)
	if err != nil {
		return nil, c.fail(ctx, gen, errors.Wrap(err, "[Coordinator.Refresh] profile"))
	}

	creds := credentials.StoredCredentials{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
		ExpiresAt:    pair.ExpiresAt,
	}
	if err := c.Commit(gen, func() error { return c.store.Save(ctx, creds) }); err != nil {
		return nil, c.fail(ctx, gen, errors.Wrap(err, "[Coordinator.Refresh] save"))
	}

	result := &Result{Tokens: pair, User: user, Generation: gen}
	c.lastMu.Lock()
	c.last = &lastRefresh{consumed: refreshToken, generation: gen, result: result}
	c.lastMu.Unlock()

	c.logger.Debug().Uint64("generation", gen).Int64("user_id", user.ID).Msg("session refreshed")
	return result, nil
}

// fail clears storage for the generation that failed and returns cause.
func (c *Coordinator) fail(ctx context.Context, gen uint64, cause error) error {
	if errors.Is(cause, ErrSuperseded) {
		return cause
	}
	err := c.Commit(gen, func() error { return c.store.Clear(ctx) })
	switch {
	case errors.Is(err, ErrSuperseded):
		return errors.Wrapf(ErrSuperseded, "[Coordinator.Refresh] %v", cause)
	case err != nil:
		c.logger.Err(err).Msg("clearing credentials after failed refresh")
	}
	c.logger.Debug().Err(cause).Uint64("generation", gen).Msg("refresh failed")
	return cause
}

func (c *Coordinator) cached(refreshToken string, gen uint64) *Result {
	c.lastMu.Lock()
	defer c.lastMu.Unlock()
	if c.last != nil && c.last.consumed == refreshToken && c.last.generation == gen {
		return c.last.result
	}
	return nil
}
