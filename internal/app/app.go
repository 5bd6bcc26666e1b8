// Package app wires the credential store, backend clients, session controller
// and route guard into one client.
package app

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-cooking-client/api"
	"github.com/jrsteele09/go-cooking-client/auth"
	"github.com/jrsteele09/go-cooking-client/cooking"
	"github.com/jrsteele09/go-cooking-client/credentials"
	"github.com/jrsteele09/go-cooking-client/credentials/filestore"
	"github.com/jrsteele09/go-cooking-client/credentials/memstore"
	"github.com/jrsteele09/go-cooking-client/credentials/sqlitestore"
	"github.com/jrsteele09/go-cooking-client/internal/config"
	"github.com/jrsteele09/go-cooking-client/router"
	"github.com/jrsteele09/go-cooking-client/session"
	"github.com/jrsteele09/go-cooking-client/token/refresh"
)

const (
	credentialsFolder = "credentials"
	sqliteFile        = "credentials.db"
)

// App is a fully wired client.
type App struct {
	Store     credentials.Store
	Clients   *api.Clients
	Auth      *auth.Service
	Refresher *refresh.Coordinator
	Session   *session.Controller
	Pages     *router.Stack
	Router    *router.Guard
	Cooking   *cooking.Service
	Busy      *api.BusyCounter

	closer io.Closer
}

type options struct {
	store      credentials.Store
	httpClient *http.Client
	now        func() time.Time
	logger     zerolog.Logger
}

type Option func(*options)

// WithStore uses store instead of opening the configured driver.
func WithStore(store credentials.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds the client described by cfg. It does not restore the session;
// call Initialize for that.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Busy: &api.BusyCounter{}}
	if o.store != nil {
		a.Store = o.store
	} else {
		store, closer, err := OpenStore(ctx, cfg, o.logger)
		if err != nil {
			return nil, errors.Wrap(err, "[app.New]")
		}
		a.Store, a.closer = store, closer
	}

	clientOpts := []api.Option{
		api.WithTokenReader(a.Store),
		api.WithBusyIndicator(a.Busy),
		api.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(o.httpClient))
	}
	admin, app := api.BackendsFromConfig(cfg)
	a.Clients = api.NewClients(admin, app, clientOpts...)

	a.Auth = auth.NewService(a.Clients.Admin)
	a.Cooking = cooking.NewService(a.Clients.App)
	a.Refresher = refresh.NewCoordinator(a.Auth, a.Store, refresh.WithLogger(o.logger))

	sessionOpts := []session.Option{session.WithLogger(o.logger)}
	if o.now != nil {
		sessionOpts = append(sessionOpts, session.WithNowTime(o.now))
	}
	a.Session = session.NewController(a.Auth, a.Refresher, a.Store, sessionOpts...)

	a.Pages = router.NewStack(router.HomePath)
	a.Router = router.New(router.DefaultRoutes(), a.Pages, a.Session, nil,
		router.WithThrottle(cfg.GetNavThrottle()),
		router.WithLogger(o.logger),
	)

	a.Clients.SetInvalidator(&signOutAndPrompt{session: a.Session, guard: a.Router})
	a.Clients.SetLoginPrompter(a.Router)
	return a, nil
}

// Initialize restores the persisted session.
func (a *App) Initialize(ctx context.Context) error {
	return a.Session.Initialize(ctx)
}

// Close releases the credential store.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// OpenStore opens the credential store selected by cfg.GetStoreDriver. The
// returned closer is nil for drivers that hold no resources.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (credentials.Store, io.Closer, error) {
	kvOpts := []credentials.KVStoreOption{
		credentials.WithMaxRetries(cfg.GetStorageRetries()),
		credentials.WithLogger(logger),
	}

	switch driver := cfg.GetStoreDriver(); driver {
	case config.StoreDriverMemory:
		return memstore.NewStore(kvOpts...), nil, nil
	case config.StoreDriverFile:
		store, err := filestore.NewStore(filepath.Join(cfg.GetDataFolder(), credentialsFolder), kvOpts...)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[OpenStore] file")
		}
		return store, nil, nil
	case config.StoreDriverSQLite:
		store, err := openSQLite(ctx, filepath.Join(cfg.GetDataFolder(), sqliteFile), cfg.GetStorageRetries(), logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "[OpenStore] sqlite")
		}
		return store, store, nil
	default:
		return nil, nil, errors.Errorf("[OpenStore] unknown store driver %q", driver)
	}
}

// openSQLite retries while another process holds the database lock.
func openSQLite(ctx context.Context, path string, retries uint64, logger zerolog.Logger) (*sqlitestore.Store, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond

	var store *sqlitestore.Store
	op := func() error {
		var err error
		store, err = sqlitestore.Open(ctx, path)
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Str("path", path).Dur("retry_in", wait).Msg("opening credential database")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx), notify); err != nil {
		return nil, err
	}
	return store, nil
}

// signOutAndPrompt is the invalidator bound to both backend clients: a 401
// signs the session out and opens the auth page.
type signOutAndPrompt struct {
	session *session.Controller
	guard   *router.Guard
}

var _ api.Invalidator = (*signOutAndPrompt)(nil)

func (s *signOutAndPrompt) Invalidate(ctx context.Context, reason error) {
	s.session.Invalidate(ctx, reason)
	s.guard.PromptLogin(ctx)
}
