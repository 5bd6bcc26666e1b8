// Package mockbackend is an in-process stand-in for the cooking backend. It
// speaks the same envelope and auth endpoints as the real admin and app APIs
// and lets tests count calls, delay routes and inject failures.
package mockbackend

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-cooking-client/users"
)

// Registered routes, usable with Calls, FailNext and SetDelay.
const (
	RouteLogin          = "/admin-api/system/auth/login"
	RouteSMSLogin       = "/admin-api/system/auth/sms-login"
	RouteRefreshToken   = "/admin-api/system/auth/refresh-token"
	RoutePermissionInfo = "/admin-api/system/auth/get-permission-info"
	RouteLogout         = "/admin-api/system/auth/logout"

	RouteCategories = "/app-api/cooking/app/category/list"
	RouteRecipePage = "/app-api/cooking/app/recipe/page"
	RoutePopular    = "/app-api/cooking/app/recipe/popular"
	RouteFavorites  = "/app-api/cooking/app/recipe/favorites"
	RouteRecipe     = "/app-api/cooking/app/recipe/:id"
	RouteFavorite   = "/app-api/cooking/app/recipe/:id/favorite"
)

// Envelope codes used by the mock.
const (
	CodeSuccess            = 0
	CodeBadRequest         = 400
	CodeUnauthorized       = 401
	CodeBadCredentials     = 1002000000
	CodeInvalidRefresh     = 1002000001
	CodeTenantNotFound     = 1002000002
	CodeRecipeNotFound     = 1020000001
	DefaultAdminUsername   = "admin"
	DefaultAdminPassword   = "admin123"
	DefaultAdminMobile     = "15612345678"
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultTenantID        = "1"
)

// Failure is injected into the next call of a route.
type Failure struct {
	// Transport drops the connection without a response.
	Transport bool
	// Status, when set, is written as the HTTP status with a plain body.
	Status int
	Code   int
	Msg    string
}

type account struct {
	user         users.User
	passwordHash []byte
	roles        []string
	permissions  []string
}

type accessSession struct {
	userID    int64
	expiresAt time.Time
	refresh   string
}

type refreshSession struct {
	userID    int64
	expiresAt time.Time
	access    string
}

// Server is the mock backend. It implements http.Handler.
type Server struct {
	echo *echo.Echo

	mu             sync.Mutex
	now            func() time.Time
	tenantID       string
	accessTTL      time.Duration
	refreshTTL     time.Duration
	issuer         *tokenIssuer
	accounts       map[string]*account // by username
	mobiles        map[string]string   // mobile -> username
	smsCodes       map[string]string   // mobile -> code
	access         map[string]*accessSession
	refresh        map[string]*refreshSession
	calls          map[string]int
	failures       map[string][]Failure
	delays         map[string]time.Duration
	favorites      map[int64]map[int64]bool // user -> recipe ids
	recipes        []Recipe
	categories     []Category
	bareAuthErrors bool
}

// Option configures a Server.
type Option func(*Server)

// WithNowTime sets the server clock.
func WithNowTime(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithTenantID(id string) Option {
	return func(s *Server) {
		s.tenantID = id
	}
}

// WithAccessTokenTTL sets the lifetime reported for new access tokens.
func WithAccessTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = d
	}
}

// WithTokenSequence makes the next logins and refreshes hand out these pairs
// in order instead of generated ones.
func WithTokenSequence(pairs ...TokenPair) Option {
	return func(s *Server) {
		s.issuer.queued = append(s.issuer.queued, pairs...)
	}
}

// WithSigningSecret sets the HMAC secret for access tokens.
func WithSigningSecret(secret string) Option {
	return func(s *Server) {
		s.issuer.secret = []byte(secret)
	}
}

// WithBareAuthErrors answers unauthenticated calls with HTTP 401 and no envelope.
func WithBareAuthErrors() Option {
	return func(s *Server) {
		s.bareAuthErrors = true
	}
}

// New creates a mock backend seeded with the admin account and a few recipes.
func New(options ...Option) *Server {
	s := &Server{
		now:        time.Now,
		tenantID:   DefaultTenantID,
		accessTTL:  defaultAccessTokenTTL,
		refreshTTL: defaultRefreshTokenTTL,
		issuer:     newTokenIssuer("cooking-mock-secret"),
		accounts:   make(map[string]*account),
		mobiles:    make(map[string]string),
		smsCodes:   make(map[string]string),
		access:     make(map[string]*accessSession),
		refresh:    make(map[string]*refreshSession),
		calls:      make(map[string]int),
		failures:   make(map[string][]Failure),
		delays:     make(map[string]time.Duration),
		favorites:  make(map[int64]map[int64]bool),
		recipes:    seedRecipes(),
		categories: seedCategories(),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.AddUser(DefaultAdminPassword, users.User{
		ID:       1,
		Username: DefaultAdminUsername,
		Nickname: "Head Chef",
		Mobile:   DefaultAdminMobile,
		Email:    "admin@cooking.local",
		DeptID:   100,
		DeptName: "Kitchen",
	}, []string{"super_admin"}, []string{"*:*:*"}); err != nil {
		log.Err(err).Msg("seeding mock admin")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(s.instrument)
	s.registerAuthRoutes()
	s.registerCookingRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// AddUser registers an account. The password is stored as a bcrypt hash.
func (s *Server) AddUser(password string, user users.User, roles, permissions []string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user.Username] = &account{user: user, passwordHash: hash, roles: roles, permissions: permissions}
	if user.Mobile != "" {
		s.mobiles[user.Mobile] = user.Username
	}
	return nil
}

// SetSMSCode sets the code the next SMS login for mobile must present.
func (s *Server) SetSMSCode(mobile, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.smsCodes[mobile] = code
}

// Calls returns how many requests hit route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the call counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// FailNext queues failures for the following calls of route.
func (s *Server) FailNext(route string, failures ...Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failures...)
}

// SetDelay holds every call of route for d before handling it.
func (s *Server) SetDelay(route string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[route] = d
}

// ExpireAccessTokens makes every issued access token invalid server side.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	past := s.now().Add(-time.Second)
	for _, sess := range s.access {
		sess.expiresAt = past
	}
}

// ActiveAccessTokens returns the number of access tokens that would be accepted.
func (s *Server) ActiveAccessTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := s.now()
	for _, sess := range s.access {
		if now.Before(sess.expiresAt) {
			n++
		}
	}
	return n
}

// instrument counts calls and applies delays and injected failures.
func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		route := c.Path()

		s.mu.Lock()
		s.calls[route]++
		delay := s.delays[route]
		var failure *Failure
		if queued := s.failures[route]; len(queued) > 0 {
			failure = &queued[0]
			s.failures[route] = queued[1:]
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-c.Request().Context().Done():
				return nil
			}
		}

		if failure != nil {
			switch {
			case failure.Transport:
				// Aborts the connection without writing a response.
				panic(http.ErrAbortHandler)
			case failure.Status != 0:
				return c.String(failure.Status, http.StatusText(failure.Status))
			default:
				return fail(c, failure.Code, failure.Msg)
			}
		}
		return next(c)
	}
}

type envelope struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, envelope{Code: CodeSuccess, Data: data})
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(http.StatusOK, envelope{Code: code, Msg: msg})
}

func (s *Server) unauthorized(c echo.Context) error {
	if s.bareAuthErrors {
		return c.String(http.StatusUnauthorized, "unauthorized")
	}
	return fail(c, CodeUnauthorized, "account not logged in")
}

func (s *Server) checkTenant(c echo.Context) bool {
	return c.Request().Header.Get("tenant-id") == s.tenantID
}

// authenticate returns the account behind the bearer token, or nil.
func (s *Server) authenticate(c echo.Context) *account {
	raw, found := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !found || raw == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, found := s.access[raw]
	if !found || !now.Before(sess.expiresAt) {
		return nil
	}
	if err := s.issuer.verify(raw, now); err != nil {
		log.Debug().Err(err).Msg("mock backend rejected access token")
		return nil
	}
	return s.accountByID(sess.userID)
}

// accountByID must be called with mu held.
func (s *Server) accountByID(id int64) *account {
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}
