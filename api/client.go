package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
)

// Request headers attached to every call.
const (
	HeaderAuthorization = "Authorization"
	HeaderTenantID      = "tenant-id"
	HeaderPlatform      = "platform"
	HeaderTerminal      = "terminal"
	HeaderRequestID     = "X-Request-Id"
)

const maxBodySize = 4 << 20

// TokenReader reads the persisted access token. It returns an error wrapping
// credentials.ErrNotFound when none is stored.
type TokenReader interface {
	AccessToken(ctx context.Context) (string, error)
}

// Invalidator is told when a backend rejects the attached credentials.
type Invalidator interface {
	Invalidate(ctx context.Context, reason error)
}

// LoginPrompter shows the login screen.
type LoginPrompter interface {
	PromptLogin(ctx context.Context)
}

// Backend parameterizes a Client. The admin and app clients differ only here.
type Backend struct {
	Name     string
	BaseURL  string
	BasePath string
	TenantID string
	Platform string
	Terminal string
	Timeout  time.Duration
}

// Request is one backend call.
type Request struct {
	Method string
	Path   string // relative to the backend base path, may carry a query
	Query  url.Values
	Body   any
	// RequiresAuth rejects the call locally when no token is stored.
	RequiresAuth bool
}

// Client sends requests to one backend, attaching stored credentials and
// unwrapping the response envelope.
type Client struct {
	backend    Backend
	httpClient *http.Client
	tokens     TokenReader
	busy       BusyIndicator
	logger     zerolog.Logger

	hooksMu     sync.RWMutex
	invalidator Invalidator
	prompter    LoginPrompter
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTokenReader(tr TokenReader) Option {
	return func(c *Client) {
		c.tokens = tr
	}
}

func WithInvalidator(inv Invalidator) Option {
	return func(c *Client) {
		c.invalidator = inv
	}
}

func WithLoginPrompter(p LoginPrompter) Option {
	return func(c *Client) {
		c.prompter = p
	}
}

func WithBusyIndicator(b BusyIndicator) Option {
	return func(c *Client) {
		c.busy = b
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for backend.
func NewClient(backend Backend, options ...Option) *Client {
	c := &Client{
		backend: backend,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		timeout := backend.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c
}

// Backend returns the parameters the client was built with.
func (c *Client) Backend() Backend {
	return c.backend
}

// SetInvalidator binds the invalidation hook after construction; the session
// controller is built after the clients it depends on.
func (c *Client) SetInvalidator(inv Invalidator) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.invalidator = inv
}

func (c *Client) SetLoginPrompter(p LoginPrompter) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.prompter = p
}

func (c *Client) hooks() (Invalidator, LoginPrompter) {
	c.hooksMu.RLock()
	defer c.hooksMu.RUnlock()
	return c.invalidator, c.prompter
}

// Get sends a GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body as JSON and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Do sends req. On success the envelope data is decoded into out when out is
// not nil. Failures are *Error values, except the local ErrLoginRequired.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token == "" && req.RequiresAuth {
		c.logger.Debug().Str("backend", c.backend.Name).Str("path", req.Path).Msg("login required, request not sent")
		if _, prompter := c.hooks(); prompter != nil {
			prompter.PromptLogin(ctx)
		}
		return errors.Wrapf(ErrLoginRequired, "[Client.Do] %s %s", req.Method, req.Path)
	}

	httpReq, requestID, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return err
	}

	if c.busy != nil {
		c.busy.Begin()
		defer c.busy.End()
	}

	start := time.Now()
	status, body, err := c.send(httpReq)
	logEvt := c.logger.Debug().
		Str("backend", c.backend.Name).
		Str("method", req.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("status", status).
		Dur("elapsed", time.Since(start))
	if err != nil {
		logEvt.Err(err).Msg("request failed")
		return c.newError(KindTransport, req, status, 0, "", err)
	}

	env, ok := decodeEnvelope(body)
	if !ok {
		if status == http.StatusUnauthorized {
			logEvt.Msg("unauthorized without envelope")
			return c.unauthorized(ctx, req, status, CodeUnauthorized, http.StatusText(status))
		}
		logEvt.Msg("response is not an envelope")
		return c.newError(KindTransport, req, status, 0, "", errors.Errorf("unexpected response (http %d)", status))
	}
	logEvt.Int("code", env.Code).Msg("request done")

	switch {
	case env.Code == CodeUnauthorized || status == http.StatusUnauthorized:
		return c.unauthorized(ctx, req, status, env.Code, env.Msg)
	case env.Code != CodeSuccess:
		return c.newError(KindBusiness, req, status, env.Code, env.Msg, nil)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.newError(KindTransport, req, status, env.Code, env.Msg, errors.Wrap(err, "decode data"))
	}
	return nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.AccessToken(ctx)
	if errors.Is(err, apperrors.ErrCredentialsNotFound) {
		return "", nil
	}
	if err != nil {
		// An unreadable store is treated as "no token"; the backend decides.
		c.logger.Warn().Err(err).Str("backend", c.backend.Name).Msg("reading access token")
		return "", nil
	}
	return token, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, string, error) {
	u, err := url.Parse(strings.TrimRight(c.backend.BaseURL, "/") + c.backend.BasePath + req.Path)
	if err != nil {
		return nil, "", errors.Wrapf(apperrors.ErrInvalidRequest, "[Client.Do] bad path %q: %v", req.Path, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", errors.Wrap(err, "[Client.Do] marshal body")
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Client.Do] new request")
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderRequestID, requestID)
	httpReq.Header.Set(HeaderTenantID, c.backend.TenantID)
	if c.backend.Platform != "" {
		httpReq.Header.Set(HeaderPlatform, c.backend.Platform)
	}
	if c.backend.Terminal != "" {
		httpReq.Header.Set(HeaderTerminal, c.backend.Terminal)
	}
	if token != "" {
		httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	return httpReq, requestID, nil
}

func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "read body")
	}
	return resp.StatusCode, body, nil
}

func (c *Client) unauthorized(ctx context.Context, req Request, status, code int, msg string) error {
	apiErr := c.newError(KindUnauthorized, req, status, code, msg, nil)
	if inv, _ := c.hooks(); inv != nil {
		inv.Invalidate(ctx, apiErr)
	}
	return apiErr
}

func (c *Client) newError(kind Kind, req Request, status, code int, msg string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Backend: c.backend.Name,
		Method:  req.Method,
		Path:    req.Path,
		Status:  status,
		Code:    code,
		Msg:     msg,
		Err:     cause,
	}
}
