package mockbackend

import (
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-cooking-client/users"
)

type loginRequest struct {
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type smsLoginRequest struct {
	Mobile string `json:"mobile"`
	Code   string `json:"code"`
}

type tokenResponse struct {
	UserID       int64  `json:"userId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresTime  int64  `json:"expiresTime"`
}

func (s *Server) registerAuthRoutes() {
	g := s.echo.Group("/admin-api/system/auth")
	g.POST("/login", s.login)
	g.POST("/sms-login", s.smsLogin)
	g.POST("/refresh-token", s.refreshToken)
	g.GET("/get-permission-info", s.permissionInfo)
	g.POST("/logout", s.logout)
}

// login handles POST /admin-api/system/auth/login
func (s *Server) login(c echo.Context) error {
	if !s.checkTenant(c) {
		return fail(c, CodeTenantNotFound, "tenant not found")
	}
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username := req.Username
	if username == "" && req.Mobile != "" {
		username = s.mobiles[req.Mobile]
	}
	acct, found := s.accounts[username]
	if !found || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(req.Password)) != nil {
		return fail(c, CodeBadCredentials, "incorrect username or password")
	}
	return s.issueLocked(c, acct.user.ID)
}

// smsLogin handles POST /admin-api/system/auth/sms-login
func (s *Server) smsLogin(c echo.Context) error {
	if !s.checkTenant(c) {
		return fail(c, CodeTenantNotFound, "tenant not found")
	}
	var req smsLoginRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, CodeBadRequest, "invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, hasCode := s.smsCodes[req.Mobile]
	acct, found := s.accounts[s.mobiles[req.Mobile]]
	if !hasCode || code != req.Code || !found {
		return fail(c, CodeBadCredentials, "incorrect verification code")
	}
	delete(s.smsCodes, req.Mobile)
	return s.issueLocked(c, acct.user.ID)
}

// refreshToken handles POST /admin-api/system/auth/refresh-token?refreshToken=
// Refresh tokens are single use: the old pair is revoked.
func (s *Server) refreshToken(c echo.Context) error {
	raw := c.QueryParam("refreshToken")

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, found := s.refresh[raw]
	if raw == "" || !found || !s.now().Before(sess.expiresAt) {
		return fail(c, CodeInvalidRefresh, "invalid refresh token")
	}
	delete(s.refresh, raw)
	delete(s.access, sess.access)
	return s.issueLocked(c, sess.userID)
}

// permissionInfo handles GET /admin-api/system/auth/get-permission-info
func (s *Server) permissionInfo(c echo.Context) error {
	acct := s.authenticate(c)
	if acct == nil {
		return s.unauthorized(c)
	}
	user := acct.user
	return ok(c, users.PermissionInfo{
		User:        &user,
		Roles:       acct.roles,
		Permissions: acct.permissions,
		Menus:       []users.Menu{},
	})
}

// logout handles POST /admin-api/system/auth/logout. It succeeds without a
// valid token, as the real backend does.
func (s *Server) logout(c echo.Context) error {
	raw := c.Request().Header.Get("Authorization")
	if len(raw) > len("Bearer ") {
		raw = raw[len("Bearer "):]
		s.mu.Lock()
		if sess, found := s.access[raw]; found {
			delete(s.refresh, sess.refresh)
			delete(s.access, raw)
		}
		s.mu.Unlock()
	}
	return ok(c, true)
}

// issueLocked must be called with mu held.
func (s *Server) issueLocked(c echo.Context, userID int64) error {
	now := s.now()
	pair, err := s.issuer.issue(userID, s.tenantID, now, s.accessTTL)
	if err != nil {
		return fail(c, 500, err.Error())
	}
	expiresAt := now.Add(s.accessTTL)
	s.access[pair.AccessToken] = &accessSession{userID: userID, expiresAt: expiresAt, refresh: pair.RefreshToken}
	s.refresh[pair.RefreshToken] = &refreshSession{userID: userID, expiresAt: now.Add(s.refreshTTL), access: pair.AccessToken}
	return ok(c, tokenResponse{
		UserID:       userID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresTime:  expiresAt.UnixMilli(),
	})
}
