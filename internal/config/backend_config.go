package config

import (
	"strings"
	"time"
)

const (
	baseURLVar      = "BASE_URL"
	adminAPIPathVar = "ADMIN_API_PATH"
	appAPIPathVar   = "APP_API_PATH"
	tenantIDVar     = "TENANT_ID"
	platformVar     = "PLATFORM"
	terminalVar     = "TERMINAL"
	httpTimeoutVar  = "HTTP_TIMEOUT"
)

type Backend struct{}

var _ BackendConfig = Backend{}

// GetBaseURL returns the backend origin without a trailing slash (e.g. "http://localhost:48080").
func (Backend) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:48080"), "/")
}

func (Backend) GetAdminAPIPath() string {
	return GetEnv(adminAPIPathVar, "/admin-api")
}

func (Backend) GetAppAPIPath() string {
	return GetEnv(appAPIPathVar, "/app-api")
}

func (Backend) GetTenantID() string {
	return GetEnv(tenantIDVar, "1")
}

func (Backend) GetPlatform() string {
	return GetEnv(platformVar, "cli")
}

// GetTerminal is the numeric terminal code sent alongside the platform name.
func (Backend) GetTerminal() string {
	return GetEnv(terminalVar, "20")
}

func (Backend) GetHTTPTimeout() time.Duration {
	return GetDuration(httpTimeoutVar, 10*time.Second)
}
