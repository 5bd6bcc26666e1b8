package api

import (
	"github.com/jrsteele09/go-cooking-client/internal/config"
)

// Backend names.
const (
	AdminBackend = "admin"
	AppBackend   = "app"
)

// BackendsFromConfig derives the admin and app backends from configuration.
// They share host, tenant and client identity and differ in base path.
func BackendsFromConfig(cfg config.BackendConfig) (admin, app Backend) {
	base := Backend{
		BaseURL:  cfg.GetBaseURL(),
		TenantID: cfg.GetTenantID(),
		Platform: cfg.GetPlatform(),
		Terminal: cfg.GetTerminal(),
		Timeout:  cfg.GetHTTPTimeout(),
	}
	admin, app = base, base
	admin.Name, admin.BasePath = AdminBackend, cfg.GetAdminAPIPath()
	app.Name, app.BasePath = AppBackend, cfg.GetAppAPIPath()
	return admin, app
}

// Clients holds the two backend clients built by one factory call.
type Clients struct {
	Admin *Client
	App   *Client
}

// NewClients builds both clients with the same options.
func NewClients(admin, app Backend, options ...Option) *Clients {
	return &Clients{
		Admin: NewClient(admin, options...),
		App:   NewClient(app, options...),
	}
}

// SetInvalidator binds inv on both clients.
func (c *Clients) SetInvalidator(inv Invalidator) {
	c.Admin.SetInvalidator(inv)
	c.App.SetInvalidator(inv)
}

// SetLoginPrompter binds p on both clients.
func (c *Clients) SetLoginPrompter(p LoginPrompter) {
	c.Admin.SetLoginPrompter(p)
	c.App.SetLoginPrompter(p)
}
