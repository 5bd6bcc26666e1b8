// Package router decides whether and how a navigation may happen: unknown
// pages are refused, protected pages require a session, and rapid repeated
// navigations are throttled.
package router

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-cooking-client/internal/errors"
)

var (
	ErrUnknownRoute = apperrors.ErrUnknownRoute
	ErrAuthRequired = apperrors.ErrAuthRequired
	ErrThrottled    = apperrors.ErrThrottled
)

// Page paths of the default table.
const (
	HomePath           = "/pages/home/index"
	AuthPath           = "/pages/home/auth"
	SettingsPath       = "/pages/home/settings"
	ForgotPasswordPath = "/pages/home/forgot-password"
	SearchPath         = "/pages/search/index"
	WebviewPath        = "/pages/public/webview"
	ErrorPath          = "/pages/public/error"
)

// Descriptor is the metadata of one page.
type Descriptor struct {
	Path         string
	Title        string
	RequiresAuth bool
	// TabBar pages are switched to rather than pushed and take no query.
	TabBar bool
}

// Table maps page paths to descriptors.
type Table struct {
	routes map[string]Descriptor
}

// NewTable builds a table. A later descriptor for the same path wins.
func NewTable(descriptors ...Descriptor) *Table {
	t := &Table{routes: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		t.routes[normalize(d.Path)] = d
	}
	return t
}

// Lookup returns the descriptor for path, ignoring any query.
func (t *Table) Lookup(path string) (Descriptor, error) {
	p, _, _ := strings.Cut(path, "?")
	d, found := t.routes[normalize(p)]
	if !found {
		return Descriptor{}, errors.Wrapf(ErrUnknownRoute, "%q", p)
	}
	return d, nil
}

// Paths lists the registered paths in order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.routes))
	for p := range t.routes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

// DefaultRoutes is the page table of the cooking client.
func DefaultRoutes() *Table {
	return NewTable(
		Descriptor{Path: HomePath, Title: "Home"},
		Descriptor{Path: SearchPath, Title: "Search"},
		Descriptor{Path: AuthPath, Title: "Sign in"},
		Descriptor{Path: ForgotPasswordPath, Title: "Forgot password"},
		Descriptor{Path: SettingsPath, Title: "Settings", RequiresAuth: true},
		Descriptor{Path: WebviewPath, Title: "Web page"},
		Descriptor{Path: ErrorPath, Title: "Error"},
	)
}
