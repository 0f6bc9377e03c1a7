// internal/browser/interface.go
package browser

import (
	"context"
	"time"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

// Driver launches browser processes. One Browser is launched per scan.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process. Close must be safe to call more than once.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab inside a Browser.
type Page interface {
	SetViewport(ctx context.Context, vp schemas.Viewport) error
	// Navigate loads url and waits for the network to settle, bounded by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// Evaluate runs script in the page, awaiting a returned promise, and
	// decodes the JSON result into out. out may be nil.
	Evaluate(ctx context.Context, script string, out interface{}) error
	// Screenshot returns a PNG of the full scrollable page or of the viewport.
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
}

// LaunchOptions describes how the browser process is started.
type LaunchOptions struct {
	Headless        bool
	ExecPath        string
	DisableGPU      bool
	IgnoreTLSErrors bool
	UserAgent       string
	// Args are extra command line switches, "--name" or "--name=value".
	Args []string
	// NetworkIdleQuiet is the settle window used by Navigate.
	NetworkIdleQuiet time.Duration
}
