// internal/browser/chrome.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/holmdigital/a11y-cli/api/schemas"
)

const (
	launchTimeout            = 30 * time.Second
	pageOpenTimeout          = 15 * time.Second
	defaultNavigationTimeout = 30 * time.Second
)

// ErrBrowserClosed is returned when a page is requested from a closed browser.
var ErrBrowserClosed = errors.New("browser is closed")

// ErrNavigationTimeout marks a navigation that did not settle within its timeout.
var ErrNavigationTimeout = errors.New("navigation timed out")

// ChromeDriver launches headless Chrome through the DevTools protocol.
type ChromeDriver struct {
	logger *zap.Logger
}

// NewChromeDriver creates a driver. The Chrome binary is located by chromedp
// unless LaunchOptions.ExecPath is set.
func NewChromeDriver(logger *zap.Logger) *ChromeDriver {
	return &ChromeDriver{logger: logger.Named("browser")}
}

// Launch starts a new browser process. The process outlives ctx and is only
// terminated by Browser.Close.
func (d *ChromeDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	d.logger.Debug("Launching browser.", zap.Bool("headless", opts.Headless), zap.String("exec_path", opts.ExecPath))

	allocCtx, allocCancel := chromedp.NewExecAllocator(outliveCaller(ctx), AllocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(d.logger.Sugar().Debugf),
	)

	release := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run allocates the browser. It must not carry a deadline, so the
	// bound is applied from outside.
	if err := runBounded(ctx, launchTimeout, browserCtx); err != nil {
		release()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	quiet := opts.NetworkIdleQuiet
	if quiet <= 0 {
		quiet = DefaultNetworkIdleQuiet
	}

	b := &chromeBrowser{
		logger:    d.logger,
		ctx:       browserCtx,
		idleQuiet: quiet,
	}
	b.shutdown = func() error {
		err := chromedp.Cancel(browserCtx)
		release()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	d.logger.Debug("Browser started.")
	return b, nil
}

// runBounded runs actions on a chromedp context whose first Run must not be
// given a deadline, returning early when ctx ends or the timeout elapses.
func runBounded(ctx context.Context, timeout time.Duration, target context.Context, actions ...chromedp.Action) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(target, actions...)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("no response from browser after %s: %w", timeout, context.DeadlineExceeded)
	}
}

// AllocatorOptions builds the chromedp allocator options for opts.
func AllocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range launchFlags(opts) {
		out = append(out, chromedp.Flag(f.name, f.value))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	return out
}

type launchFlag struct {
	name  string
	value interface{}
}

// launchFlags lists the command line switches applied on top of chromedp's
// defaults. A false boolean removes the switch.
func launchFlags(opts LaunchOptions) []launchFlag {
	flags := []launchFlag{
		{"headless", opts.Headless},
		{"disable-gpu", opts.DisableGPU},
		{"ignore-certificate-errors", opts.IgnoreTLSErrors},
		// Needed inside containers, where scans usually run.
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
	}

	for _, arg := range opts.Args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if found {
			flags = append(flags, launchFlag{key, value})
		} else {
			flags = append(flags, launchFlag{key, true})
		}
	}
	return flags
}

// chromeBrowser is a running Chrome process.
type chromeBrowser struct {
	logger    *zap.Logger
	ctx       context.Context
	idleQuiet time.Duration
	shutdown  func() error

	mu       sync.Mutex
	isClosed bool
}

// NewPage opens a new tab.
func (b *chromeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return nil, ErrBrowserClosed
	}

	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	if err := runBounded(ctx, pageOpenTimeout, tabCtx, network.Enable()); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &chromePage{logger: b.logger, ctx: tabCtx, idleQuiet: b.idleQuiet}, nil
}

// Close terminates the browser process. Subsequent calls are no-ops.
func (b *chromeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed {
		return nil
	}
	b.isClosed = true

	if b.shutdown == nil {
		return nil
	}
	if err := b.shutdown(); err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	b.logger.Debug("Browser closed.")
	return nil
}

// chromePage is one tab. Its context carries the chromedp target.
type chromePage struct {
	logger    *zap.Logger
	ctx       context.Context
	idleQuiet time.Duration
}

func (p *chromePage) SetViewport(ctx context.Context, vp schemas.Viewport) error {
	opCtx, cancel := pageCall(p.ctx, ctx)
	defer cancel()
	if err := chromedp.Run(opCtx, chromedp.EmulateViewport(int64(vp.Width), int64(vp.Height))); err != nil {
		return fmt.Errorf("failed to set viewport %dx%d: %w", vp.Width, vp.Height, err)
	}
	return nil
}

// Navigate loads url and then waits until no more than two requests have been
// in flight for the idle window. Both phases share the timeout.
func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	combined, cancel := pageCall(p.ctx, ctx)
	defer cancel()
	opCtx, cancelTimeout := context.WithTimeout(combined, timeout)
	defer cancelTimeout()

	tracker := newIdleTracker()
	chromedp.ListenTarget(opCtx, tracker.handle)

	start := time.Now()
	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s did not load within %s", ErrNavigationTimeout, url, timeout)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := tracker.wait(opCtx, p.idleQuiet); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s did not reach network idle within %s", ErrNavigationTimeout, url, timeout)
		}
		return err
	}

	p.logger.Debug("Navigation settled.", zap.String("url", url), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out interface{}) error {
	opCtx, cancel := pageCall(p.ctx, ctx)
	defer cancel()

	awaitPromise := func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true)
	}

	if out == nil {
		// The completion value of a library script can be cyclic, so it is
		// left in the page instead of being serialized.
		return chromedp.Run(opCtx, chromedp.Evaluate(script, nil, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(false).WithAwaitPromise(true)
		}))
	}

	var raw []byte
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &raw, awaitPromise)); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return nil
}

func (p *chromePage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	opCtx, cancel := pageCall(p.ctx, ctx)
	defer cancel()

	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		// Quality 100 selects PNG encoding.
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := chromedp.Run(opCtx, action); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}
