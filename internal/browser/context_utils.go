package browser

import (
	"context"
	"time"
)

// pageCall scopes one page operation. It carries the tab's chromedp target,
// so the command reaches the right page, and it ends when either the tab is
// closed or the scan's own context (its navigation timeout, a batch
// cancellation) is done.
func pageCall(page, scan context.Context) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithCancel(page)

	go func() {
		select {
		case <-scan.Done():
			cancel()
		case <-callCtx.Done():
		}
	}()

	return callCtx, cancel
}

// launchContext keeps the launching caller's values but none of its deadline
// or cancellation.
type launchContext struct {
	context.Context
}

func (launchContext) Deadline() (deadline time.Time, ok bool) { return }

func (launchContext) Done() <-chan struct{} { return nil }

func (launchContext) Err() error { return nil }

// outliveCaller parents the Chrome process on ctx's values only. A scan whose
// deadline fires still reaches its deferred Browser.Close, which is the one
// place the process is terminated.
func outliveCaller(ctx context.Context) context.Context {
	return launchContext{ctx}
}
