package chrome

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Tab is one live Chrome target
type Tab struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// ID returns the handle id
func (t *Tab) ID() string { return t.id }

// Closed reports whether the tab has been destroyed
func (t *Tab) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Snapshot serializes the live DOM of the tab
func (t *Tab) Snapshot(ctx context.Context) (string, error) {
	var out string
	if err := t.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return "<!DOCTYPE html>" + out, nil
}

// Settle waits until the document has finished loading
func (t *Tab) Settle(ctx context.Context) error {
	var complete bool
	return t.run(ctx, chromedp.Poll(`document.readyState === "complete"`, &complete))
}

// Dispatch fires eventType at the first element matching selector. Clicks
// go through the input pipeline; other events are synthesized in the page.
func (t *Tab) Dispatch(ctx context.Context, selector, eventType string) error {
	if eventType == "click" {
		return t.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
	}
	script := fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.dispatchEvent(new Event(%s, {bubbles: true}));
  return true;
})()`, strconv.Quote(selector), strconv.Quote(eventType))

	var found bool
	if err := t.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNoMatch, selector)
	}
	return nil
}

// Eval runs script in the page and returns its JSON-compatible result
func (t *Tab) Eval(ctx context.Context, script string) (interface{}, error) {
	var res interface{}
	if err := t.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if t.Closed() {
		return ErrClosed
	}
	runCtx, stop := t.bind(ctx, 0)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// bind derives a context from the tab that also ends with ctx
func (t *Tab) bind(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(t.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(t.ctx)
	}
	if timeout > 0 {
		var inner context.CancelFunc
		runCtx, inner = context.WithTimeout(runCtx, timeout)
		outer := cancel
		cancel = func() { inner(); outer() }
	}
	unhook := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		unhook()
		cancel()
	}
}

func (t *Tab) close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		_ = chromedp.Cancel(t.ctx)
		t.cancel()
	})
}
