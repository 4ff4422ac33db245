// Package chrome implements the preview boundary on a headless Chrome
// driven through the DevTools protocol. Each context is its own tab;
// destroying the context closes the tab and everything it scheduled.
package chrome

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/livepen/internal/domain/preview"
	"github.com/GriffinCanCode/livepen/internal/infrastructure/logging"
	"github.com/GriffinCanCode/livepen/internal/shared/id"
)

var (
	// ErrClosed is returned by operations on a closed tab or boundary
	ErrClosed = errors.New("chrome context closed")
	// ErrNoMatch is returned by Dispatch when the selector matches nothing
	ErrNoMatch = errors.New("selector matched no element")
)

// Config controls the browser process
type Config struct {
	ExecPath    string        // Empty lets chromedp search the usual locations
	Headless    bool          // Run without a window
	LoadTimeout time.Duration // Limit for navigating a new tab
}

// DefaultConfig returns the default Chrome configuration
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		LoadTimeout: 10 * time.Second,
	}
}

// Boundary implements preview.Boundary with one Chrome tab per context
type Boundary struct {
	config Config
	log    *zap.Logger

	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	live   map[string]*Tab
	closed bool
}

var _ preview.Boundary = (*Boundary)(nil)

// Options returns the allocator options for config
func Options(config Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("mute-audio", true),
	)
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	return opts
}

// NewBoundary starts the browser process. It fails when Chrome cannot be
// launched.
func NewBoundary(config Config, log *zap.Logger) (*Boundary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultConfig().LoadTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), Options(config)...)
	browser, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Warnf),
	)

	// The first Run launches the process
	if err := chromedp.Run(browser); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	log.Info("chrome boundary started", zap.String("exec_path", config.ExecPath))
	return &Boundary{
		config:        config,
		log:           log,
		allocCancel:   allocCancel,
		browser:       browser,
		browserCancel: browserCancel,
		live:          make(map[string]*Tab),
	}, nil
}

// Create opens a tab showing document. Script faults never fail Create;
// the document's own harness reports them.
func (b *Boundary) Create(ctx context.Context, document string) (preview.Handle, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(b.browser)
	tab := &Tab{id: id.NewHandleID(), ctx: tabCtx, cancel: cancel}

	// Open the target on the tab context itself; runs on derived
	// contexts would otherwise close it when they end
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	loadCtx, stop := tab.bind(ctx, b.config.LoadTimeout)
	err := chromedp.Run(loadCtx,
		chromedp.Navigate(DataURL(document)),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	stop()
	if err != nil {
		tab.close()
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	b.mu.Lock()
	b.live[tab.id] = tab
	b.mu.Unlock()

	b.log.Debug("chrome context created", logging.Handle(tab.id))
	return tab, nil
}

// Destroy closes the tab behind h
func (b *Boundary) Destroy(h preview.Handle) error {
	if h == nil {
		return nil
	}
	tab, ok := h.(*Tab)
	if !ok {
		return fmt.Errorf("chrome cannot destroy foreign handle %q", h.ID())
	}

	b.mu.Lock()
	delete(b.live, tab.id)
	b.mu.Unlock()

	tab.close()
	return nil
}

// Live returns the number of open tabs
func (b *Boundary) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Close closes every tab and stops the browser process
func (b *Boundary) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tabs := make([]*Tab, 0, len(b.live))
	for _, t := range b.live {
		tabs = append(tabs, t)
	}
	b.live = make(map[string]*Tab)
	b.mu.Unlock()

	for _, t := range tabs {
		t.close()
	}
	b.browserCancel()
	b.allocCancel()
	return nil
}

// DataURL encodes document as a navigable data: URL
func DataURL(document string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(document))
}
