package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/scrapebook/internal/model"
)

// Engine names accepted by Open.
const (
	EngineRod        = model.EngineRod
	EngineChromedp   = model.EngineChromedp
	EnginePlaywright = model.EnginePlaywright
)

// Defaults applied by Open for zero-valued Options fields.
const (
	DefaultWidth        = 1024
	DefaultHeight       = 768
	DefaultImplicitWait = 5 * time.Second
	DefaultTimeout      = 60 * time.Second
)

var (
	// ErrUnknownEngine is returned by Open for an engine name it does not know.
	ErrUnknownEngine = errors.New("unknown browser engine")

	// ErrElementNotFound is returned when no element matches a selector
	// within the wait allowed for the lookup.
	ErrElementNotFound = errors.New("element not found")
)

// Engines lists the supported engine names.
func Engines() []string {
	return []string{EngineRod, EngineChromedp, EnginePlaywright}
}

// Browser is a running browser process.
type Browser interface {
	// NewPage opens a new tab.
	NewPage(ctx context.Context) (Page, error)

	// Capabilities describes the browser, e.g. its name and version.
	Capabilities() map[string]string

	// Close shuts the browser down. Calls after the first return nil.
	Close() error
}

// Page is a browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	SetViewport(ctx context.Context, width, height int) error
	Title(ctx context.Context) (string, error)

	// Location returns the URL the tab shows, after redirects.
	Location(ctx context.Context) (string, error)

	// HTML returns the page source after scripts have run.
	HTML(ctx context.Context) (string, error)

	// Find returns the first match, waiting up to the implicit wait.
	Find(ctx context.Context, sel Selector) (Element, error)

	// FindAll returns every current match without waiting. The result may
	// be empty.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)

	// WaitVisible blocks until the first match is visible or timeout passes.
	WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error

	// Screenshot writes a PNG of the viewport to path.
	Screenshot(ctx context.Context, path string) error

	Close() error
}

// Element is a node on a Page.
type Element interface {
	// Text returns the rendered text.
	Text(ctx context.Context) (string, error)

	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)

	Click(ctx context.Context) error

	// Clear empties an input or textarea.
	Clear(ctx context.Context) error

	// Type sends keystrokes to the element.
	Type(ctx context.Context, text string) error

	// Submit presses Enter in the element.
	Submit(ctx context.Context) error

	Find(ctx context.Context, sel Selector) (Element, error)
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
}

// Options configures Open.
type Options struct {
	// Engine is one of EngineRod, EngineChromedp or EnginePlaywright.
	Engine string

	// Headless hides the browser window.
	Headless bool

	// Width and Height size the viewport. Zero means 1024x768.
	Width  int
	Height int

	// ImplicitWait is how long Find waits for a match. Zero means 5s.
	ImplicitWait time.Duration

	// Timeout bounds navigation. Zero means 60s.
	Timeout time.Duration

	// UserAgent overrides the browser's User-Agent when set.
	UserAgent string

	// BrowserPath is the Chromium executable. Empty lets the engine find
	// or download one.
	BrowserPath string

	// InstallDriver lets the playwright engine download its driver and
	// Chromium into DriverDir.
	InstallDriver bool

	// DriverDir is where the playwright driver lives. Empty means the
	// user cache directory.
	DriverDir string

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.ImplicitWait <= 0 {
		o.ImplicitWait = DefaultImplicitWait
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Open launches a browser with the requested engine.
func Open(ctx context.Context, opts Options) (Browser, error) {
	opts = opts.withDefaults()
	opts.Logger.Debug("opening browser",
		"engine", opts.Engine,
		"headless", opts.Headless,
		"width", opts.Width,
		"height", opts.Height)

	switch opts.Engine {
	case EngineRod:
		return openRod(ctx, opts)
	case EngineChromedp:
		return openChromedp(ctx, opts)
	case EnginePlaywright:
		return openPlaywright(ctx, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, opts.Engine)
	}
}

// closeOnce runs fn on the first Close and nothing afterwards.
type closeOnce struct {
	mu     sync.Mutex
	closed bool
	fn     func() error
	logger *slog.Logger
}

func newCloseOnce(logger *slog.Logger, fn func() error) *closeOnce {
	return &closeOnce{fn: fn, logger: logger}
}

func (c *closeOnce) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Debug("browser already closed")
		return nil
	}
	c.closed = true
	return c.fn()
}

func notFound(sel Selector) error {
	return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
}

// writeScreenshot stores png at path, creating parent directories.
func writeScreenshot(path string, png []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create screenshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// withTimeout derives a context bounded by d, or by ctx alone when d <= 0.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// splitProduct splits a DevTools product string such as
// "HeadlessChrome/120.0.6099.109" into name and version.
func splitProduct(product string) (name, version string) {
	name, version, found := strings.Cut(product, "/")
	if !found {
		return product, ""
	}
	return name, version
}

func copyCaps(caps map[string]string) map[string]string {
	out := make(map[string]string, len(caps))
	for k, v := range caps {
		out[k] = v
	}
	return out
}
