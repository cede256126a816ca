package browser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	pw "github.com/playwright-community/playwright-go"
)

type pwBrowser struct {
	browser pw.Browser
	opts    Options
	caps    map[string]string
	closer  *closeOnce
}

// playwrightDriverDir returns where the playwright driver is kept.
func playwrightDriverDir(opts Options) string {
	if opts.DriverDir != "" {
		return opts.DriverDir
	}
	return filepath.Join(xdg.CacheHome, "scrapebook", "playwright")
}

func openPlaywright(ctx context.Context, opts Options) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runOpts := &pw.RunOptions{
		DriverDirectory: playwrightDriverDir(opts),
		Browsers:        []string{"chromium"},
	}
	if opts.InstallDriver {
		opts.Logger.Info("installing playwright driver", "dir", runOpts.DriverDirectory)
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright driver: %w", err)
		}
	}

	driver, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(opts.Headless),
		Timeout:  pw.Float(float64(opts.Timeout.Milliseconds())),
	}
	if opts.BrowserPath != "" {
		launch.ExecutablePath = pw.String(opts.BrowserPath)
	}
	b, err := driver.Chromium.Launch(launch)
	if err != nil {
		_ = driver.Stop()
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	caps := map[string]string{
		"engine":         EnginePlaywright,
		"headless":       strconv.FormatBool(opts.Headless),
		"browserName":    driver.Chromium.Name(),
		"browserVersion": b.Version(),
	}
	if opts.UserAgent != "" {
		caps["userAgent"] = opts.UserAgent
	}

	pb := &pwBrowser{browser: b, opts: opts, caps: caps}
	pb.closer = newCloseOnce(opts.Logger, func() error {
		return errors.Join(b.Close(), driver.Stop())
	})
	return pb, nil
}

func (b *pwBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctxOpts := pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: b.opts.Width, Height: b.opts.Height},
	}
	if b.opts.UserAgent != "" {
		ctxOpts.UserAgent = pw.String(b.opts.UserAgent)
	}
	bctx, err := b.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.opts.ImplicitWait.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(b.opts.Timeout.Milliseconds()))

	return &pwPage{page: page, bctx: bctx, opts: b.opts}, nil
}

func (b *pwBrowser) Capabilities() map[string]string {
	return copyCaps(b.caps)
}

func (b *pwBrowser) Close() error {
	return b.closer.Close()
}

type pwPage struct {
	page pw.Page
	bctx pw.BrowserContext
	opts Options
}

func (p *pwPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, pw.PageGotoOptions{WaitUntil: pw.WaitUntilStateLoad}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *pwPage) SetViewport(ctx context.Context, width, height int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.SetViewportSize(width, height); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	return nil
}

func (p *pwPage) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Title()
}

func (p *pwPage) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

func (p *pwPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	html, err := p.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

func (p *pwPage) Find(ctx context.Context, sel Selector) (Element, error) {
	return findLocator(ctx, p.page.Locator(sel.CSS()), sel, p.opts)
}

func (p *pwPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return allLocators(ctx, p.page.Locator(sel.CSS()), sel, p.opts)
}

func (p *pwPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Locator(sel.CSS()).First().WaitFor(pw.LocatorWaitForOptions{
		State:   pw.WaitForSelectorStateVisible,
		Timeout: pw.Float(float64(timeout.Milliseconds())),
	})
	if errors.Is(err, pw.ErrTimeout) {
		return fmt.Errorf("%s did not become visible: %w", sel, notFound(sel))
	}
	return err
}

func (p *pwPage) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	png, err := p.page.Screenshot()
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeScreenshot(path, png)
}

func (p *pwPage) Close() error {
	return errors.Join(p.page.Close(), p.bctx.Close())
}

type pwElement struct {
	loc  pw.Locator
	opts Options
}

func findLocator(ctx context.Context, loc pw.Locator, sel Selector, opts Options) (Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	first := loc.First()
	err := first.WaitFor(pw.LocatorWaitForOptions{
		State:   pw.WaitForSelectorStateAttached,
		Timeout: pw.Float(float64(opts.ImplicitWait.Milliseconds())),
	})
	if errors.Is(err, pw.ErrTimeout) {
		return nil, notFound(sel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", sel, err)
	}
	return &pwElement{loc: first, opts: opts}, nil
}

func allLocators(ctx context.Context, loc pw.Locator, sel Selector, opts Options) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locs, err := loc.All()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	out := make([]Element, 0, len(locs))
	for _, l := range locs {
		out = append(out, &pwElement{loc: l, opts: opts})
	}
	return out, nil
}

func (e *pwElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.loc.InnerText()
}

func (e *pwElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, err := e.loc.Evaluate("(el, name) => el.getAttribute(name)", name)
	if err != nil {
		return "", false, err
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (e *pwElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Click()
}

func (e *pwElement) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Clear()
}

func (e *pwElement) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.PressSequentially(text)
}

func (e *pwElement) Submit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.Press("Enter")
}

func (e *pwElement) Find(ctx context.Context, sel Selector) (Element, error) {
	return findLocator(ctx, e.loc.Locator(sel.CSS()), sel, e.opts)
}

func (e *pwElement) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return allLocators(ctx, e.loc.Locator(sel.CSS()), sel, e.opts)
}
