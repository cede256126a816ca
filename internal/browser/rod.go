package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

type rodBrowser struct {
	browser *rod.Browser
	opts    Options
	caps    map[string]string
	closer  *closeOnce
}

func openRod(ctx context.Context, opts Options) (Browser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", opts.Width, opts.Height))
	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	caps := map[string]string{
		"engine":   EngineRod,
		"headless": strconv.FormatBool(opts.Headless),
	}
	if v, err := b.Version(); err == nil {
		caps["browserName"], caps["browserVersion"] = splitProduct(v.Product)
		caps["protocolVersion"] = v.ProtocolVersion
		caps["userAgent"] = v.UserAgent
	}
	if opts.UserAgent != "" {
		caps["userAgent"] = opts.UserAgent
	}

	rb := &rodBrowser{browser: b, opts: opts, caps: caps}
	rb.closer = newCloseOnce(opts.Logger, func() error {
		err := b.Close()
		l.Kill()
		l.Cleanup()
		return err
	})
	return rb, nil
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	// Detach from the creation context so the tab outlives it.
	p = p.Context(context.Background())

	page := &rodPage{page: p, opts: b.opts}
	if err := page.SetViewport(ctx, b.opts.Width, b.opts.Height); err != nil {
		return nil, err
	}
	if b.opts.UserAgent != "" {
		if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.opts.UserAgent}); err != nil {
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}
	return page, nil
}

func (b *rodBrowser) Capabilities() map[string]string {
	return copyCaps(b.caps)
}

func (b *rodBrowser) Close() error {
	return b.closer.Close()
}

type rodPage struct {
	page *rod.Page
	opts Options
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.opts.Timeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) SetViewport(ctx context.Context, width, height int) error {
	err := p.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	return nil
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return info.Title, nil
}

func (p *rodPage) Location(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return info.URL, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

func (p *rodPage) Find(ctx context.Context, sel Selector) (Element, error) {
	el, err := p.page.Context(ctx).Timeout(p.opts.ImplicitWait).Element(sel.CSS())
	if err != nil {
		return nil, rodLookupError(ctx, sel, err)
	}
	return &rodElement{el: el.CancelTimeout(), opts: p.opts}, nil
}

func (p *rodPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(sel.CSS())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	return wrapRod(els, p.opts), nil
}

func (p *rodPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	tctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(tctx).Element(sel.CSS())
	if err != nil {
		return rodLookupError(tctx, sel, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("%s did not become visible: %w", sel, err)
	}
	return nil
}

func (p *rodPage) Screenshot(ctx context.Context, path string) error {
	png, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeScreenshot(path, png)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

type rodElement struct {
	el   *rod.Element
	opts Options
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Clear(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`function() {
		this.value = "";
		this.dispatchEvent(new Event("input", { bubbles: true }));
	}`)
	return err
}

func (e *rodElement) Type(ctx context.Context, text string) error {
	return e.el.Context(ctx).Input(text)
}

func (e *rodElement) Submit(ctx context.Context) error {
	return e.el.Context(ctx).Type(input.Enter)
}

func (e *rodElement) Find(ctx context.Context, sel Selector) (Element, error) {
	el, err := e.el.Context(ctx).Timeout(e.opts.ImplicitWait).Element(sel.CSS())
	if err != nil {
		return nil, rodLookupError(ctx, sel, err)
	}
	return &rodElement{el: el.CancelTimeout(), opts: e.opts}, nil
}

func (e *rodElement) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(sel.CSS())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	return wrapRod(els, e.opts), nil
}

func wrapRod(els rod.Elements, opts Options) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, opts: opts})
	}
	return out
}

// rodLookupError maps rod's wait timeouts to ErrElementNotFound while
// keeping cancellation of the caller's context visible.
func rodLookupError(ctx context.Context, sel Selector, err error) error {
	if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	var nf *rod.ElementNotFoundError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &nf) {
		return notFound(sel)
	}
	return fmt.Errorf("failed to find %s: %w", sel, err)
}
