package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

type cdpBrowser struct {
	ctx    context.Context
	opts   Options
	caps   map[string]string
	closer *closeOnce
}

func openChromedp(ctx context.Context, opts Options) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.BrowserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			opts.Logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)

	caps := map[string]string{
		"engine":   EngineChromedp,
		"headless": strconv.FormatBool(opts.Headless),
	}
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		protocol, product, _, userAgent, _, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		caps["browserName"], caps["browserVersion"] = splitProduct(product)
		caps["protocolVersion"] = protocol
		caps["userAgent"] = userAgent
		return nil
	}))
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	b := &cdpBrowser{ctx: browserCtx, opts: opts, caps: caps}
	b.closer = newCloseOnce(opts.Logger, func() error {
		err := chromedp.Cancel(browserCtx)
		cancelBrowser()
		cancelAlloc()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return b, nil
}

func (b *cdpBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	p := &cdpPage{ctx: tabCtx, cancel: cancel, opts: b.opts}
	// The first Run on a new context creates the tab.
	if err := p.run(ctx, chromedp.EmulateViewport(int64(b.opts.Width), int64(b.opts.Height))); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return p, nil
}

func (b *cdpBrowser) Capabilities() map[string]string {
	return copyCaps(b.caps)
}

func (b *cdpBrowser) Close() error {
	return b.closer.Close()
}

type cdpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
}

// run executes actions in the tab, stopping early when ctx is done.
func (p *cdpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// runFor is run with an additional time limit.
func (p *cdpPage) runFor(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := withTimeout(ctx, d)
	defer cancel()
	err := p.run(tctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return context.DeadlineExceeded
	}
	return err
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	if err := p.runFor(ctx, p.opts.Timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *cdpPage) SetViewport(ctx context.Context, width, height int) error {
	if err := p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}
	return nil
}

func (p *cdpPage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (p *cdpPage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

func (p *cdpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

func (p *cdpPage) Find(ctx context.Context, sel Selector) (Element, error) {
	return p.find(ctx, sel)
}

func (p *cdpPage) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return p.findAll(ctx, sel)
}

func (p *cdpPage) find(ctx context.Context, sel Selector, opts ...chromedp.QueryOption) (Element, error) {
	var nodes []*cdp.Node
	queryOpts := append([]chromedp.QueryOption{chromedp.ByQuery}, opts...)
	err := p.runFor(ctx, p.opts.ImplicitWait, chromedp.Nodes(sel.CSS(), &nodes, queryOpts...))
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, notFound(sel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", sel, err)
	}
	if len(nodes) == 0 {
		return nil, notFound(sel)
	}
	return &cdpElement{page: p, node: nodes[0]}, nil
}

func (p *cdpPage) findAll(ctx context.Context, sel Selector, opts ...chromedp.QueryOption) ([]Element, error) {
	var nodes []*cdp.Node
	queryOpts := append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, opts...)
	if err := p.run(ctx, chromedp.Nodes(sel.CSS(), &nodes, queryOpts...)); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", sel, err)
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &cdpElement{page: p, node: n})
	}
	return out, nil
}

func (p *cdpPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) error {
	err := p.runFor(ctx, timeout, chromedp.WaitVisible(sel.CSS(), chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s did not become visible: %w", sel, notFound(sel))
	}
	return err
}

func (p *cdpPage) Screenshot(ctx context.Context, path string) error {
	var png []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&png)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return writeScreenshot(path, png)
}

func (p *cdpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type cdpElement struct {
	page *cdpPage
	node *cdp.Node
}

func (e *cdpElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *cdpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.page.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID))
	return text, err
}

func (e *cdpElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := e.page.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID))
	return value, ok, err
}

func (e *cdpElement) Click(ctx context.Context) error {
	return e.page.run(ctx, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *cdpElement) Clear(ctx context.Context) error {
	return e.page.run(ctx, chromedp.Clear(e.ids(), chromedp.ByNodeID))
}

func (e *cdpElement) Type(ctx context.Context, text string) error {
	return e.page.run(ctx, chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID))
}

func (e *cdpElement) Submit(ctx context.Context) error {
	return e.page.run(ctx, chromedp.SendKeys(e.ids(), kb.Enter, chromedp.ByNodeID))
}

func (e *cdpElement) Find(ctx context.Context, sel Selector) (Element, error) {
	return e.page.find(ctx, sel, chromedp.FromNode(e.node))
}

func (e *cdpElement) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	return e.page.findAll(ctx, sel, chromedp.FromNode(e.node))
}
