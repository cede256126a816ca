// Package browsertest provides an in-memory browser.Browser for tests.
//
// Pages are served from a map of URL to HTML and queried with goquery, so
// recipes and pipeline steps can be exercised without launching Chromium.
// Every interaction is appended to the page's Actions log.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/scrapebook/internal/browser"
)

// Browser serves Sites to the pages it opens.
type Browser struct {
	// Sites maps URL to HTML.
	Sites map[string]string

	// Redirects maps a URL to the URL the page ends up on.
	Redirects map[string]string

	mu     sync.Mutex
	pages  []*Page
	closed int
}

// New creates a Browser serving sites.
func New(sites map[string]string) *Browser {
	return &Browser{Sites: sites}
}

// NewPage implements browser.Browser.
func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &Page{sites: b.Sites, redirects: b.Redirects, Width: browser.DefaultWidth, Height: browser.DefaultHeight}
	b.pages = append(b.pages, p)
	return p, nil
}

// Capabilities implements browser.Browser.
func (b *Browser) Capabilities() map[string]string {
	return map[string]string{"engine": "fake", "browserName": "FakeChrome", "browserVersion": "1.0"}
}

// Close implements browser.Browser.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

// Closed reports how many times Close was called.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Pages returns the pages opened so far.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Page(nil), b.pages...)
}

// Page is a fake tab.
type Page struct {
	sites     map[string]string
	redirects map[string]string

	URL     string
	Width   int
	Height  int
	Actions []string
	Closed  bool

	doc *goquery.Document
}

// NewPage returns a standalone page already showing html.
func NewPage(url, html string) *Page {
	p := &Page{sites: map[string]string{url: html}}
	_ = p.Navigate(context.Background(), url)
	p.Actions = nil
	return p
}

func (p *Page) record(format string, args ...any) {
	p.Actions = append(p.Actions, fmt.Sprintf(format, args...))
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		to, ok := p.redirects[url]
		if !ok {
			break
		}
		url = to
	}
	html, ok := p.sites[url]
	if !ok {
		return fmt.Errorf("failed to navigate to %s: no such page", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	p.URL = url
	p.doc = doc
	p.record("navigate %s", url)
	return nil
}

// Location implements browser.Page.
func (p *Page) Location(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.URL, nil
}

// SetViewport implements browser.Page.
func (p *Page) SetViewport(_ context.Context, width, height int) error {
	p.Width, p.Height = width, height
	p.record("viewport %dx%d", width, height)
	return nil
}

// Title implements browser.Page.
func (p *Page) Title(context.Context) (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

// HTML implements browser.Page.
func (p *Page) HTML(context.Context) (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return goquery.OuterHtml(p.doc.Selection)
}

// Find implements browser.Page.
func (p *Page) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	return find(ctx, p, p.doc.Selection, sel)
}

// FindAll implements browser.Page.
func (p *Page) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if p.doc == nil {
		return nil, nil
	}
	return findAll(ctx, p, p.doc.Selection, sel)
}

// WaitVisible implements browser.Page.
func (p *Page) WaitVisible(ctx context.Context, sel browser.Selector, _ time.Duration) error {
	if _, err := p.Find(ctx, sel); err != nil {
		return err
	}
	p.record("wait %s", sel)
	return nil
}

// Screenshot implements browser.Page. It writes a placeholder file.
func (p *Page) Screenshot(_ context.Context, path string) error {
	p.record("screenshot %s", path)
	return os.WriteFile(path, []byte("PNG"), 0o600)
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.Closed = true
	return nil
}

// Element is a node in a fake page.
type Element struct {
	page *Page
	sel  *goquery.Selection
}

func find(ctx context.Context, p *Page, root *goquery.Selection, sel browser.Selector) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := root.Find(sel.CSS()).First()
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, sel)
	}
	return &Element{page: p, sel: s}, nil
}

func findAll(ctx context.Context, p *Page, root *goquery.Selection, sel browser.Selector) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []browser.Element
	root.Find(sel.CSS()).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &Element{page: p, sel: s})
	})
	return out, nil
}

// Text implements browser.Element.
func (e *Element) Text(context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

// Attribute implements browser.Element.
func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// Click implements browser.Element. A link click navigates when the
// target is one of the served sites.
func (e *Element) Click(ctx context.Context) error {
	e.page.record("click %s", describe(e.sel))
	if href, ok := e.sel.Attr("href"); ok {
		if _, served := e.page.sites[href]; served {
			return e.page.Navigate(ctx, href)
		}
	}
	return nil
}

// Clear implements browser.Element.
func (e *Element) Clear(context.Context) error {
	e.sel.SetAttr("value", "")
	e.page.record("clear %s", describe(e.sel))
	return nil
}

// Type implements browser.Element.
func (e *Element) Type(_ context.Context, text string) error {
	e.sel.SetAttr("value", e.sel.AttrOr("value", "")+text)
	e.page.record("type %s %q", describe(e.sel), text)
	return nil
}

// Submit implements browser.Element.
func (e *Element) Submit(context.Context) error {
	e.page.record("submit %s", describe(e.sel))
	return nil
}

// Find implements browser.Element.
func (e *Element) Find(ctx context.Context, sel browser.Selector) (browser.Element, error) {
	return find(ctx, e.page, e.sel, sel)
}

// FindAll implements browser.Element.
func (e *Element) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	return findAll(ctx, e.page, e.sel, sel)
}

func describe(s *goquery.Selection) string {
	name := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok {
		return name + "#" + id
	}
	return name
}
