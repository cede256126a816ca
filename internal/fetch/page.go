package fetch

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/htmltable"
	"github.com/nao1215/scrapebook/internal/model"
)

// Page is a fetched document.
type Page struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the Content-Type response header.
	ContentType string

	// Raw is the body as served, before charset decoding.
	Raw []byte

	html string

	once   sync.Once
	doc    *goquery.Document
	docErr error
}

// NewPage builds a Page from already decoded HTML. It is used for sources
// that did not come through a Session, such as a browser's page source.
func NewPage(pageURL, html string) *Page {
	return &Page{
		URL:      pageURL,
		FinalURL: pageURL,
		Raw:      []byte(html),
		html:     html,
	}
}

// HTML returns the body decoded to UTF-8.
func (p *Page) HTML() string {
	return p.html
}

func (p *Page) document() (*goquery.Document, error) {
	p.once.Do(func() {
		p.doc, p.docErr = goquery.NewDocumentFromReader(strings.NewReader(p.html))
	})
	return p.doc, p.docErr
}

// Title returns the text of the first <title> element.
func (p *Page) Title() string {
	doc, err := p.document()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Find returns the elements matching a CSS selector in document order.
// An invalid selector matches nothing.
func (p *Page) Find(selector string) []model.Element {
	doc, err := p.document()
	if err != nil {
		return nil
	}
	var out []model.Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, ToElement(s))
	})
	return out
}

// ToElement snapshots a goquery selection's first node.
func ToElement(s *goquery.Selection) model.Element {
	if s.Length() == 0 {
		return model.NewElement("", nil, "")
	}
	n := s.Get(0)
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}
	return model.NewElement(goquery.NodeName(s), attrs, s.Text())
}

// AbsoluteLinks returns every href in the document resolved against the
// page URL, deduplicated in document order. Script, mail, phone, data and
// bare fragment links are skipped.
func (p *Page) AbsoluteLinks() []string {
	doc, err := p.document()
	if err != nil {
		return nil
	}

	base := pageBase(p.FinalURL, p.URL)
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && base != nil {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(u)
		}
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href], area[href]").Each(func(_ int, s *goquery.Selection) {
		link := resolveURL(base, s.AttrOr("href", ""))
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// Tables extracts the page's tables. The cached document is not touched.
func (p *Page) Tables(opts ...htmltable.Option) ([]*frame.Frame, error) {
	return htmltable.ReadString(p.html, opts...)
}

// pageBase returns the first candidate that parses as an absolute URL.
func pageBase(candidates ...string) *url.URL {
	for _, c := range candidates {
		if u, err := url.Parse(c); err == nil && u.IsAbs() {
			return u
		}
	}
	return nil
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if !u.IsAbs() {
			return ""
		}
		return u.String()
	}
	resolved := base.ResolveReference(u)
	resolved.Fragment = ""
	return resolved.String()
}
