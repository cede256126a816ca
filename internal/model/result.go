package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nao1215/scrapebook/internal/frame"
)

// Engine names recorded in Result.Engine.
const (
	EngineHTTP       = "http"
	EngineFile       = "file"
	EngineRod        = "rod"
	EngineChromedp   = "chromedp"
	EnginePlaywright = "playwright"
)

// MaxHTMLSize is the maximum size of page source kept in a Result.
// Larger sources are truncated after the derived data has been extracted.
const MaxHTMLSize = 5 * 1024 * 1024 // 5 MB

// Result is everything collected for one target URL by one pipeline run.
type Result struct {
	// URL is the requested URL.
	URL string `json:"url"`

	// FinalURL is the URL after redirects or browser navigation.
	FinalURL string `json:"final_url,omitempty"`

	// Engine is how the page was loaded: "http", "file" or a browser engine name.
	Engine string `json:"engine"`

	// StatusCode is the HTTP status code. Browser engines leave it zero.
	StatusCode int `json:"status_code,omitempty"`

	// ContentType is the response content type, if known.
	ContentType string `json:"content_type,omitempty"`

	// Title is the document title.
	Title string `json:"title,omitempty"`

	// HTML is the raw (http) or rendered (browser) page source.
	HTML string `json:"-"`

	// HTMLHash is the SHA-256 of HTML before truncation.
	HTMLHash string `json:"html_hash,omitempty"`

	// Capabilities describes the browser that rendered the page.
	Capabilities map[string]string `json:"capabilities,omitempty"`

	// Lines are the first lines of the document body.
	Lines []string `json:"lines,omitempty"`

	// Links are absolute links found in the document.
	Links []string `json:"links,omitempty"`

	// Elements are elements matched by a selector.
	Elements []Element `json:"elements,omitempty"`

	// Tables are the extracted or assembled tables.
	Tables []*frame.Frame `json:"tables,omitempty"`

	// Screenshot is the path of a screenshot taken during the run.
	Screenshot string `json:"screenshot,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Error is the error that stopped the run, if any.
	Error error `json:"-"`

	// ErrorMessage is Error rendered for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// TimedOut is true when the run was cancelled before finishing.
	TimedOut bool `json:"timed_out,omitempty"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewResult creates an empty Result for the given URL.
func NewResult(url string) *Result {
	return &Result{
		URL:       url,
		StartedAt: time.Now(),
	}
}

// SetHTML stores the page source and its hash.
func (r *Result) SetHTML(html string) {
	r.HTML = html
	if html == "" {
		r.HTMLHash = ""
		return
	}
	sum := sha256.Sum256([]byte(html))
	r.HTMLHash = hex.EncodeToString(sum[:])
}

// TruncateHTML ensures HTML doesn't exceed MaxHTMLSize. The cut never
// splits a UTF-8 sequence. HTMLHash still describes the full source.
func (r *Result) TruncateHTML() {
	if len(r.HTML) <= MaxHTMLSize {
		return
	}
	n := MaxHTMLSize
	for n > 0 && !utf8.RuneStart(r.HTML[n]) {
		n--
	}
	r.HTML = r.HTML[:n]
}

// IsHTML reports whether the content type indicates HTML. An unknown
// content type (browser engines) counts as HTML.
func (r *Result) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	ct := strings.ToLower(r.ContentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

// Fail records err as the reason the run stopped.
func (r *Result) Fail(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the run recorded an error.
func (r *Result) Failed() bool {
	return r.ErrorMessage != ""
}

// Finish stamps the end time.
func (r *Result) Finish() {
	r.FinishedAt = time.Now()
}

// Duration is how long the run took, or zero when it has not finished.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
