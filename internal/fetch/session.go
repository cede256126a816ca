package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/htmltable"
)

const (
	// DefaultUserAgent is sent unless a session or site overrides it.
	// Some sites answer the Go default agent with a bot wall.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// DefaultRobotsAgent is the product token matched against robots.txt groups.
	DefaultRobotsAgent = "scrapebook"

	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize caps response bodies.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024 // 10MB

	maxRedirects = 10
)

// SiteSettings are request settings for one host.
type SiteSettings struct {
	// Cookie is sent as the Cookie header. Format: "name=value; name2=value2".
	Cookie string

	// Headers are added to every request to the host.
	Headers map[string]string

	// UserAgent overrides the session User-Agent when set.
	UserAgent string

	// Robots overrides the session's robots.txt setting when non-nil.
	Robots *bool
}

// Session is an HTTP client that keeps cookies between requests.
// It is safe for concurrent use.
type Session struct {
	client *resty.Client
	logger *slog.Logger

	userAgent     string
	robotsAgent   string
	timeout       time.Duration
	maxBodySize   int64
	respectRobots bool
	cloudflare    bool
	headers       map[string]string
	sites         func(host string) SiteSettings
	transport     http.RoundTripper

	robots *robotsCache
}

// Option configures a Session.
type Option func(*Session)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithRobotsAgent sets the agent name matched against robots.txt.
func WithRobotsAgent(agent string) Option {
	return func(s *Session) {
		if agent != "" {
			s.robotsAgent = agent
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithMaxBodySize sets the response body cap in bytes.
func WithMaxBodySize(n int64) Option {
	return func(s *Session) {
		s.maxBodySize = n
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(s *Session) {
		s.headers[key] = value
	}
}

// WithRespectRobots makes Get refuse URLs disallowed by robots.txt.
func WithRespectRobots(respect bool) Option {
	return func(s *Session) {
		s.respectRobots = respect
	}
}

// WithCloudflareBypass wraps the transport so TLS and header fingerprints
// look like a regular browser.
func WithCloudflareBypass(enabled bool) Option {
	return func(s *Session) {
		s.cloudflare = enabled
	}
}

// WithSiteSettings sets the lookup used to find per-host settings.
func WithSiteSettings(lookup func(host string) SiteSettings) Option {
	return func(s *Session) {
		s.sites = lookup
	}
}

// WithLogger sets the logger. resty's own messages are forwarded to it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Session) {
		s.transport = rt
	}
}

// NewSession creates a Session.
func NewSession(opts ...Option) (*Session, error) {
	s := &Session{
		logger:      slog.Default(),
		userAgent:   DefaultUserAgent,
		robotsAgent: DefaultRobotsAgent,
		timeout:     DefaultTimeout,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
		robots:      newRobotsCache(),
	}
	for _, opt := range opts {
		opt(s)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New()
	if s.transport != nil {
		client.SetTransport(s.transport)
	}
	client.SetCookieJar(jar)
	client.SetTimeout(s.timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetLogger(restyLogger{logger: s.logger})
	client.SetHeader("User-Agent", s.userAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.5")
	client.SetHeaders(s.headers)
	if s.cloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	s.client = client

	return s, nil
}

// Cookies returns the cookies the session holds for rawURL.
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.client.GetClient().Jar.Cookies(u)
}

// Get fetches rawURL and returns the decoded page.
func (s *Session) Get(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: unsupported scheme %q", rawURL, u.Scheme)
	}

	site := s.siteSettings(u.Hostname())

	respect := s.respectRobots
	if site.Robots != nil {
		respect = *site.Robots
	}
	if respect && !s.allowed(ctx, rawURL) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowedByRobots)
	}

	req := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaders(site.Headers)
	if site.Cookie != "" {
		req.SetHeader("Cookie", site.Cookie)
	}
	if site.UserAgent != "" {
		req.SetHeader("User-Agent", site.UserAgent)
	}

	s.logger.Debug("fetching", "url", rawURL)
	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode()}
	}

	raw, err := readLimited(body, s.maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	contentType := resp.Header().Get("Content-Type")
	decoded, err := decode(raw, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}

	s.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode(), "bytes", len(raw))

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode(),
		ContentType: contentType,
		Raw:         raw,
		html:        decoded,
	}, nil
}

// ReadTables fetches rawURL and extracts its tables.
func (s *Session) ReadTables(ctx context.Context, rawURL string, opts ...htmltable.Option) ([]*frame.Frame, error) {
	page, err := s.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return page.Tables(opts...)
}

func (s *Session) siteSettings(host string) SiteSettings {
	if s.sites == nil {
		return SiteSettings{}
	}
	return s.sites(host)
}

// readLimited reads at most limit bytes, failing with ErrBodyTooLarge when
// the body is longer. A limit of zero or less disables the cap.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, ErrBodyTooLarge
	}
	return raw, nil
}

// decode converts raw to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		// Unknown charset label: fall back to the bytes as served.
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
