package config

import (
	"net/url"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/database"
	"github.com/nao1215/scrapebook/internal/fetch"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "scrapebook"

	// DefaultTimeout bounds each HTTP request and each browser navigation.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of URLs processed at once.
	DefaultConcurrency = 4

	// DefaultUserAgent is a desktop browser agent. Several sites answer
	// non-browser agents with a bot wall instead of the page.
	DefaultUserAgent = fetch.DefaultUserAgent

	// DefaultMaxBodySize limits the response body size read by the HTTP session.
	DefaultMaxBodySize = fetch.DefaultMaxBodySize

	// DefaultEngine is the browser engine used when none is requested.
	DefaultEngine = browser.EngineRod

	// DefaultWidth and DefaultHeight size the browser window.
	DefaultWidth  = browser.DefaultWidth
	DefaultHeight = browser.DefaultHeight

	// DefaultImplicitWait is how long element lookups wait in a browser.
	DefaultImplicitWait = browser.DefaultImplicitWait

	// DefaultLines is how many body lines are shown by default.
	DefaultLines = 20
)

// Format is a report output format.
type Format string

// Report formats.
const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatCSV      Format = "csv"
)

// Formats lists the supported report formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatMarkdown, FormatHTML, FormatCSV}
}

// Config holds all configuration options for scrapebook.
// It is populated from CLI flags and the config file and passed down to
// the commands rather than kept in global state.
type Config struct {
	// Targets are the URLs to process. Only http and https are accepted.
	Targets []string

	// Timeout bounds each HTTP request and browser navigation.
	Timeout time.Duration

	// Concurrency is the number of targets processed at once.
	Concurrency int

	// Verbose enables debug logging. Otherwise only warnings and errors are shown.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the file is searched for (see FindConfigFile).
	ConfigFilePath string

	// SiteConfigs holds per-site settings and recipes from the config file.
	SiteConfigs *File

	// Format selects the report format.
	Format Format

	// ReportFile is the output file path for the report.
	// When empty, the report is written to stdout.
	ReportFile string

	// DBPath is a SQLite file that extracted tables are exported to.
	// When empty, nothing is exported.
	DBPath string

	// DBIfExists decides what an export does with a table that already
	// exists: fail, replace or append.
	DBIfExists database.IfExists

	// UserAgent is the User-Agent header sent with HTTP requests and, when
	// set explicitly, by the browser.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	// Zero disables the cap.
	MaxBodySize int64

	// RespectRobots refuses URLs disallowed by the site's robots.txt.
	RespectRobots bool

	// RobotsAgent is the product token matched against robots.txt groups.
	// Empty keeps the session default.
	RobotsAgent string

	// CloudflareBypass makes the HTTP client look like a regular browser at
	// the TLS layer.
	CloudflareBypass bool

	// Engine is the browser engine: rod, chromedp or playwright.
	Engine string

	// Headless hides the browser window.
	Headless bool

	// Width and Height size the browser window.
	Width  int
	Height int

	// ImplicitWait is how long browser element lookups wait for a match.
	ImplicitWait time.Duration

	// BrowserPath is the Chromium executable. Empty lets the engine choose.
	BrowserPath string

	// InstallDriver allows the playwright engine to download its driver.
	InstallDriver bool

	// ScreenshotDir anchors relative screenshot paths.
	ScreenshotDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		Concurrency:  DefaultConcurrency,
		Format:       FormatText,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		DBIfExists:   database.Replace,
		Engine:       DefaultEngine,
		Headless:     true,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		ImplicitWait: DefaultImplicitWait,
	}
}

// XDGConfigDir returns the XDG config directory for scrapebook.
// On Linux: ~/.config/scrapebook
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for scrapebook.
// On Linux: ~/.cache/scrapebook
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	for _, t := range c.Targets {
		if !validTarget(t) {
			return ErrInvalidTarget
		}
	}
	return c.ValidateSettings()
}

// ValidateSettings checks everything except the targets. It is used when
// the targets are local files rather than URLs.
func (c *Config) ValidateSettings() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if !slices.Contains(Formats(), c.Format) {
		return ErrInvalidFormat
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !slices.Contains(browser.Engines(), c.Engine) {
		return ErrInvalidEngine
	}
	if c.Width <= 0 || c.Height <= 0 {
		return ErrInvalidViewport
	}
	if c.ImplicitWait < 0 {
		return ErrInvalidImplicitWait
	}
	return nil
}

func validTarget(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// SessionOptions returns the HTTP session options for this configuration,
// including per-site settings from the config file.
func (c *Config) SessionOptions() []fetch.Option {
	opts := []fetch.Option{
		fetch.WithTimeout(c.Timeout),
		fetch.WithUserAgent(c.UserAgent),
		fetch.WithMaxBodySize(c.MaxBodySize),
		fetch.WithRespectRobots(c.RespectRobots),
		fetch.WithRobotsAgent(c.RobotsAgent),
		fetch.WithCloudflareBypass(c.CloudflareBypass),
	}
	if c.SiteConfigs != nil {
		file := c.SiteConfigs
		opts = append(opts, fetch.WithSiteSettings(func(host string) fetch.SiteSettings {
			return file.GetSiteConfig(host).SessionSettings()
		}))
	}
	return opts
}

// BrowserOptions returns the browser options for this configuration.
// An empty engine keeps the configured one.
func (c *Config) BrowserOptions(engine string) browser.Options {
	if engine == "" {
		engine = c.Engine
	}
	ua := ""
	if c.UserAgent != DefaultUserAgent {
		ua = c.UserAgent
	}
	return browser.Options{
		Engine:        engine,
		Headless:      c.Headless,
		Width:         c.Width,
		Height:        c.Height,
		ImplicitWait:  c.ImplicitWait,
		Timeout:       c.Timeout,
		UserAgent:     ua,
		BrowserPath:   c.BrowserPath,
		InstallDriver: c.InstallDriver,
		DriverDir:     filepath.Join(XDGCacheDir(), "playwright"),
	}
}
