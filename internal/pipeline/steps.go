package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/fetch"
	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/htmltable"
	"github.com/nao1215/scrapebook/internal/model"
	"github.com/nao1215/scrapebook/internal/recipe"
	"github.com/nao1215/scrapebook/internal/textutil"
)

// ErrNoHTML is returned by steps that parse the page when no earlier step
// loaded one.
var ErrNoHTML = errors.New("no page source loaded")

// ErrTableIndex is returned when a selected table index does not exist.
var ErrTableIndex = errors.New("table index out of range")

// FetchStep loads the target URL over HTTP with a fetch.Session.
type FetchStep struct {
	session *fetch.Session
}

// NewFetchStep creates a step that fetches the result's URL.
func NewFetchStep(session *fetch.Session) *FetchStep {
	return &FetchStep{session: session}
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch"
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, result *model.Result) error {
	result.Engine = model.EngineHTTP

	page, err := s.session.Get(ctx, result.URL)
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) {
			result.StatusCode = se.StatusCode
		}
		return err
	}

	result.FinalURL = page.FinalURL
	result.StatusCode = page.StatusCode
	result.ContentType = page.ContentType
	result.SetHTML(page.HTML())
	if result.IsHTML() {
		result.Title = page.Title()
	}
	return nil
}

// FileStep loads a local HTML file named by the result's URL.
// This is the read_html(path) form of table extraction.
type FileStep struct{}

// NewFileStep creates a step that reads the result's URL as a file path.
func NewFileStep() *FileStep {
	return &FileStep{}
}

// Name returns the step name.
func (s *FileStep) Name() string {
	return "file"
}

// Do executes the file step.
func (s *FileStep) Do(_ context.Context, result *model.Result) error {
	result.Engine = model.EngineFile

	data, err := os.ReadFile(result.URL) //nolint:gosec // User-provided input file is intentional
	if err != nil {
		return err
	}
	result.SetHTML(string(data))
	result.Title = fetch.NewPage(result.URL, result.HTML).Title()
	return nil
}

// RenderStep loads the target URL in a browser tab, as a user would see it.
// It sizes the window, optionally waits for an element, takes a screenshot
// and records the browser capabilities and the rendered page source.
type RenderStep struct {
	browser      browser.Browser
	engine       string
	width        int
	height       int
	waitFor      *browser.Selector
	waitTimeout  time.Duration
	screenshot   string
	capabilities bool
	logger       *slog.Logger
}

// RenderStepOption configures a RenderStep.
type RenderStepOption func(*RenderStep)

// WithViewport sets the window size. Zero values keep the browser default.
func WithViewport(width, height int) RenderStepOption {
	return func(s *RenderStep) {
		s.width = width
		s.height = height
	}
}

// WithWaitFor waits until sel is visible before reading the page.
func WithWaitFor(sel browser.Selector, timeout time.Duration) RenderStepOption {
	return func(s *RenderStep) {
		s.waitFor = &sel
		s.waitTimeout = timeout
	}
}

// WithScreenshot writes a PNG of the viewport to path.
func WithScreenshot(path string) RenderStepOption {
	return func(s *RenderStep) {
		s.screenshot = path
	}
}

// WithCapabilities records the browser capabilities in the result.
func WithCapabilities(enabled bool) RenderStepOption {
	return func(s *RenderStep) {
		s.capabilities = enabled
	}
}

// WithRenderLogger sets a custom logger for the render step.
func WithRenderLogger(logger *slog.Logger) RenderStepOption {
	return func(s *RenderStep) {
		s.logger = logger
	}
}

// NewRenderStep creates a step that renders pages in b. engine is recorded
// in the result as the way the page was loaded.
func NewRenderStep(b browser.Browser, engine string, opts ...RenderStepOption) *RenderStep {
	s := &RenderStep{
		browser:     b,
		engine:      engine,
		waitTimeout: recipe.DefaultWaitTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do executes the render step.
func (s *RenderStep) Do(ctx context.Context, result *model.Result) error {
	result.Engine = s.engine
	if s.capabilities {
		result.Capabilities = s.browser.Capabilities()
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("failed to close page", "error", err)
		}
	}()

	if s.width > 0 && s.height > 0 {
		if err := page.SetViewport(ctx, s.width, s.height); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}
	if err := page.Navigate(ctx, result.URL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}

	if s.waitFor != nil {
		if err := page.WaitVisible(ctx, *s.waitFor, s.waitTimeout); err != nil {
			return fmt.Errorf("wait for %s: %w", s.waitFor, err)
		}
	}
	if s.screenshot != "" {
		if err := page.Screenshot(ctx, s.screenshot); err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		result.Screenshot = s.screenshot
	}

	return capturePage(ctx, page, result)
}

func capturePage(ctx context.Context, page browser.Page, result *model.Result) error {
	loc, err := page.Location(ctx)
	if err != nil {
		return fmt.Errorf("location: %w", err)
	}
	title, err := page.Title(ctx)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return fmt.Errorf("page source: %w", err)
	}
	result.FinalURL = loc
	result.Title = title
	result.SetHTML(html)
	return nil
}

// RecipeStep runs a recipe in a new browser tab. Elements read by the
// recipe, its extracted listing and its last screenshot go into the result,
// along with the final page source.
type RecipeStep struct {
	browser browser.Browser
	engine  string
	recipe  *recipe.Recipe
	runner  *recipe.Runner
	width   int
	height  int
	logger  *slog.Logger
}

// RecipeStepOption configures a RecipeStep.
type RecipeStepOption func(*RecipeStep)

// WithRecipeViewport sets the window size before the recipe starts.
func WithRecipeViewport(width, height int) RecipeStepOption {
	return func(s *RecipeStep) {
		s.width = width
		s.height = height
	}
}

// WithRecipeLogger sets a custom logger for the recipe step.
func WithRecipeLogger(logger *slog.Logger) RecipeStepOption {
	return func(s *RecipeStep) {
		s.logger = logger
	}
}

// NewRecipeStep creates a step that runs rc with runner in b.
func NewRecipeStep(b browser.Browser, engine string, rc *recipe.Recipe, runner *recipe.Runner, opts ...RecipeStepOption) *RecipeStep {
	s := &RecipeStep{
		browser: b,
		engine:  engine,
		recipe:  rc,
		runner:  runner,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RecipeStep) Name() string {
	return "recipe"
}

// Do executes the recipe step.
func (s *RecipeStep) Do(ctx context.Context, result *model.Result) error {
	result.Engine = s.engine

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("failed to close page", "error", err)
		}
	}()

	if s.width > 0 && s.height > 0 {
		if err := page.SetViewport(ctx, s.width, s.height); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	out, runErr := s.runner.Run(ctx, page, s.recipe)
	if out != nil {
		result.Elements = append(result.Elements, out.Elements...)
		if out.Table != nil {
			result.Tables = append(result.Tables, out.Table)
		}
		if n := len(out.Screenshots); n > 0 {
			result.Screenshot = out.Screenshots[n-1]
		}
	}
	if runErr != nil {
		return fmt.Errorf("recipe %q: %w", s.recipe.Name, runErr)
	}
	return capturePage(ctx, page, result)
}

// TablesStep parses every <table> in the page source into frames.
type TablesStep struct {
	options []htmltable.Option
	selects []int
	concat  bool
	head    int
}

// TablesStepOption configures a TablesStep.
type TablesStepOption func(*TablesStep)

// WithTableOptions passes parse options (match, attrs, displayed-only) to htmltable.
func WithTableOptions(opts ...htmltable.Option) TablesStepOption {
	return func(s *TablesStep) {
		s.options = append(s.options, opts...)
	}
}

// WithSelect keeps only the tables at the given 0-based indexes, in the
// given order.
func WithSelect(indexes ...int) TablesStepOption {
	return func(s *TablesStep) {
		s.selects = indexes
	}
}

// WithConcat joins the kept tables side by side into a single frame.
func WithConcat(enabled bool) TablesStepOption {
	return func(s *TablesStep) {
		s.concat = enabled
	}
}

// WithHead keeps only the first n rows of each table. Zero keeps all rows.
func WithHead(n int) TablesStepOption {
	return func(s *TablesStep) {
		s.head = n
	}
}

// NewTablesStep creates a table extraction step.
func NewTablesStep(opts ...TablesStepOption) *TablesStep {
	s := &TablesStep{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *TablesStep) Name() string {
	return "tables"
}

// Do executes the tables step.
func (s *TablesStep) Do(_ context.Context, result *model.Result) error {
	if result.HTML == "" {
		return ErrNoHTML
	}

	frames, err := htmltable.ReadString(result.HTML, s.options...)
	if err != nil {
		return err
	}

	if len(s.selects) > 0 {
		selected := make([]*frame.Frame, 0, len(s.selects))
		for _, i := range s.selects {
			if i < 0 || i >= len(frames) {
				return fmt.Errorf("%w: %d (found %d tables)", ErrTableIndex, i, len(frames))
			}
			selected = append(selected, frames[i])
		}
		frames = selected
	}

	if s.concat && len(frames) > 1 {
		frames = []*frame.Frame{frame.ConcatColumns(frames...)}
	}

	if s.head > 0 {
		for i, f := range frames {
			frames[i] = f.Head(s.head)
		}
	}

	result.Tables = append(result.Tables, frames...)
	return nil
}

// LinesStep keeps the first lines of the document body, the way a quick
// regex look at a page would.
type LinesStep struct {
	n int
}

// NewLinesStep creates a step that keeps the first n body lines.
// n <= 0 keeps every line.
func NewLinesStep(n int) *LinesStep {
	return &LinesStep{n: n}
}

// Name returns the step name.
func (s *LinesStep) Name() string {
	return "lines"
}

// Do executes the lines step.
func (s *LinesStep) Do(_ context.Context, result *model.Result) error {
	if result.HTML == "" {
		return ErrNoHTML
	}
	lines, err := textutil.BodyLines(result.HTML, s.n)
	if err != nil {
		return err
	}
	result.Lines = lines
	return nil
}

// FindStep collects the elements matching a CSS selector. When an
// attribute is required, only elements that carry it with a non-empty
// value are kept.
type FindStep struct {
	selector    string
	requireAttr string
}

// NewFindStep creates a step that finds elements matching selector.
func NewFindStep(selector, requireAttr string) *FindStep {
	return &FindStep{selector: selector, requireAttr: requireAttr}
}

// Name returns the step name.
func (s *FindStep) Name() string {
	return "find"
}

// Do executes the find step.
func (s *FindStep) Do(_ context.Context, result *model.Result) error {
	if result.HTML == "" {
		return ErrNoHTML
	}
	base := result.FinalURL
	if base == "" {
		base = result.URL
	}
	found := fetch.NewPage(base, result.HTML).Find(s.selector)
	result.Elements = append(result.Elements, model.FilterByAttr(found, s.requireAttr)...)
	return nil
}

// LinksStep collects the absolute links of a page loaded by an earlier step.
type LinksStep struct{}

// NewLinksStep creates a link collection step.
func NewLinksStep() *LinksStep {
	return &LinksStep{}
}

// Name returns the step name.
func (s *LinksStep) Name() string {
	return "links"
}

// Do executes the links step.
func (s *LinksStep) Do(_ context.Context, result *model.Result) error {
	if result.HTML == "" {
		return ErrNoHTML
	}
	page := fetch.NewPage(result.URL, result.HTML)
	page.FinalURL = result.FinalURL
	result.Links = page.AbsoluteLinks()
	return nil
}
