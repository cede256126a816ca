package recipe

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
	"github.com/nao1215/scrapebook/internal/textutil"
)

// DefaultWaitTimeout bounds wait steps that do not set their own timeout.
const DefaultWaitTimeout = 10 * time.Second

// Outcome is what a recipe run collected.
type Outcome struct {
	// Elements are the elements seen by read steps, in order.
	Elements []model.Element

	// Table is the extracted listing, if the recipe has one.
	Table *frame.Frame

	// Screenshots are the files written by screenshot steps.
	Screenshots []string

	// Performed lists the steps that completed, e.g. "click id=utc".
	Performed []string
}

// Runner executes recipes against a browser page.
type Runner struct {
	logger        *slog.Logger
	screenshotDir string
	waitTimeout   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithScreenshotDir anchors relative screenshot paths at dir.
func WithScreenshotDir(dir string) Option {
	return func(r *Runner) {
		r.screenshotDir = dir
	}
}

// WithWaitTimeout sets the default timeout for wait steps.
func WithWaitTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.waitTimeout = d
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:      slog.Default(),
		waitTimeout: DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run loads rc.URL in page, performs the steps in order and extracts the
// listing. It stops at the first failing step. The returned Outcome holds
// everything collected up to that point, even on error.
func (r *Runner) Run(ctx context.Context, page browser.Page, rc *Recipe) (*Outcome, error) {
	out := &Outcome{}
	if err := rc.Validate(); err != nil {
		return out, err
	}

	r.logger.Debug("running recipe", "name", rc.Name, "url", rc.URL, "steps", len(rc.Steps))

	if err := page.Navigate(ctx, rc.URL); err != nil {
		return out, err
	}
	out.Performed = append(out.Performed, ActionNavigate+" "+rc.URL)

	for i, step := range rc.Steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		desc, err := r.runStep(ctx, page, step, out)
		if err != nil {
			return out, fmt.Errorf("step %d (%s): %w", i+1, step.Action, err)
		}
		r.logger.Debug("step done", "index", i+1, "step", desc)
		out.Performed = append(out.Performed, desc)
	}

	if rc.Extract != nil {
		name := rc.Extract.Name
		if name == "" {
			name = rc.Name
		}
		table, err := Extract(ctx, page, rc.Extract, name)
		if err != nil {
			return out, fmt.Errorf("extract: %w", err)
		}
		out.Table = table
	}

	return out, nil
}

func (r *Runner) runStep(ctx context.Context, page browser.Page, step Step, out *Outcome) (string, error) {
	switch step.Action {
	case ActionNavigate:
		if err := page.Navigate(ctx, step.URL); err != nil {
			return "", err
		}
		return ActionNavigate + " " + step.URL, nil

	case ActionType:
		el, desc, err := r.target(ctx, page, step)
		if err != nil {
			return "", err
		}
		if step.ShouldClear() {
			if err := el.Clear(ctx); err != nil {
				return "", err
			}
		}
		if step.Text != "" {
			if err := el.Type(ctx, step.Text); err != nil {
				return "", err
			}
		}
		if step.Submit {
			if err := el.Submit(ctx); err != nil {
				return "", err
			}
		}
		return ActionType + " " + desc, nil

	case ActionClick:
		el, desc, err := r.target(ctx, page, step)
		if err != nil {
			return "", err
		}
		if err := el.Click(ctx); err != nil {
			return "", err
		}
		return ActionClick + " " + desc, nil

	case ActionWait:
		sel, err := step.SelectorSpec.Selector()
		if err != nil {
			return "", err
		}
		timeout := step.Timeout
		if timeout <= 0 {
			timeout = r.waitTimeout
		}
		if err := page.WaitVisible(ctx, sel, timeout); err != nil {
			return "", err
		}
		return ActionWait + " " + sel.String(), nil

	case ActionSleep:
		if err := sleep(ctx, step.Duration); err != nil {
			return "", err
		}
		return ActionSleep + " " + step.Duration.String(), nil

	case ActionScreenshot:
		path := r.screenshotPath(step.Path)
		if err := page.Screenshot(ctx, path); err != nil {
			return "", err
		}
		out.Screenshots = append(out.Screenshots, path)
		return ActionScreenshot + " " + path, nil

	case ActionRead:
		if step.All {
			return r.readAll(ctx, page, step, out)
		}
		el, desc, err := r.target(ctx, page, step)
		if err != nil {
			return "", err
		}
		sel, _ := step.SelectorSpec.Selector()
		snap, err := browser.Snapshot(ctx, el, browser.TagOf(sel), step.Attrs...)
		if err != nil {
			return "", err
		}
		out.Elements = append(out.Elements, snap)
		return ActionRead + " " + desc, nil

	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRecipe, step.Action)
	}
}

// readAll records every element matching the step's selector. It waits for
// the first match so that the read behaves like a single one on slow pages.
func (r *Runner) readAll(ctx context.Context, page browser.Page, step Step, out *Outcome) (string, error) {
	sel, err := step.SelectorSpec.Selector()
	if err != nil {
		return "", err
	}
	if _, err := page.Find(ctx, sel); err != nil {
		return "", err
	}
	els, err := page.FindAll(ctx, sel)
	if err != nil {
		return "", err
	}
	snaps, err := browser.SnapshotAll(ctx, els, browser.TagOf(sel), step.Attrs...)
	if err != nil {
		return "", err
	}
	out.Elements = append(out.Elements, snaps...)
	return fmt.Sprintf("%s %s (%d)", ActionRead, sel.String(), len(snaps)), nil
}

// target finds the step's element, descending into Child when set.
func (r *Runner) target(ctx context.Context, page browser.Page, step Step) (browser.Element, string, error) {
	sel, err := step.SelectorSpec.Selector()
	if err != nil {
		return nil, "", err
	}
	el, err := page.Find(ctx, sel)
	if err != nil {
		return nil, "", err
	}
	if step.Child == nil {
		return el, sel.String(), nil
	}
	child, err := step.Child.Selector()
	if err != nil {
		return nil, "", err
	}
	inner, err := el.Find(ctx, child)
	if err != nil {
		return nil, "", err
	}
	return inner, sel.String() + " > " + child.String(), nil
}

func (r *Runner) screenshotPath(path string) string {
	if r.screenshotDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.screenshotDir, path)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Extract collects one row per container element. Each field yields one
// value per container. Values that cannot be found are left empty.
func Extract(ctx context.Context, page browser.Page, l *Listing, name string) (*frame.Frame, error) {
	containerSel, err := l.Container.Selector()
	if err != nil {
		return nil, err
	}
	containers, err := page.FindAll(ctx, containerSel)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(l.Fields))
	cols := make([][]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
		col := make([]string, 0, len(containers))
		for _, c := range containers {
			v, err := fieldValue(ctx, c, f)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			col = append(col, v)
		}
		cols[i] = col
	}

	table, err := frame.FromColumns(names, cols...)
	if err != nil {
		return nil, err
	}
	table.Name = name
	return table, nil
}

func fieldValue(ctx context.Context, c browser.Element, f Field) (string, error) {
	switch f.kind() {
	case FieldPrice:
		whole, err := firstText(ctx, c, *f.Whole)
		if err != nil {
			return "", err
		}
		var fraction string
		if f.Fraction != nil {
			if fraction, err = firstText(ctx, c, *f.Fraction); err != nil {
				return "", err
			}
		}
		return textutil.FormatPrice(textutil.ParsePrice(whole, fraction)), nil

	case FieldAttr:
		el, err := first(ctx, c, f.SelectorSpec)
		if err != nil || el == nil {
			return "", err
		}
		v, _, err := el.Attribute(ctx, f.Attr)
		return v, err

	default:
		text, err := firstText(ctx, c, f.SelectorSpec)
		if err != nil {
			return "", err
		}
		return textutil.Truncate(text, f.MaxLength), nil
	}
}

// first returns the first match inside c without waiting, or nil.
func first(ctx context.Context, c browser.Element, spec SelectorSpec) (browser.Element, error) {
	sel, err := spec.Selector()
	if err != nil {
		return nil, err
	}
	els, err := c.FindAll(ctx, sel)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func firstText(ctx context.Context, c browser.Element, spec SelectorSpec) (string, error) {
	el, err := first(ctx, c, spec)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text(ctx)
}
