// Package recipe describes and runs scripted browser sessions.
//
// A Recipe is written in YAML: a start URL, a list of steps (navigate, type,
// click, wait, sleep, screenshot, read) and an optional listing to extract
// into a frame once the steps are done. Steps run in order and the first
// failure stops the run.
//
//	url: https://www.amazon.com
//	steps:
//	  - action: type
//	    by: id
//	    selector: twotabsearchtextbox
//	    text: 512GB sd card
//	    submit: true
//	  - action: click
//	    by: id
//	    selector: p_n_feature_two_browse-bin/13203835011
//	    child: {by: class, selector: a-link-normal}
//	extract:
//	  container: {selector: ".s-result-item"}
//	  fields:
//	    - {name: product, selector: "h2", maxLength: 50}
//	    - name: price
//	      type: price
//	      whole: {by: class, selector: a-price-whole}
//	      fraction: {by: class, selector: a-price-fraction}
package recipe

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/scrapebook/internal/browser"
)

// ErrInvalidRecipe is returned when a recipe is missing required fields.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Step actions.
const (
	ActionNavigate   = "navigate"
	ActionType       = "type"
	ActionClick      = "click"
	ActionWait       = "wait"
	ActionSleep      = "sleep"
	ActionScreenshot = "screenshot"
	ActionRead       = "read"
)

// Field types.
const (
	FieldText  = "text"
	FieldAttr  = "attr"
	FieldPrice = "price"
)

// SelectorSpec is a selector as written in YAML.
type SelectorSpec struct {
	// By is css, id, class or tag. Empty means css.
	By string `yaml:"by,omitempty"`

	// Value is the selector text.
	Value string `yaml:"selector,omitempty"`
}

// Selector converts the spec to a browser.Selector.
func (s SelectorSpec) Selector() (browser.Selector, error) {
	return browser.ParseSelector(s.By, s.Value)
}

// IsZero reports whether no selector was given.
func (s SelectorSpec) IsZero() bool {
	return s.Value == ""
}

// Recipe is a scripted browser session.
type Recipe struct {
	// Name identifies the recipe. It is the key in the config file.
	Name string `yaml:"name,omitempty"`

	// URL is loaded before the first step.
	URL string `yaml:"url"`

	// Engine selects the browser engine. Empty leaves the choice to the caller.
	Engine string `yaml:"engine,omitempty"`

	Steps []Step `yaml:"steps,omitempty"`

	// Extract describes a listing to collect after the steps.
	Extract *Listing `yaml:"extract,omitempty"`
}

// Step is one interaction.
type Step struct {
	Action string `yaml:"action"`

	SelectorSpec `yaml:",inline"`

	// Child narrows the target to a descendant of the selected element.
	Child *SelectorSpec `yaml:"child,omitempty"`

	// URL is the navigate target.
	URL string `yaml:"url,omitempty"`

	// Text is typed by a type step.
	Text string `yaml:"text,omitempty"`

	// Clear empties the field before typing. Defaults to true.
	Clear *bool `yaml:"clear,omitempty"`

	// Submit presses Enter after typing.
	Submit bool `yaml:"submit,omitempty"`

	// Timeout bounds a wait step. Zero uses the runner default.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// Duration is how long a sleep step pauses.
	Duration time.Duration `yaml:"duration,omitempty"`

	// Path is where a screenshot step writes.
	Path string `yaml:"path,omitempty"`

	// Attrs are the attributes a read step records.
	Attrs []string `yaml:"attrs,omitempty"`

	// All makes a read step record every match instead of the first.
	All bool `yaml:"all,omitempty"`
}

// ShouldClear reports whether a type step clears the field first.
func (s Step) ShouldClear() bool {
	return s.Clear == nil || *s.Clear
}

// Listing describes repeated items to extract into a table.
type Listing struct {
	// Name is the table name. Empty uses the recipe name.
	Name string `yaml:"name,omitempty"`

	// Container selects one element per item.
	Container SelectorSpec `yaml:"container"`

	Fields []Field `yaml:"fields"`
}

// Field is one column of a Listing.
type Field struct {
	Name string `yaml:"name"`

	// Type is text (default), attr or price.
	Type string `yaml:"type,omitempty"`

	SelectorSpec `yaml:",inline"`

	// Attr is read by attr fields.
	Attr string `yaml:"attr,omitempty"`

	// MaxLength truncates text values. Zero keeps them whole.
	MaxLength int `yaml:"maxLength,omitempty"`

	// Whole and Fraction locate the two parts of a price.
	Whole    *SelectorSpec `yaml:"whole,omitempty"`
	Fraction *SelectorSpec `yaml:"fraction,omitempty"`
}

func (f Field) kind() string {
	if f.Type == "" {
		return FieldText
	}
	return f.Type
}

// Parse decodes a single recipe from YAML.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	return &r, nil
}

// LoadFile reads a single recipe from a YAML file.
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided recipe file
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}
	return Parse(data)
}

// Validate checks that the recipe can be run.
func (r *Recipe) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidRecipe)
	}
	if err := checkURL(r.URL); err != nil {
		return fmt.Errorf("%w: url: %v", ErrInvalidRecipe, err)
	}
	if r.Engine != "" && !knownEngine(r.Engine) {
		return fmt.Errorf("%w: unknown engine %q", ErrInvalidRecipe, r.Engine)
	}
	for i, s := range r.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrInvalidRecipe, i+1, s.Action, err)
		}
	}
	if r.Extract != nil {
		if err := r.Extract.validate(); err != nil {
			return fmt.Errorf("%w: extract: %v", ErrInvalidRecipe, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	needSelector := func() error {
		if s.SelectorSpec.IsZero() {
			return errors.New("selector is required")
		}
		if _, err := s.SelectorSpec.Selector(); err != nil {
			return err
		}
		if s.Child != nil {
			if _, err := s.Child.Selector(); err != nil {
				return fmt.Errorf("child: %w", err)
			}
		}
		return nil
	}

	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return errors.New("url is required")
		}
		return checkURL(s.URL)
	case ActionType:
		if s.Text == "" && !s.Submit {
			return errors.New("text is required")
		}
		return needSelector()
	case ActionClick, ActionWait, ActionRead:
		return needSelector()
	case ActionSleep:
		if s.Duration <= 0 {
			return errors.New("duration must be positive")
		}
		return nil
	case ActionScreenshot:
		if s.Path == "" {
			return errors.New("path is required")
		}
		return nil
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
}

func (l *Listing) validate() error {
	if l.Container.IsZero() {
		return errors.New("container selector is required")
	}
	if _, err := l.Container.Selector(); err != nil {
		return fmt.Errorf("container: %w", err)
	}
	if len(l.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(l.Fields))
	for _, f := range l.Fields {
		if f.Name == "" {
			return errors.New("field name is required")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		switch f.kind() {
		case FieldText:
			if _, err := f.SelectorSpec.Selector(); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		case FieldAttr:
			if f.Attr == "" {
				return fmt.Errorf("field %q: attr is required", f.Name)
			}
			if _, err := f.SelectorSpec.Selector(); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		case FieldPrice:
			if f.Whole == nil {
				return fmt.Errorf("field %q: whole selector is required", f.Name)
			}
			if _, err := f.Whole.Selector(); err != nil {
				return fmt.Errorf("field %q: whole: %w", f.Name, err)
			}
			if f.Fraction != nil {
				if _, err := f.Fraction.Selector(); err != nil {
					return fmt.Errorf("field %q: fraction: %w", f.Name, err)
				}
			}
		default:
			return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return nil
}

func knownEngine(name string) bool {
	for _, e := range browser.Engines() {
		if e == name {
			return true
		}
	}
	return false
}
