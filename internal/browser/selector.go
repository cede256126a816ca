package browser

import (
	"fmt"
	"strings"
	"unicode"
)

// Strategy names how a Selector locates elements.
type Strategy string

// Locator strategies.
const (
	StrategyCSS   Strategy = "css"
	StrategyID    Strategy = "id"
	StrategyClass Strategy = "class"
	StrategyTag   Strategy = "tag"
)

// Selector locates elements on a page.
type Selector struct {
	Strategy Strategy
	Value    string
}

// ByCSS selects with a CSS selector.
func ByCSS(css string) Selector {
	return Selector{Strategy: StrategyCSS, Value: css}
}

// ByID selects the element with the given id attribute.
func ByID(id string) Selector {
	return Selector{Strategy: StrategyID, Value: id}
}

// ByClassName selects elements carrying the given class.
func ByClassName(class string) Selector {
	return Selector{Strategy: StrategyClass, Value: class}
}

// ByTagName selects elements by tag name.
func ByTagName(tag string) Selector {
	return Selector{Strategy: StrategyTag, Value: tag}
}

// ParseSelector builds a Selector from a strategy name as written in a
// recipe: css, id, class or tag. An empty strategy means css.
func ParseSelector(strategy, value string) (Selector, error) {
	if value == "" {
		return Selector{}, fmt.Errorf("empty selector value")
	}
	switch Strategy(strings.ToLower(strategy)) {
	case "", StrategyCSS:
		return ByCSS(value), nil
	case StrategyID:
		return ByID(value), nil
	case StrategyClass, "class_name", "classname":
		return ByClassName(value), nil
	case StrategyTag, "tag_name", "tagname":
		return ByTagName(value), nil
	default:
		return Selector{}, fmt.Errorf("unknown selector strategy %q", strategy)
	}
}

// CSS returns the equivalent CSS selector.
func (s Selector) CSS() string {
	switch s.Strategy {
	case StrategyID:
		// An attribute selector accepts ids like "bin/13203835011".
		return `[id="` + escapeString(s.Value) + `"]`
	case StrategyClass:
		return "." + escapeIdent(strings.TrimSpace(s.Value))
	case StrategyTag:
		return strings.ToLower(strings.TrimSpace(s.Value))
	default:
		return s.Value
	}
}

// String renders the selector for logs and errors, e.g. `id=utc`.
func (s Selector) String() string {
	strategy := s.Strategy
	if strategy == "" {
		strategy = StrategyCSS
	}
	return string(strategy) + "=" + s.Value
}

func escapeString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return r.Replace(s)
}

// escapeIdent escapes s for use as a CSS identifier.
func escapeIdent(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune(unicode.ReplacementChar)
		case i == 0 && unicode.IsDigit(r):
			fmt.Fprintf(&b, `\%x `, r)
		case r == '-' || r == '_' || r >= 0x80 ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9'):
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}
