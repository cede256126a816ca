package model

import (
	"sort"
	"strings"
)

// Element is a detached snapshot of an HTML element.
type Element struct {
	// Tag is the lower-case element name, e.g. "time" or "a".
	Tag string `json:"tag"`

	// Attrs holds the element's attributes.
	Attrs map[string]string `json:"attrs,omitempty"`

	// Text is the element's visible text with surrounding space trimmed.
	Text string `json:"text"`
}

// NewElement creates an Element, normalizing the tag name and trimming text.
func NewElement(tag string, attrs map[string]string, text string) Element {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Element{
		Tag:   strings.ToLower(tag),
		Attrs: attrs,
		Text:  strings.TrimSpace(text),
	}
}

// Attr returns the value of the named attribute.
func (e Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// HasAttr reports whether the attribute is present, whatever its value.
func (e Element) HasAttr(name string) bool {
	_, ok := e.Attrs[name]
	return ok
}

// String renders the element as a compact start tag followed by its text,
// e.g. `<time id="utc"> 12:00:01`.
func (e Element) String() string {
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(e.Tag)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(e.Attrs[k])
		b.WriteString(`"`)
	}
	b.WriteString(">")
	if e.Text != "" {
		b.WriteString(" ")
		b.WriteString(e.Text)
	}
	return b.String()
}

// FilterByAttr keeps only the elements that carry the named attribute,
// whatever its value. An empty name returns elements unchanged.
func FilterByAttr(elements []Element, name string) []Element {
	if name == "" {
		return elements
	}
	out := make([]Element, 0, len(elements))
	for _, e := range elements {
		if e.HasAttr(name) {
			out = append(out, e)
		}
	}
	return out
}
