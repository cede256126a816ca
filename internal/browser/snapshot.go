package browser

import (
	"context"

	"github.com/nao1215/scrapebook/internal/model"
)

// Snapshot copies an element's text and the named attributes into a
// model.Element. Attributes the element does not carry are left out.
func Snapshot(ctx context.Context, el Element, tag string, attrs ...string) (model.Element, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return model.Element{}, err
	}
	values := make(map[string]string, len(attrs))
	for _, name := range attrs {
		v, ok, err := el.Attribute(ctx, name)
		if err != nil {
			return model.Element{}, err
		}
		if ok {
			values[name] = v
		}
	}
	return model.NewElement(tag, values, text), nil
}

// SnapshotAll snapshots every element in els.
func SnapshotAll(ctx context.Context, els []Element, tag string, attrs ...string) ([]model.Element, error) {
	out := make([]model.Element, 0, len(els))
	for _, el := range els {
		e, err := Snapshot(ctx, el, tag, attrs...)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// TagOf returns the tag name a selector targets when it is a tag selector.
func TagOf(sel Selector) string {
	if sel.Strategy == StrategyTag {
		return sel.CSS()
	}
	return ""
}
