// Package htmltable reads HTML <table> markup into frames.
//
// It follows the behaviour people expect from pandas.read_html: every table
// in the document becomes one frame, header rows are taken from <thead> or
// from leading rows made only of <th> cells, colspan/rowspan are expanded
// by repeating the cell text, and hidden elements are ignored.
//
// Usage:
//
//	frames, err := htmltable.Read(resp.Body, htmltable.WithMatch(regexp.MustCompile("Tournament")))
//	if errors.Is(err, htmltable.ErrNoTables) {
//	    // the page has no matching table
//	}
package htmltable

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/scrapebook/internal/frame"
)

// ErrNoTables is returned when the document holds no table that passes
// the configured filters.
var ErrNoTables = errors.New("no tables found")

// maxSpan caps colspan/rowspan values so a malformed attribute cannot
// allocate an absurd grid.
const maxSpan = 1000

// options controls which tables are read and how.
type options struct {
	match         *regexp.Regexp
	attrs         map[string]string
	displayedOnly bool
}

// Option configures Read.
type Option func(*options)

// WithMatch keeps only tables whose text matches re.
func WithMatch(re *regexp.Regexp) Option {
	return func(o *options) {
		o.match = re
	}
}

// WithAttrs keeps only tables carrying all of the given attribute values,
// for example map[string]string{"class": "wikitable"}.
func WithAttrs(attrs map[string]string) Option {
	return func(o *options) {
		o.attrs = attrs
	}
}

// WithDisplayedOnly controls whether elements styled display:none are
// dropped before parsing. The default is true.
func WithDisplayedOnly(displayedOnly bool) Option {
	return func(o *options) {
		o.displayedOnly = displayedOnly
	}
}

// Read parses r as HTML and returns one frame per table, in document order.
func Read(r io.Reader, opts ...Option) ([]*frame.Frame, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return FromDocument(doc, opts...)
}

// ReadString is Read over an in-memory document.
func ReadString(html string, opts ...Option) ([]*frame.Frame, error) {
	return Read(strings.NewReader(html), opts...)
}

// FromDocument extracts tables from an already parsed document.
// The document is modified when hidden elements are dropped.
func FromDocument(doc *goquery.Document, opts ...Option) ([]*frame.Frame, error) {
	o := &options{displayedOnly: true}
	for _, opt := range opts {
		opt(o)
	}

	if o.displayedOnly {
		doc.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return isHidden(s.AttrOr("style", ""))
		}).Remove()
	}

	var frames []*frame.Frame
	doc.Find("table").Each(func(i int, tbl *goquery.Selection) {
		if !hasAttrs(tbl, o.attrs) {
			return
		}
		if o.match != nil && !o.match.MatchString(cleanText(tbl.Text())) {
			return
		}

		f := parseTable(tbl)
		if f == nil {
			return
		}
		if f.Name == "" {
			f.Name = "table " + strconv.Itoa(i)
		}
		frames = append(frames, f)
	})

	if len(frames) == 0 {
		return nil, ErrNoTables
	}
	return frames, nil
}

// rowKind tells where a <tr> came from.
type rowKind int

const (
	rowBody rowKind = iota
	rowHead
	rowFoot
)

// rawCell is a cell before span expansion.
type rawCell struct {
	text    string
	header  bool
	colspan int
	rowspan int
}

// rawRow is a row before span expansion.
type rawRow struct {
	kind  rowKind
	cells []rawCell
}

// parseTable converts one <table> into a frame. Tables without any cell
// yield nil.
func parseTable(tbl *goquery.Selection) *frame.Frame {
	rows := ownRows(tbl)
	if len(rows) == 0 {
		return nil
	}

	grid := expandSpans(rows)
	width := 0
	for _, r := range grid {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return nil
	}

	// Header rows: explicit <thead>, otherwise leading rows of only <th>.
	headerCount := 0
	for _, r := range rows {
		if r.kind == rowHead {
			headerCount++
		}
	}
	if headerCount == 0 {
		for _, r := range rows {
			if !allHeaderCells(r) {
				break
			}
			headerCount++
		}
		// A table made only of <th> rows keeps them as data.
		if headerCount == len(rows) {
			headerCount = 0
		}
	}

	var columns []string
	if headerCount > 0 {
		columns = joinHeaders(grid[:headerCount], width)
	} else {
		columns = frame.DefaultColumns(width)
	}

	// Body rows first, then footer rows, like pandas.
	var body, foot [][]string
	for i := headerCount; i < len(rows); i++ {
		if rows[i].kind == rowFoot {
			foot = append(foot, grid[i])
			continue
		}
		body = append(body, grid[i])
	}

	caption := cleanText(tbl.ChildrenFiltered("caption").First().Text())
	return frame.New(caption, columns, append(body, foot...))
}

// ownRows collects the <tr> rows belonging to tbl, ignoring rows of nested
// tables, in document order.
func ownRows(tbl *goquery.Selection) []rawRow {
	var rows []rawRow
	var heads, bodies, foots []rawRow

	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}

		kind := rowBody
		switch goquery.NodeName(tr.Parent()) {
		case "thead":
			kind = rowHead
		case "tfoot":
			kind = rowFoot
		}

		row := rawRow{kind: kind}
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			row.cells = append(row.cells, rawCell{
				text:    cleanText(cell.Text()),
				header:  goquery.NodeName(cell) == "th",
				colspan: spanAttr(cell, "colspan"),
				rowspan: spanAttr(cell, "rowspan"),
			})
		})
		if len(row.cells) == 0 {
			return
		}

		switch kind {
		case rowHead:
			heads = append(heads, row)
		case rowFoot:
			foots = append(foots, row)
		default:
			bodies = append(bodies, row)
		}
	})

	rows = append(rows, heads...)
	rows = append(rows, bodies...)
	rows = append(rows, foots...)
	return rows
}

// expandSpans lays the raw rows onto a grid, repeating spanned text.
func expandSpans(rows []rawRow) [][]string {
	grid := make([][]string, len(rows))
	// pending[col] carries a rowspan cell downwards.
	type carry struct {
		text string
		left int
	}
	var pending []carry

	for r, row := range rows {
		var out []string
		col := 0
		next := 0

		fillPending := func() {
			for col < len(pending) && pending[col].left > 0 {
				out = append(out, pending[col].text)
				pending[col].left--
				col++
			}
		}

		for next < len(row.cells) {
			c := row.cells[next]
			next++
			for k := 0; k < c.colspan; k++ {
				// Columns still held by a rowspan above are skipped.
				fillPending()
				out = append(out, c.text)
				for len(pending) <= col {
					pending = append(pending, carry{})
				}
				pending[col] = carry{text: c.text, left: c.rowspan - 1}
				col++
			}
		}
		fillPending()

		// A short row still receives rowspans further right.
		for c := col; c < len(pending); c++ {
			if pending[c].left <= 0 {
				continue
			}
			for len(out) < c {
				out = append(out, "")
			}
			out = append(out, pending[c].text)
			pending[c].left--
		}

		grid[r] = out
	}
	return grid
}

// joinHeaders flattens several header rows into one label per column.
func joinHeaders(headers [][]string, width int) []string {
	cols := make([]string, width)
	for c := 0; c < width; c++ {
		var parts []string
		for _, h := range headers {
			if c >= len(h) || h[c] == "" {
				continue
			}
			if len(parts) > 0 && parts[len(parts)-1] == h[c] {
				continue
			}
			parts = append(parts, h[c])
		}
		if len(parts) == 0 {
			cols[c] = strconv.Itoa(c)
			continue
		}
		cols[c] = strings.Join(parts, " ")
	}
	return cols
}

func allHeaderCells(r rawRow) bool {
	for _, c := range r.cells {
		if !c.header {
			return false
		}
	}
	return len(r.cells) > 0
}

func spanAttr(s *goquery.Selection, name string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s.AttrOr(name, "1")))
	if err != nil || v < 1 {
		return 1
	}
	if v > maxSpan {
		return maxSpan
	}
	return v
}

func hasAttrs(s *goquery.Selection, attrs map[string]string) bool {
	for k, want := range attrs {
		got, ok := s.Attr(k)
		if !ok {
			return false
		}
		if k == "class" {
			if !containsField(got, want) {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

// containsField reports whether every class in want appears in got.
func containsField(got, want string) bool {
	have := strings.Fields(got)
	for _, w := range strings.Fields(want) {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

var hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none`)

func isHidden(style string) bool {
	return hiddenStyle.MatchString(style)
}

var whitespace = regexp.MustCompile(`\s+`)

// cleanText normalizes compatibility characters (NBSP, full-width digits)
// and collapses whitespace.
func cleanText(s string) string {
	s = norm.NFKC.String(s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
