// Package frame provides a small column-labelled table of strings, the
// in-memory shape every scraping technique in scrapebook ends up producing.
//
// A Frame is deliberately untyped: scraped cells are text, and a missing
// value is the empty string. Rendering (terminal, HTML, CSV, Markdown) is
// delegated to go-pretty so a Frame looks the same wherever it is printed.
package frame

import (
	"errors"
	"fmt"
	"strconv"
)

// DefaultHeadRows is the number of rows Head returns when n <= 0.
const DefaultHeadRows = 5

// ErrLengthMismatch is returned when columns of different lengths are
// combined into one Frame.
var ErrLengthMismatch = errors.New("columns must all be the same length")

// Frame is a rectangular table of text cells with named columns.
// Every row holds exactly len(Columns) cells.
type Frame struct {
	// Name identifies the frame in reports (table caption, recipe name, ...).
	Name string `json:"name,omitempty"`

	// Columns are the column labels. Labels may repeat.
	Columns []string `json:"columns"`

	// Rows are the data rows.
	Rows [][]string `json:"rows"`
}

// New creates a Frame with the given columns and rows.
// Rows shorter than the column count are padded with missing values and
// longer rows are cut, so the result always satisfies the Frame invariant.
func New(name string, columns []string, rows [][]string) *Frame {
	f := &Frame{
		Name:    name,
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, r := range rows {
		f.Rows = append(f.Rows, fit(r, len(columns)))
	}
	return f
}

// FromColumns builds a Frame from parallel columns, like building a
// DataFrame from a dict of lists. All columns must have the same length
// and there must be one name per column.
func FromColumns(names []string, cols ...[]string) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrLengthMismatch, len(names), len(cols))
	}

	height := 0
	for i, c := range cols {
		if i == 0 {
			height = len(c)
			continue
		}
		if len(c) != height {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d",
				ErrLengthMismatch, names[i], len(c), height)
		}
	}

	rows := make([][]string, height)
	for r := range rows {
		row := make([]string, len(cols))
		for c := range cols {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}

	return &Frame{Columns: append([]string(nil), names...), Rows: rows}, nil
}

// DefaultColumns returns positional column labels "0".."n-1".
func DefaultColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}
	return cols
}

// Shape returns the number of rows and columns.
func (f *Frame) Shape() (rows, cols int) {
	return len(f.Rows), len(f.Columns)
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool {
	return len(f.Rows) == 0
}

// Head returns a new Frame with the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n <= 0 {
		n = DefaultHeadRows
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return New(f.Name, f.Columns, f.Rows[:n])
}

// ColumnIndex returns the index of the first column with the given label,
// or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of the first column with the given label.
func (f *Frame) Column(name string) ([]string, bool) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r[idx]
	}
	return out, true
}

// Cell returns the value at row r, column c, or "" when out of range.
func (f *Frame) Cell(r, c int) string {
	if r < 0 || r >= len(f.Rows) || c < 0 || c >= len(f.Columns) {
		return ""
	}
	return f.Rows[r][c]
}

// ConcatColumns places frames side by side, aligning rows by position.
// Frames with fewer rows are padded with missing values. The result is
// named after the first frame.
func ConcatColumns(frames ...*Frame) *Frame {
	out := &Frame{Columns: []string{}, Rows: [][]string{}}
	if len(frames) == 0 {
		return out
	}
	out.Name = frames[0].Name

	height := 0
	for _, f := range frames {
		out.Columns = append(out.Columns, f.Columns...)
		if len(f.Rows) > height {
			height = len(f.Rows)
		}
	}

	out.Rows = make([][]string, height)
	for r := 0; r < height; r++ {
		row := make([]string, 0, len(out.Columns))
		for _, f := range frames {
			if r < len(f.Rows) {
				row = append(row, f.Rows[r]...)
				continue
			}
			row = append(row, make([]string, len(f.Columns))...)
		}
		out.Rows[r] = row
	}
	return out
}

// fit pads or cuts a row to exactly n cells.
func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
