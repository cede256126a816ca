package report

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Writer defines the interface for report output.
// Implementations write the results of one run in a given format.
type Writer interface {
	// Write outputs the results to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(results []*model.Result) (int, error)
}

// New returns the Writer for a format name: text, json, markdown, html or csv.
func New(format string, output io.Writer) (Writer, error) {
	switch format {
	case "text", "":
		return NewTextWriter(output), nil
	case "json":
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case "markdown":
		return NewMarkdownWriter(output), nil
	case "html":
		return NewHTMLWriter(output), nil
	case "csv":
		return NewCSVWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers, e.g. the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the results to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(results []*model.Result) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(results)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status describes how a run ended.
func status(r *model.Result) string {
	switch {
	case r.TimedOut:
		return "timed out"
	case r.Failed():
		return "error: " + r.ErrorMessage
	default:
		return "ok"
	}
}

// summaryRows are the key facts of a result as property/value pairs.
func summaryRows(r *model.Result) [][]string {
	rows := [][]string{{"URL", r.URL}}
	if r.FinalURL != "" && r.FinalURL != r.URL {
		rows = append(rows, []string{"Final URL", r.FinalURL})
	}
	rows = append(rows, []string{"Engine", r.Engine})
	if r.StatusCode != 0 {
		rows = append(rows, []string{"Status code", strconv.Itoa(r.StatusCode)})
	}
	if r.Title != "" {
		rows = append(rows, []string{"Title", r.Title})
	}
	if r.Screenshot != "" {
		rows = append(rows, []string{"Screenshot", r.Screenshot})
	}
	rows = append(rows,
		[]string{"Duration", r.Duration().Round(time.Millisecond).String()},
		[]string{"Status", status(r)},
	)
	return rows
}

// elementsFrame lays elements out as tag, text and attributes columns.
func elementsFrame(elements []model.Element) *frame.Frame {
	rows := make([][]string, 0, len(elements))
	for _, e := range elements {
		rows = append(rows, []string{e.Tag, e.Text, attrString(e.Attrs)})
	}
	return frame.New("elements", []string{"tag", "text", "attrs"}, rows)
}

// capabilitiesFrame lays capabilities out as sorted name/value rows.
func capabilitiesFrame(caps map[string]string) *frame.Frame {
	rows := make([][]string, 0, len(caps))
	for _, k := range slices.Sorted(maps.Keys(caps)) {
		rows = append(rows, []string{k, caps[k]})
	}
	return frame.New("capabilities", []string{"name", "value"}, rows)
}

func attrString(attrs map[string]string) string {
	parts := make([]string, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		parts = append(parts, k+"="+strconv.Quote(attrs[k]))
	}
	return strings.Join(parts, " ")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
