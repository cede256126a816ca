package report

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nao1215/scrapebook/internal/model"
)

// TextWriter outputs human-readable reports for terminal display.
// Tables are drawn with go-pretty in the rounded style.
type TextWriter struct {
	baseWriter

	// showHTML prints the page source after the other sections.
	showHTML bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithPageSource prints the page source of each result.
func WithPageSource(show bool) TextWriterOption {
	return func(w *TextWriter) {
		w.showHTML = show
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the results in human-readable format.
func (w *TextWriter) Write(results []*model.Result) (int, error) {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		w.writeResult(&sb, r)
	}
	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeResult(sb *strings.Builder, r *model.Result) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	for _, row := range summaryRows(r) {
		t.AppendRow(table.Row{row[0], row[1]})
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	if len(r.Capabilities) > 0 {
		sb.WriteString("\n")
		sb.WriteString(capabilitiesFrame(r.Capabilities).Render())
		sb.WriteString("\n")
	}

	if len(r.Lines) > 0 {
		sb.WriteString("\n")
		for _, line := range r.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	if len(r.Elements) > 0 {
		sb.WriteString("\n")
		for _, e := range r.Elements {
			sb.WriteString(e.String())
			sb.WriteString("\n")
		}
	}

	if len(r.Links) > 0 {
		sb.WriteString("\nLinks:\n")
		for _, l := range r.Links {
			sb.WriteString("  ")
			sb.WriteString(l)
			sb.WriteString("\n")
		}
	}

	for _, f := range r.Tables {
		sb.WriteString("\n")
		sb.WriteString(f.Render())
		sb.WriteString("\n")
	}

	if w.showHTML && r.HTML != "" {
		sb.WriteString("\n")
		sb.WriteString(r.HTML)
		if !strings.HasSuffix(r.HTML, "\n") {
			sb.WriteString("\n")
		}
	}
}
