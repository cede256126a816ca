package report

import (
	"io"

	"github.com/nao1215/markdown"

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
)

// MarkdownWriter outputs results as a Markdown document for sharing,
// one section per URL with every extracted table as a Markdown table.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the results in Markdown format.
func (w *MarkdownWriter) Write(results []*model.Result) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Scrapebook Report")
	md.PlainText("")

	for _, r := range results {
		w.writeResult(md, r)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [scrapebook](https://github.com/nao1215/scrapebook)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeResult(md *markdown.Markdown, r *model.Result) {
	title := r.Title
	if title == "" {
		title = r.URL
	}
	md.H2(title)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   summaryRows(r),
	})
	md.PlainText("")

	switch {
	case r.TimedOut:
		md.Warningf("Processing of %s timed out; results are partial.", r.URL)
		md.PlainText("")
	case r.Failed():
		md.Cautionf("Processing of %s failed: %s", r.URL, r.ErrorMessage)
		md.PlainText("")
	}

	if len(r.Capabilities) > 0 {
		md.H3("Capabilities")
		md.PlainText("")
		writeFrame(md, capabilitiesFrame(r.Capabilities))
	}

	if len(r.Lines) > 0 {
		md.H3("Body lines")
		md.PlainText("")
		md.CodeBlocks(markdown.SyntaxHighlight("html"), joinLines(r.Lines))
		md.PlainText("")
	}

	if len(r.Elements) > 0 {
		md.H3("Elements")
		md.PlainText("")
		writeFrame(md, elementsFrame(r.Elements))
	}

	if len(r.Links) > 0 {
		md.H3("Links")
		md.PlainText("")
		md.BulletList(r.Links...)
		md.PlainText("")
	}

	for i, f := range r.Tables {
		name := f.Name
		if name == "" {
			name = "table " + itoa(i)
		}
		md.H3(name)
		md.PlainText("")
		if f.Empty() {
			md.Note("The table has no rows.")
			md.PlainText("")
			continue
		}
		writeFrame(md, f)
	}
}

func writeFrame(md *markdown.Markdown, f *frame.Frame) {
	md.Table(markdown.TableSet{
		Header: f.Columns,
		Rows:   f.Rows,
	})
	md.PlainText("")
}
