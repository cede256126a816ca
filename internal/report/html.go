package report

import (
	"html"
	"io"
	"strings"

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
)

// HTMLWriter outputs results as a standalone HTML page. Tables are
// rendered by go-pretty with the "dataframe" class pandas uses.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the results as an HTML document.
func (w *HTMLWriter) Write(results []*model.Result) (int, error) {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Scrapebook Report</title>\n</head>\n<body>\n")
	sb.WriteString("<h1>Scrapebook Report</h1>\n")

	for _, r := range results {
		w.writeResult(&sb, r)
	}

	sb.WriteString("</body>\n</html>\n")
	return io.WriteString(w.output, sb.String())
}

func (w *HTMLWriter) writeResult(sb *strings.Builder, r *model.Result) {
	sb.WriteString("<section>\n<h2>")
	sb.WriteString(html.EscapeString(r.URL))
	sb.WriteString("</h2>\n")

	summary := frame.New("", []string{"Property", "Value"}, summaryRows(r))
	sb.WriteString(summary.ToHTML())
	sb.WriteString("\n")

	if len(r.Capabilities) > 0 {
		writeHTMLFrame(sb, "Capabilities", capabilitiesFrame(r.Capabilities))
	}

	if len(r.Lines) > 0 {
		sb.WriteString("<h3>Body lines</h3>\n<pre>")
		sb.WriteString(html.EscapeString(joinLines(r.Lines)))
		sb.WriteString("</pre>\n")
	}

	if len(r.Elements) > 0 {
		writeHTMLFrame(sb, "Elements", elementsFrame(r.Elements))
	}

	if len(r.Links) > 0 {
		sb.WriteString("<h3>Links</h3>\n<ul>\n")
		for _, l := range r.Links {
			esc := html.EscapeString(l)
			sb.WriteString(`<li><a href="` + esc + `">` + esc + "</a></li>\n")
		}
		sb.WriteString("</ul>\n")
	}

	for i, f := range r.Tables {
		name := f.Name
		if name == "" {
			name = "table " + itoa(i)
		}
		writeHTMLFrame(sb, name, f)
	}

	sb.WriteString("</section>\n")
}

func writeHTMLFrame(sb *strings.Builder, title string, f *frame.Frame) {
	sb.WriteString("<h3>")
	sb.WriteString(html.EscapeString(title))
	sb.WriteString("</h3>\n")
	sb.WriteString(f.ToHTML())
	sb.WriteString("\n")
}
