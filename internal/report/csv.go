package report

import (
	"io"
	"strings"

	"github.com/nao1215/scrapebook/internal/model"
)

// CSVWriter outputs the extracted tables as CSV, one block per table
// separated by a blank line. Results without tables contribute their
// matched elements instead, so `fetch --find` output is exportable too.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the tables of the results as CSV.
func (w *CSVWriter) Write(results []*model.Result) (int, error) {
	var blocks []string
	for _, r := range results {
		for _, f := range r.Tables {
			blocks = append(blocks, f.ToCSV())
		}
		if len(r.Tables) == 0 && len(r.Elements) > 0 {
			blocks = append(blocks, elementsFrame(r.Elements).ToCSV())
		}
	}
	if len(blocks) == 0 {
		return 0, nil
	}
	return io.WriteString(w.output, strings.Join(blocks, "\n\n")+"\n")
}
