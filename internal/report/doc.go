// Package report writes the results of a run.
//
// Writers for the supported formats:
//   - TextWriter: rounded terminal tables (go-pretty)
//   - JSONWriter: a JSON document for tool integration
//   - MarkdownWriter: a Markdown document (nao1215/markdown)
//   - HTMLWriter: a standalone HTML page
//   - CSVWriter: the extracted tables as CSV
//
// Writers implement the Writer interface and can be combined with
// MultiWriter.
package report
