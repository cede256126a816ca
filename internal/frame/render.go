package frame

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// writer converts the frame into a go-pretty table writer.
// The index column mirrors the positional index pandas prints.
func (f *Frame) writer(withIndex bool) table.Writer {
	t := table.NewWriter()
	if f.Name != "" {
		t.SetTitle(f.Name)
	}

	header := make(table.Row, 0, len(f.Columns)+1)
	if withIndex {
		header = append(header, "")
	}
	for _, c := range f.Columns {
		header = append(header, c)
	}
	t.AppendHeader(header)
	t.Style().Format.Header = text.FormatDefault

	for i, r := range f.Rows {
		row := make(table.Row, 0, len(r)+1)
		if withIndex {
			row = append(row, i)
		}
		for _, v := range r {
			row = append(row, v)
		}
		t.AppendRow(row)
	}
	return t
}

// Render returns the frame as a rounded terminal table with a row index.
func (f *Frame) Render() string {
	t := f.writer(true)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	return t.Render()
}

// ToHTML renders the frame as an HTML <table>.
func (f *Frame) ToHTML() string {
	t := f.writer(true)
	t.SetTitle("")
	t.Style().HTML = table.HTMLOptions{
		CSSClass:    "dataframe",
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}
	return t.RenderHTML()
}

// ToCSV renders the frame as CSV without the index column.
func (f *Frame) ToCSV() string {
	t := f.writer(false)
	t.SetTitle("")
	return t.RenderCSV()
}

// ToMarkdown renders the frame as a Markdown table without the index column.
func (f *Frame) ToMarkdown() string {
	t := f.writer(false)
	t.SetTitle("")
	return t.RenderMarkdown()
}
