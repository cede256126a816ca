package htmltable

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/scrapebook/internal/frame"
)

func TestReadString(t *testing.T) {
	t.Parallel()

	t.Run("thead supplies column labels", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<thead><tr><th>Name</th><th>PTS</th></tr></thead>
			<tbody>
				<tr><td>Jabari Walker</td><td>14.6</td></tr>
				<tr><td>Tristan da Silva</td><td>9.2</td></tr>
			</tbody>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 {
			t.Fatalf("expected 1 frame, got %d", len(frames))
		}

		want := &frame.Frame{
			Name:    "table 0",
			Columns: []string{"Name", "PTS"},
			Rows: [][]string{
				{"Jabari Walker", "14.6"},
				{"Tristan da Silva", "9.2"},
			},
		}
		if diff := cmp.Diff(want, frames[0]); diff != "" {
			t.Errorf("frame mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("leading th row is the header without thead", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<tr><th>Year</th><th>Round</th></tr>
			<tr><th scope="row">1940</th><td>Final Four</td></tr>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := frames[0]
		if diff := cmp.Diff([]string{"Year", "Round"}, got.Columns); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([][]string{{"1940", "Final Four"}}, got.Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("no header gives positional labels", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(`<table><tr><td>a</td><td>b</td></tr></table>`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"0", "1"}, frames[0].Columns); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("colspan and rowspan repeat text", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<tr><td rowspan="2">A</td><td colspan="2">B</td></tr>
			<tr><td>C</td><td>D</td></tr>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := [][]string{
			{"A", "B", "B"},
			{"A", "C", "D"},
		}
		if diff := cmp.Diff(want, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rowspan continues into a shorter row", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<tr><th>a</th><th>b</th><th>c</th></tr>
			<tr><td>A</td><td>B</td><td rowspan="2">C</td></tr>
			<tr><td>D</td></tr>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := [][]string{
			{"A", "B", "C"},
			{"D", "", "C"},
		}
		if diff := cmp.Diff(want, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("colspan skips columns held by a rowspan", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<tr><td>A</td><td rowspan="2">B</td><td>C</td></tr>
			<tr><td colspan="2">D</td></tr>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := [][]string{
			{"A", "B", "C"},
			{"D", "B", "D"},
		}
		if diff := cmp.Diff(want, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("multiple header rows are joined", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<thead>
				<tr><th colspan="2">Shooting</th></tr>
				<tr><th>FG%</th><th>3P%</th></tr>
			</thead>
			<tr><td>.455</td><td>.342</td></tr>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"Shooting FG%", "Shooting 3P%"}, frames[0].Columns); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("short rows are padded", func(t *testing.T) {
		t.Parallel()

		html := `<table><tr><td>1</td><td>2</td><td>3</td></tr><tr><td>4</td></tr></table>`
		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([][]string{{"1", "2", "3"}, {"4", "", ""}}, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("tfoot rows come after body rows", func(t *testing.T) {
		t.Parallel()

		html := `<table>
			<thead><tr><th>x</th></tr></thead>
			<tfoot><tr><td>total</td></tr></tfoot>
			<tbody><tr><td>1</td></tr></tbody>
		</table>`

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([][]string{{"1"}, {"total"}}, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("whitespace and nbsp are normalized", func(t *testing.T) {
		t.Parallel()

		html := "<table><tr><td>  Colorado Buffaloes \n\t men </td></tr></table>"
		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := frames[0].Cell(0, 0); got != "Colorado Buffaloes men" {
			t.Errorf("expected normalized text, got %q", got)
		}
	})

	t.Run("caption names the frame", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(`<table><caption> NCAA results </caption><tr><td>1</td></tr></table>`)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if frames[0].Name != "NCAA results" {
			t.Errorf("expected caption name, got %q", frames[0].Name)
		}
	})
}

func TestReadStringMultipleTables(t *testing.T) {
	t.Parallel()

	html := `
		<table id="players"><tr><th>Name</th></tr><tr><td>A</td></tr></table>
		<p>between</p>
		<table class="stats wikitable"><tr><th>GP</th></tr><tr><td>30</td></tr></table>
		<table class="stats"><tr><td>
			<table><tr><td>inner</td></tr></table>
		</td></tr></table>`

	t.Run("every table in order including nested", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 4 {
			t.Fatalf("expected 4 frames, got %d", len(frames))
		}
		if frames[3].Cell(0, 0) != "inner" {
			t.Errorf("expected nested table last, got %q", frames[3].Cell(0, 0))
		}
		if r, _ := frames[2].Shape(); r != 1 {
			t.Errorf("expected outer table to own one row, got %d", r)
		}
	})

	t.Run("attrs filter by class", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html, WithAttrs(map[string]string{"class": "wikitable"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 || frames[0].Columns[0] != "GP" {
			t.Errorf("expected only the wikitable, got %+v", frames)
		}
	})

	t.Run("attrs filter by id", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html, WithAttrs(map[string]string{"id": "players"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 || frames[0].Columns[0] != "Name" {
			t.Errorf("expected only the players table, got %+v", frames)
		}
	})

	t.Run("match filters by text", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html, WithMatch(regexp.MustCompile(`GP`)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 {
			t.Errorf("expected 1 frame, got %d", len(frames))
		}
	})
}

func TestReadStringHidden(t *testing.T) {
	t.Parallel()

	html := `<table>
		<tr><td>shown</td><td style="display: none">hidden</td></tr>
	</table>
	<table style="DISPLAY:none"><tr><td>gone</td></tr></table>`

	t.Run("hidden elements are dropped by default", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 1 {
			t.Fatalf("expected 1 frame, got %d", len(frames))
		}
		if diff := cmp.Diff([][]string{{"shown"}}, frames[0].Rows); diff != "" {
			t.Errorf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("hidden elements kept on request", func(t *testing.T) {
		t.Parallel()

		frames, err := ReadString(html, WithDisplayedOnly(false))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(frames) != 2 {
			t.Errorf("expected 2 frames, got %d", len(frames))
		}
	})
}

func TestReadStringNoTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		opts []Option
	}{
		{name: "no table markup", html: `<html><body><p>hi</p></body></html>`},
		{name: "empty table", html: `<table></table>`},
		{
			name: "filter removes everything",
			html: `<table><tr><td>a</td></tr></table>`,
			opts: []Option{WithMatch(regexp.MustCompile(`zzz`))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadString(tt.html, tt.opts...)
			if !errors.Is(err, ErrNoTables) {
				t.Errorf("expected ErrNoTables, got %v", err)
			}
		})
	}
}

func TestSpanAttrBounds(t *testing.T) {
	t.Parallel()

	frames, err := ReadString(`<table><tr><td colspan="0">a</td><td colspan="x">b</td></tr></table>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([][]string{{"a", "b"}}, frames[0].Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}
