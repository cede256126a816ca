package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/scrapebook/internal/model"
)

const clockPage = `<html><head><title>Official Time</title></head>
<body>
<h1>National time</h1>
<p>Your clock is off by 0.2 seconds.</p>
<time id="utc">12:00:01</time>
<time>local</time>
<a href="/about">About</a>
<a href="mailto:time@example.com">Mail</a>
</body></html>`

// fetchReport is the part of the JSON report the tests look at.
type fetchReport struct {
	Results []struct {
		URL        string          `json:"url"`
		Engine     string          `json:"engine"`
		StatusCode int             `json:"status_code"`
		Title      string          `json:"title"`
		Lines      []string        `json:"lines"`
		Links      []string        `json:"links"`
		Elements   []model.Element `json:"elements"`
		Error      string          `json:"error"`
	} `json:"results"`
}

func decodeReport(t *testing.T, data string) fetchReport {
	t.Helper()

	var rep fetchReport
	if err := json.Unmarshal([]byte(data), &rep); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, data)
	}
	return rep
}

func TestFetchCmd(t *testing.T) {
	t.Parallel()

	srv := newHTMLServer(t, clockPage)

	t.Run("lines, elements with an attribute and links", func(t *testing.T) {
		t.Parallel()

		out, _, err := executeCmd(t, "fetch", "-c", emptyConfig(t), "-f", "json",
			"--lines", "2", "--find", "time", "--has-attr", "id", "--links", srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rep := decodeReport(t, out)
		if len(rep.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(rep.Results))
		}
		r := rep.Results[0]
		if r.Engine != model.EngineHTTP || r.StatusCode != 200 || r.Title != "Official Time" {
			t.Errorf("unexpected result header %+v", r)
		}
		if diff := cmp.Diff([]string{"<body>", "<h1>National time</h1>"}, r.Lines); diff != "" {
			t.Errorf("lines mismatch (-want +got):\n%s", diff)
		}
		want := []model.Element{model.NewElement("time", map[string]string{"id": "utc"}, "12:00:01")}
		if diff := cmp.Diff(want, r.Elements); diff != "" {
			t.Errorf("elements mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{srv.URL + "/about"}, r.Links); diff != "" {
			t.Errorf("links mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("several URLs keep their order", func(t *testing.T) {
		t.Parallel()

		other := newHTMLServer(t, statsHTML)
		out, _, err := executeCmd(t, "fetch", "-c", emptyConfig(t), "-f", "json", "--lines", "0",
			srv.URL, other.URL, srv.URL+"/again")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rep := decodeReport(t, out)
		var urls []string
		for _, r := range rep.Results {
			urls = append(urls, r.URL)
		}
		if diff := cmp.Diff([]string{srv.URL, other.URL, srv.URL + "/again"}, urls); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("text report goes to stdout and the output file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "reports", "clock.md")
		out, _, err := executeCmd(t, "fetch", "-c", emptyConfig(t), "-f", "markdown", "-o", path, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if string(data) != out || !strings.Contains(out, "Official Time") {
			t.Errorf("expected identical markdown reports, got file:\n%s\nstdout:\n%s", data, out)
		}
	})

	t.Run("has-attr needs find", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "fetch", "-c", emptyConfig(t), "--has-attr", "id", srv.URL)
		if !errors.Is(err, errHasAttrWithoutFind) {
			t.Errorf("expected errHasAttrWithoutFind, got %v", err)
		}
	})

	t.Run("unreachable target is reported and fails", func(t *testing.T) {
		t.Parallel()

		out, _, err := executeCmd(t, "fetch", "-c", emptyConfig(t), "-f", "json", "-t", "2s", "http://127.0.0.1:1/")
		if !errors.Is(err, errTargetsFailed) {
			t.Errorf("expected errTargetsFailed, got %v", err)
		}
		rep := decodeReport(t, out)
		if len(rep.Results) != 1 || rep.Results[0].Error == "" {
			t.Errorf("expected an error in the report, got %+v", rep)
		}
	})
}
