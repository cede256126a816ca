package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/database"
)

const statsHTML = `<html><head><title>Team Stats</title></head><body>
<table><caption>Players</caption>
<thead><tr><th>RK</th><th>Name</th></tr></thead>
<tbody><tr><td>1</td><td>McKinley Wright IV</td></tr><tr><td>2</td><td>Jabari Walker</td></tr></tbody>
</table>
<table class="wikitable"><tr><th>Year</th><th>Result</th></tr><tr><td>2021</td><td>Round of 32</td></tr></table>
</body></html>`

// newHTMLServer serves body as HTML on every path.
func newHTMLServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// emptyConfig writes an empty config file so tests ignore the user's own.
func emptyConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTablesCmd(t *testing.T) {
	t.Parallel()

	srv := newHTMLServer(t, statsHTML)

	t.Run("prints every table as CSV", func(t *testing.T) {
		t.Parallel()

		out, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "-f", "csv", srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"RK,Name", "1,McKinley Wright IV", "Year,Result", "2021,Round of 32"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("filters by attribute and keeps the head", func(t *testing.T) {
		t.Parallel()

		out, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "-f", "csv",
			"--attr", "class=wikitable", "--head", "1", srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(out, "RK") || !strings.Contains(out, "Year,Result") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("selects and concatenates", func(t *testing.T) {
		t.Parallel()

		out, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "-f", "csv",
			"-i", "1", "-i", "0", "--concat", srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "Year,Result,RK,Name") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("table index out of range fails the target", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "-i", "7", srv.URL)
		if !errors.Is(err, errTargetsFailed) {
			t.Errorf("expected errTargetsFailed, got %v", err)
		}
	})

	t.Run("invalid match pattern", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "--match", "(", srv.URL)
		if err == nil || !strings.Contains(err.Error(), "--match") {
			t.Errorf("expected --match error, got %v", err)
		}
	})

	t.Run("reads local files", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "stats.html")
		if err := os.WriteFile(path, []byte(statsHTML), 0600); err != nil {
			t.Fatal(err)
		}
		out, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "--html", "--match", "Round", "-f", "csv", path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(out, "Year,Result") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("exports to SQLite", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "stats.db")
		_, stderr, err := executeCmd(t, "tables", "-c", emptyConfig(t), "-f", "json",
			"--db", dbPath, "--db-prefix", "buffs", srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stderr, "Exported 2 tables") {
			t.Errorf("expected export message, got %q", stderr)
		}

		db, err := database.Open(dbPath)
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		tables, err := db.Tables(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"buffs_0", "buffs_1"}, tables); diff != "" {
			t.Errorf("tables mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("if-exists fail keeps the first export", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "stats.db")
		args := []string{"tables", "-c", emptyConfig(t), "-f", "csv",
			"--db", dbPath, "--if-exists", "fail", srv.URL}
		if _, _, err := executeCmd(t, args...); err != nil {
			t.Fatalf("first export: %v", err)
		}
		if _, _, err := executeCmd(t, args...); !errors.Is(err, database.ErrTableExists) {
			t.Errorf("expected ErrTableExists, got %v", err)
		}
	})
}

func TestTablesCmdConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no targets", []string{"tables"}, config.ErrNoTarget},
		{"no files", []string{"tables", "--html"}, config.ErrNoTarget},
		{"relative url", []string{"tables", "stats.html"}, config.ErrInvalidTarget},
		{"bad format", []string{"tables", "-f", "xml", "https://example.com/"}, config.ErrInvalidFormat},
		{"bad concurrency", []string{"tables", "-n", "0", "https://example.com/"}, config.ErrInvalidConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append(tt.args, "-c", emptyConfig(t))
			_, _, err := executeCmd(t, args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("unknown if-exists mode", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeCmd(t, "tables", "-c", emptyConfig(t), "--if-exists", "upsert", "https://example.com/")
		if !errors.Is(err, database.ErrInvalidIfExists) {
			t.Errorf("expected ErrInvalidIfExists, got %v", err)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.yaml")
		_, _, err := executeCmd(t, "tables", "-c", missing, "https://example.com/")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}
