package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Engine tests start a real Chromium and are opt-in.
const browserTestsEnv = "SCRAPEBOOK_BROWSER_TESTS"

const clockHTML = `<!DOCTYPE html>
<html>
<head><title>Clock</title></head>
<body>
<time id="utc">--:--:--</time>
<form action="/search">
  <input id="q" name="q" value="old">
</form>
<div class="item" data-sku="a"><span class="name">Alpha</span></div>
<div class="item"><span class="name">Beta</span></div>
<button id="reveal" onclick="document.getElementById('late').style.display='block'">show</button>
<p id="late" style="display:none">late</p>
<script>
  setTimeout(function () {
    document.getElementById("utc").textContent = "12:00:01";
  }, 200);
</script>
</body>
</html>`

func engineServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, clockHTML)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>results</title></head><body><p id="query">%s</p></body></html>`, r.URL.Query().Get("q"))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestEngines_Live(t *testing.T) {
	if os.Getenv(browserTestsEnv) != "1" {
		t.Skipf("set %s=1 to run browser engine tests", browserTestsEnv)
	}

	ts := engineServer(t)

	for _, engine := range Engines() {
		t.Run(engine, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			b, err := Open(ctx, Options{
				Engine:        engine,
				Headless:      true,
				ImplicitWait:  2 * time.Second,
				InstallDriver: engine == EnginePlaywright,
			})
			if err != nil {
				t.Fatalf("Open(%s) error = %v", engine, err)
			}
			defer b.Close()

			if b.Capabilities()["engine"] != engine {
				t.Errorf("unexpected capabilities %v", b.Capabilities())
			}

			page, err := b.NewPage(ctx)
			if err != nil {
				t.Fatalf("NewPage() error = %v", err)
			}
			defer page.Close()

			if err := page.Navigate(ctx, ts.URL); err != nil {
				t.Fatalf("Navigate() error = %v", err)
			}
			if title, _ := page.Title(ctx); title != "Clock" {
				t.Errorf("expected title Clock, got %q", title)
			}

			// Script-rendered text is visible after a short wait.
			time.Sleep(500 * time.Millisecond)
			el, err := page.Find(ctx, ByID("utc"))
			if err != nil {
				t.Fatalf("Find(utc) error = %v", err)
			}
			if text, _ := el.Text(ctx); text != "12:00:01" {
				t.Errorf("expected rendered time, got %q", text)
			}

			items, err := page.FindAll(ctx, ByClassName("item"))
			if err != nil || len(items) != 2 {
				t.Fatalf("FindAll(item) = %d, %v", len(items), err)
			}
			if sku, ok, _ := items[0].Attribute(ctx, "data-sku"); !ok || sku != "a" {
				t.Errorf("expected data-sku=a, got %q %v", sku, ok)
			}
			if _, ok, _ := items[1].Attribute(ctx, "data-sku"); ok {
				t.Error("expected missing attribute on second item")
			}
			name, err := items[1].Find(ctx, ByClassName("name"))
			if err != nil {
				t.Fatalf("nested Find error = %v", err)
			}
			if text, _ := name.Text(ctx); text != "Beta" {
				t.Errorf("expected Beta, got %q", text)
			}

			if _, err := page.Find(ctx, ByID("missing")); !errors.Is(err, ErrElementNotFound) {
				t.Errorf("expected ErrElementNotFound, got %v", err)
			}

			reveal, err := page.Find(ctx, ByID("reveal"))
			if err != nil {
				t.Fatalf("Find(reveal) error = %v", err)
			}
			if err := reveal.Click(ctx); err != nil {
				t.Fatalf("Click() error = %v", err)
			}
			if err := page.WaitVisible(ctx, ByID("late"), 2*time.Second); err != nil {
				t.Errorf("WaitVisible() error = %v", err)
			}

			shot := filepath.Join(t.TempDir(), "clock.png")
			if err := page.Screenshot(ctx, shot); err != nil {
				t.Errorf("Screenshot() error = %v", err)
			}
			if info, err := os.Stat(shot); err != nil || info.Size() == 0 {
				t.Errorf("expected screenshot file, got %v", err)
			}

			box, err := page.Find(ctx, ByID("q"))
			if err != nil {
				t.Fatalf("Find(q) error = %v", err)
			}
			if err := box.Clear(ctx); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if err := box.Type(ctx, "golang"); err != nil {
				t.Fatalf("Type() error = %v", err)
			}
			if err := box.Submit(ctx); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if err := page.WaitVisible(ctx, ByID("query"), 5*time.Second); err != nil {
				t.Fatalf("results did not load: %v", err)
			}
			q, _ := page.Find(ctx, ByID("query"))
			if text, _ := q.Text(ctx); text != "golang" {
				t.Errorf("expected submitted query golang, got %q", text)
			}

			if err := b.Close(); err != nil {
				t.Errorf("first Close() error = %v", err)
			}
			if err := b.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}
		})
	}
}
