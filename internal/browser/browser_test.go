package browser

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenUnknownEngine(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{Engine: "netscape"})
	if !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "netscape") {
		t.Errorf("expected engine name in error, got %v", err)
	}
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	t.Run("zero values get defaults", func(t *testing.T) {
		t.Parallel()
		o := Options{}.withDefaults()
		if o.Width != 1024 || o.Height != 768 {
			t.Errorf("expected 1024x768, got %dx%d", o.Width, o.Height)
		}
		if o.ImplicitWait != 5*time.Second {
			t.Errorf("expected 5s implicit wait, got %v", o.ImplicitWait)
		}
		if o.Timeout != DefaultTimeout {
			t.Errorf("expected default timeout, got %v", o.Timeout)
		}
		if o.Logger == nil {
			t.Error("expected a logger")
		}
	})

	t.Run("explicit values kept", func(t *testing.T) {
		t.Parallel()
		o := Options{Width: 1920, Height: 1080, ImplicitWait: time.Second}.withDefaults()
		if o.Width != 1920 || o.Height != 1080 || o.ImplicitWait != time.Second {
			t.Errorf("unexpected options %+v", o)
		}
	})
}

func TestCloseOnce(t *testing.T) {
	t.Parallel()

	t.Run("runs once and returns first error", func(t *testing.T) {
		t.Parallel()

		calls := 0
		boom := errors.New("boom")
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		c := newCloseOnce(logger, func() error {
			calls++
			return boom
		})

		if err := c.Close(); !errors.Is(err, boom) {
			t.Errorf("expected first close error, got %v", err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("expected nil on second close, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected close func to run once, ran %d times", calls)
		}
		if !strings.Contains(buf.String(), "browser already closed") {
			t.Errorf("expected redundant close to be logged, got %q", buf.String())
		}
	})

	t.Run("concurrent close", func(t *testing.T) {
		t.Parallel()

		var calls int
		c := newCloseOnce(slog.Default(), func() error {
			calls++
			return nil
		})
		done := make(chan struct{})
		for range 8 {
			go func() {
				_ = c.Close()
				done <- struct{}{}
			}()
		}
		for range 8 {
			<-done
		}
		if calls != 1 {
			t.Errorf("expected one call, got %d", calls)
		}
	})
}

func TestSplitProduct(t *testing.T) {
	t.Parallel()

	name, version := splitProduct("HeadlessChrome/120.0.6099.109")
	if name != "HeadlessChrome" || version != "120.0.6099.109" {
		t.Errorf("unexpected split %q %q", name, version)
	}
	name, version = splitProduct("Chrome")
	if name != "Chrome" || version != "" {
		t.Errorf("unexpected split %q %q", name, version)
	}
}

func TestWriteScreenshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shots", "page.png")
	if err := writeScreenshot(path, []byte("png")); err != nil {
		t.Fatalf("writeScreenshot() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read screenshot: %v", err)
	}
	if string(got) != "png" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestPlaywrightDriverDir(t *testing.T) {
	t.Parallel()

	if got := playwrightDriverDir(Options{DriverDir: "/tmp/pw"}); got != "/tmp/pw" {
		t.Errorf("expected explicit dir, got %q", got)
	}
	if got := playwrightDriverDir(Options{}); !strings.HasSuffix(got, filepath.Join("scrapebook", "playwright")) {
		t.Errorf("expected cache dir, got %q", got)
	}
}

func TestEngines(t *testing.T) {
	t.Parallel()

	if got := Engines(); len(got) != 3 {
		t.Errorf("expected 3 engines, got %v", got)
	}
}
