package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/scrapebook/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, result *model.Result) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, result *model.Result) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, result)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
		if p.logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "fetch"})
	p.AddSteps(&mockStep{name: "tables"}, &mockStep{name: "lines"})

	if diff := cmp.Diff([]string{"fetch", "tables", "lines"}, p.StepNames()); diff != "" {
		t.Errorf("step names mismatch (-want +got):\n%s", diff)
	}
	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("bounds the kept page source after the last step", func(t *testing.T) {
		t.Parallel()

		var seen int
		p := New(WithLogger(quietLogger()))
		p.AddSteps(
			&mockStep{name: "load", doFunc: func(_ context.Context, r *model.Result) error {
				r.SetHTML(strings.Repeat("a", model.MaxHTMLSize+10))
				return nil
			}},
			&mockStep{name: "read", doFunc: func(_ context.Context, r *model.Result) error {
				seen = len(r.HTML)
				return nil
			}},
		)

		result := model.NewResult("https://example.com/")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if seen != model.MaxHTMLSize+10 {
			t.Errorf("steps saw %d bytes, want the full source", seen)
		}
		if len(result.HTML) != model.MaxHTMLSize {
			t.Errorf("kept %d bytes, want %d", len(result.HTML), model.MaxHTMLSize)
		}
	})

	t.Run("runs every step in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		step := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.Result) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(step("a"), step("b"), step("c"))

		result := model.NewResult("https://example.com/")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"a", "b", "c"}, result.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
		if result.Failed() {
			t.Errorf("unexpected failure: %s", result.ErrorMessage)
		}
	})

	t.Run("stops on first error and records it", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")
		failing := &mockStep{name: "fail", doFunc: func(context.Context, *model.Result) error { return errBoom }}
		after := &mockStep{name: "after"}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(&mockStep{name: "ok"}, failing, after)

		result := model.NewResult("https://example.com/")
		err := p.Execute(context.Background(), result)
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("step after the failure should not run")
		}
		if !errors.Is(result.Error, errBoom) || result.ErrorMessage != "boom" {
			t.Errorf("expected error recorded in result, got %v / %q", result.Error, result.ErrorMessage)
		}
		if diff := cmp.Diff([]string{"ok"}, result.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		failing := &mockStep{name: "fail", doFunc: func(context.Context, *model.Result) error { return errors.New("boom") }}
		after := &mockStep{name: "after"}

		p := New(WithLogger(quietLogger()), WithContinueOnError(true))
		p.AddSteps(failing, after)

		result := model.NewResult("https://example.com/")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if after.callCount != 1 {
			t.Error("expected step after the failure to run")
		}
		if !result.Failed() {
			t.Error("expected failure to be recorded")
		}
		if diff := cmp.Diff([]string{"after"}, result.PerformedSteps); diff != "" {
			t.Errorf("performed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("cancelled context stops before the next step", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		first := &mockStep{name: "first", doFunc: func(context.Context, *model.Result) error {
			cancel()
			return nil
		}}
		second := &mockStep{name: "second"}

		p := New(WithLogger(quietLogger()))
		p.AddSteps(first, second)

		result := model.NewResult("https://example.com/")
		err := p.Execute(ctx, result)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if second.callCount != 0 {
			t.Error("second step should not run")
		}
		if !result.TimedOut {
			t.Error("expected TimedOut to be set")
		}
	})
}
