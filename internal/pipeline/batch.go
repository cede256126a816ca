package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/scrapebook/internal/model"
)

// DefaultConcurrency is the number of URLs processed at once by default.
const DefaultConcurrency = 4

// BatchProcessor runs a fresh pipeline for each of several URLs with
// bounded concurrency. A failed URL never stops the others.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each URL so step state
	// does not leak between URLs.
	pipelineFactory func() *Pipeline

	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of URLs processed at once.
// Values below one are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch processes the URLs concurrently and returns one result per
// URL in input order. Results of failed URLs carry the error.
// The returned error is non-nil only when the context was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, urls []string) ([]*model.Result, error) {
	results := make([]*model.Result, len(urls))
	err := bp.ProcessBatchWithCallback(ctx, urls, func(result *model.Result, index int) {
		results[index] = result
	})

	// URLs never started because of cancellation still get a result.
	for i, r := range results {
		if r == nil {
			r = model.NewResult(urls[i])
			r.TimedOut = true
			if err != nil {
				r.Fail(err)
			}
			r.Finish()
			results[i] = r
		}
	}
	return results, err
}

// ProcessBatchWithCallback processes the URLs and calls callback for each
// finished result with the index of its URL. The callback runs on the
// worker goroutine, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	urls []string,
	callback func(result *model.Result, index int),
) error {
	bp.logger.Debug("starting batch processing",
		"total_urls", len(urls),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range urls {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Debug("processing url",
				"url", target,
				"index", i+1,
				"total", len(urls),
			)

			result := model.NewResult(target)
			_ = bp.pipelineFactory().Execute(ctx, result) //nolint:errcheck // Error is stored in result
			result.Finish()

			if result.Failed() {
				bp.logger.Warn("url failed", "url", target, "error", result.ErrorMessage)
			}

			callback(result, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Debug("batch processing complete",
		"total_urls", len(urls),
		"elapsed", time.Since(startTime),
	)
	return err
}
