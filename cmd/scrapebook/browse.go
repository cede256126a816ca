package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/model"
	"github.com/nao1215/scrapebook/internal/pipeline"
)

// NewBrowseCmd creates the browse command.
func NewBrowseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <url>...",
		Short: "Render pages in a real browser and inspect the result",
		Long: `Browse loads pages in a real browser, so content produced by scripts
is present. It can size the window, wait for an element, take a
screenshot, print the browser capabilities and then inspect the rendered
page source like "scrapebook fetch" does.

Engines:
  rod         go-rod, downloads Chromium if none is found
  chromedp    Chrome DevTools Protocol through chromedp
  playwright  playwright-go with Chromium (--install-driver to download it)

The URLs are loaded one after another in a single browser.

Examples:
  # Screenshot and capabilities
  scrapebook browse --screenshot clock.png --capabilities https://www.time.gov/

  # <time> elements with an id, after scripts ran
  scrapebook browse --find time --has-attr id --wait-for time https://www.time.gov/

  # Watch the browser work
  scrapebook browse --headless=false --engine chromedp https://playwright.dev`,
		Args: cobra.ArbitraryArgs,
		RunE: runBrowseCmd,
	}

	addBrowserFlags(cmd)
	addExtractFlags(cmd, config.DefaultLines)
	cmd.Flags().String("screenshot", "",
		"Write a PNG screenshot to this path (numbered per URL when several)")
	cmd.Flags().Bool("capabilities", false,
		"Record the browser name and version")
	cmd.Flags().String("wait-for", "",
		"Wait until an element matching this selector is visible")
	cmd.Flags().String("wait-by", "css",
		"Selector strategy for --wait-for: css|id|class|tag")

	return cmd
}

// runBrowseCmd executes the browse command.
func runBrowseCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	extract, err := extractSteps(cmd)
	if err != nil {
		return err
	}
	renderOpts, err := renderStepOptions(cmd, cfg)
	if err != nil {
		return err
	}
	screenshot, err := cmd.Flags().GetString("screenshot")
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	opts := cfg.BrowserOptions("")
	opts.Logger = logger
	b, err := openBrowser(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer closeBrowser(b, logger)

	results := make([]*model.Result, 0, len(cfg.Targets))
	for i, target := range cfg.Targets {
		stepOpts := renderOpts
		if screenshot != "" {
			path := screenshotPath(cfg.ScreenshotDir, screenshot, i, len(cfg.Targets))
			stepOpts = append(stepOpts[:len(stepOpts):len(stepOpts)], pipeline.WithScreenshot(path))
		}
		render := pipeline.NewRenderStep(b, cfg.Engine, stepOpts...)
		results = append(results, runOne(ctx, newPagePipeline(logger, render, extract()), target))
	}

	prefix, err := exportPrefix(cmd, "browse")
	if err != nil {
		return err
	}
	if err := finish(ctx, cmd, cfg, prefix, results, logger); err != nil {
		return err
	}
	return ctx.Err()
}

// renderStepOptions converts the browse flags to RenderStep options.
func renderStepOptions(cmd *cobra.Command, cfg *config.Config) ([]pipeline.RenderStepOption, error) {
	flags := cmd.Flags()

	caps, err := flags.GetBool("capabilities")
	if err != nil {
		return nil, err
	}
	waitFor, err := flags.GetString("wait-for")
	if err != nil {
		return nil, err
	}
	waitBy, err := flags.GetString("wait-by")
	if err != nil {
		return nil, err
	}

	opts := []pipeline.RenderStepOption{
		pipeline.WithViewport(cfg.Width, cfg.Height),
		pipeline.WithCapabilities(caps),
	}
	if waitFor != "" {
		sel, err := browser.ParseSelector(waitBy, waitFor)
		if err != nil {
			return nil, fmt.Errorf("invalid --wait-for: %w", err)
		}
		opts = append(opts, pipeline.WithWaitFor(sel, cfg.Timeout))
	}
	return opts, nil
}

// runOne runs p for a single target, stopping before it starts when ctx
// is already cancelled.
func runOne(ctx context.Context, p *pipeline.Pipeline, target string) *model.Result {
	result := model.NewResult(target)
	_ = p.Execute(ctx, result) //nolint:errcheck // Error is stored in result
	result.Finish()
	return result
}

// screenshotPath returns where the screenshot of target i of n goes.
// Relative paths are anchored at dir. With several targets the index is
// added before the extension: shot.png, shot-2.png, shot-3.png.
func screenshotPath(dir, path string, i, n int) string {
	if n > 1 && i > 0 {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "-" + strconv.Itoa(i+1) + ext
	}
	if dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	return path
}

// closeBrowser closes b and logs a failure.
func closeBrowser(b browser.Browser, logger *slog.Logger) {
	if err := b.Close(); err != nil {
		logger.Error("failed to close browser", "error", err)
	}
}
