package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/browser"
	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/database"
	seclog "github.com/nao1215/scrapebook/internal/log"
	"github.com/nao1215/scrapebook/internal/model"
	"github.com/nao1215/scrapebook/internal/pipeline"
	"github.com/nao1215/scrapebook/internal/report"
)

// openBrowser launches browsers. Tests replace it with an in-memory fake.
var openBrowser = browser.Open

// errTargetsFailed is returned after the report is written when at least
// one target could not be processed.
var errTargetsFailed = errors.New("some targets failed")

// addBrowserFlags registers the flags shared by browse and run.
func addBrowserFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("engine", "e", config.DefaultEngine,
		"Browser engine: rod|chromedp|playwright")
	flags.Bool("headless", true,
		"Run the browser without a window (--headless=false to watch it)")
	flags.Int("width", config.DefaultWidth, "Browser window width")
	flags.Int("height", config.DefaultHeight, "Browser window height")
	flags.Duration("implicit-wait", config.DefaultImplicitWait,
		"How long element lookups wait for a match")
	flags.String("browser-path", "",
		"Chromium executable (default: found or downloaded by the engine)")
	flags.Bool("install-driver", false,
		"Download the playwright driver and Chromium if missing")
	flags.String("screenshot-dir", "",
		"Directory for relative screenshot paths (default: current directory)")
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	cfg.Format = config.Format(strings.ToLower(format))
	if cfg.DBPath, err = flags.GetString("db"); err != nil {
		return nil, err
	}
	ifExists, err := flags.GetString("if-exists")
	if err != nil {
		return nil, err
	}
	if cfg.DBIfExists, err = database.ParseIfExists(ifExists); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.RespectRobots, err = flags.GetBool("robots"); err != nil {
		return nil, err
	}
	if cfg.RobotsAgent, err = flags.GetString("robots-agent"); err != nil {
		return nil, err
	}
	if cfg.CloudflareBypass, err = flags.GetBool("cloudflare"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}

	// Browser flags only exist on browse and run.
	if flags.Lookup("engine") != nil {
		if err := readBrowserFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	// If the user explicitly specified a config file path, error if not found.
	// If no path is specified, silently use an empty config.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Targets = args
	return cfg, nil
}

func readBrowserFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	var err error
	if cfg.Engine, err = flags.GetString("engine"); err != nil {
		return err
	}
	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return err
	}
	if cfg.Width, err = flags.GetInt("width"); err != nil {
		return err
	}
	if cfg.Height, err = flags.GetInt("height"); err != nil {
		return err
	}
	if cfg.ImplicitWait, err = flags.GetDuration("implicit-wait"); err != nil {
		return err
	}
	if cfg.BrowserPath, err = flags.GetString("browser-path"); err != nil {
		return err
	}
	if cfg.InstallDriver, err = flags.GetBool("install-driver"); err != nil {
		return err
	}
	cfg.ScreenshotDir, err = flags.GetString("screenshot-dir")
	return err
}

// setupLogger creates the secure logger and makes it the default.
func setupLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logger := seclog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// runBatch processes targets concurrently with pipelines from factory and
// then reports and exports the results.
func runBatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, prefix string,
	factory func() *pipeline.Pipeline, logger *slog.Logger) error {
	logger.Info("starting",
		"command", cmd.Name(),
		"targets", len(cfg.Targets),
		"concurrency", cfg.Concurrency,
	)

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)
	results, err := bp.ProcessBatch(ctx, cfg.Targets)
	if finishErr := finish(ctx, cmd, cfg, prefix, results, logger); finishErr != nil {
		return finishErr
	}
	return err
}

// finish writes the report, exports the results and reports failures.
func finish(ctx context.Context, cmd *cobra.Command, cfg *config.Config, prefix string,
	results []*model.Result, logger *slog.Logger) error {
	pageSource := false
	if cmd.Flags().Lookup("page-source") != nil {
		var err error
		if pageSource, err = cmd.Flags().GetBool("page-source"); err != nil {
			return err
		}
	}

	if err := writeReport(cmd.OutOrStdout(), cfg, results, pageSource); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := exportResults(ctx, cmd.ErrOrStderr(), cfg, prefix, results, logger); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errTargetsFailed, failed, len(results))
	}
	return nil
}

// newWriter creates the report writer for format.
func newWriter(format config.Format, out io.Writer, pageSource bool) (report.Writer, error) {
	switch format {
	case config.FormatJSON:
		return report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion())), nil
	case config.FormatText, "":
		return report.NewTextWriter(out, report.WithPageSource(pageSource)), nil
	default:
		return report.New(string(format), out)
	}
}

// writeReport writes results to out and, when configured, to the report file.
func writeReport(out io.Writer, cfg *config.Config, results []*model.Result, pageSource bool) error {
	w, err := newWriter(cfg.Format, out, pageSource)
	if err != nil {
		return err
	}

	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports may contain cookies or session data, keep them private.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		fw, err := newWriter(cfg.Format, f, pageSource)
		if err != nil {
			return err
		}
		w = report.NewMultiWriter(w, fw)
	}

	_, err = w.Write(results)
	return err
}

// exportResults saves results to the SQLite database when --db is set.
// With several results, each gets its own "<prefix>_<i>" table prefix.
func exportResults(ctx context.Context, msg io.Writer, cfg *config.Config, prefix string,
	results []*model.Result, logger *slog.Logger) error {
	if cfg.DBPath == "" {
		return nil
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	tables := 0
	for i, r := range results {
		p := prefix
		if len(results) > 1 {
			p = prefix + "_" + strconv.Itoa(i)
		}
		names, err := db.SaveResult(ctx, p, r, cfg.DBIfExists)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", r.URL, err)
		}
		tables += len(names)
		logger.Debug("result exported", "url", r.URL, "tables", names)
	}

	fmt.Fprintf(msg, "Exported %d tables to %s\n", tables, db.Path())
	return nil
}

// exportPrefix returns the --db-prefix flag or fallback.
func exportPrefix(cmd *cobra.Command, fallback string) (string, error) {
	prefix, err := cmd.Flags().GetString("db-prefix")
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return fallback, nil
	}
	return prefix, nil
}
