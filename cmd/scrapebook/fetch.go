package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/fetch"
	"github.com/nao1215/scrapebook/internal/pipeline"
)

// errHasAttrWithoutFind is returned when --has-attr is given without --find.
var errHasAttrWithoutFind = errors.New("--has-attr requires --find")

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <url>...",
		Short: "Fetch pages with an HTTP session and inspect their HTML",
		Long: `Fetch downloads pages with a session that keeps cookies between
requests, decodes them to UTF-8 and prints what was asked for: the first
lines of the <body>, elements matching a CSS selector, the links of the
page or its tables.

The raw HTML is what the server sent. Content added by scripts is not
there; use "scrapebook browse" for that.

Examples:
  # The first 20 lines of the body
  scrapebook fetch https://www.time.gov/

  # <time> elements that have an id
  scrapebook fetch --lines 0 --find time --has-attr id https://www.time.gov/

  # Every absolute link, as JSON
  scrapebook fetch --links -f json https://en.wikipedia.org/wiki/Web_scraping`,
		Args: cobra.ArbitraryArgs,
		RunE: runFetchCmd,
	}

	addExtractFlags(cmd, config.DefaultLines)

	return cmd
}

// addExtractFlags registers the flags shared by fetch, browse and run.
func addExtractFlags(cmd *cobra.Command, lines int) {
	cmd.Flags().Int("lines", lines,
		"Print the first N non-empty lines of the body (0 skips, -1 prints all)")
	cmd.Flags().String("find", "",
		"Collect elements matching this CSS selector")
	cmd.Flags().String("has-attr", "",
		"With --find, keep only elements that have this attribute")
	cmd.Flags().Bool("links", false,
		"Collect the absolute links of the page")
	cmd.Flags().Bool("tables", false,
		"Also extract the tables of the page")
	cmd.Flags().Bool("page-source", false,
		"Include the page source in text reports")
}

// extractSteps builds the steps selected by the extraction flags.
// They run after the page has been loaded.
func extractSteps(cmd *cobra.Command) (func() []pipeline.Step, error) {
	flags := cmd.Flags()

	lines, err := flags.GetInt("lines")
	if err != nil {
		return nil, err
	}
	find, err := flags.GetString("find")
	if err != nil {
		return nil, err
	}
	hasAttr, err := flags.GetString("has-attr")
	if err != nil {
		return nil, err
	}
	links, err := flags.GetBool("links")
	if err != nil {
		return nil, err
	}
	tables, err := flags.GetBool("tables")
	if err != nil {
		return nil, err
	}
	if hasAttr != "" && find == "" {
		return nil, errHasAttrWithoutFind
	}

	return func() []pipeline.Step {
		var steps []pipeline.Step
		switch {
		case lines > 0:
			steps = append(steps, pipeline.NewLinesStep(lines))
		case lines < 0:
			steps = append(steps, pipeline.NewLinesStep(0))
		}
		if find != "" {
			steps = append(steps, pipeline.NewFindStep(find, hasAttr))
		}
		if links {
			steps = append(steps, pipeline.NewLinksStep())
		}
		if tables {
			steps = append(steps, pipeline.NewTablesStep())
		}
		return steps
	}, nil
}

// runFetchCmd executes the fetch command.
func runFetchCmd(cmd *cobra.Command, args []string) error {
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

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	session, err := fetch.NewSession(append(cfg.SessionOptions(), fetch.WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	factory := func() *pipeline.Pipeline {
		return newPagePipeline(logger, pipeline.NewFetchStep(session), extract())
	}

	prefix, err := exportPrefix(cmd, "fetch")
	if err != nil {
		return err
	}
	return runBatch(ctx, cmd, cfg, prefix, factory, logger)
}

// newPagePipeline creates a pipeline that loads a page and then extracts.
func newPagePipeline(logger *slog.Logger, load pipeline.Step, extract []pipeline.Step) *pipeline.Pipeline {
	p := pipeline.New(pipeline.WithLogger(logger))
	p.AddStep(load)
	p.AddSteps(extract...)
	return p
}
