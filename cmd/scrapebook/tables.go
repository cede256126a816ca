package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/fetch"
	"github.com/nao1215/scrapebook/internal/htmltable"
	"github.com/nao1215/scrapebook/internal/pipeline"
)

// NewTablesCmd creates the tables command.
func NewTablesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables <url>...",
		Short: "Extract HTML tables into data frames",
		Long: `Tables reads every <table> of the given pages into data frames.

Header rows come from <thead> or leading rows of <th> cells, colspan and
rowspan are expanded, and elements hidden with display:none are dropped.
Each table is named after its <caption>, or "table N".

Examples:
  # All tables of a page
  scrapebook tables https://www.espn.com/mens-college-basketball/team/stats/_/id/38

  # The first five rows of the second table
  scrapebook tables --index 1 --head 5 https://en.wikipedia.org/wiki/Colorado_Buffaloes_men%27s_basketball

  # Join two tables side by side and export them as CSV
  scrapebook tables -i 0 -i 1 --concat -f csv -o stats.csv <url>

  # Tables from local HTML files
  scrapebook tables --html saved-page.html

  # Save the tables to SQLite
  scrapebook tables --db stats.db --db-prefix espn <url>`,
		Args: cobra.ArbitraryArgs,
		RunE: runTablesCmd,
	}

	cmd.Flags().IntSliceP("index", "i", nil,
		"Keep only the tables at these 0-based positions, in this order")
	cmd.Flags().Bool("concat", false,
		"Join the kept tables side by side into one frame")
	cmd.Flags().Int("head", 0,
		"Keep only the first N rows of each table (0 keeps all)")
	cmd.Flags().String("match", "",
		"Keep only tables whose text matches this regular expression")
	cmd.Flags().StringToString("attr", nil,
		"Keep only tables with these attributes (e.g. --attr class=wikitable)")
	cmd.Flags().Bool("all", false,
		"Keep elements hidden with display:none")
	cmd.Flags().Bool("html", false,
		"Treat the arguments as local HTML files instead of URLs")

	return cmd
}

// runTablesCmd executes the tables command.
func runTablesCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	fromFiles, err := cmd.Flags().GetBool("html")
	if err != nil {
		return err
	}
	if fromFiles {
		if len(args) == 0 {
			err = config.ErrNoTarget
		} else {
			err = cfg.ValidateSettings()
		}
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	stepOpts, err := tablesStepOptions(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd, cfg.Verbose)
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	load := func() pipeline.Step { return pipeline.NewFileStep() }
	if !fromFiles {
		session, err := fetch.NewSession(append(cfg.SessionOptions(), fetch.WithLogger(logger))...)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		load = func() pipeline.Step { return pipeline.NewFetchStep(session) }
	}

	factory := func() *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddSteps(load(), pipeline.NewTablesStep(stepOpts...))
		return p
	}

	prefix, err := exportPrefix(cmd, "tables")
	if err != nil {
		return err
	}
	return runBatch(ctx, cmd, cfg, prefix, factory, logger)
}

// tablesStepOptions converts the tables flags to TablesStep options.
func tablesStepOptions(cmd *cobra.Command) ([]pipeline.TablesStepOption, error) {
	flags := cmd.Flags()

	indexes, err := flags.GetIntSlice("index")
	if err != nil {
		return nil, err
	}
	concat, err := flags.GetBool("concat")
	if err != nil {
		return nil, err
	}
	head, err := flags.GetInt("head")
	if err != nil {
		return nil, err
	}
	match, err := flags.GetString("match")
	if err != nil {
		return nil, err
	}
	attrs, err := flags.GetStringToString("attr")
	if err != nil {
		return nil, err
	}
	all, err := flags.GetBool("all")
	if err != nil {
		return nil, err
	}

	parseOpts := []htmltable.Option{htmltable.WithDisplayedOnly(!all)}
	if match != "" {
		re, err := regexp.Compile(match)
		if err != nil {
			return nil, fmt.Errorf("invalid --match pattern: %w", err)
		}
		parseOpts = append(parseOpts, htmltable.WithMatch(re))
	}
	if len(attrs) > 0 {
		parseOpts = append(parseOpts, htmltable.WithAttrs(attrs))
	}

	return []pipeline.TablesStepOption{
		pipeline.WithTableOptions(parseOpts...),
		pipeline.WithSelect(indexes...),
		pipeline.WithConcat(concat),
		pipeline.WithHead(head),
	}, nil
}
