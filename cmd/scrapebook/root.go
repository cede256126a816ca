package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/database"
	"github.com/nao1215/scrapebook/internal/fetch"
)

// NewRootCmd creates the root command for scrapebook.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrapebook",
		Short: "Scrape tables, pages and rendered sites from the command line",
		Long: `scrapebook extracts data from web pages.

It reads HTML tables into data frames, fetches pages with a session that
keeps cookies, renders pages in a real browser (rod, chromedp or
playwright) and replays scripted browser sessions called recipes.

Results can be printed as text, JSON, Markdown, HTML or CSV and exported
to a SQLite database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.StringP("config", "c", "",
		"Configuration file path (default: "+config.DefaultConfigFile+" in current, XDG config or home directory)")
	flags.StringP("output", "o", "",
		"Also write the report to the specified file path (creates directories if needed)")
	flags.StringP("format", "f", string(config.FormatText),
		"Report format: "+formatList())
	flags.String("db", "",
		"Export tables and results to this SQLite database")
	flags.String("db-prefix", "",
		"Table name prefix for --db exports (default: derived from the command)")
	flags.String("if-exists", database.Replace.String(),
		"What --db does with an existing table: fail|replace|append")
	flags.DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request or navigation")
	flags.String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")
	flags.Bool("robots", false,
		"Respect robots.txt of the target sites")
	flags.String("robots-agent", fetch.DefaultRobotsAgent,
		"Product token matched against robots.txt groups")
	flags.Bool("cloudflare", false,
		"Use a Cloudflare-friendly HTTP transport")
	flags.Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes (0 disables the limit)")
	flags.IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of URLs processed at once")

	// Add subcommands
	cmd.AddCommand(NewTablesCmd())
	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewBrowseCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatList() string {
	formats := config.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, "|")
}
