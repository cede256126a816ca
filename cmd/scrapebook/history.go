package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/scrapebook/internal/config"
	"github.com/nao1215/scrapebook/internal/database"
	"github.com/nao1215/scrapebook/internal/frame"
)

// errNoDatabase is returned when history has no existing --db file to read.
var errNoDatabase = errors.New("no database: pass --db with an existing file")

// NewHistoryCmd creates the history command.
// It reads back what earlier runs exported with --db.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [table]",
		Short: "Show results and tables exported with --db",
		Long: `History reads a SQLite database written by --db.

Without arguments it lists every recorded result: URL, engine, status,
title, error and the tables written for it. With a table name it prints
that table. --list-tables prints the names of the exported tables.

Examples:
  # Results recorded so far
  scrapebook history --db stats.db

  # Print one exported table as CSV
  scrapebook history --db stats.db -f csv tables_0

  # Names of the exported tables
  scrapebook history --db stats.db --list-tables`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("list-tables", false,
		"List the exported tables instead of the results")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSettings(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.DBPath == "" {
		return errNoDatabase
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return fmt.Errorf("%w: %s", errNoDatabase, cfg.DBPath)
	}

	listTables, err := cmd.Flags().GetBool("list-tables")
	if err != nil {
		return err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	var f *frame.Frame
	switch {
	case len(args) == 1:
		if f, err = db.ReadTable(ctx, args[0]); err != nil {
			return err
		}
		f.Name = args[0]
	case listTables:
		names, err := db.Tables(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, len(names))
		for i, n := range names {
			rows[i] = []string{n}
		}
		f = frame.New("tables", []string{"table"}, rows)
	default:
		saved, err := db.SavedResults(ctx)
		if err != nil {
			return err
		}
		f = historyFrame(saved)
	}

	return renderFrame(cmd.OutOrStdout(), cfg.Format, f)
}

// historyFrame lays the recorded results out as a table.
func historyFrame(saved []database.SavedResult) *frame.Frame {
	rows := make([][]string, 0, len(saved))
	for _, s := range saved {
		status := ""
		if s.StatusCode != 0 {
			status = strconv.Itoa(s.StatusCode)
		}
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10), s.URL, s.Engine, status, s.Title, s.Error,
			strings.Join(s.Tables, " "),
		})
	}
	return frame.New("history",
		[]string{"id", "url", "engine", "status", "title", "error", "tables"}, rows)
}

// renderFrame writes f in the requested report format.
func renderFrame(out io.Writer, format config.Format, f *frame.Frame) error {
	var s string
	switch format {
	case config.FormatJSON:
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f.Name, err)
		}
		s = string(data)
	case config.FormatMarkdown:
		s = f.ToMarkdown()
	case config.FormatCSV:
		s = f.ToCSV()
	case config.FormatHTML:
		s = f.ToHTML()
	default:
		s = f.Render()
	}
	_, err := fmt.Fprintln(out, strings.TrimRight(s, "\n"))
	return err
}
