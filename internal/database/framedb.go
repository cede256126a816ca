package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/scrapebook/internal/frame"
	"github.com/nao1215/scrapebook/internal/model"
)

// IfExists decides what ToSQL does when the table is already there,
// like the if_exists argument of pandas' to_sql.
type IfExists int

const (
	// Fail returns ErrTableExists.
	Fail IfExists = iota
	// Replace drops the table and creates it again.
	Replace
	// Append inserts the rows into the existing table.
	Append
)

// String returns the pandas name of the mode.
func (m IfExists) String() string {
	switch m {
	case Replace:
		return "replace"
	case Append:
		return "append"
	default:
		return "fail"
	}
}

// ParseIfExists parses "fail", "replace" or "append".
func ParseIfExists(s string) (IfExists, error) {
	switch strings.ToLower(s) {
	case "fail", "":
		return Fail, nil
	case "replace":
		return Replace, nil
	case "append":
		return Append, nil
	default:
		return Fail, fmt.Errorf("%w: %q", ErrInvalidIfExists, s)
	}
}

var (
	// ErrTableExists is returned by ToSQL in Fail mode when the table exists.
	ErrTableExists = errors.New("table already exists")

	// ErrInvalidTableName is returned for an empty or reserved table name.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidIfExists is returned by ParseIfExists.
	ErrInvalidIfExists = errors.New("invalid if-exists mode: must be fail, replace or append")
)

// IndexColumn is the name of the row index column written by ToSQL.
const IndexColumn = "index"

// resultsTable keeps one row per saved Result.
const resultsTable = "scrapebook_results"

// FrameDB stores frames and run results in a SQLite file.
type FrameDB struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the SQLite database at path, creating the parent
// directory if needed.
func Open(path string) (*FrameDB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	fdb := &FrameDB{db: db, dbPath: path}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := fdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return fdb, nil
}

// Close closes the database connection.
func (f *FrameDB) Close() error {
	return f.db.Close()
}

// Path returns the database file path.
func (f *FrameDB) Path() string {
	return f.dbPath
}

func (f *FrameDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrapebook_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		final_url TEXT,
		engine TEXT,
		status_code INTEGER,
		title TEXT,
		html_hash TEXT,
		error TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		tables_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_url ON scrapebook_results(url);
	`
	_, err := f.db.ExecContext(context.Background(), schema)
	return err
}

// ToSQL writes fr into table. Every column is stored as TEXT, preceded by
// an integer "index" column holding the row position. Repeated column
// labels get a ".N" suffix, as pandas does when reading them.
func (f *FrameDB) ToSQL(ctx context.Context, table string, fr *frame.Frame, ifExists IfExists) error {
	if table == "" || strings.HasPrefix(table, "sqlite_") || table == resultsTable {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // No-op after commit
	}()

	exists, err := tableExists(ctx, tx, table)
	if err != nil {
		return err
	}

	columns := sqlColumns(fr.Columns)
	start := 0

	switch {
	case exists && ifExists == Fail:
		return fmt.Errorf("%w: %q", ErrTableExists, table)
	case exists && ifExists == Replace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+quoteIdent(table)); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
		exists = false
	case exists && ifExists == Append:
		// Continue the index after the existing rows.
		row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdent(table))
		if err := row.Scan(&start); err != nil {
			return fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
	}

	if !exists {
		defs := make([]string, 0, len(columns)+1)
		defs = append(defs, quoteIdent(IndexColumn)+" INTEGER")
		for _, c := range columns {
			defs = append(defs, quoteIdent(c)+" TEXT")
		}
		ddl := "CREATE TABLE " + quoteIdent(table) + " (" + strings.Join(defs, ", ") + ")"
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}
	}

	names := make([]string, 0, len(columns)+1)
	names = append(names, quoteIdent(IndexColumn))
	for _, c := range columns {
		names = append(names, quoteIdent(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	insert := "INSERT INTO " + quoteIdent(table) + " (" + strings.Join(names, ", ") + ") VALUES (" + placeholders + ")"

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, r := range fr.Rows {
		args := make([]any, 0, len(r)+1)
		args = append(args, start+i)
		for _, v := range r {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, table, err)
		}
	}

	return tx.Commit()
}

// ReadSQL runs query and returns the rows as a frame, like pandas'
// read_sql. NULL becomes the missing value.
func (f *FrameDB) ReadSQL(ctx context.Context, query string, args ...any) (*frame.Frame, error) {
	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var data [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = v.String
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return frame.New("", columns, data), nil
}

// ReadTable reads a whole table written by ToSQL back into a frame,
// ordered by its index column, which is left out.
func (f *FrameDB) ReadTable(ctx context.Context, table string) (*frame.Frame, error) {
	fr, err := f.ReadSQL(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY "+quoteIdent(IndexColumn))
	if err != nil {
		return nil, err
	}
	out := frame.New(table, fr.Columns[1:], nil)
	for _, r := range fr.Rows {
		out.Rows = append(out.Rows, r[1:])
	}
	return out, nil
}

// Tables returns the names of the user tables in name order.
func (f *FrameDB) Tables(ctx context.Context) ([]string, error) {
	rows, err := f.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != ?
		ORDER BY name`, resultsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SaveResult records r and writes each of its tables as <prefix>_<n>.
// ifExists decides what happens to a table of the same name. It returns
// the table names written.
func (f *FrameDB) SaveResult(ctx context.Context, prefix string, r *model.Result, ifExists IfExists) ([]string, error) {
	if prefix == "" {
		prefix = "table"
	}

	names := make([]string, 0, len(r.Tables))
	for i, fr := range r.Tables {
		name := prefix + "_" + strconv.Itoa(i)
		if err := f.ToSQL(ctx, name, fr, ifExists); err != nil {
			return names, err
		}
		names = append(names, name)
	}

	tablesJSON, err := json.Marshal(names)
	if err != nil {
		return names, fmt.Errorf("failed to serialize table names: %w", err)
	}

	query := `
	INSERT INTO scrapebook_results
		(url, final_url, engine, status_code, title, html_hash, error, started_at, finished_at, tables_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = f.db.ExecContext(ctx, query,
		r.URL, r.FinalURL, r.Engine, r.StatusCode, r.Title, r.HTMLHash, r.ErrorMessage,
		r.StartedAt, r.FinishedAt, string(tablesJSON),
	)
	if err != nil {
		return names, fmt.Errorf("failed to save result: %w", err)
	}
	return names, nil
}

// SavedResult is a row of the results table.
type SavedResult struct {
	ID         int64
	URL        string
	Engine     string
	StatusCode int
	Title      string
	Error      string
	Tables     []string
}

// SavedResults returns the recorded results, oldest first.
func (f *FrameDB) SavedResults(ctx context.Context) ([]SavedResult, error) {
	rows, err := f.db.QueryContext(ctx, `
	SELECT id, url, engine, status_code, title, error, tables_json
	FROM scrapebook_results ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []SavedResult
	for rows.Next() {
		var (
			s          SavedResult
			engine     sql.NullString
			title      sql.NullString
			errMsg     sql.NullString
			status     sql.NullInt64
			tablesJSON sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.URL, &engine, &status, &title, &errMsg, &tablesJSON); err != nil {
			return nil, err
		}
		s.Engine = engine.String
		s.StatusCode = int(status.Int64)
		s.Title = title.String
		s.Error = errMsg.String
		if tablesJSON.Valid && tablesJSON.String != "" {
			if err := json.Unmarshal([]byte(tablesJSON.String), &s.Tables); err != nil {
				return nil, fmt.Errorf("failed to parse table names: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return n > 0, nil
}

// sqlColumns makes column labels unique and non-empty. SQLite compares
// column names case-insensitively.
func sqlColumns(labels []string) []string {
	used := map[string]bool{strings.ToLower(IndexColumn): true}
	out := make([]string, len(labels))
	for i, l := range labels {
		if l == "" {
			l = strconv.Itoa(i)
		}
		if strings.EqualFold(l, IndexColumn) {
			l = "level_" + strconv.Itoa(i)
		}
		name := l
		for n := 1; used[strings.ToLower(name)]; n++ {
			name = l + "." + strconv.Itoa(n)
		}
		used[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
