package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// maxVars keeps a multi-row INSERT under SQLite's historical
// SQLITE_MAX_VARIABLE_NUMBER.
const maxVars = 999

// Repo implements storage.Repository for SQLite.
//
// SQLite has no boolean type; bool cells are stored as INTEGER 0/1.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a file path or ":memory:").
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One connection: every ":memory:" connection is its own database, and
	// SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// WriteTable drops and recreates name, then inserts every row of t in
// batches, all inside one transaction.
func (r *Repo) WriteTable(ctx context.Context, name string, t *table.Table) (int64, error) {
	spec, err := storage.SpecFor(name, t)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, buildDropSQL(spec.Name)); err != nil {
		return 0, fmt.Errorf("drop %s: %w", spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateTableSQL(spec)); err != nil {
		return 0, fmt.Errorf("create %s: %w", spec.Name, err)
	}

	cols := spec.ColumnNames()
	rows := storage.Rows(t)
	batch := maxVars / len(cols)
	if batch < 1 {
		batch = 1
	}

	var total int64
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}
		q, args := buildInsertSQL(spec.Name, cols, rows[start:end])
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert %s rows %d-%d: %w", spec.Name, start, end-1, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func sqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeBigInt, storage.TypeBool:
		return "INTEGER"
	case storage.TypeDouble:
		return "REAL"
	default:
		return "TEXT"
	}
}

func buildDropSQL(name string) string {
	return "DROP TABLE IF EXISTS " + sqlIdent(name) + ";"
}

func buildCreateTableSQL(s storage.TableSpec) string {
	parts := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		parts = append(parts, fmt.Sprintf("%s %s", sqlIdent(c.Name), sqlType(c.Type)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqlIdent(s.Name), strings.Join(parts, ",\n  "))
}

// buildInsertSQL builds one multi-row INSERT with positional placeholders.
func buildInsertSQL(name string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}
