package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Rows are loaded with the TDS bulk-copy protocol (mssqldb.CopyIn) inside a
// transaction that also drops and recreates the destination table.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver registered by go-mssqldb and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// WriteTable replaces name with the contents of t.
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

	for _, s := range []string{buildDropSQL(spec.Name), buildCreateSQL(spec)} {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return 0, fmt.Errorf("%s: %w", s, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, mssqldb.CopyIn(mssqlTableIdent(spec.Name), mssqldb.BulkOptions{Tablock: true}, spec.ColumnNames()...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy into %s: %w", spec.Name, err)
	}
	defer stmt.Close()

	for i, row := range storage.Rows(t) {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("bulk copy row %d: %w", i, err)
		}
	}
	// An Exec without arguments flushes the buffered rows.
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("bulk copy into %s: %w", spec.Name, err)
	}
	n, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func mssqlType(t storage.ColumnType) string {
	switch t {
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeDouble:
		return "FLOAT"
	case storage.TypeBool:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// buildDropSQL drops the table when present. The OBJECT_ID guard works on
// every SQL Server version, unlike DROP TABLE IF EXISTS.
func buildDropSQL(name string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s;",
		strings.ReplaceAll(name, "'", "''"), mssqlTableIdent(name))
}

func buildCreateSQL(s storage.TableSpec) string {
	defs := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		defs = append(defs, fmt.Sprintf("%s %s NULL", mssqlIdent(c.Name), mssqlType(c.Type)))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s);", mssqlTableIdent(s.Name), strings.Join(defs, ", "))
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.cleaned" -> [dbo].[cleaned]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}
