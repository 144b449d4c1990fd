package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

/*
Repo implements storage.Repository for Postgres.

The table is replaced inside one transaction:
  - CREATE SCHEMA IF NOT EXISTS for schema-qualified names
  - DROP TABLE IF EXISTS + CREATE TABLE
  - COPY FROM STDIN via pgx CopyFrom for the rows
*/
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pgx connection pool for cfg.DSN.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// WriteTable replaces name with the contents of t.
func (r *Repo) WriteTable(ctx context.Context, name string, t *table.Table) (int64, error) {
	spec, err := storage.SpecFor(name, t)
	if err != nil {
		return 0, err
	}
	stmts, err := buildReplaceSQL(spec)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range stmts {
		if _, err := tx.Exec(ctx, s); err != nil {
			return 0, fmt.Errorf("%s: %w", s, err)
		}
	}

	n, err := tx.CopyFrom(ctx, identifier(spec.Name), spec.ColumnNames(), pgx.CopyFromRows(storage.Rows(t)))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", spec.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// splitQualifiedName splits "schema.table" on a single dot. Anything else is
// treated as an unqualified name.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func identifier(name string) pgx.Identifier {
	schema, tbl := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{tbl}
	}
	return pgx.Identifier{schema, tbl}
}

func pgType(t storage.ColumnType) string {
	switch t {
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeDouble:
		return "DOUBLE PRECISION"
	case storage.TypeBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// buildReplaceSQL returns the DDL statements, in execution order, that leave
// an empty table shaped like s. It is pure so the DDL can be tested without a
// database.
func buildReplaceSQL(s storage.TableSpec) ([]string, error) {
	if strings.TrimSpace(s.Name) == "" {
		return nil, fmt.Errorf("table name is empty")
	}

	var stmts []string
	if schema, _ := splitQualifiedName(s.Name); schema != "" {
		stmts = append(stmts, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgx.Identifier{schema}.Sanitize()))
	}

	ident := identifier(s.Name).Sanitize()
	stmts = append(stmts, fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, ident))

	cols := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		cols = append(cols, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), pgType(c.Type)))
	}
	stmts = append(stmts, fmt.Sprintf(`CREATE TABLE %s (%s);`, ident, strings.Join(cols, ", ")))
	return stmts, nil
}
