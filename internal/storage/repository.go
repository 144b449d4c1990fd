package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must match a registered backend kind after NormalizeKind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository persists a whole table under a name. Each backend implements the
// write in its own idiomatic way (pgx COPY, SQL Server bulk copy, batched
// INSERT for SQLite).
type Repository interface {
	// WriteTable replaces the destination table with the contents of t and
	// returns the number of rows written. The replace happens inside one
	// transaction, so a failed write leaves the previous table intact.
	WriteTable(ctx context.Context, name string, t *table.Table) (int64, error)

	// Close releases backend resources. Call it once.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind. Backend packages call it
// from init().
//
// Panics if kind is empty, f is nil or kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	kind := NormalizeKind(cfg.Kind)
	if kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s (registered: %s)", kind, strings.Join(Kinds(), ", "))
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

// NormalizeKind maps user spellings onto the canonical backend kinds
// "postgres", "mssql" and "sqlite". Other values are lower-cased and trimmed.
func NormalizeKind(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mssql", "sqlserver":
		return "mssql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return s
	}
}
