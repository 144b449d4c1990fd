package storage

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

type fakeRepo struct {
	cfg    Config
	closed int
}

func (f *fakeRepo) WriteTable(ctx context.Context, name string, t *table.Table) (int64, error) {
	return int64(t.Rows()), nil
}

func (f *fakeRepo) Close() { f.closed++ }

func TestRegisterAndNew(t *testing.T) {
	var got Config
	Register("fake", func(ctx context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{cfg: cfg}, nil
	})

	repo, err := New(context.Background(), Config{Kind: " FAKE ", DSN: "mem"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got.Kind != "fake" || got.DSN != "mem" {
		t.Fatalf("factory saw cfg=%+v", got)
	}
	repo.Close()
	if repo.(*fakeRepo).closed != 1 {
		t.Fatalf("Close not delegated")
	}

	if _, err := New(context.Background(), Config{Kind: ""}); err == nil {
		t.Fatalf("expected error for empty kind")
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds()=%v missing registered fake", Kinds())
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	kind := "dup"
	f := func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil }
	Register(kind, f)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register(kind, f)
}

func TestNew_UnregisteredCanonicalKind(t *testing.T) {
	// No backend packages are imported here, so canonical kinds are unregistered.
	_, err := New(context.Background(), Config{Kind: "PostgreSQL"})
	if err == nil || !strings.Contains(err.Error(), "kind=postgres") {
		t.Fatalf("err=%v, want unsupported kind=postgres", err)
	}
}

func TestNormalizeKind(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgres":   "postgres",
		" Postgres ": "postgres",
		"postgresql": "postgres",
		"sqlserver":  "mssql",
		"MSSQL":      "mssql",
		"sqlite3":    "sqlite",
		"Oracle":     "oracle",
		"":           "",
	}
	for in, want := range tests {
		if got := NormalizeKind(in); got != want {
			t.Fatalf("NormalizeKind(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestSpecForAndRows(t *testing.T) {
	t.Parallel()

	tbl, err := table.New(
		table.NewColumn("id", table.Int64, []any{int64(1), int64(2)}),
		table.NewColumn("age", table.Float64, []any{22.0, math.NaN()}),
		table.NewColumn("adult", table.Bool, []any{true, nil}),
		table.NewColumn("name", table.Object, []any{"Braund", nil}),
	)
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}

	spec, err := SpecFor("cleaned", tbl)
	if err != nil {
		t.Fatalf("SpecFor: %v", err)
	}
	wantTypes := []ColumnType{TypeBigInt, TypeDouble, TypeBool, TypeText}
	for i, c := range spec.Columns {
		if c.Type != wantTypes[i] {
			t.Fatalf("column %s type=%v, want %v", c.Name, c.Type, wantTypes[i])
		}
	}
	if !reflect.DeepEqual(spec.ColumnNames(), []string{"id", "age", "adult", "name"}) {
		t.Fatalf("names=%v", spec.ColumnNames())
	}

	rows := Rows(tbl)
	want := [][]any{
		{int64(1), 22.0, true, "Braund"},
		{int64(2), nil, nil, nil},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows=%v\nwant %v", rows, want)
	}
}

func TestSpecFor_Rejects(t *testing.T) {
	t.Parallel()

	empty, _ := table.New()
	if _, err := SpecFor("x", empty); err == nil {
		t.Fatalf("expected error for table without columns")
	}
	one, _ := table.New(table.NewColumn("a", table.Int64, []any{int64(1)}))
	if _, err := SpecFor("", one); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
