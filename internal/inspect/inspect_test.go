package inspect

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/croftbay/pgscout/internal/pgpool"
)

func TestIsRowReturning(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from actor", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"SHOW server_version", true},
		{"EXPLAIN SELECT 1", true},
		{"VALUES (1), (2)", true},
		{"TABLE actor", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET x = 1", false},
		{"DELETE FROM t", false},
		{"CREATE TABLE t (x int)", false},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		if got := isRowReturning(tt.sql); got != tt.want {
			t.Errorf("isRowReturning(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}

func TestQualifiedName(t *testing.T) {
	if got := qualifiedName("actor", ""); got != "actor" {
		t.Errorf("qualifiedName = %q", got)
	}
	if got := qualifiedName("actor", "public"); got != "public.actor" {
		t.Errorf("qualifiedName = %q", got)
	}
}

func TestQueryErrorVerbatim(t *testing.T) {
	underlying := errors.New(`syntax error at or near "not"`)
	qe := &QueryError{SQL: "not sql", Err: underlying}
	if qe.Error() != underlying.Error() {
		t.Errorf("QueryError rewords the diagnostic: %q", qe.Error())
	}
	if !errors.Is(qe, underlying) {
		t.Error("QueryError does not unwrap to the underlying error")
	}
}

// Live tests below require PGSCOUT_TEST_DSN pointing at a database containing
// the dvdrental-style public.actor table.

func livePool(t *testing.T) *pgpool.Pool {
	t.Helper()
	dsn := os.Getenv("PGSCOUT_TEST_DSN")
	if dsn == "" {
		t.Skip("PGSCOUT_TEST_DSN not set")
	}
	pool, err := pgpool.New(context.Background(), pgpool.Config{
		DSN:            dsn,
		MaxConns:       4,
		AcquireTimeout: 5 * time.Second,
		QueryTimeout:   10 * time.Second,
	}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestListTablesLive(t *testing.T) {
	in := New(livePool(t))
	list, err := in.ListTables(context.Background(), "")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if list.TotalTables != len(list.Tables) {
		t.Errorf("total %d != len %d", list.TotalTables, len(list.Tables))
	}
	for _, tbl := range list.Tables {
		if tbl.Schema == "pg_catalog" || tbl.Schema == "information_schema" {
			t.Errorf("system table leaked: %s", tbl.FullName)
		}
	}
}

func TestDescribeTableNotFoundLive(t *testing.T) {
	in := New(livePool(t))
	_, err := in.DescribeTable(context.Background(), "definitely_not_a_table", "")
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("err = %v, want ErrTableNotFound", err)
	}
}

func TestSampleTableClampLive(t *testing.T) {
	in := New(livePool(t))
	rs, err := in.SampleTable(context.Background(), "actor", 5000, "public")
	if err != nil {
		t.Fatalf("SampleTable: %v", err)
	}
	if rs.RowCount > HardMaxSampleRows {
		t.Errorf("row count %d exceeds hard cap", rs.RowCount)
	}
}

func TestExecuteSQLLive(t *testing.T) {
	in := New(livePool(t))

	res, err := in.ExecuteSQL(context.Background(), "SELECT 1 AS one")
	if err != nil {
		t.Fatalf("ExecuteSQL: %v", err)
	}
	rs, ok := res.(*ResultSet)
	if !ok {
		t.Fatalf("result type %T, want *ResultSet", res)
	}
	if rs.RowCount != 1 {
		t.Errorf("row_count = %d, want 1", rs.RowCount)
	}

	_, err = in.ExecuteSQL(context.Background(), "not sql")
	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("err = %v, want *QueryError", err)
	}
}
