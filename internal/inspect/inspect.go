// Package inspect implements the metadata operations over a borrowed pool
// connection: list tables, describe a table, sample rows and raw SQL
// execution. Operations hold no state of their own; each acquires exactly one
// connection and releases it on every exit path.
package inspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/croftbay/pgscout/internal/pgpool"
)

// HardMaxSampleRows caps SampleTable regardless of the requested limit.
const HardMaxSampleRows = 1000

type Inspector struct {
	pool *pgpool.Pool
}

func New(pool *pgpool.Pool) *Inspector {
	return &Inspector{pool: pool}
}

// ListTables returns every base table outside the system schemas, optionally
// filtered to one schema. Row counts are planner estimates.
func (in *Inspector) ListTables(ctx context.Context, schema string) (*TableList, error) {
	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := in.pool.QueryContext(ctx)
	defer cancel()

	query := `
		SELECT n.nspname, c.relname, GREATEST(c.reltuples, 0)::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')`
	var args []any
	if schema != "" {
		query += " AND n.nspname = $1"
		args = append(args, schema)
	}
	query += " ORDER BY n.nspname, c.relname"

	rows, err := conn.Query(qctx, query, args...)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	defer rows.Close()

	list := &TableList{Tables: []TableDescriptor{}}
	for rows.Next() {
		var t TableDescriptor
		if err := rows.Scan(&t.Schema, &t.Name, &t.EstimatedRows); err != nil {
			return nil, err
		}
		t.FullName = t.Schema + "." + t.Name
		list.Tables = append(list.Tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	list.TotalTables = len(list.Tables)
	return list, nil
}

// DescribeTable returns the column descriptors for one table. The name may be
// schema-qualified ("public.actor"); an unqualified name must resolve to
// exactly one table or ErrTableNotFound is returned.
func (in *Inspector) DescribeTable(ctx context.Context, table, schema string) (*TableDescription, error) {
	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := in.pool.QueryContext(ctx)
	defer cancel()

	sch, tbl, err := resolveTable(qctx, conn, table, schema)
	if err != nil {
		return nil, err
	}

	desc := &TableDescription{
		Schema:   sch,
		Name:     tbl,
		FullName: sch + "." + tbl,
	}

	if err := loadColumns(qctx, conn, sch, tbl, desc); err != nil {
		return nil, err
	}
	if err := loadKeyRoles(qctx, conn, sch, tbl, desc); err != nil {
		return nil, err
	}
	if err := loadColumnStats(qctx, conn, sch, tbl, desc); err != nil {
		return nil, err
	}

	var estimated int64
	err = conn.QueryRow(qctx, `
		SELECT GREATEST(c.reltuples, 0)::bigint
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`, sch, tbl).Scan(&estimated)
	if err != nil {
		return nil, &QueryError{SQL: "estimated row count", Err: err}
	}
	desc.EstimatedRows = estimated
	desc.TotalColumns = len(desc.Columns)
	return desc, nil
}

// SampleTable returns up to limit rows from the table, hard-capped at
// HardMaxSampleRows; a larger requested limit is clamped, not rejected. The
// truncation flag is set when more matching rows exist than were returned.
func (in *Inspector) SampleTable(ctx context.Context, table string, limit int, schema string) (*ResultSet, error) {
	if limit < 0 {
		limit = 0
	}
	if limit > HardMaxSampleRows {
		limit = HardMaxSampleRows
	}

	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := in.pool.QueryContext(ctx)
	defer cancel()

	sch, tbl, err := resolveTable(qctx, conn, table, schema)
	if err != nil {
		return nil, err
	}

	// Fetch one extra row to detect truncation without counting the table.
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d",
		pgx.Identifier{sch, tbl}.Sanitize(), limit+1)
	rows, err := conn.Query(qctx, query)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	defer rows.Close()

	rs, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{SQL: query, Err: err}
	}
	if len(rs.Rows) > limit {
		rs.Rows = rs.Rows[:limit]
		rs.Truncated = true
	}
	rs.RowCount = len(rs.Rows)
	return rs, nil
}

// ExecuteSQL runs an arbitrary statement. Row-returning statements produce a
// ResultSet, anything else the rows-affected count. No statement-type
// restriction is imposed here; that is a deployment concern.
func (in *Inspector) ExecuteSQL(ctx context.Context, sql string) (any, error) {
	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qctx, cancel := in.pool.QueryContext(ctx)
	defer cancel()

	if !isRowReturning(sql) {
		tag, err := conn.Exec(qctx, sql)
		if err != nil {
			return nil, &QueryError{SQL: sql, Err: err}
		}
		return &ExecResult{RowsAffected: tag.RowsAffected(), Status: tag.String()}, nil
	}

	rows, err := conn.Query(qctx, sql)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	defer rows.Close()

	rs, err := collectRows(rows)
	if err != nil {
		return nil, &QueryError{SQL: sql, Err: err}
	}
	rs.RowCount = len(rs.Rows)
	return rs, nil
}

func collectRows(rows pgx.Rows) (*ResultSet, error) {
	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	rs := &ResultSet{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(vals[i])
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// resolveTable maps a possibly schema-qualified table name plus an optional
// schema filter to exactly one (schema, table) pair.
func resolveTable(ctx context.Context, conn *pgxpool.Conn, table, schema string) (string, string, error) {
	if qualifier, name, ok := strings.Cut(table, "."); ok && schema == "" {
		schema, table = qualifier, name
	}

	query := `
		SELECT n.nspname
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p')
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		  AND c.relname = $1`
	args := []any{table}
	if schema != "" {
		query += " AND n.nspname = $2"
		args = append(args, schema)
	}
	query += " ORDER BY n.nspname"

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return "", "", &QueryError{SQL: query, Err: err}
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", "", err
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return "", "", &QueryError{SQL: query, Err: err}
	}

	switch len(schemas) {
	case 0:
		return "", "", fmt.Errorf("%w: %s", ErrTableNotFound, qualifiedName(table, schema))
	case 1:
		return schemas[0], table, nil
	default:
		return "", "", fmt.Errorf("%w: %s is ambiguous across schemas %s",
			ErrTableNotFound, table, strings.Join(schemas, ", "))
	}
}

func qualifiedName(table, schema string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func loadColumns(ctx context.Context, conn *pgxpool.Conn, schema, table string, desc *TableDescription) error {
	rows, err := conn.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schema, table)
	if err != nil {
		return &QueryError{SQL: "column metadata", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		col := ColumnDescriptor{KeyRole: KeyRoleNone}
		if err := rows.Scan(&col.Name, &col.DataType, &col.Nullable, &col.Default); err != nil {
			return err
		}
		desc.Columns = append(desc.Columns, col)
	}
	return rows.Err()
}

func loadKeyRoles(ctx context.Context, conn *pgxpool.Conn, schema, table string, desc *TableDescription) error {
	rows, err := conn.Query(ctx, `
		SELECT kc.column_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kc
		  ON tc.constraint_name = kc.constraint_name
		 AND tc.table_schema = kc.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`, schema, table)
	if err != nil {
		return &QueryError{SQL: "key constraints", Err: err}
	}
	defer rows.Close()

	roles := make(map[string]string)
	for rows.Next() {
		var col, ctype string
		if err := rows.Scan(&col, &ctype); err != nil {
			return err
		}
		// Primary wins when a column is both primary and foreign.
		if ctype == "PRIMARY KEY" || roles[col] == "" {
			roles[col] = ctype
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range desc.Columns {
		switch roles[desc.Columns[i].Name] {
		case "PRIMARY KEY":
			desc.Columns[i].KeyRole = KeyRolePrimary
		case "FOREIGN KEY":
			desc.Columns[i].KeyRole = KeyRoleForeign
		}
	}
	return nil
}

func loadColumnStats(ctx context.Context, conn *pgxpool.Conn, schema, table string, desc *TableDescription) error {
	rows, err := conn.Query(ctx, `
		SELECT attname, n_distinct, null_frac
		FROM pg_catalog.pg_stats
		WHERE schemaname = $1 AND tablename = $2`, schema, table)
	if err != nil {
		return &QueryError{SQL: "column statistics", Err: err}
	}
	defer rows.Close()

	type colStats struct {
		distinct float64
		nullFrac float64
	}
	stats := make(map[string]colStats)
	for rows.Next() {
		var name string
		var s colStats
		if err := rows.Scan(&name, &s.distinct, &s.nullFrac); err != nil {
			return err
		}
		stats[name] = s
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range desc.Columns {
		if s, ok := stats[desc.Columns[i].Name]; ok {
			d, nf := s.distinct, s.nullFrac
			desc.Columns[i].DistinctEstimate = &d
			desc.Columns[i].NullFraction = &nf
		}
	}
	return nil
}

// isRowReturning classifies a statement by its leading keyword. Everything
// Postgres can return rows from without RETURNING starts with one of these.
func isRowReturning(sql string) bool {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH", "SHOW", "EXPLAIN", "VALUES", "TABLE":
		return true
	}
	return false
}
