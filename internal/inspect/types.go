package inspect

// TableDescriptor is one row of the table listing. EstimatedRows comes from
// planner statistics (pg_class.reltuples), not an exact count; counting every
// table on every call would be far too expensive.
type TableDescriptor struct {
	Schema        string `json:"schema"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	EstimatedRows int64  `json:"estimated_rows"`
}

type TableList struct {
	TotalTables int               `json:"total_tables"`
	Tables      []TableDescriptor `json:"tables"`
}

const (
	KeyRoleNone    = "none"
	KeyRolePrimary = "primary"
	KeyRoleForeign = "foreign"
)

type ColumnDescriptor struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
	KeyRole  string  `json:"key_role"`
	// DistinctEstimate and NullFraction come from pg_stats and are absent
	// for tables that have never been analyzed.
	DistinctEstimate *float64 `json:"distinct_estimate,omitempty"`
	NullFraction     *float64 `json:"null_fraction,omitempty"`
}

type TableDescription struct {
	Schema        string             `json:"schema"`
	Name          string             `json:"name"`
	FullName      string             `json:"full_name"`
	EstimatedRows int64              `json:"estimated_rows"`
	TotalColumns  int                `json:"total_columns"`
	Columns       []ColumnDescriptor `json:"columns"`
}

// ResultSet is the canonical row-returning result shape. Rows map column name
// to a JSON scalar; Truncated is set whenever the requested limit could have
// hidden further matching rows.
type ResultSet struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated,omitempty"`
}

// ExecResult is the shape for non-row-returning statements.
type ExecResult struct {
	RowsAffected int64  `json:"rows_affected"`
	Status       string `json:"status"`
}
