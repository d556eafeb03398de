package inspect

import "errors"

// ErrTableNotFound means the (optionally schema-qualified) table name did not
// resolve to exactly one table.
var ErrTableNotFound = errors.New("table not found")

// QueryError carries the database diagnostic verbatim. The calling agent
// reads the literal message to correct its next statement, so the text is
// never reworded.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string { return e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }
