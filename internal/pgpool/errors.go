package pgpool

import "errors"

var (
	// ErrPoolExhausted means no connection became free within the acquire timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed means the pool has been shut down.
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrConnectionUnavailable means the database could not be reached after retries.
	ErrConnectionUnavailable = errors.New("database connection unavailable")
)
