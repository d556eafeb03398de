// Package pgpool wraps a pgx connection pool with bounded acquisition,
// transient-failure retry and a health probe. The pool is constructed once at
// startup, passed to everything that needs it, and closed at shutdown.
package pgpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectRetries = 3
	retryBackoff   = 200 * time.Millisecond
	probeTimeout   = 2 * time.Second
)

type Config struct {
	DSN            string
	MinConns       int
	MaxConns       int
	AcquireTimeout time.Duration
	QueryTimeout   time.Duration
}

// Pool owns the live connections. Handles are loaned out one operation at a
// time via Acquire and returned with conn.Release; pgx discards a connection
// that failed at the protocol level instead of reusing it.
type Pool struct {
	inner          *pgxpool.Pool
	acquireTimeout time.Duration
	queryTimeout   time.Duration
	closed         atomic.Bool
	logger         *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	pcfg.MinConns = int32(cfg.MinConns)
	pcfg.MaxConns = int32(cfg.MaxConns)

	inner, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	logger.Info("connection pool created",
		"min_conns", cfg.MinConns,
		"max_conns", cfg.MaxConns,
		"acquire_timeout", cfg.AcquireTimeout,
	)

	return &Pool{
		inner:          inner,
		acquireTimeout: cfg.AcquireTimeout,
		queryTimeout:   cfg.QueryTimeout,
		logger:         logger,
	}, nil
}

// Acquire checks out one connection, waiting up to the configured acquire
// timeout for a free slot. Connection-establishment failures are retried a
// few times with backoff before ErrConnectionUnavailable surfaces. The caller
// must call Release on the returned handle on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		acquireCtx := ctx
		var cancel context.CancelFunc
		if p.acquireTimeout > 0 {
			acquireCtx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		}
		conn, err := p.inner.Acquire(acquireCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return conn, nil
		}
		if p.closed.Load() {
			return nil, ErrPoolClosed
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// All slots stayed busy for the whole wait.
			return nil, fmt.Errorf("%w after %s", ErrPoolExhausted, p.acquireTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isConnectFailure(err) {
			return nil, err
		}
		lastErr = err
		p.logger.Warn("connection attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, lastErr)
}

// QueryContext derives a context bounding a single database call.
func (p *Pool) QueryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.queryTimeout)
}

// Healthy reports whether a connection can be acquired and pinged within a
// short probe window. Used by the liveness endpoint; never holds a session.
func (p *Pool) Healthy(ctx context.Context) bool {
	if p.closed.Load() {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return p.inner.Ping(probeCtx) == nil
}

// Stat exposes live pool counters for diagnostics.
func (p *Pool) Stat() *pgxpool.Stat {
	return p.inner.Stat()
}

// Close drains in-flight checkouts and closes every connection. Subsequent
// Acquire calls fail with ErrPoolClosed. Safe to call more than once.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.inner.Close()
	p.logger.Info("connection pool closed")
}

// isConnectFailure reports whether the error came from establishing a new
// connection rather than from the caller's context or a server diagnostic.
func isConnectFailure(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
