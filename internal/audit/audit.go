// Package audit persists a record of every tool invocation to a local sqlite
// file, asynchronously so the request path never waits on the audit disk.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocation_log (
	entry_id TEXT PRIMARY KEY,
	timestamp INTEGER NOT NULL,
	tool_name TEXT NOT NULL,
	arguments TEXT,
	status TEXT NOT NULL DEFAULT 'success',
	error_message TEXT,
	result_bytes INTEGER,
	duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_invocation_log_time ON invocation_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_invocation_log_tool ON invocation_log(tool_name);
`

// Entry is one recorded invocation. Result payloads are not stored, only
// their size; arguments are, since the agent's queries are the interesting
// part of the trail.
type Entry struct {
	EntryID     string
	Timestamp   int64
	ToolName    string
	Arguments   string
	Status      string
	Error       string
	ResultBytes int
	DurationMs  int64
}

// Store writes entries to the invocation_log table asynchronously.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	s := &Store{
		db:   sqlDB,
		ch:   make(chan *Entry, 256),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s, nil
}

// Record queues an entry for persistence. A full buffer drops the entry
// rather than blocking a tool call.
func (s *Store) Record(e *Entry) {
	s.fillDefaults(e)
	select {
	case s.ch <- e:
	default:
		slog.Warn("audit buffer full, dropping entry", "tool", e.ToolName)
	}
}

// Close flushes pending entries and closes the database.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return s.db.Close()
}

func (s *Store) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = "inv_" + uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().Unix()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

func (s *Store) flushLoop() {
	defer close(s.done)
	batch := make([]*Entry, 0, 32)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= 32 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	for _, e := range batch {
		if err := s.insert(e); err != nil {
			slog.Error("audit write failed", "error", err, "tool", e.ToolName)
		}
	}
}

func (s *Store) insert(e *Entry) error {
	_, err := s.db.Exec(`
		INSERT INTO invocation_log (entry_id, timestamp, tool_name, arguments,
			status, error_message, result_bytes, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.EntryID, e.Timestamp, e.ToolName, e.Arguments,
		e.Status, e.Error, e.ResultBytes, e.DurationMs)
	return err
}
