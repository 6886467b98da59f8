// Package tracedb stores QSPI protocol trace events in a SQLite database.
package tracedb

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/gentam/qspi"
)

// Recorder buffers events and writes them to SQLite in batches.
type Recorder struct {
	mu        sync.Mutex
	db        *sql.DB
	statement *sql.Stmt
	log       *slog.Logger
	pending   []qspi.Event
	batchSize int
	dropped   int
	session   string
}

// Open creates or opens the database at path. Buffered events are flushed
// on Close and at process exit. Flush failures outside a caller's control
// are reported to logger, or slog.Default if nil.
func Open(path string, logger *slog.Logger) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		db:        db,
		log:       logger.With("component", "tracedb", "path", path),
		batchSize: 1000,
		session:   xid.New().String(),
	}
	if err := r.createTable(); err != nil {
		db.Close()
		return nil, err
	}

	r.statement, err = db.Prepare(`INSERT INTO qspi_trace
		(session, op, stage, seq, addr, size, time) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	atexit.Register(r.flushAndLog)
	return r, nil
}

func (r *Recorder) createTable() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS qspi_trace (
		session TEXT,
		op      TEXT,
		stage   TEXT,
		seq     INTEGER,
		addr    INTEGER,
		size    INTEGER,
		time    INTEGER
	)`)
	return err
}

// Session identifies the events recorded by this Recorder.
func (r *Recorder) Session() string { return r.session }

// Dropped returns the number of events lost to failed flushes.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Record buffers e. It has the signature of qspi.TraceFunc.
func (r *Recorder) Record(e qspi.Event) {
	r.mu.Lock()
	r.pending = append(r.pending, e)
	full := len(r.pending) >= r.batchSize
	r.mu.Unlock()

	if full {
		r.flushAndLog()
	}
}

func (r *Recorder) flushAndLog() {
	if err := r.Flush(); err != nil {
		r.log.Warn("trace flush failed", "err", err)
	}
}

// Flush writes all buffered events in one transaction. On failure the
// batch is discarded and counted in Dropped.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}

	batch := r.pending
	r.pending = nil
	if err := r.insert(batch); err != nil {
		r.dropped += len(batch)
		return fmt.Errorf("dropped %d events: %w", len(batch), err)
	}
	return nil
}

func (r *Recorder) insert(batch []qspi.Event) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(r.statement)
	for _, e := range batch {
		_, err := stmt.Exec(r.session, e.ID, e.Stage.String(), e.Seq, int64(e.Addr), e.Size, e.Time.UnixNano())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s event of %s: %w", e.Stage, e.ID, err)
		}
	}
	return tx.Commit()
}

// Close flushes and closes the database. The database is closed even if
// the flush fails.
func (r *Recorder) Close() error {
	err := r.Flush()
	r.statement.Close()
	if cerr := r.db.Close(); err == nil {
		err = cerr
	}
	return err
}
