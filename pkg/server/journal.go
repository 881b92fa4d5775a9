package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/crystal-mush/gomuck/pkg/gamedb"
	_ "modernc.org/sqlite"
)

// RunRecord is one journaled program run.
type RunRecord struct {
	ID       string // run handle
	Program  gamedb.DBRef
	Actor    gamedb.DBRef
	Trigger  gamedb.DBRef
	Command  string
	Kind     string // OK or the error kind
	Reason   string
	Line     int // 0 when the failure has no source position
	Column   int
	Word     string
	Steps    int
	Duration time.Duration
	Started  time.Time
}

const journalSchema = `CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	program     INTEGER NOT NULL,
	actor       INTEGER NOT NULL,
	trigger_ref INTEGER NOT NULL,
	command     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	reason      TEXT NOT NULL,
	line        INTEGER NOT NULL,
	col         INTEGER NOT NULL,
	word        TEXT NOT NULL,
	steps       INTEGER NOT NULL,
	duration_us INTEGER NOT NULL,
	started     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_program ON runs (program, started);`

// RunJournal stores run outcomes in SQLite for later diagnosis.
type RunJournal struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	timeout time.Duration
}

// OpenRunJournal opens a SQLite3 database, sets WAL mode and busy timeout,
// and creates the runs table.
func OpenRunJournal(path string, timeoutSec int) (*RunJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: opening sqlite %s: %w", path, err)
	}
	// Set WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: setting busy timeout: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: creating schema: %w", err)
	}
	return &RunJournal{
		db:      db,
		path:    path,
		timeout: time.Duration(timeoutSec) * time.Second,
	}, nil
}

// Close closes the SQLite3 database connection.
func (j *RunJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db != nil {
		err := j.db.Close()
		j.db = nil
		return err
	}
	return nil
}

// Path returns the filesystem path of the SQLite database.
func (j *RunJournal) Path() string { return j.path }

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (j *RunJournal) Checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal: closed")
	}
	_, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Record appends one run.
func (j *RunJournal) Record(ctx context.Context, rec RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return fmt.Errorf("journal: closed")
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, program, actor, trigger_ref, command, kind, reason, line, col, word, steps, duration_us, started)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, int(rec.Program), int(rec.Actor), int(rec.Trigger), rec.Command,
		rec.Kind, rec.Reason, rec.Line, rec.Column, rec.Word, rec.Steps,
		rec.Duration.Microseconds(), rec.Started.UnixNano())
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to n runs of program, newest first.
func (j *RunJournal) Recent(program gamedb.DBRef, n int) ([]RunRecord, error) {
	return j.query(`WHERE program = ? ORDER BY started DESC LIMIT ?`, int(program), n)
}

// Failures returns up to n failed runs of any program, newest first.
func (j *RunJournal) Failures(n int) ([]RunRecord, error) {
	return j.query(`WHERE kind != 'OK' ORDER BY started DESC LIMIT ?`, n)
}

func (j *RunJournal) query(where string, args ...any) ([]RunRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil, fmt.Errorf("journal: closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, program, actor, trigger_ref, command, kind, reason, line, col, word, steps, duration_us, started
		 FROM runs `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var program, actor, trigger int
		var durationUs, started int64
		if err := rows.Scan(&rec.ID, &program, &actor, &trigger, &rec.Command, &rec.Kind, &rec.Reason,
			&rec.Line, &rec.Column, &rec.Word, &rec.Steps, &durationUs, &started); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		rec.Program = gamedb.DBRef(program)
		rec.Actor = gamedb.DBRef(actor)
		rec.Trigger = gamedb.DBRef(trigger)
		rec.Duration = time.Duration(durationUs) * time.Microsecond
		rec.Started = time.Unix(0, started)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	return out, nil
}
