package server

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crystal-mush/arxscript/pkg/events"
	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

var journalSchema = []string{`CREATE TABLE IF NOT EXISTS journal (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	entity  INTEGER NOT NULL,
	source  INTEGER NOT NULL,
	program TEXT    NOT NULL,
	event   TEXT    NOT NULL,
	line    INTEGER NOT NULL,
	message TEXT    NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS journal_at ON journal(at)`,
	`CREATE INDEX IF NOT EXISTS journal_program ON journal(program)`,
}

// JournalEntry is one recorded script fault.
type JournalEntry struct {
	ID      int64      `json:"id"`
	At      time.Time  `json:"at"`
	Kind    string     `json:"kind"`
	Entity  gamedb.Ref `json:"entity"`
	Source  gamedb.Ref `json:"source"`
	Program string     `json:"program"`
	Event   string     `json:"event"`
	Line    int        `json:"line"`
	Message string     `json:"message"`
}

// Journal is a global event bus subscriber that records script warnings
// and errors in SQLite, so faults outlive the process log.
type Journal struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	closed bool
}

// OpenJournal opens or creates the journal database, sets WAL mode and the
// busy timeout.
func OpenJournal(path string, timeoutSec int) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// Set WAL mode so the console can read while the tick loop writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d", timeoutSec*1000)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	for _, stmt := range journalSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating journal table: %w", err)
		}
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the filesystem path of the journal database.
func (j *Journal) Path() string { return j.path }

// Receive implements events.Subscriber. Only warnings and errors are stored.
func (j *Journal) Receive(ev events.Event) {
	if ev.Type != events.EvWarning && ev.Type != events.EvError {
		return
	}
	if err := j.Insert(ev, time.Now()); err != nil {
		log.Printf("JOURNAL: insert error: %v", err)
	}
}

// Insert records a fault event.
func (j *Journal) Insert(ev events.Event, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal closed")
	}
	_, err := j.db.Exec(
		`INSERT INTO journal (at, kind, entity, source, program, event, line, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		at.UnixMilli(), ev.Type.String(), int(ev.Entity), int(ev.Source), ev.Program, ev.Name, ev.Line, ev.Text)
	return err
}

// Closed implements events.Subscriber.
func (j *Journal) Closed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// Recent returns up to limit entries, newest first. A non-empty program
// restricts the result to that program.
func (j *Journal) Recent(limit int, program string) ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, fmt.Errorf("journal closed")
	}
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, at, kind, entity, source, program, event, line, message FROM journal`
	args := []any{}
	if program != "" {
		query += ` WHERE program = ?`
		args = append(args, program)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var at int64
		var entity, source int
		if err := rows.Scan(&e.ID, &at, &e.Kind, &entity, &source, &e.Program, &e.Event, &e.Line, &e.Message); err != nil {
			return nil, err
		}
		e.At = time.UnixMilli(at)
		e.Entity, e.Source = gamedb.Ref(entity), gamedb.Ref(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Purge deletes entries older than retention. Returns the number removed.
func (j *Journal) Purge(retention time.Duration) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, fmt.Errorf("journal closed")
	}
	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := j.db.Exec(`DELETE FROM journal WHERE at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Checkpoint forces a WAL checkpoint to flush all writes to the main database file.
func (j *Journal) Checkpoint() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal closed")
	}
	_, err := j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close marks the journal closed so the bus stops delivering events, and
// closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// StartRetentionCleanup purges old journal entries every hour until stop
// is closed.
func (j *Journal) StartRetentionCleanup(retention time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				purged, err := j.Purge(retention)
				if err != nil {
					log.Printf("JOURNAL: cleanup error: %v", err)
					continue
				}
				if purged > 0 {
					log.Printf("JOURNAL: purged %d old entries", purged)
				}
			}
		}
	}()
}
