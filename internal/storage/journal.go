// Package storage keeps the operation journal: an append-only SQLite log of
// every control command applied to the mixer, trimmed to a fixed length.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	_ "modernc.org/sqlite"
)

var log = logging.Logger("journal")

// Entry is one applied (or rejected) command.
type Entry struct {
	ID     string          `json:"id"`
	Time   time.Time       `json:"time"`
	Source string          `json:"source"`
	Op     string          `json:"op"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Journal wraps the SQLite database holding the entries.
type Journal struct {
	db   *sql.DB
	path string
	keep int
	mu   sync.Mutex
}

// Open opens or creates the journal at path. An empty path keeps it in
// memory for the lifetime of the process. keep bounds the number of rows;
// 0 disables trimming.
func Open(path string, keep int) (*Journal, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// one connection: an in-memory database lives and dies with it
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS journal (
			seq     INTEGER PRIMARY KEY AUTOINCREMENT,
			id      TEXT NOT NULL UNIQUE,
			ts      INTEGER NOT NULL,
			source  TEXT NOT NULL DEFAULT '',
			op      TEXT NOT NULL,
			data    TEXT NOT NULL DEFAULT '',
			error   TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}

	where := path
	if where == "" {
		where = "memory"
	}
	log.Infow("journal opened", "path", where, "keep", keep)
	return &Journal{db: db, path: path, keep: keep}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores e, filling in ID and Time when unset, and trims old rows.
func (j *Journal) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.db.Exec(
		`INSERT INTO journal (id, ts, source, op, data, error) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.UnixNano(), e.Source, e.Op, string(e.Data), e.Error,
	); err != nil {
		return Entry{}, fmt.Errorf("append journal entry: %w", err)
	}

	if j.keep > 0 {
		if _, err := j.db.Exec(
			`DELETE FROM journal WHERE seq <= (SELECT MAX(seq) FROM journal) - ?`, j.keep,
		); err != nil {
			return e, fmt.Errorf("trim journal: %w", err)
		}
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, ts, source, op, data, error FROM journal ORDER BY seq DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e    Entry
			ts   int64
			data string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Source, &e.Op, &data, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Time = time.Unix(0, ts)
		if data != "" {
			e.Data = json.RawMessage(data)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries.
func (j *Journal) Count() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}
