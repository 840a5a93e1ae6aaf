// Package journal records every message accepted into a game's total order
// in a sqlite database. The record is append-only during play; afterwards
// it can be replayed in order, which is enough to reconstruct any world
// state or audit any decision.
package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	seq         INTEGER PRIMARY KEY,
	sender      INTEGER NOT NULL,
	recorded_at TEXT    NOT NULL,
	frame       BLOB    NOT NULL
);
`

// Entry is one recorded message.
type Entry struct {
	Seq        uint64
	Sender     uint64
	RecordedAt time.Time
	Frame      []byte
}

// Store is a sqlite-backed journal. It satisfies the engine's Journal
// interface.
type Store struct {
	db *sql.DB
}

// Open creates or reopens a journal at the given path. Use ":memory:" for
// an ephemeral journal in tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append records one accepted message under its sequence number. Sequence
// numbers are the primary key, so replaying the same seq twice fails
// instead of silently forking the record.
func (s *Store) Append(seq uint64, sender uint64, frame []byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("journal is not open")
	}
	_, err := s.db.Exec(
		`INSERT INTO messages (seq, sender, recorded_at, frame) VALUES (?, ?, ?, ?)`,
		int64(seq), int64(sender), time.Now().UTC().Format(timeFormat), frame,
	)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", seq, err)
	}
	return nil
}

// Replay streams every recorded message in sequence order.
func (s *Store) Replay(fn func(Entry) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("journal is not open")
	}
	rows, err := s.db.Query(`SELECT seq, sender, recorded_at, frame FROM messages ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq      int64
			sender   int64
			recorded string
			frame    []byte
		)
		if err := rows.Scan(&seq, &sender, &recorded, &frame); err != nil {
			return fmt.Errorf("replay scan: %w", err)
		}
		at, err := time.Parse(timeFormat, recorded)
		if err != nil {
			return fmt.Errorf("replay seq %d: bad timestamp %q", seq, recorded)
		}
		entry := Entry{
			Seq:        uint64(seq),
			Sender:     uint64(sender),
			RecordedAt: at,
			Frame:      frame,
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns how many messages have been recorded.
func (s *Store) Count() (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("journal is not open")
	}
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return uint64(count), nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
