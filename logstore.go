package xplorer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// LogEntry is one row of a LogStore.
type LogEntry struct {
	ID        int64
	Timestamp time.Time
	Type      string
	Text      string
}

// FetchOptions narrows a LogStore.Fetch call. The zero value fetches every
// entry, oldest first; NewFetchOptions returns the newest-first default.
type FetchOptions struct {
	Start       *time.Time
	End         *time.Time
	Type        string
	TextPattern string // SQL LIKE pattern: '%' any substring, '_' any char.
	Limit       int    // 0 means unlimited.
	Offset      int
	NewestFirst bool // default true; set explicitly via NewFetchOptions.
}

// NewFetchOptions returns FetchOptions with NewestFirst defaulted to true.
func NewFetchOptions() FetchOptions {
	return FetchOptions{NewestFirst: true}
}

// LogStore is a session-scoped, append-only log of timestamped typed text
// entries. All operations are serialized by a single mutex so it is safe to
// call from arbitrary goroutines, including concurrently with the request
// handlers that read it.
//
// It is backed by a SQLite file via database/sql + modernc.org/sqlite (the
// pure-Go, cgo-free driver), with indexes on timestamp and type.
type LogStore struct {
	mu        sync.Mutex
	db        *sql.DB
	sessionID string
	nextID    int64
	dedupHash uint64
}

// NewLogStore opens (creating if necessary) the log store file for a fresh
// session rooted at root/sessions/<sessionID>/logs.db, where sessionID is a
// filesystem-safe rendering of the current instant.
func NewLogStore(root string) (*LogStore, error) {
	sessionID := filesystemSafeTimestamp(time.Now())
	return newLogStoreForSession(root, sessionID)
}

// newLogStoreForSession is split out from NewLogStore so tests can pin a
// deterministic session id.
func newLogStoreForSession(root, sessionID string) (*LogStore, error) {
	dir := filepath.Join(root, "sessions", sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("xplorer: create session directory: %w", err)
	}

	dbPath := filepath.Join(dir, "logs.db")
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("xplorer: open log store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := createLogSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	ls := &LogStore{db: db, sessionID: sessionID}

	row := db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM log_entries`)
	var maxID int64
	if err := row.Scan(&maxID); err != nil {
		db.Close()
		return nil, fmt.Errorf("xplorer: read log store high-water mark: %w", err)
	}
	ls.nextID = maxID + 1

	return ls, nil
}

// filesystemSafeTimestamp renders t as a filesystem-safe session
// identifier: the UTC instant in the form "20060102T150405.000000000",
// which contains no colons.
func filesystemSafeTimestamp(t time.Time) string {
	const layout = "20060102T150405.000000000"
	return t.UTC().Format(layout)
}

// createLogSchema creates the log_entries table and its two indexes if
// they do not already exist.
func createLogSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS log_entries (
			id        INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			type      TEXT NOT NULL DEFAULT '',
			text      TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_log_entries_timestamp ON log_entries(timestamp);
		CREATE INDEX IF NOT EXISTS idx_log_entries_type ON log_entries(type);
	`)
	if err != nil {
		return fmt.Errorf("xplorer: create log schema: %w", err)
	}
	return nil
}

// Log appends text with the given type (an empty type is allowed) and the
// current instant, assigning it the next monotonically increasing id.
func (ls *LogStore) Log(text, typ string) (LogEntry, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	entry := LogEntry{
		ID:        ls.nextID,
		Timestamp: time.Now(),
		Type:      typ,
		Text:      text,
	}

	_, err := ls.db.Exec(
		`INSERT INTO log_entries (id, timestamp, type, text) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UnixMilli(), entry.Type, entry.Text,
	)
	if err != nil {
		return LogEntry{}, fmt.Errorf("xplorer: append log entry: %w", err)
	}

	ls.nextID++
	ls.dedupHash = xxhash.Sum64String(typ + "\x00" + text)

	return entry, nil
}

// LastEntryIsDuplicate reports whether text/typ hash identically to the
// most recently appended entry, a cheap pre-check bundled endpoints can use
// to avoid flooding the store with repeated identical lines before calling
// Log. It is advisory only: a false positive on hash collision just causes
// one skipped line, never data loss.
func (ls *LogStore) LastEntryIsDuplicate(text, typ string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.nextID > 1 && ls.dedupHash == xxhash.Sum64String(typ+"\x00"+text)
}

// Fetch returns entries matching opts, newest-first unless
// opts.NewestFirst is false. The returned slice is a snapshot: entries
// logged after Fetch returns are never reflected in it.
func (ls *LogStore) Fetch(opts FetchOptions) ([]LogEntry, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	query := `SELECT id, timestamp, type, text FROM log_entries WHERE 1=1`
	var args []interface{}

	if opts.Start != nil {
		query += ` AND timestamp >= ?`
		args = append(args, opts.Start.UnixMilli())
	}
	if opts.End != nil {
		query += ` AND timestamp <= ?`
		args = append(args, opts.End.UnixMilli())
	}
	if opts.Type != "" {
		query += ` AND type = ?`
		args = append(args, opts.Type)
	}
	if opts.TextPattern != "" {
		query += ` AND text LIKE ?`
		args = append(args, opts.TextPattern)
	}

	if opts.NewestFirst {
		query += ` ORDER BY id DESC`
	} else {
		query += ` ORDER BY id ASC`
	}

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	} else if opts.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, opts.Offset)
	}

	rows, err := ls.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("xplorer: fetch log entries: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var (
			e      LogEntry
			millis int64
		)
		if err := rows.Scan(&e.ID, &millis, &e.Type, &e.Text); err != nil {
			return nil, fmt.Errorf("xplorer: scan log entry: %w", err)
		}
		e.Timestamp = time.UnixMilli(millis).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("xplorer: iterate log entries: %w", err)
	}

	return entries, nil
}

// Count returns the total number of entries currently stored.
func (ls *LogStore) Count() (int, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	row := ls.db.QueryRow(`SELECT COUNT(*) FROM log_entries`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("xplorer: count log entries: %w", err)
	}
	return n, nil
}

// Clear deletes every entry. The next Log call after Clear still assigns
// strictly increasing ids; the counter is never reset.
func (ls *LogStore) Clear() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if _, err := ls.db.Exec(`DELETE FROM log_entries`); err != nil {
		return fmt.Errorf("xplorer: clear log entries: %w", err)
	}
	return nil
}

// SessionID returns the filesystem-safe session identifier this store was
// opened with.
func (ls *LogStore) SessionID() string {
	return ls.sessionID
}

// Close releases the underlying database handle.
func (ls *LogStore) Close() error {
	return ls.db.Close()
}
