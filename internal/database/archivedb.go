package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/autoarchiver/internal/model"
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "autoarchiver.db"

// ErrNotFound is returned by Open when the database must exist but does not.
var ErrNotFound = errors.New("database not found")

// Event is the lifecycle stage recorded for an item.
type Event string

// Lifecycle events.
const (
	EventStarted Event = "started"
	EventFailed  Event = "failed"
	EventAborted Event = "aborted"
	EventDone    Event = "done"
)

// ArchiveDB is a SQLite-backed archive history.
type ArchiveDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ArchiveDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database file at dbPath.
func Open(dbPath string, opts Options) (*ArchiveDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArchiveDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return adb, nil
}

// Path returns the database file path.
func (adb *ArchiveDB) Path() string { return adb.dbPath }

// Close closes the database connection.
func (adb *ArchiveDB) Close() error {
	return adb.db.Close()
}

func (adb *ArchiveDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS archive_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		event TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		cached INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		result_json TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_url ON archive_events(url);
	CREATE INDEX IF NOT EXISTS idx_events_event ON archive_events(event);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON archive_events(timestamp);
	`
	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// Record is one stored lifecycle event.
type Record struct {
	ID        int64
	URL       string
	Event     Event
	Status    string
	Reason    string
	Cached    bool
	Success   bool
	Timestamp time.Time
}

// Insert records an event for item. Done events that were not answered from
// the cache also store the serialized result.
func (adb *ArchiveDB) Insert(ctx context.Context, event Event, item *model.Item, reason string, cached bool) (int64, error) {
	u, err := item.URL()
	if err != nil {
		return 0, err
	}

	var resultJSON sql.NullString
	if event == EventDone && !cached {
		data, err := json.Marshal(item)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize item: %w", err)
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
	INSERT INTO archive_events (url, event, status, reason, cached, success, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := adb.db.ExecContext(ctx, query,
		u,
		string(event),
		item.Status,
		reason,
		cached,
		item.IsSuccess(),
		resultJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert archive event: %w", err)
	}
	return result.LastInsertId()
}

// Results returns every successful stored result for url, newest first.
// Malformed rows are skipped.
func (adb *ArchiveDB) Results(ctx context.Context, url string) ([]*model.Item, error) {
	query := `
	SELECT result_json FROM archive_events
	WHERE url = ? AND event = ? AND success = 1 AND result_json IS NOT NULL
	ORDER BY id DESC
	`
	rows, err := adb.db.QueryContext(ctx, query, url, string(EventDone))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		item := model.NewItem()
		if err := json.Unmarshal([]byte(data), item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// History returns the events recorded for url, newest first. An empty url
// returns every event.
func (adb *ArchiveDB) History(ctx context.Context, url string) ([]Record, error) {
	query := `
	SELECT id, url, event, status, reason, cached, success, timestamp
	FROM archive_events
	WHERE 1=1
	`
	args := make([]any, 0, 1)
	if url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}
	query += " ORDER BY id DESC"

	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var event, timestamp string
		if err := rows.Scan(&rec.ID, &rec.URL, &event, &rec.Status, &rec.Reason, &rec.Cached, &rec.Success, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Event = Event(event)
		rec.Timestamp = parseTimestamp(timestamp)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
