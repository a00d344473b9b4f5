package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/signature"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection serializes writers from the API and the watcher.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		cpu_vendor TEXT,
		cpu_features INTEGER NOT NULL DEFAULT 0,
		memory_kb INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		slot INTEGER NOT NULL DEFAULT 0,
		sequence INTEGER NOT NULL DEFAULT 0,
		key_fp INTEGER NOT NULL DEFAULT 0,
		value_fp INTEGER NOT NULL DEFAULT 0,
		abandoned INTEGER NOT NULL DEFAULT 0,
		entity TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		task_id INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_events_session_kind ON events(session_id, kind);
	`
	_, err := db.Exec(schema)
	return err
}

// StartSession inserts a session row.
func (s *SQLiteJournal) StartSession(ctx context.Context, sess *models.Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, cpu_vendor, cpu_features, memory_kb, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.CPUVendor, sess.CPUFeatures, sess.MemoryKB, sess.StartedAt,
	)
	return err
}

// GetSession returns a session by ID.
func (s *SQLiteJournal) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, cpu_vendor, cpu_features, memory_kb, started_at
		 FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.CPUVendor, &sess.CPUFeatures, &sess.MemoryKB, &sess.StartedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns sessions, newest first.
func (s *SQLiteJournal) ListSessions(ctx context.Context, offset, limit int) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cpu_vendor, cpu_features, memory_kb, started_at
		 FROM sessions ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.CPUVendor, &sess.CPUFeatures, &sess.MemoryKB, &sess.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, &sess)
	}
	return out, rows.Err()
}

const insertEvent = `INSERT INTO events
	(session_id, kind, text, slot, sequence, key_fp, value_fp, abandoned, entity, target, task_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func eventArgs(e *models.JournalEvent) []any {
	return []any{
		e.SessionID, string(e.Kind), e.Text, e.Slot, e.Sequence,
		uint32(e.KeyFP), uint32(e.ValueFP), e.Abandoned, e.Entity, e.Target, e.TaskID, e.CreatedAt,
	}
}

// AppendEvent inserts a single event and sets its ID.
func (s *SQLiteJournal) AppendEvent(ctx context.Context, e *models.JournalEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, insertEvent, eventArgs(e)...)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

// BatchAppendEvents inserts multiple events in a transaction.
func (s *SQLiteJournal) BatchAppendEvents(ctx context.Context, events []*models.JournalEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range events {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		res, err := stmt.ExecContext(ctx, eventArgs(e)...)
		if err != nil {
			return err
		}
		if e.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListEvents returns events of a session in append order. An empty kind matches all kinds.
func (s *SQLiteJournal) ListEvents(ctx context.Context, sessionID string, kind models.EventKind, offset, limit int) ([]*models.JournalEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, text, slot, sequence, key_fp, value_fp, abandoned, entity, target, task_id, created_at
		 FROM events WHERE session_id = ? AND (? = '' OR kind = ?)
		 ORDER BY id LIMIT ? OFFSET ?`,
		sessionID, string(kind), string(kind), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.JournalEvent
	for rows.Next() {
		var (
			e            models.JournalEvent
			kindText     string
			keyFP, valFP uint32
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &kindText, &e.Text, &e.Slot, &e.Sequence,
			&keyFP, &valFP, &e.Abandoned, &e.Entity, &e.Target, &e.TaskID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = models.EventKind(kindText)
		e.KeyFP = signature.Fingerprint(keyFP)
		e.ValueFP = signature.Fingerprint(valFP)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CountEvents returns the number of events, for one session or for all when sessionID is
// empty. An empty kind matches all kinds.
func (s *SQLiteJournal) CountEvents(ctx context.Context, sessionID string, kind models.EventKind) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE (? = '' OR session_id = ?) AND (? = '' OR kind = ?)`,
		sessionID, sessionID, string(kind), string(kind),
	).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}
