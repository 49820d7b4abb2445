package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the sqlite3 driver

	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/notes"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	text       TEXT NOT NULL,
	pinned     INTEGER NOT NULL DEFAULT 0,
	important  INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER
);
`

// SQLiteStore is the single-box backend (--db sqlite). This process is the
// only writer, so the live feed is an in-process broadcast over the same hub
// the memory backend uses.
type SQLiteStore struct {
	db  *sql.DB
	hub *snapshotHub

	// Serializes mutation+broadcast so subscribers never observe snapshots
	// out of commit order.
	mu sync.Mutex
}

// OpenSQLite opens (and if needed initializes) the database at path.
// Use ":memory:" for tests.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db, hub: newSnapshotHub()}, nil
}

func (s *SQLiteStore) CreateNote(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	createdAt := time.Now().UTC().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, text, pinned, important, created_at) VALUES (?, ?, 0, 0, ?)`,
		id, text, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}
	s.broadcastLocked(ctx)
	return id, nil
}

func (s *SQLiteStore) UpdateNote(ctx context.Context, id string, patch notes.NotePatch) error {
	assignments := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if patch.Text != nil {
		assignments = append(assignments, "text = ?")
		args = append(args, *patch.Text)
	}
	if patch.Pinned != nil {
		assignments = append(assignments, "pinned = ?")
		args = append(args, boolToInt(*patch.Pinned))
	}
	if patch.Important != nil {
		assignments = append(assignments, "important = ?")
		args = append(args, boolToInt(*patch.Important))
	}
	if len(assignments) == 0 {
		return nil
	}
	args = append(args, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET `+strings.Join(assignments, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	s.broadcastLocked(ctx)
	return nil
}

func (s *SQLiteStore) DeleteNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected == 0 {
		return errs.New(errs.NotFound, "note not found")
	}
	s.broadcastLocked(ctx)
	return nil
}

func (s *SQLiteStore) BatchDeleteNotes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// One statement in one transaction: all rows go or none do.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch delete notes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id IN (`+placeholders+`)`, args...); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("batch delete notes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch delete notes: %w", err)
	}
	s.broadcastLocked(ctx)
	return nil
}

func (s *SQLiteStore) SubscribeNotes(ctx context.Context) (*Subscription, error) {
	ch := s.hub.subscribe()

	s.mu.Lock()
	snap, err := s.fetchSnapshot(ctx)
	s.mu.Unlock()
	if err != nil {
		s.hub.unsubscribe(ch)
		return nil, err
	}
	select {
	case ch <- Event{Snapshot: snap}:
	default:
	}

	var once sync.Once
	sub := &Subscription{events: ch}
	unsubscribe := func() {
		once.Do(func() { s.hub.unsubscribe(ch) })
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	sub.cancel = func() {
		stop()
		unsubscribe()
	}
	return sub, nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

// broadcastLocked pushes the post-mutation snapshot to subscribers. A failed
// refetch is dropped rather than surfaced as a fault: the next successful
// mutation rebroadcasts the full set anyway.
func (s *SQLiteStore) broadcastLocked(ctx context.Context) {
	snap, err := s.fetchSnapshot(ctx)
	if err != nil {
		return
	}
	s.hub.broadcast(Event{Snapshot: snap})
}

func (s *SQLiteStore) fetchSnapshot(ctx context.Context) ([]notes.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, pinned, important, created_at FROM notes ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}
	defer rows.Close()

	var snap []notes.Note
	for rows.Next() {
		var (
			n         notes.Note
			pinned    int64
			important int64
			createdAt sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &n.Text, &pinned, &important, &createdAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Pinned = pinned != 0
		n.Important = important != 0
		if createdAt.Valid {
			ts := time.UnixMilli(createdAt.Int64).UTC()
			n.CreatedAt = &ts
		}
		snap = append(snap, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch notes: %w", err)
	}
	return snap, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
