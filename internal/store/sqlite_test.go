package store

import (
	"context"
	"testing"

	"github.com/glownotes/glownotes/internal/errs"
	"github.com/glownotes/glownotes/internal/notes"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSQLiteStore_CreateAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)

	id, err := s.CreateNote(ctx, "hello sqlite")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sub, err := s.SubscribeNotes(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	snap := waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 1 })
	n := snap[0]
	if n.ID != id || n.Text != "hello sqlite" || n.Pinned || n.Important {
		t.Errorf("snapshot note = %+v", n)
	}
	if n.CreatedAt == nil {
		t.Error("created note missing CreatedAt")
	}
}

func TestSQLiteStore_PatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)
	id, _ := s.CreateNote(ctx, "before")

	text := "after"
	pinned := true
	important := true
	if err := s.UpdateNote(ctx, id, notes.NotePatch{Text: &text, Pinned: &pinned, Important: &important}); err != nil {
		t.Fatalf("update: %v", err)
	}

	sub, _ := s.SubscribeNotes(ctx)
	defer sub.Close()
	snap := waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 1 })
	n := snap[0]
	if n.Text != "after" || !n.Pinned || !n.Important {
		t.Errorf("patched note = %+v", n)
	}
}

func TestSQLiteStore_EmptyPatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)
	if err := s.UpdateNote(ctx, "missing", notes.NotePatch{}); err != nil {
		t.Errorf("empty patch should not touch the database: %v", err)
	}
}

func TestSQLiteStore_MissingNoteErrors(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)

	text := "x"
	if err := s.UpdateNote(ctx, "missing", notes.NotePatch{Text: &text}); errs.CodeOf(err) != errs.NotFound {
		t.Errorf("update missing: code = %q", errs.CodeOf(err))
	}
	if err := s.DeleteNote(ctx, "missing"); errs.CodeOf(err) != errs.NotFound {
		t.Errorf("delete missing: code = %q", errs.CodeOf(err))
	}
}

func TestSQLiteStore_BatchDelete(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		id, err := s.CreateNote(ctx, text)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}

	if err := s.BatchDeleteNotes(ctx, ids); err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if err := s.BatchDeleteNotes(ctx, nil); err != nil {
		t.Errorf("empty batch delete: %v", err)
	}

	sub, _ := s.SubscribeNotes(ctx)
	defer sub.Close()
	waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 0 })
}

func TestSQLiteStore_MutationsBroadcast(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)

	sub, _ := s.SubscribeNotes(ctx)
	defer sub.Close()
	waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 0 })

	id, _ := s.CreateNote(ctx, "watched")
	waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 1 })

	if err := s.DeleteNote(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitForSnapshot(t, sub, func(sn []notes.Note) bool { return len(sn) == 0 })
}
