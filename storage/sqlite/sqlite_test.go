package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

func filepathGlob(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func bumpSchemaVersion(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open for tamper: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`UPDATE metadata SET value = value + 1 WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("tamper schema_version: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	sess := session.New(session.Config{MaxArtifactSize: 4096})
	sess.Set("agent-a", "greeting", "hello")
	sess.Set("agent-a", "count", 3)
	sess.WriteArtifact("agent-a", "note.txt", []byte("artifact payload"))
	sess.Append("agent-a", core.EntryCustom, map[string]any{"detail": "something happened"})

	path := filepath.Join(t.TempDir(), "session.db")
	store := New()

	if err := store.Save(context.Background(), sess, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.SessionID() != sess.SessionID() {
		t.Errorf("SessionID mismatch: %q vs %q", loaded.SessionID(), sess.SessionID())
	}
	if loaded.StateVersion() != sess.StateVersion() {
		t.Errorf("StateVersion mismatch: %d vs %d", loaded.StateVersion(), sess.StateVersion())
	}
	if loaded.MaxArtifactSize() != sess.MaxArtifactSize() {
		t.Errorf("MaxArtifactSize mismatch: %d vs %d", loaded.MaxArtifactSize(), sess.MaxArtifactSize())
	}
	if got := loaded.Get("greeting", nil); got != "hello" {
		t.Errorf("state[greeting] = %v, want hello", got)
	}

	origTraj := sess.GetTrajectory(session.TrajectoryFilter{})
	loadedTraj := loaded.GetTrajectory(session.TrajectoryFilter{})
	if len(origTraj) != len(loadedTraj) {
		t.Fatalf("trajectory length mismatch: %d vs %d", len(origTraj), len(loadedTraj))
	}
	for i := range origTraj {
		if origTraj[i].SeqNum != loadedTraj[i].SeqNum {
			t.Errorf("seq_num mismatch at %d: %d vs %d", i, origTraj[i].SeqNum, loadedTraj[i].SeqNum)
		}
		if origTraj[i].EntryType != loadedTraj[i].EntryType {
			t.Errorf("entry_type mismatch at %d", i)
		}
	}

	data, rerr := loaded.ReadArtifact("note.txt")
	if rerr != nil {
		t.Fatalf("ReadArtifact: %v", rerr)
	}
	if string(data) != "artifact payload" {
		t.Errorf("artifact contents mismatch: %q", data)
	}
}

func TestSaveDoesNotLeaveTempFile(t *testing.T) {
	sess := session.New(session.Config{})
	dir := t.TempDir()
	path := filepath.Join(dir, "session.db")
	store := New()
	if err := store.Save(context.Background(), sess, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := filepathGlob(dir)
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 file in %s after Save, got %v", dir, entries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := New()
	if _, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Fatal("expected error loading a nonexistent session file")
	}
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	sess := session.New(session.Config{})
	path := filepath.Join(t.TempDir(), "session.db")
	store := New()
	if err := store.Save(context.Background(), sess, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	bumpSchemaVersion(t, path)

	if _, err := store.Load(context.Background(), path); err == nil || err.Code != core.ErrPersistenceError {
		t.Fatalf("expected PERSISTENCE_ERROR on schema mismatch, got %v", err)
	}
}
