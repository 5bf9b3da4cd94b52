// Package sqlite implements storage.Store against a single embedded SQLite
// file: one file per session, with metadata/state/trajectory/artifacts
// tables matching the specification's persistence model exactly. The
// metadata table is a key/value row store, not a fixed-column row, the
// same shape as the teacher's own Postgres adapter's JSONB-value tables
// and the key-value idiom in the reference corpus's vinayprograms-agent
// memory store; the atomic-replace save is grounded on the teacher's
// config/checkpoint writers that write-to-temp-then-rename rather than
// truncate a live file in place.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// Store persists Sessions to single-file SQLite databases. It holds no
// long-lived *sql.DB: each Save/Load opens the file, does its work, and
// closes it, matching the "open only while saving/loading" resource
// policy for a substrate that may manage many session files at once.
type Store struct{}

// New returns a ready-to-use Store.
func New() *Store {
	return &Store{}
}

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS state (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS trajectory (
	seq_num    INTEGER PRIMARY KEY,
	timestamp  TEXT NOT NULL,
	agent_id   TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	content    BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
`

// The metadata table's key/value shape carries exactly these four rows —
// session_id, schema_version, state_version, and max_artifact_size — per
// the specification's persistence file format.
const (
	metaKeySessionID       = "session_id"
	metaKeySchemaVersion   = "schema_version"
	metaKeyStateVersion    = "state_version"
	metaKeyMaxArtifactSize = "max_artifact_size"
)

// Save writes sess to path. It builds the database in a temp file in the
// same directory as path, fsyncs it, and renames it over path — so a
// crash or error mid-write never leaves a corrupt or partial file at the
// destination, and a concurrent reader of path either sees the old
// complete file or the new complete file, never a mix.
func (s *Store) Save(ctx context.Context, sess *session.Session, path string) *core.SubstrateError {
	parts := session.ExportParts(sess)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".substrate-*.db.tmp")
	if err != nil {
		return core.NewError(core.ErrPersistenceError, "create temp file: "+err.Error(), nil)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	db, err := sql.Open("sqlite3", tmpPath)
	if err != nil {
		return core.NewError(core.ErrPersistenceError, "open temp database: "+err.Error(), nil)
	}

	if err := writeParts(ctx, db, parts); err != nil {
		db.Close()
		return core.NewError(core.ErrPersistenceError, err.Error(), nil)
	}

	if err := db.Close(); err != nil {
		return core.NewError(core.ErrPersistenceError, "close temp database: "+err.Error(), nil)
	}

	f, err := os.OpenFile(tmpPath, os.O_RDWR, 0o644)
	if err == nil {
		f.Sync()
		f.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return core.NewError(core.ErrPersistenceError, "rename into place: "+err.Error(), nil)
	}
	return nil
}

func writeParts(ctx context.Context, db *sql.DB, parts session.RestoreParts) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	metadataRows := []struct{ key, value string }{
		{metaKeySessionID, parts.SessionID},
		{metaKeySchemaVersion, fmt.Sprintf("%d", parts.SchemaVersion)},
		{metaKeyStateVersion, fmt.Sprintf("%d", parts.StateVersion)},
		{metaKeyMaxArtifactSize, fmt.Sprintf("%d", parts.MaxArtifactSize)},
	}
	for _, row := range metadataRows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, row.key, row.value); err != nil {
			return fmt.Errorf("insert metadata[%q]: %w", row.key, err)
		}
	}

	for key, value := range parts.State {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal state[%q]: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state (key, value) VALUES (?, ?)`, key, raw); err != nil {
			return fmt.Errorf("insert state[%q]: %w", key, err)
		}
	}

	for _, entry := range parts.Trajectory {
		content, err := json.Marshal(entry.Content)
		if err != nil {
			return fmt.Errorf("marshal trajectory entry %d content: %w", entry.SeqNum, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trajectory (seq_num, timestamp, agent_id, entry_type, content) VALUES (?, ?, ?, ?, ?)`,
			entry.SeqNum, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.AgentID, string(entry.EntryType), content,
		); err != nil {
			return fmt.Errorf("insert trajectory entry %d: %w", entry.SeqNum, err)
		}
	}

	for name, data := range parts.Artifacts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO artifacts (name, data) VALUES (?, ?)`, name, data); err != nil {
			return fmt.Errorf("insert artifact %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// Load reconstructs a Session from path.
func (s *Store) Load(ctx context.Context, path string) (*session.Session, *core.SubstrateError) {
	if _, err := os.Stat(path); err != nil {
		return nil, core.NewError(core.ErrPersistenceError, "stat session file: "+err.Error(), nil)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, core.NewError(core.ErrPersistenceError, "open database: "+err.Error(), nil)
	}
	defer db.Close()

	parts, err := readParts(ctx, db)
	if err != nil {
		return nil, core.NewError(core.ErrPersistenceError, err.Error(), nil)
	}
	return session.Restore(*parts), nil
}

func readParts(ctx context.Context, db *sql.DB) (*session.RestoreParts, error) {
	parts := &session.RestoreParts{
		State:     make(map[string]any),
		Artifacts: make(map[string][]byte),
	}

	metaRows, err := db.QueryContext(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	meta := make(map[string]string, 4)
	for metaRows.Next() {
		var key, value string
		if err := metaRows.Scan(&key, &value); err != nil {
			metaRows.Close()
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		meta[key] = value
	}
	if err := metaRows.Err(); err != nil {
		metaRows.Close()
		return nil, fmt.Errorf("iterate metadata rows: %w", err)
	}
	metaRows.Close()

	parts.SessionID = meta[metaKeySessionID]
	if _, err := fmt.Sscanf(meta[metaKeySchemaVersion], "%d", &parts.SchemaVersion); err != nil {
		return nil, fmt.Errorf("parse metadata[%q]: %w", metaKeySchemaVersion, err)
	}
	if _, err := fmt.Sscanf(meta[metaKeyStateVersion], "%d", &parts.StateVersion); err != nil {
		return nil, fmt.Errorf("parse metadata[%q]: %w", metaKeyStateVersion, err)
	}
	if _, err := fmt.Sscanf(meta[metaKeyMaxArtifactSize], "%d", &parts.MaxArtifactSize); err != nil {
		return nil, fmt.Errorf("parse metadata[%q]: %w", metaKeyMaxArtifactSize, err)
	}
	if parts.SchemaVersion != session.SchemaVersion {
		return nil, fmt.Errorf("schema version mismatch: file has %d, substrate expects %d", parts.SchemaVersion, session.SchemaVersion)
	}

	stateRows, err := db.QueryContext(ctx, `SELECT key, value FROM state`)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	defer stateRows.Close()
	for stateRows.Next() {
		var key string
		var raw []byte
		if err := stateRows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan state row: %w", err)
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("unmarshal state[%q]: %w", key, err)
		}
		parts.State[key] = value
	}
	if err := stateRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state rows: %w", err)
	}

	trajRows, err := db.QueryContext(ctx, `SELECT seq_num, timestamp, agent_id, entry_type, content FROM trajectory ORDER BY seq_num ASC`)
	if err != nil {
		return nil, fmt.Errorf("read trajectory: %w", err)
	}
	defer trajRows.Close()
	for trajRows.Next() {
		var (
			seqNum    int64
			timestamp string
			agentID   string
			entryType string
			content   []byte
		)
		if err := trajRows.Scan(&seqNum, &timestamp, &agentID, &entryType, &content); err != nil {
			return nil, fmt.Errorf("scan trajectory row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse trajectory entry %d timestamp: %w", seqNum, err)
		}
		var contentMap map[string]any
		if err := json.Unmarshal(content, &contentMap); err != nil {
			return nil, fmt.Errorf("unmarshal trajectory entry %d content: %w", seqNum, err)
		}
		parts.Trajectory = append(parts.Trajectory, &core.TrajectoryEntry{
			SeqNum:    seqNum,
			Timestamp: ts,
			AgentID:   agentID,
			EntryType: core.EntryType(entryType),
			Content:   contentMap,
		})
	}
	if err := trajRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trajectory rows: %w", err)
	}

	artifactRows, err := db.QueryContext(ctx, `SELECT name, data FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	defer artifactRows.Close()
	for artifactRows.Next() {
		var name string
		var data []byte
		if err := artifactRows.Scan(&name, &data); err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		parts.Artifacts[name] = data
	}
	if err := artifactRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact rows: %w", err)
	}

	return parts, nil
}
