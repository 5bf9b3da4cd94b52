package session

import "github.com/chronos-ai/substrate/core"

// RestoreParts carries everything a persistence adapter reads back from
// durable storage, in the exact shape Restore needs to reconstruct a
// Session without re-deriving state_version or re-running session_created.
type RestoreParts struct {
	SessionID       string
	SchemaVersion   int
	MaxArtifactSize int64
	StateVersion    int64
	State           map[string]any
	Trajectory      []*core.TrajectoryEntry
	Artifacts       map[string][]byte
}

// Restore reconstructs a Session from previously-persisted parts, exactly
// as load(save(s)) ≡ s requires: the trajectory's seq_nums/timestamps and
// the artifact bytes are taken verbatim, not regenerated.
func Restore(parts RestoreParts) *Session {
	state := parts.State
	if state == nil {
		state = make(map[string]any)
	}
	artifacts := parts.Artifacts
	if artifacts == nil {
		artifacts = make(map[string][]byte)
	}
	return &Session{
		sessionID:       parts.SessionID,
		schemaVersion:   parts.SchemaVersion,
		state:           state,
		stateVersion:    parts.StateVersion,
		trajectory:      parts.Trajectory,
		artifacts:       artifacts,
		maxArtifactSize: parts.MaxArtifactSize,
	}
}

// ExportParts returns the raw parts of a Session for a persistence adapter
// to serialize. The returned containers are deep copies / fresh maps, safe
// for the caller to serialize without racing further mutation of sess.
func ExportParts(sess *Session) RestoreParts {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	trajectory := make([]*core.TrajectoryEntry, len(sess.trajectory))
	for i, e := range sess.trajectory {
		trajectory[i] = e.Clone()
	}
	artifacts := make(map[string][]byte, len(sess.artifacts))
	for name, data := range sess.artifacts {
		cp := make([]byte, len(data))
		copy(cp, data)
		artifacts[name] = cp
	}

	return RestoreParts{
		SessionID:       sess.sessionID,
		SchemaVersion:   sess.schemaVersion,
		MaxArtifactSize: sess.maxArtifactSize,
		StateVersion:    sess.stateVersion,
		State:           core.CopyValue(sess.state).(map[string]any),
		Trajectory:      trajectory,
		Artifacts:       artifacts,
	}
}
