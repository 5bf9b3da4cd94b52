// Package session implements the Session Substrate: a versioned key-value
// state, an append-only trajectory of events, and a content-addressed
// artifact store, behind a single coordinating object that guarantees
// ordering, attribution, and safe observation.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chronos-ai/substrate/core"
)

// SchemaVersion is embedded in every session at creation time and persisted
// alongside it. It changes only when the wire format in the storage layer
// changes incompatibly.
const SchemaVersion = 1

// DefaultMaxArtifactSize is the ceiling applied to a Session created
// without an explicit MaxArtifactSize override: 100 MiB.
const DefaultMaxArtifactSize = 100 * 1024 * 1024

// Session owns the state map, trajectory log, and artifact store for a
// single unit of agent work. It is the single point of mutation: every
// accepted state or artifact mutation appends exactly one TrajectoryEntry.
//
// A Session is not safe for concurrent mutation by multiple goroutines.
// The mutex here only protects snapshot_for_agent from data races against
// a well-behaved single in-flight caller; it does not implement the
// multi-writer serialization the specification explicitly places out of
// scope (see §5 of the specification).
type Session struct {
	mu sync.Mutex

	sessionID       string
	schemaVersion   int
	state           map[string]any
	stateVersion    int64
	trajectory      []*core.TrajectoryEntry
	artifacts       map[string][]byte
	maxArtifactSize int64
}

// Config configures Session construction. Both fields are optional.
type Config struct {
	// SessionID presets the session's identifier. A UUID v4 is generated if empty.
	SessionID string
	// MaxArtifactSize overrides the ceiling on any single artifact, in bytes.
	// Must be positive; zero/negative falls back to DefaultMaxArtifactSize.
	MaxArtifactSize int64
}

// New creates a Session and appends its session_created trajectory entry.
func New(cfg Config) *Session {
	id := cfg.SessionID
	if id == "" {
		id = uuid.New().String()
	}
	maxSize := cfg.MaxArtifactSize
	if maxSize <= 0 {
		maxSize = DefaultMaxArtifactSize
	}

	s := &Session{
		sessionID:       id,
		schemaVersion:   SchemaVersion,
		state:           make(map[string]any),
		artifacts:       make(map[string][]byte),
		maxArtifactSize: maxSize,
	}
	s.appendLocked("system", core.EntrySessionCreated, map[string]any{
		"session_id":        id,
		"schema_version":     SchemaVersion,
		"max_artifact_size":  maxSize,
	})
	return s
}

// SessionID returns the session's opaque identifier.
func (s *Session) SessionID() string {
	return s.sessionID
}

// SchemaVersion returns the persisted schema version constant.
func (s *Session) SchemaVersion() int {
	return s.schemaVersion
}

// MaxArtifactSize returns the configured artifact size ceiling in bytes.
func (s *Session) MaxArtifactSize() int64 {
	return s.maxArtifactSize
}

// --- state operations ---

// Set stores value under key, deep-copying it so later mutation of the
// caller's value cannot reach the session. Returns INVALID_KEY for an empty
// key, INVALID_VALUE if value is not JSON-serializable. On success it
// appends a state_set entry and increments StateVersion by exactly 1.
func (s *Session) Set(agentID, key string, value any) (*core.TrajectoryEntry, *core.SubstrateError) {
	if key == "" {
		return nil, core.NewError(core.ErrInvalidKey, "key must be non-empty", nil)
	}
	if err := core.ValidateValue(value); err != nil {
		return nil, core.AsSubstrateError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue, existed := s.state[key]
	newValue := core.CopyValue(value)
	s.state[key] = newValue
	s.stateVersion++

	content := map[string]any{
		"key":            key,
		"new_value":      newValue,
		"state_version":  s.stateVersion,
	}
	if existed {
		content["old_value"] = oldValue
	} else {
		content["old_value"] = nil
	}

	entry := s.appendLocked(orDefault(agentID, "system"), core.EntryStateSet, content)
	return entry, nil
}

// Get returns the stored value for key, or def if absent. The returned
// value is a deep copy: mutating it never affects a subsequent Get.
func (s *Session) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	if !ok {
		return def
	}
	return core.CopyValue(v)
}

// Has reports whether key is currently set.
func (s *Session) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state[key]
	return ok
}

// Delete removes key if present, appending a state_deleted entry. Deleting
// an absent key is a no-op: no error, no trajectory entry.
func (s *Session) Delete(agentID, key string) *core.TrajectoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldValue, ok := s.state[key]
	if !ok {
		return nil
	}
	delete(s.state, key)
	s.stateVersion++

	return s.appendLocked(orDefault(agentID, "system"), core.EntryStateDeleted, map[string]any{
		"key":           key,
		"old_value":     oldValue,
		"state_version": s.stateVersion,
	})
}

// Keys returns a stable snapshot of the currently set keys.
func (s *Session) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.state))
	for k := range s.state {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StateVersion returns the current state version counter.
func (s *Session) StateVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateVersion
}

// --- trajectory operations ---

// Append records a TrajectoryEntry attributed to agentID. content must be
// JSON-serializable; it is deep-copied before storage. This is the only
// path by which entries enter the trajectory, so every invariant the
// specification requires (dense seq_num, non-decreasing timestamp) is
// enforced in this one place.
func (s *Session) Append(agentID string, entryType core.EntryType, content map[string]any) (*core.TrajectoryEntry, *core.SubstrateError) {
	if agentID == "" {
		return nil, core.NewError(core.ErrInvalidKey, "agent_id must be non-empty", nil)
	}
	if err := core.ValidateValue(content); err != nil {
		return nil, core.AsSubstrateError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(agentID, entryType, content), nil
}

// appendLocked assigns the next seq_num and timestamp and appends the
// entry. Callers must hold s.mu.
func (s *Session) appendLocked(agentID string, entryType core.EntryType, content map[string]any) *core.TrajectoryEntry {
	now := time.Now().UTC()
	if n := len(s.trajectory); n > 0 {
		if last := s.trajectory[n-1].Timestamp; now.Before(last) {
			now = last
		}
	}
	entry := &core.TrajectoryEntry{
		SeqNum:    int64(len(s.trajectory)) + 1,
		Timestamp: now,
		AgentID:   agentID,
		EntryType: entryType,
		Content:   core.CopyValue(content).(map[string]any),
	}
	s.trajectory = append(s.trajectory, entry)
	return entry
}

// TrajectoryFilter narrows GetTrajectory's result.
type TrajectoryFilter struct {
	// SinceSeq, when > 0, excludes entries with SeqNum <= SinceSeq.
	SinceSeq int64
	// EntryType, when non-empty, restricts to entries of that type.
	EntryType core.EntryType
	// Limit, when > 0, truncates the result to its last Limit entries
	// (newest-first truncation; the returned slice stays seq_num-ascending).
	Limit int
}

// GetTrajectory returns a filtered, ascending-by-seq_num slice of entries.
// The returned entries are deep copies and never alias the live ledger.
func (s *Session) GetTrajectory(filter TrajectoryFilter) []*core.TrajectoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*core.TrajectoryEntry
	for _, e := range s.trajectory {
		if e.SeqNum <= filter.SinceSeq {
			continue
		}
		if filter.EntryType != "" && e.EntryType != filter.EntryType {
			continue
		}
		matched = append(matched, e)
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	out := make([]*core.TrajectoryEntry, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	return out
}

// GetEntry returns the entry with the given seq_num, or nil if none exists.
func (s *Session) GetEntry(seqNum int64) *core.TrajectoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seqNum < 1 || seqNum > int64(len(s.trajectory)) {
		return nil
	}
	return s.trajectory[seqNum-1].Clone()
}

// --- artifact operations ---

// WriteArtifact stores data under name, overwriting any existing artifact
// of that name. Fails with INVALID_NAME on an empty name, ARTIFACT_TOO_LARGE
// if len(data) exceeds MaxArtifactSize — in both failure cases the store is
// left unchanged and no trajectory entry is appended.
func (s *Session) WriteArtifact(agentID, name string, data []byte) (*core.TrajectoryEntry, *core.SubstrateError) {
	if name == "" {
		return nil, core.NewError(core.ErrInvalidName, "artifact name must be non-empty", nil)
	}
	if int64(len(data)) > s.maxArtifactSize {
		return nil, core.NewError(core.ErrArtifactTooLarge, "artifact exceeds max_artifact_size", map[string]any{
			"name": name, "size": len(data), "max_artifact_size": s.maxArtifactSize,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, overwrote := s.artifacts[name]
	stored := make([]byte, len(data))
	copy(stored, data)
	s.artifacts[name] = stored

	entry := s.appendLocked(orDefault(agentID, "system"), core.EntryArtifactWritten, map[string]any{
		"name":      name,
		"size":      len(data),
		"overwrote": overwrote,
	})
	return entry, nil
}

// ReadArtifact returns a copy of the stored bytes for name, or
// ARTIFACT_NOT_FOUND if no such artifact exists.
func (s *Session) ReadArtifact(name string) ([]byte, *core.SubstrateError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.artifacts[name]
	if !ok {
		return nil, core.NewError(core.ErrArtifactNotFound, "artifact not found: "+name, nil)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ListArtifacts returns the sorted names of all stored artifacts.
func (s *Session) ListArtifacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DeleteArtifact removes name, appending an artifact_deleted entry.
// ARTIFACT_NOT_FOUND if absent.
func (s *Session) DeleteArtifact(agentID, name string) (*core.TrajectoryEntry, *core.SubstrateError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[name]; !ok {
		return nil, core.NewError(core.ErrArtifactNotFound, "artifact not found: "+name, nil)
	}
	delete(s.artifacts, name)
	entry := s.appendLocked(orDefault(agentID, "system"), core.EntryArtifactDeleted, map[string]any{"name": name})
	return entry, nil
}

// --- snapshot ---

// Snapshot is a deeply-copied, disconnected view of a Session suitable for
// handing to an untrusted Agent: mutating the snapshot never affects the
// Session, and mutating the Session after the snapshot was taken never
// affects it either.
type Snapshot struct {
	SessionID    string                  `json:"session_id"`
	State        map[string]any          `json:"state"`
	StateVersion int64                   `json:"state_version"`
	Trajectory   []*core.TrajectoryEntry `json:"trajectory"`
	Artifacts    []string                `json:"artifacts"`
	SnapshotTime time.Time               `json:"snapshot_time"`
}

// SnapshotForAgent builds a Snapshot. depth, if non-nil, limits Trajectory
// to the last *depth entries; nil includes the whole trajectory.
func (s *Session) SnapshotForAgent(agentID string, depth *int) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := core.CopyValue(s.state).(map[string]any)

	traj := s.trajectory
	if depth != nil && *depth >= 0 && *depth < len(traj) {
		traj = traj[len(traj)-*depth:]
	}
	entries := make([]*core.TrajectoryEntry, len(traj))
	for i, e := range traj {
		entries[i] = e.Clone()
	}

	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Snapshot{
		SessionID:    s.sessionID,
		State:        state,
		StateVersion: s.stateVersion,
		Trajectory:   entries,
		Artifacts:    names,
		SnapshotTime: time.Now().UTC(),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
