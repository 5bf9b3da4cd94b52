// Package storage defines the durable round-trip contract for a Session:
// save it to a single-file embedded relational store, and load it back to
// an in-memory Session with identical state, trajectory, and artifacts.
//
// This is a narrower descendant of the teacher's general-purpose Storage
// interface (sessions/memory/audit/traces/events/checkpoints against any
// SQL backend): the substrate only ever persists one thing — a Session —
// to one kind of backend — a single embedded file — so the interface is
// cut down to exactly that contract.
package storage

import (
	"context"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// Store is the persistence engine contract. An implementation holds its
// database handle open only for the duration of a single Save or Load
// call — it is not a long-lived handle on any particular session file,
// matching the "one session per file, open only while saving/loading"
// resource policy in the specification.
type Store interface {
	// Save writes sess to path, atomically replacing any existing file at
	// that path on success and leaving it untouched on failure.
	Save(ctx context.Context, sess *session.Session, path string) *core.SubstrateError
	// Load reconstructs a Session from path. Fails with PERSISTENCE_ERROR
	// on schema mismatch, corruption, or I/O error.
	Load(ctx context.Context, path string) (*session.Session, *core.SubstrateError)
}
