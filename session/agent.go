package session

import (
	"context"

	"github.com/chronos-ai/substrate/core"
)

// Agent is any entity exposing a capability surface to the Dispatcher: a
// pure, idempotent identity call and a (possibly state-mutating) invoke
// call. Implementations must not let a panic escape Invoke uncontained —
// the Dispatcher recovers from one as a last resort and reports
// AGENT_ERROR, but that is a safety net, not a substitute for an Agent
// that always returns a well-formed InvokeResult itself.
type Agent interface {
	// Info returns the agent's identity and advertised capabilities. It
	// must be pure and cheap: the Dispatcher may call it repeatedly.
	Info() core.AgentInfo

	// Invoke executes capability against sess with params, returning a
	// result that carries success/failure and a structured error on
	// failure. Unknown capabilities must return Fail with
	// UNKNOWN_CAPABILITY rather than panicking.
	Invoke(ctx context.Context, capability string, sess *Session, params map[string]any) *core.InvokeResult
}
