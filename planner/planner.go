// Package planner defines the contract between a session and whatever
// turns a natural-language prompt into a sequence of capability calls.
// The substrate itself never calls an LLM; it only defines this boundary
// and ships StaticPlanner, a deterministic stand-in good enough to drive
// the Dispatcher end-to-end without a model provider wired in.
package planner

import (
	"context"
	"fmt"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// PlanResult is the outcome of a Plan call: either a sequence of
// capability calls ready for Dispatcher.DispatchSequence, or a structured
// failure.
type PlanResult struct {
	Success bool
	Calls   []core.CapabilityCall
	Error   *core.SubstrateError
}

// Planner turns a prompt into a plan, given a read-only view of the
// session and the capabilities currently available to dispatch against.
// A Planner never mutates the session; Plan does not append to the
// trajectory. The caller records a plan with Record, which appends a
// plan_generated trajectory entry so planning is auditable the same way
// dispatch is.
type Planner interface {
	Plan(ctx context.Context, prompt string, snapshot *session.Snapshot, capabilities []string) *PlanResult
}

// StaticPlanner maps literal prompts to fixed capability-call sequences.
// It exists to exercise the Planner boundary and the CLI/control-plane
// surfaces above it without requiring an LLM provider; production
// deployments are expected to supply their own Planner grounded in a
// real model call.
type StaticPlanner struct {
	routes map[string][]core.CapabilityCall
}

// NewStaticPlanner builds a StaticPlanner from a fixed prompt->calls table.
func NewStaticPlanner(routes map[string][]core.CapabilityCall) *StaticPlanner {
	if routes == nil {
		routes = make(map[string][]core.CapabilityCall)
	}
	return &StaticPlanner{routes: routes}
}

// Plan looks up prompt verbatim in the static route table. Unknown
// prompts fail with PLAN_PARSE_ERROR rather than falling back to an
// empty plan, so a caller can distinguish "intentionally does nothing"
// from "planner didn't understand this."
func (p *StaticPlanner) Plan(ctx context.Context, prompt string, snapshot *session.Snapshot, capabilities []string) *PlanResult {
	calls, ok := p.routes[prompt]
	if !ok {
		err := core.NewError(core.ErrPlanParseError, fmt.Sprintf("no static route for prompt %q", prompt), nil)
		return &PlanResult{Success: false, Error: err}
	}

	available := make(map[string]bool, len(capabilities))
	for _, c := range capabilities {
		available[c] = true
	}
	for _, call := range calls {
		if !available[call.Capability] {
			err := core.NewError(core.ErrPlanParseError,
				fmt.Sprintf("planned capability %q is not available", call.Capability),
				map[string]any{"capability": call.Capability})
			return &PlanResult{Success: false, Error: err}
		}
	}

	return &PlanResult{Success: true, Calls: calls}
}

// Record appends a plan_generated trajectory entry for a completed Plan
// call. It is separate from Plan itself because snapshot is read-only and
// cannot append to the live session it was taken from.
func Record(sess *session.Session, prompt string, result *PlanResult) (*core.TrajectoryEntry, *core.SubstrateError) {
	content := map[string]any{
		"prompt":  prompt,
		"success": result.Success,
	}
	if result.Success {
		calls := make([]any, len(result.Calls))
		for i, c := range result.Calls {
			calls[i] = map[string]any{"capability": c.Capability, "params": c.Params}
		}
		content["calls"] = calls
	} else if result.Error != nil {
		content["error"] = result.Error.Message
	}
	return sess.Append("planner", core.EntryPlanGenerated, content)
}
