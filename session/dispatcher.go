package session

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/chronos-ai/substrate/core"
)

// Dispatcher routes CapabilityCalls to registered Agents, bracketing each
// invocation with capability_dispatched trajectory entries and enforcing
// fail-fast semantics across a sequence of calls.
type Dispatcher struct {
	mu           sync.Mutex
	capabilities map[string]Agent   // capability -> owning agent
	agents       map[string]Agent   // agent_id -> agent, for GetAgents
	hooks        HookChain
	logger       *log.Logger
}

// NewDispatcher creates an empty Dispatcher. logger may be nil, in which
// case dispatch activity is not logged.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		capabilities: make(map[string]Agent),
		agents:       make(map[string]Agent),
		logger:       logger,
	}
}

// AddHook appends a Hook to the dispatcher's chain.
func (d *Dispatcher) AddHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Register adds agent's capabilities to the registry. Either all of the
// agent's capabilities register or none do: if any capability is already
// registered (to any agent, including this one), Register fails with
// DUPLICATE_CAPABILITY and leaves the registry untouched.
func (d *Dispatcher) Register(agent Agent) *core.SubstrateError {
	info := agent.Info()
	if len(info.Capabilities) == 0 {
		return core.NewError(core.ErrInvalidValue, "agent "+info.AgentID+" advertises no capabilities", nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cap := range info.Capabilities {
		if owner, exists := d.capabilities[cap]; exists {
			return core.NewError(core.ErrDuplicateCapability,
				fmt.Sprintf("capability %q already registered to agent %q", cap, owner.Info().AgentID),
				map[string]any{"capability": cap})
		}
	}

	for _, cap := range info.Capabilities {
		d.capabilities[cap] = agent
	}
	d.agents[info.AgentID] = agent
	return nil
}

// Unregister removes every capability owned by agentID. No-op if the agent
// is not registered.
func (d *Dispatcher) Unregister(agentID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[agentID]; !ok {
		return
	}
	for cap, agent := range d.capabilities {
		if agent.Info().AgentID == agentID {
			delete(d.capabilities, cap)
		}
	}
	delete(d.agents, agentID)
}

// GetCapabilities returns the sorted list of currently registered capability names.
func (d *Dispatcher) GetCapabilities() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.capabilities))
	for cap := range d.capabilities {
		out = append(out, cap)
	}
	sort.Strings(out)
	return out
}

// GetAgents returns the AgentInfo of every registered agent.
func (d *Dispatcher) GetAgents() []core.AgentInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.AgentInfo, 0, len(d.agents))
	for _, agent := range d.agents {
		out = append(out, agent.Info())
	}
	return out
}

// DispatchSingle resolves capability to its owning agent and invokes it
// against sess. An unknown capability returns UNKNOWN_CAPABILITY and still
// records a capability_dispatched entry attributed to "dispatcher". On a
// known capability, dispatch brackets the invocation with "started" and
// "completed"/"failed" capability_dispatched entries, attributed to
// "dispatcher", so the agent's own trajectory entries (if any) fall
// strictly between them under the single-threaded execution model.
func (d *Dispatcher) DispatchSingle(ctx context.Context, sess *Session, call core.CapabilityCall) *core.InvokeResult {
	d.mu.Lock()
	agent, ok := d.capabilities[call.Capability]
	d.mu.Unlock()

	if !ok {
		sess.Append("dispatcher", core.EntryCapabilityDispatched, map[string]any{
			"capability": call.Capability,
			"status":     "unknown",
		})
		d.logf("dispatch %q: unknown capability", call.Capability)
		return core.Fail("", call.Capability, core.NewError(core.ErrUnknownCapability,
			"no agent registered for capability "+call.Capability, nil))
	}

	agentID := agent.Info().AgentID

	evt := &DispatchEvent{Type: DispatchBefore, Capability: call.Capability, AgentID: agentID, Params: call.Params}
	if err := d.hooks.Before(ctx, evt); err != nil {
		return core.Fail(agentID, call.Capability, core.AsSubstrateError(err))
	}

	sess.Append("dispatcher", core.EntryCapabilityDispatched, map[string]any{
		"capability": call.Capability,
		"agent_id":   agentID,
		"status":     "started",
	})

	result := d.invokeSafely(ctx, agent, call, sess)

	status := "completed"
	if !result.Success {
		status = "failed"
	}
	sess.Append("dispatcher", core.EntryCapabilityDispatched, map[string]any{
		"capability": call.Capability,
		"agent_id":   agentID,
		"status":     status,
	})
	d.logf("dispatch %q -> agent %q: %s", call.Capability, agentID, status)

	afterEvt := &DispatchEvent{
		Type: DispatchAfter, Capability: call.Capability, AgentID: agentID, Params: call.Params,
		Result: &InvokeResultView{Success: result.Success},
	}
	if result.Error != nil {
		afterEvt.Result.Message = result.Error.Message
	}
	_ = d.hooks.After(ctx, afterEvt)

	return result
}

// invokeSafely calls agent.Invoke and recovers a panic as the AGENT_ERROR
// safety net described in the specification: well-behaved agents never hit
// this path, since Invoke already returns a well-formed InvokeResult for
// every error condition they anticipate.
func (d *Dispatcher) invokeSafely(ctx context.Context, agent Agent, call core.CapabilityCall, sess *Session) (result *core.InvokeResult) {
	agentID := agent.Info().AgentID
	defer func() {
		if r := recover(); r != nil {
			result = core.Fail(agentID, call.Capability, core.NewError(core.ErrAgentError, fmt.Sprintf("agent panicked: %v", r), nil))
		}
	}()
	return agent.Invoke(ctx, call.Capability, sess, call.Params)
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// DispatchSequence runs calls in order against sess, stopping at the first
// failure (fail-fast). An empty call list trivially succeeds.
func (d *Dispatcher) DispatchSequence(ctx context.Context, sess *Session, calls []core.CapabilityCall) *core.SequenceResult {
	results := make([]*core.InvokeResult, 0, len(calls))
	for i, call := range calls {
		res := d.DispatchSingle(ctx, sess, call)
		results = append(results, res)
		if !res.Success {
			idx := i
			return &core.SequenceResult{Success: false, FailedAt: &idx, Error: res.Error, Results: results}
		}
	}
	return &core.SequenceResult{Success: true, Results: results}
}
