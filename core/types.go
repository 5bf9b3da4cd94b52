package core

// CapabilityCall names a single capability invocation and its parameters.
// The Planner (out of core) produces ordered sequences of these; the
// Dispatcher consumes them one at a time.
type CapabilityCall struct {
	Capability string         `json:"capability"`
	Params     map[string]any `json:"params"`
}

// InvokeResult is what every Agent.Invoke call returns, success or failure,
// in place of an uncontained exception. Exactly one of Result/Error is
// populated, matching Success.
type InvokeResult struct {
	Success    bool            `json:"success"`
	Result     map[string]any  `json:"result,omitempty"`
	Error      *SubstrateError `json:"error,omitempty"`
	AgentID    string          `json:"agent_id"`
	Capability string          `json:"capability"`
}

// Ok builds a successful InvokeResult.
func Ok(agentID, capability string, result map[string]any) *InvokeResult {
	return &InvokeResult{Success: true, Result: result, AgentID: agentID, Capability: capability}
}

// Fail builds a failed InvokeResult carrying a structured error.
func Fail(agentID, capability string, err *SubstrateError) *InvokeResult {
	return &InvokeResult{Success: false, Error: err, AgentID: agentID, Capability: capability}
}

// AgentInfo is the identity and advertised surface of an Agent, returned by
// Agent.Info(). Capabilities must be non-empty for a registrable agent.
type AgentInfo struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Description  string   `json:"description,omitempty"`
}

// SequenceResult is the outcome of Dispatcher.DispatchSequence: fail-fast
// sequential execution of a list of CapabilityCalls.
type SequenceResult struct {
	Success  bool            `json:"success"`
	FailedAt *int            `json:"failed_at,omitempty"`
	Error    *SubstrateError `json:"error,omitempty"`
	Results  []*InvokeResult `json:"results"`
}
