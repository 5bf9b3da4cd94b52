// Package builtin provides trivial reference implementations of the Agent
// contract: ReverseAgent and UppercaseAgent. They exist to exercise the
// Dispatcher end-to-end and to document the agent_invoked/agent_completed/
// agent_failed bracketing convention described in the specification; they
// are not meant to be production agents.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// stringTransformAgent implements the shared shape of both built-ins: read
// a string from session state at params["key"], transform it, write it back.
type stringTransformAgent struct {
	id, name, version, capability string
	transform                     func(string) string
}

func (a *stringTransformAgent) Info() core.AgentInfo {
	return core.AgentInfo{
		AgentID:      a.id,
		Name:         a.name,
		Version:      a.version,
		Capabilities: []string{a.capability},
		Description:  fmt.Sprintf("applies %s to a string stored in session state", a.name),
	}
}

func (a *stringTransformAgent) Invoke(ctx context.Context, capability string, sess *session.Session, params map[string]any) *core.InvokeResult {
	if capability != a.capability {
		return core.Fail(a.id, capability, core.NewError(core.ErrUnknownCapability,
			fmt.Sprintf("agent %q does not implement %q", a.id, capability), nil))
	}

	sess.Append(a.id, core.EntryAgentInvoked, map[string]any{"capability": capability, "params": params})

	key, _ := params["key"].(string)
	if key == "" {
		err := core.NewError(core.ErrInvalidKey, "params.key must be a non-empty string", nil)
		sess.Append(a.id, core.EntryAgentFailed, map[string]any{"capability": capability, "error": err.Message})
		return core.Fail(a.id, capability, err)
	}

	raw := sess.Get(key, nil)
	text, ok := raw.(string)
	if !ok {
		err := core.NewError(core.ErrInvalidValue, fmt.Sprintf("state[%q] is not a string", key), nil)
		sess.Append(a.id, core.EntryAgentFailed, map[string]any{"capability": capability, "error": err.Message})
		return core.Fail(a.id, capability, err)
	}

	transformed := a.transform(text)
	if _, err := sess.Set(a.id, key, transformed); err != nil {
		sess.Append(a.id, core.EntryAgentFailed, map[string]any{"capability": capability, "error": err.Message})
		return core.Fail(a.id, capability, err)
	}

	sess.Append(a.id, core.EntryAgentCompleted, map[string]any{"capability": capability, "key": key})
	return core.Ok(a.id, capability, map[string]any{"key": key, "value": transformed})
}

// NewReverseAgent returns an Agent advertising the "reverse" capability: it
// reverses the rune sequence of state[params["key"]] in place.
func NewReverseAgent() session.Agent {
	return &stringTransformAgent{
		id: "reverse-agent", name: "ReverseAgent", version: "1.0.0", capability: "reverse",
		transform: reverseString,
	}
}

// NewUppercaseAgent returns an Agent advertising the "uppercase" capability:
// it upper-cases state[params["key"]] in place.
func NewUppercaseAgent() session.Agent {
	return &stringTransformAgent{
		id: "uppercase-agent", name: "UppercaseAgent", version: "1.0.0", capability: "uppercase",
		transform: strings.ToUpper,
	}
}

func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}
