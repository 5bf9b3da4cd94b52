package session

import (
	"context"
	"testing"
	"time"

	"github.com/chronos-ai/substrate/core"
)

type flakyAgent struct {
	id          string
	failUntil   int
	invocations int
}

func (a *flakyAgent) Info() core.AgentInfo {
	return core.AgentInfo{AgentID: a.id, Name: a.id, Capabilities: []string{"flaky"}}
}

func (a *flakyAgent) Invoke(ctx context.Context, capability string, sess *Session, params map[string]any) *core.InvokeResult {
	a.invocations++
	if a.invocations <= a.failUntil {
		return core.Fail(a.id, capability, core.NewError(core.ErrAgentError, "not ready yet", nil))
	}
	return core.Ok(a.id, capability, nil)
}

func TestDispatchSingleWithRetrySucceedsEventually(t *testing.T) {
	d := NewDispatcher(nil)
	agent := &flakyAgent{id: "flaky", failUntil: 2}
	d.Register(agent)

	sess := New(Config{})
	policy := DefaultRetryPolicy()
	policy.Sleep = func(time.Duration) {}

	result := DispatchSingleWithRetry(context.Background(), d, sess, core.CapabilityCall{Capability: "flaky"}, policy)
	if !result.Success {
		t.Fatalf("expected eventual success, got %v", result.Error)
	}
	if agent.invocations != 3 {
		t.Fatalf("expected 3 invocations (2 failures + 1 success), got %d", agent.invocations)
	}
}

func TestDispatchSingleWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	d := NewDispatcher(nil)
	agent := &flakyAgent{id: "flaky", failUntil: 100}
	d.Register(agent)

	sess := New(Config{})
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Sleep: func(time.Duration) {}}

	result := DispatchSingleWithRetry(context.Background(), d, sess, core.CapabilityCall{Capability: "flaky"}, policy)
	if result.Success {
		t.Fatal("expected failure after exhausting retries")
	}
	if agent.invocations != 3 {
		t.Fatalf("expected 3 invocations (1 initial + 2 retries), got %d", agent.invocations)
	}
}

func TestDispatchSingleWithRetryDoesNotRetryNonRetryable(t *testing.T) {
	d := NewDispatcher(nil)
	sess := New(Config{})
	policy := DefaultRetryPolicy()
	policy.Sleep = func(time.Duration) {}

	result := DispatchSingleWithRetry(context.Background(), d, sess, core.CapabilityCall{Capability: "unregistered"}, policy)
	if result.Success {
		t.Fatal("expected failure for unknown capability")
	}
	if result.Error.Code != core.ErrUnknownCapability {
		t.Fatalf("expected UNKNOWN_CAPABILITY, got %v", result.Error.Code)
	}
}
