package session

import "context"

// DispatchEventType identifies where in a dispatch a hook is firing.
type DispatchEventType string

const (
	DispatchBefore DispatchEventType = "dispatch.before"
	DispatchAfter  DispatchEventType = "dispatch.after"
)

// DispatchEvent carries the data a Hook observes around a dispatch_single
// call. It is distinct from the Agent contract — a Hook only observes and
// may abort, it can never itself invoke a capability.
type DispatchEvent struct {
	Type       DispatchEventType
	Capability string
	AgentID    string
	Params     map[string]any
	Result     *InvokeResultView
	Err        error
}

// InvokeResultView mirrors core.InvokeResult for hook observation without
// importing the dispatch result type directly, keeping Hook decoupled from
// dispatch internals.
type InvokeResultView struct {
	Success bool
	Message string
}

// Hook intercepts dispatch events for logging, metrics, or other
// cross-cutting observation. Before may abort the dispatch by returning an
// error, which becomes the failed result's error: a *core.SubstrateError
// keeps its own code, any other error is mapped to AGENT_ERROR.
type Hook interface {
	Before(ctx context.Context, evt *DispatchEvent) error
	After(ctx context.Context, evt *DispatchEvent) error
}

// HookChain runs multiple hooks around a single dispatch. Before hooks run
// in registration order and stop at the first error; After hooks run in
// reverse registration order, mirroring how middleware unwinds.
type HookChain []Hook

func (c HookChain) Before(ctx context.Context, evt *DispatchEvent) error {
	for _, h := range c {
		if err := h.Before(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (c HookChain) After(ctx context.Context, evt *DispatchEvent) error {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].After(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// LoggingHook records every dispatch event it observes, for tests and for
// CLI/control-plane introspection without a third-party metrics backend.
type LoggingHook struct {
	Events []DispatchEvent
}

func (h *LoggingHook) Before(_ context.Context, evt *DispatchEvent) error {
	h.Events = append(h.Events, *evt)
	return nil
}

func (h *LoggingHook) After(_ context.Context, evt *DispatchEvent) error {
	h.Events = append(h.Events, *evt)
	return nil
}
