package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventCall             EventType = "call"
	EventReturn           EventType = "return"
	EventReadiness        EventType = "readiness"
	EventDependencyFailed EventType = "dependency_failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	NodeID    string    `json:"node_id"`
}

// CallEvent describes one routed call, seen from the calling node.
type CallEvent struct {
	EventBase
	CorrelationID string        `json:"correlation_id"`
	RequestID     string        `json:"request_id"`
	Service       string        `json:"service"`
	Action        string        `json:"action"`
	Target        string        `json:"target,omitempty"` // hosting node, empty if resolution failed
	Remote        bool          `json:"remote"`
	Duration      time.Duration `json:"duration,omitempty"`
	Err           error         `json:"-"`
}

// Outcome returns "ok" or the wire code of the failure.
func (e *CallEvent) Outcome() string {
	if e.Err == nil {
		return "ok"
	}
	return Code(e.Err)
}

// ServiceEvent describes a readiness transition of a local service, or the
// failure of one of its dependencies after it became ready.
type ServiceEvent struct {
	EventBase
	Service    string    `json:"service"`
	Readiness  Readiness `json:"readiness"`
	Dependency string    `json:"dependency,omitempty"`
	Err        error     `json:"-"`
}

// LifecycleHooks defines callbacks for mesh observability.
type LifecycleHooks struct {
	OnCall             func(context.Context, *CallEvent)
	OnReturn           func(context.Context, *CallEvent)
	OnReadiness        func(context.Context, *ServiceEvent)
	OnDependencyFailed func(context.Context, *ServiceEvent)
}

// ChainHooks combines several hook sets; callbacks run in argument order.
func ChainHooks(all ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range all {
		out.OnCall = chain(out.OnCall, h.OnCall)
		out.OnReturn = chain(out.OnReturn, h.OnReturn)
		out.OnReadiness = chain(out.OnReadiness, h.OnReadiness)
		out.OnDependencyFailed = chain(out.OnDependencyFailed, h.OnDependencyFailed)
	}
	return out
}

func chain[E any](first, second func(context.Context, E)) func(context.Context, E) {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	return func(ctx context.Context, e E) {
		first(ctx, e)
		second(ctx, e)
	}
}
