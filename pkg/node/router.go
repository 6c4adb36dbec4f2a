package node

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
	"github.com/aretw0/meshwork/pkg/ports"
	"github.com/google/uuid"
)

// Call invokes service.action anywhere in the mesh. Calls without a context
// deadline are bounded by the node's call timeout.
func (n *Node) Call(ctx context.Context, service, action string, params domain.Params) (any, error) {
	return n.call(ctx, service, action, params, nil)
}

// call is the single entry point for root and nested calls.
func (n *Node) call(ctx context.Context, service, action string, params domain.Params, parent *domain.CallContext) (any, error) {
	if n.Liveness() == domain.LivenessStopped {
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeStopped, n.id)
	}
	if _, ok := ctx.Deadline(); !ok && n.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.callTimeout)
		defer cancel()
	}

	call := n.newCallContext(service, action, params, parent)
	event := &domain.CallEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now(),
			Type:      domain.EventCall,
			NodeID:    n.id,
		},
		CorrelationID: call.ID,
		RequestID:     call.RequestID,
		Service:       service,
		Action:        action,
	}
	if n.hooks.OnCall != nil {
		n.hooks.OnCall(ctx, event)
	}

	result, err := n.route(ctx, call, event)

	if n.hooks.OnReturn != nil {
		ret := *event
		ret.Timestamp = time.Now()
		ret.Type = domain.EventReturn
		ret.Duration = time.Since(event.Timestamp)
		ret.Err = err
		n.hooks.OnReturn(ctx, &ret)
	}
	if err != nil {
		n.logger.Debug("call failed", "service", service, "action", action, "request_id", call.RequestID, "err", err)
	}
	return result, err
}

func (n *Node) route(ctx context.Context, call *domain.CallContext, event *domain.CallEvent) (any, error) {
	rec, err := n.registry.Resolve(ctx, call.Service)
	if err != nil {
		return nil, err
	}
	event.Target = rec.NodeID
	if !slices.Contains(rec.Actions, call.Action) {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrActionNotFound, call.Service, call.Action)
	}

	if rec.NodeID == n.id {
		return n.invokeLocal(ctx, call)
	}
	event.Remote = true
	return n.invokeRemote(ctx, rec.NodeID, call)
}

func (n *Node) invokeLocal(ctx context.Context, call *domain.CallContext) (any, error) {
	entry, ok := n.registry.Local(call.Service)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrServiceNotFound, call.Service)
	}
	handler, err := entry.Action(call.Action)
	if err != nil {
		return nil, err
	}

	result, err := invoke(ctx, handler, call.Bind(n.call))
	if err != nil {
		return nil, &domain.LocalError{Service: call.Service, Action: call.Action, Cause: err}
	}
	return result, nil
}

func (n *Node) invokeRemote(ctx context.Context, target string, call *domain.CallContext) (any, error) {
	deadline, _ := ctx.Deadline()
	req, err := domain.NewRequest(n.id, call, deadline)
	if err != nil {
		return nil, err
	}

	reply := make(chan domain.Message, 1)
	n.mu.Lock()
	n.pending[call.ID] = reply
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		delete(n.pending, call.ID)
		n.mu.Unlock()
	}()

	if err := n.transport.Send(ctx, target, req); err != nil {
		n.logger.Warn("send failed", "target", target, "service", call.Service, "action", call.Action, "err", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s.%s on %s", domain.ErrRemoteTimeout, call.Service, call.Action, target)
		}
		return nil, err
	}

	select {
	case msg := <-reply:
		if msg.Kind == domain.KindError {
			return nil, msg.Err()
		}
		return msg.Result()
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s.%s on %s", domain.ErrRemoteTimeout, call.Service, call.Action, target)
		}
		return nil, ctx.Err()
	case <-n.stopped:
		return nil, fmt.Errorf("%w: %s", domain.ErrNodeStopped, n.id)
	}
}

func (n *Node) newCallContext(service, action string, params domain.Params, parent *domain.CallContext) *domain.CallContext {
	if params == nil {
		params = domain.Params{}
	}
	call := &domain.CallContext{
		ID:      uuid.NewString(),
		Service: service,
		Action:  action,
		Params:  params,
		NodeID:  n.id,
		Caller:  domain.Caller{NodeID: n.id},
	}
	if parent == nil {
		call.RequestID = call.ID
		call.Level = 1
		return call
	}
	call.RequestID = parent.RequestID
	call.ParentID = parent.ID
	call.Level = parent.Level + 1
	call.Caller.Service = parent.Service
	return call
}

// invoke runs a handler, turning a panic into an error.
func invoke(ctx context.Context, handler ports.Action, call *domain.CallContext) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return handler(ctx, call)
}
