package node

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/meshwork/pkg/domain"
)

// replyTimeout bounds the send of a response, independent of the request deadline.
const replyTimeout = 5 * time.Second

// dispatch receives every Message addressed to this node. The transport runs
// it on its own goroutine per message.
func (n *Node) dispatch(msg domain.Message) {
	switch msg.Kind {
	case domain.KindRequest:
		n.serve(msg)
	case domain.KindResponse, domain.KindError:
		n.complete(msg)
	default:
		n.logger.Debug("dropping message of unknown kind", "kind", msg.Kind, "id", msg.ID)
	}
}

// serve answers one request with exactly one response or error Message.
func (n *Node) serve(msg domain.Message) {
	n.mu.Lock()
	if n.stopping {
		n.mu.Unlock()
		n.reply(msg, msg.Fail(n.id, fmt.Errorf("%w: %s", domain.ErrNodeStopped, n.id)))
		return
	}
	n.inflight.Add(1)
	n.mu.Unlock()
	defer n.inflight.Done()

	ctx := n.lifeCtx
	var cancel context.CancelFunc
	if deadline, ok := msg.DeadlineTime(); ok {
		ctx, cancel = context.WithDeadline(ctx, deadline)
	} else if n.callTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, n.callTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	result, err := n.handle(ctx, msg)
	if err != nil {
		n.reply(msg, msg.Fail(n.id, err))
		return
	}
	resp, err := msg.Reply(n.id, result)
	if err != nil {
		n.reply(msg, msg.Fail(n.id, err))
		return
	}
	n.reply(msg, resp)
}

func (n *Node) handle(ctx context.Context, msg domain.Message) (any, error) {
	entry, ok := n.registry.Local(msg.Service)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not hosted by %s", domain.ErrServiceNotFound, msg.Service, n.id)
	}
	if r := entry.Readiness(); r != domain.ReadinessReady {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrServiceUnavailable, msg.Service, r)
	}
	handler, err := entry.Action(msg.Action)
	if err != nil {
		return nil, err
	}
	params, err := msg.Params()
	if err != nil {
		return nil, err
	}

	call := &domain.CallContext{
		ID:        msg.ID,
		RequestID: msg.RequestID,
		ParentID:  msg.ParentID,
		Level:     msg.Level,
		Service:   msg.Service,
		Action:    msg.Action,
		Params:    params,
		Caller:    domain.Caller{NodeID: msg.Sender, Service: msg.CallerService},
		NodeID:    n.id,
	}
	return invoke(ctx, handler, call.Bind(n.call))
}

func (n *Node) reply(req domain.Message, resp domain.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	if err := n.transport.Send(ctx, req.Sender, resp); err != nil {
		n.logger.Warn("reply not delivered", "target", req.Sender, "id", req.ID, "err", err)
	}
}

// complete hands a response to the call waiting for it. Responses arriving
// after the caller gave up are dropped.
func (n *Node) complete(msg domain.Message) {
	n.mu.Lock()
	ch, ok := n.pending[msg.ID]
	if ok {
		delete(n.pending, msg.ID)
	}
	n.mu.Unlock()

	if !ok {
		n.logger.Debug("dropping late response", "id", msg.ID, "from", msg.Sender)
		return
	}
	ch <- msg
}
