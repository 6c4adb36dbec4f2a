package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind distinguishes the three envelopes exchanged between nodes.
type MessageKind string

const (
	KindRequest  MessageKind = "request"
	KindResponse MessageKind = "response"
	KindError    MessageKind = "error"
)

// ErrorBody is the failure description carried by an error Message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is the wire envelope. A request pairs with exactly one response or
// error Message carrying the same ID.
type Message struct {
	Kind    MessageKind     `json:"kind"`
	ID      string          `json:"id"`
	Sender  string          `json:"sender"`
	Service string          `json:"service,omitempty"`
	Action  string          `json:"action,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`

	// Request tracking, set on requests only.
	RequestID     string `json:"request_id,omitempty"`
	ParentID      string `json:"parent_id,omitempty"`
	Level         int    `json:"level,omitempty"`
	CallerService string `json:"caller_service,omitempty"`

	// Deadline is the caller's deadline in Unix milliseconds (0 means none).
	Deadline int64 `json:"deadline,omitempty"`
}

// NewRequest builds the request Message for a call context issued by sender.
func NewRequest(sender string, call *CallContext, deadline time.Time) (Message, error) {
	payload, err := json.Marshal(call.Params)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	msg := Message{
		Kind:          KindRequest,
		ID:            call.ID,
		Sender:        sender,
		Service:       call.Service,
		Action:        call.Action,
		Payload:       payload,
		RequestID:     call.RequestID,
		ParentID:      call.ParentID,
		Level:         call.Level,
		CallerService: call.Caller.Service,
	}
	if !deadline.IsZero() {
		msg.Deadline = deadline.UnixMilli()
	}
	return msg, nil
}

// Reply builds the response Message answering m.
func (m Message) Reply(sender string, result any) (Message, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode result: %w", err)
	}
	return Message{
		Kind:    KindResponse,
		ID:      m.ID,
		Sender:  sender,
		Service: m.Service,
		Action:  m.Action,
		Payload: payload,
	}, nil
}

// Fail builds the error Message answering m.
func (m Message) Fail(sender string, cause error) Message {
	return Message{
		Kind:    KindError,
		ID:      m.ID,
		Sender:  sender,
		Service: m.Service,
		Action:  m.Action,
		Error: &ErrorBody{
			Code:    Code(cause),
			Message: cause.Error(),
		},
	}
}

// DeadlineTime returns the request deadline, if any.
func (m Message) DeadlineTime() (time.Time, bool) {
	if m.Deadline == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(m.Deadline), true
}

// Params decodes the request payload into a parameter bag.
func (m Message) Params() (Params, error) {
	params := Params{}
	if len(m.Payload) == 0 || string(m.Payload) == "null" {
		return params, nil
	}
	if err := json.Unmarshal(m.Payload, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return params, nil
}

// Result decodes the response payload into a generic value.
func (m Message) Result() (any, error) {
	if len(m.Payload) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(m.Payload, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}

// Err returns the RemoteError described by an error Message.
func (m Message) Err() error {
	if m.Kind != KindError {
		return nil
	}
	body := m.Error
	if body == nil {
		body = &ErrorBody{Code: CodeInternal, Message: "unknown remote failure"}
	}
	return &RemoteError{NodeID: m.Sender, Code: body.Code, Message: body.Message}
}

// EncodeMessage serializes a Message for the wire.
func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	return m, nil
}
