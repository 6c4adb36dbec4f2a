package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

// Params is the structured parameter bag handed to an action.
type Params map[string]any

// Decode fills out from the bag. Input is weakly typed because gateway path and
// query parameters always arrive as strings; struct fields use their json tags.
func (p Params) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       priceHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Pick copies the named keys that are present into a new bag.
func (p Params) Pick(keys ...string) Params {
	out := make(Params, len(keys))
	for _, k := range keys {
		if v, ok := p[k]; ok {
			out[k] = v
		}
	}
	return out
}

var priceType = reflect.TypeOf(Price{})

func priceHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != priceType {
		return data, nil
	}
	switch v := data.(type) {
	case Price:
		return v, nil
	case string:
		return ParsePrice(v)
	case json.Number:
		return ParsePrice(v.String())
	case float64:
		return PriceFromFloat(v), nil
	case float32:
		return PriceFromFloat(float64(v)), nil
	case int:
		return Price{decimal.NewFromInt(int64(v))}, nil
	case int64:
		return Price{decimal.NewFromInt(v)}, nil
	}
	return data, nil
}

// Caller identifies who issued a call.
type Caller struct {
	NodeID  string `json:"node_id"`
	Service string `json:"service,omitempty"`
}

// CallFunc issues a nested call on behalf of a parent call context.
type CallFunc func(ctx context.Context, service, action string, params Params, parent *CallContext) (any, error)

// CallContext is created for one invocation and discarded once it is answered.
type CallContext struct {
	// ID is the correlation identifier of this call.
	ID string
	// RequestID is shared by every hop started from the same root call.
	RequestID string
	// ParentID is the ID of the call that issued this one, if nested.
	ParentID string
	// Level is the hop depth, 1 for a root call.
	Level int

	Service string
	Action  string
	Params  Params
	Caller  Caller

	// NodeID is the node executing the handler.
	NodeID string

	call CallFunc
}

// Bind attaches the router used for nested calls.
func (c *CallContext) Bind(fn CallFunc) *CallContext {
	c.call = fn
	return c
}

// Call issues a nested call through the same router that delivered this one.
func (c *CallContext) Call(ctx context.Context, service, action string, params Params) (any, error) {
	if c.call == nil {
		return nil, fmt.Errorf("%w: call context for %s.%s is detached", ErrNodeStopped, c.Service, c.Action)
	}
	return c.call(ctx, service, action, params, c)
}

// DecodeResult converts an action result into out. Results of remote calls
// arrive as generic JSON values, so both cases go through the JSON encoding.
func DecodeResult(result any, out any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
