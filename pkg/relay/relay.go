// Package relay forwards requests from an external caller, such as a web
// page talking to the browser extension, to the native host.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/mcphub/mcphub/pkg/client"
	"github.com/mcphub/mcphub/pkg/protocol"
)

// Caller sends one request to the native host. *client.Client implements it.
type Caller interface {
	Call(ctx context.Context, req *protocol.Request) (json.RawMessage, error)
}

// Reply is what the external caller receives.
type Reply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Relay translates external messages into host calls and host outcomes into
// replies. Connection failures are reported as protocol.MsgHostUnavailable.
type Relay struct {
	caller Caller
	logger *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the relay logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// New creates a relay. The caller should auto-connect so that the host is
// launched on demand.
func New(caller Caller, opts ...Option) *Relay {
	r := &Relay{
		caller: caller,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes a loosely typed message, as decoded from a JSON object.
func (r *Relay) Handle(ctx context.Context, msg map[string]any) Reply {
	req, err := decodeRequest(msg)
	if err != nil {
		return Reply{Error: err.Error()}
	}
	return r.Forward(ctx, req)
}

// Forward sends a typed request to the host.
func (r *Relay) Forward(ctx context.Context, req *protocol.Request) Reply {
	if !req.Type.Known() {
		r.logger.Warn("rejecting request", "type", req.Type)
		return Reply{Error: protocol.MsgUnknownRequestType}
	}
	if err := req.Validate(); err != nil {
		return Reply{Error: err.Error()}
	}

	data, err := r.caller.Call(ctx, req)
	if err != nil {
		r.logger.Debug("host call failed", "type", req.Type, "error", err)
		return Reply{Error: r.Explain(err)}
	}
	return Reply{Success: true, Data: data}
}

// Explain maps a call error to the message shown to the external caller.
func (r *Relay) Explain(err error) string {
	var remote *client.RemoteError
	switch {
	case errors.As(err, &remote):
		return remote.Message
	case errors.Is(err, client.ErrRequestTimeout),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err.Error()
	default:
		r.logger.Error("native host unreachable", "error", err)
		return protocol.MsgHostUnavailable
	}
}

var (
	configType     = reflect.TypeOf(protocol.Config{})
	descriptorType = reflect.TypeOf(protocol.ServerDescriptor{})
)

// decodeRequest maps a generic message onto protocol.Request. The config and
// server payloads go through encoding/json so that unknown config keys and
// snake_case descriptor fields survive.
func decodeRequest(msg map[string]any) (*protocol.Request, error) {
	var req protocol.Request
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     &req,
		DecodeHook: jsonPayloadHook,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(msg); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	req.ID = ""
	return &req, nil
}

func jsonPayloadHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != configType && to != descriptorType {
		return data, nil
	}
	if _, ok := data.(map[string]any); !ok {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out := reflect.New(to)
	if err := json.Unmarshal(raw, out.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", to.Name(), err)
	}
	return out.Elem().Interface(), nil
}
