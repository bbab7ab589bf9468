// Package host is the native-messaging host: it decodes framed commands from
// the browser, dispatches them to the config store and package installers,
// and writes one framed response per command.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcphub/mcphub/pkg/installer"
	"github.com/mcphub/mcphub/pkg/protocol"
)

const tracerName = "github.com/mcphub/mcphub/pkg/host"

// ErrServerNotFound is returned when UNINSTALL_SERVER names a server that is
// not in the config.
//
//nolint:staticcheck // error text is part of the wire protocol
var ErrServerNotFound = errors.New(protocol.MsgServerNotFound)

// ConfigStore is the subset of config.Store the dispatcher needs.
type ConfigStore interface {
	EnsureExists() error
	Load() (*protocol.Config, error)
	Write(cfg *protocol.Config) error
}

// HandlerFunc handles one request type. A nil result means success with no data.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (any, error)

// Dispatcher maps request types to handlers. Each request is handled
// independently; no state is kept between requests.
type Dispatcher struct {
	store      ConfigStore
	installers *installer.Set
	logger     *slog.Logger
	tracer     trace.Tracer
	handlers   map[protocol.MessageType]HandlerFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		d.tracer = tp.Tracer(tracerName)
	}
}

// NewDispatcher creates a dispatcher with the four built-in handlers.
func NewDispatcher(store ConfigStore, installers *installer.Set, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		installers: installers,
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	d.handlers = map[protocol.MessageType]HandlerFunc{
		protocol.TypeGetConfig:       d.handleGetConfig,
		protocol.TypeUpdateConfig:    d.handleUpdateConfig,
		protocol.TypeInstallServer:   d.handleInstallServer,
		protocol.TypeUninstallServer: d.handleUninstallServer,
	}
	return d
}

// Handle registers or replaces the handler for t.
func (d *Dispatcher) Handle(t protocol.MessageType, h HandlerFunc) {
	d.handlers[t] = h
}

// Dispatch decodes and handles one message payload. It always returns a
// response; handler errors and panics become failure responses.
func (d *Dispatcher) Dispatch(ctx context.Context, payload json.RawMessage) (resp *protocol.Response) {
	var req protocol.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		d.logger.Warn("malformed request", "error", err)
		return protocol.Fail(peekID(payload), fmt.Errorf("invalid request: %w", err))
	}

	ctx, span := d.tracer.Start(ctx, "dispatch "+string(req.Type),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("mcphub.message.type", string(req.Type))),
	)
	defer span.End()

	logger := d.logger.With("type", string(req.Type))
	if req.ID != "" {
		logger = logger.With("id", req.ID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			err := fmt.Errorf("internal error: %v", r)
			span.SetStatus(codes.Error, err.Error())
			resp = protocol.Fail(req.ID, err)
		}
	}()

	handler, ok := d.handlers[req.Type]
	if !ok {
		logger.Warn("unknown message type")
		span.SetStatus(codes.Error, protocol.MsgUnknownMessageType)
		return protocol.Fail(req.ID, protocol.ErrUnknownMessageType)
	}
	if err := req.Validate(); err != nil {
		logger.Warn("invalid request", "error", err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Fail(req.ID, err)
	}

	start := time.Now()
	data, err := handler(ctx, &req)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Warn("request failed", "error", err, "duration", elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Fail(req.ID, err)
	}

	resp, err = protocol.OK(req.ID, data)
	if err != nil {
		logger.Error("encoding response", "error", err)
		span.SetStatus(codes.Error, err.Error())
		return protocol.Fail(req.ID, err)
	}
	logger.Info("request handled", "duration", elapsed)
	return resp
}

func (d *Dispatcher) handleGetConfig(_ context.Context, _ *protocol.Request) (any, error) {
	return d.store.Load()
}

func (d *Dispatcher) handleUpdateConfig(_ context.Context, req *protocol.Request) (any, error) {
	if err := d.store.EnsureExists(); err != nil {
		return nil, err
	}
	if err := d.store.Write(req.Config); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Dispatcher) handleInstallServer(ctx context.Context, req *protocol.Request) (any, error) {
	inst := d.installers.ForRuntime(req.Server.Runtime)
	d.logger.Info("installing server",
		"server", req.Server.Name,
		"repository", req.Server.Repository,
		"installer", inst.Name(),
	)
	return nil, inst.Install(ctx, req.Server)
}

// handleUninstallServer removes the package but leaves the config entry in
// place. Callers follow up with UPDATE_CONFIG to drop the entry.
func (d *Dispatcher) handleUninstallServer(ctx context.Context, req *protocol.Request) (any, error) {
	cfg, err := d.store.Load()
	if err != nil {
		return nil, err
	}
	entry, ok := cfg.Server(req.ServerName)
	if !ok {
		return nil, ErrServerNotFound
	}

	inst := d.installers.ForEntry(req.ServerName, entry)
	d.logger.Info("uninstalling server", "server", req.ServerName, "installer", inst.Name())
	return nil, inst.Uninstall(ctx, req.ServerName)
}

// peekID recovers the correlation ID from a payload that failed full decoding.
func peekID(payload json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &probe)
	return probe.ID
}
