package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcphub/mcphub/pkg/nativemsg"
	"github.com/mcphub/mcphub/pkg/protocol"
)

// Host serves the native-messaging protocol over a byte stream, normally the
// process's stdin and stdout.
type Host struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
	maxSize    uint32
}

// Option configures a Host.
type Option func(*Host)

// WithHostLogger sets the host logger.
func WithHostLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithMaxMessageSize bounds inbound messages.
func WithMaxMessageSize(n uint32) Option {
	return func(h *Host) {
		h.maxSize = n
	}
}

// New creates a host around a dispatcher.
func New(d *Dispatcher, opts ...Option) *Host {
	h := &Host{
		dispatcher: d,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve reads framed requests from in and writes framed responses to out
// until in reaches EOF, ctx is done, or out fails. Requests are handled one
// at a time in arrival order. A clean EOF (the browser closed the port)
// returns nil.
func (h *Host) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	reader := nativemsg.NewReader(in,
		nativemsg.WithMaxMessageSize(h.maxSize),
		nativemsg.WithLogger(h.logger),
	)
	writer := nativemsg.NewWriter(out)

	h.logger.Info("native host serving")
	handled := 0
	for frame := range reader.Frames(ctx) {
		var resp *protocol.Response
		if frame.Err != nil {
			h.logger.Warn("undecodable message", "error", frame.Err)
			resp = protocol.Fail("", frame.Err)
		} else {
			resp = h.dispatcher.Dispatch(ctx, frame.Payload)
		}

		if err := writer.Send(resp); err != nil {
			return fmt.Errorf("sending response: %w", err)
		}
		handled++
	}

	err := reader.Err()
	if err == nil || errors.Is(err, context.Canceled) {
		h.logger.Info("native host stopped", "handled", handled)
		return nil
	}
	return err
}
