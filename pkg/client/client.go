// Package client talks to a native host over a framed stream, matching each
// response to the call that caused it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcphub/mcphub/pkg/nativemsg"
	"github.com/mcphub/mcphub/pkg/protocol"
)

// DefaultCallTimeout bounds a single call. It is long enough for a package
// install to finish.
const DefaultCallTimeout = 5 * time.Minute

// Client is a connection to a native host with a Disconnected, Connecting,
// Connected lifecycle. It is safe for concurrent use.
type Client struct {
	dialer      Dialer
	logger      *slog.Logger
	timeout     time.Duration
	maxSize     uint32
	serialize   bool
	autoConnect bool

	// callMu queues calls when serialize is set.
	callMu sync.Mutex

	mu     sync.Mutex
	state  State
	conn   *conn
	closed bool
	// connecting is closed when an in-progress dial finishes.
	connecting chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCallTimeout overrides DefaultCallTimeout. Zero disables the timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithSerializedCalls keeps at most one call in flight. Use it with peers
// that do not echo request IDs.
func WithSerializedCalls() Option {
	return func(c *Client) {
		c.serialize = true
	}
}

// WithAutoConnect makes Call dial the host when the client is Disconnected.
func WithAutoConnect() Option {
	return func(c *Client) {
		c.autoConnect = true
	}
}

// WithMaxMessageSize bounds inbound responses.
func WithMaxMessageSize(n uint32) Option {
	return func(c *Client) {
		c.maxSize = n
	}
}

// New creates a Disconnected client. Nothing is dialed until Connect, or the
// first Call with auto-connect enabled.
func New(dialer Dialer, opts ...Option) *Client {
	c := &Client{
		dialer:  dialer,
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultCallTimeout,
		maxSize: nativemsg.DefaultMaxMessageSize,
		state:   StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the host. It is a no-op when already Connected and waits for
// a concurrent dial when Connecting.
func (c *Client) Connect(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		switch c.state {
		case StateConnected:
			c.mu.Unlock()
			return nil
		case StateConnecting:
			wait := c.connecting
			c.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		c.state = StateConnecting
		c.connecting = make(chan struct{})
		c.mu.Unlock()

		return c.dial(ctx)
	}
}

func (c *Client) dial(ctx context.Context) error {
	rwc, err := c.dialer.Dial(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.connecting)
	if err != nil {
		c.state = StateDisconnected
		return fmt.Errorf("connecting to native host: %w", err)
	}
	if c.closed {
		c.state = StateDisconnected
		_ = rwc.Close()
		return ErrClosed
	}

	cn := newConn(rwc, c.logger)
	c.conn = cn
	c.state = StateConnected
	cn.start(c.maxSize, c.onConnLost)
	c.logger.Debug("connected to native host")
	return nil
}

// onConnLost runs on the read goroutine after a connection ends.
func (c *Client) onConnLost(cn *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != cn {
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	c.logger.Info("native host disconnected", "reason", cn.closeErr())
}

// Reconnect drops the current connection, failing its pending calls, and
// dials again. It may be called from any state.
func (c *Client) Reconnect(ctx context.Context) error {
	c.disconnect()
	return c.Connect(ctx)
}

// Disconnect drops the current connection. Pending calls fail with
// ErrDisconnected. The client may be connected again afterwards.
func (c *Client) Disconnect() {
	c.disconnect()
}

// Close disconnects and makes every later call fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.disconnect()
	return nil
}

func (c *Client) disconnect() {
	c.mu.Lock()
	cn := c.conn
	c.conn = nil
	if c.state == StateConnected {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if cn != nil {
		cn.shutdown(ErrDisconnected)
	}
}

func (c *Client) activeConn(ctx context.Context) (*conn, error) {
	c.mu.Lock()
	cn, closed := c.conn, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if cn != nil {
		return cn, nil
	}
	if !c.autoConnect {
		return nil, ErrDisconnected
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrDisconnected
	}
	return c.conn, nil
}

// Call sends req and waits for its response. A failure response is returned
// as *RemoteError. req is not modified; the sent copy carries a fresh ID.
func (c *Client) Call(ctx context.Context, req *protocol.Request) (json.RawMessage, error) {
	if c.serialize {
		c.callMu.Lock()
		defer c.callMu.Unlock()
	}

	cn, err := c.activeConn(ctx)
	if err != nil {
		return nil, err
	}

	msg := *req
	msg.ID = uuid.NewString()
	pc, err := cn.register(msg.ID)
	if err != nil {
		return nil, err
	}

	if err := cn.writer.Send(&msg); err != nil {
		cn.remove(msg.ID)
		return nil, fmt.Errorf("sending %s: %w", msg.Type, err)
	}
	c.logger.Debug("sent request", "type", msg.Type, "id", msg.ID)

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-pc.response:
		return unwrap(res)
	case <-timeout:
		if !cn.remove(msg.ID) {
			// Resolved while the timer fired.
			return unwrap(<-pc.response)
		}
		c.logger.Warn("request timed out", "type", msg.Type, "id", msg.ID, "timeout", c.timeout)
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		if !cn.remove(msg.ID) {
			return unwrap(<-pc.response)
		}
		return nil, ctx.Err()
	}
}

func unwrap(res result) (json.RawMessage, error) {
	if res.err != nil {
		return nil, res.err
	}
	if !res.resp.Success {
		return nil, &RemoteError{Message: res.resp.Error}
	}
	return res.resp.Data, nil
}

// IsRemote reports whether err came from a failure response.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
