package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/mcphub/mcphub/pkg/nativemsg"
	"github.com/mcphub/mcphub/pkg/protocol"
)

// pendingCall is one request awaiting its response.
type pendingCall struct {
	id       string
	response chan result
}

type result struct {
	resp *protocol.Response
	err  error
}

// conn is one established stream to a host process. It is discarded, never
// reused, once the stream ends.
type conn struct {
	rwc    io.ReadWriteCloser
	writer *nativemsg.Writer
	logger *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]*pendingCall
	// order lists pending IDs oldest first, for responses that carry no ID.
	order []string

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

func newConn(rwc io.ReadWriteCloser, logger *slog.Logger) *conn {
	return &conn{
		rwc:     rwc,
		writer:  nativemsg.NewWriter(rwc),
		logger:  logger,
		pending: make(map[string]*pendingCall),
		done:    make(chan struct{}),
	}
}

// start launches the read loop. onExit runs after pending calls are drained.
func (c *conn) start(maxSize uint32, onExit func(*conn)) {
	reader := nativemsg.NewReader(c.rwc,
		nativemsg.WithMaxMessageSize(maxSize),
		nativemsg.WithLogger(c.logger),
	)
	frames := reader.Frames(context.Background())
	go func() {
		for frame := range frames {
			c.route(frame)
		}
		err := reader.Err()
		if err == nil {
			err = io.EOF
		}
		c.shutdown(err)
		onExit(c)
	}()
}

// register adds a pending call. It fails once the connection has shut down,
// since nothing would be left to drain the entry.
func (c *conn) register(id string) (*pendingCall, error) {
	pc := &pendingCall{id: id, response: make(chan result, 1)}
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	select {
	case <-c.done:
		return nil, ErrDisconnected
	default:
	}
	c.pending[id] = pc
	c.order = append(c.order, id)
	return pc, nil
}

// remove drops a pending call and reports whether it was still registered.
func (c *conn) remove(id string) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.removeLocked(id) != nil
}

func (c *conn) removeLocked(id string) *pendingCall {
	pc, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return pc
}

// claim removes and returns the pending call a response belongs to: the one
// with a matching ID, or the oldest one when the response has no ID.
func (c *conn) claim(id string) *pendingCall {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if id == "" {
		if len(c.order) == 0 {
			return nil
		}
		id = c.order[0]
	}
	return c.removeLocked(id)
}

func (c *conn) pendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

func (c *conn) route(frame nativemsg.Frame) {
	if frame.Err != nil {
		// Without an ID the failure belongs to the oldest caller.
		if pc := c.claim(""); pc != nil {
			pc.response <- result{err: frame.Err}
			return
		}
		c.logger.Warn("undecodable message with no pending call", "error", frame.Err)
		return
	}

	var resp protocol.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		if pc := c.claim(peekID(frame.Payload)); pc != nil {
			pc.response <- result{err: err}
		}
		return
	}

	pc := c.claim(resp.ID)
	if pc == nil {
		c.logger.Warn("dropping unsolicited response", "id", resp.ID)
		return
	}
	pc.response <- result{resp: &resp}
}

// shutdown marks the connection dead and fails every pending call.
func (c *conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
		_ = c.rwc.Close()
	})
	c.drainPending()
}

func (c *conn) drainPending() {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingCall)
	c.order = nil
	c.pendingMu.Unlock()

	for id, pc := range pending {
		c.logger.Debug("failing pending call", "id", id)
		pc.response <- result{err: ErrDisconnected}
	}
}

func (c *conn) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func peekID(payload []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &probe)
	return probe.ID
}
