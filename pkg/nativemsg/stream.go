package nativemsg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const readChunkSize = 32 * 1024

// Writer sends framed messages. Each message is written with a single Write
// call under a mutex so concurrent senders never interleave.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send marshals v and writes it as one framed message.
func (w *Writer) Send(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	return w.write(frame)
}

// SendRaw writes an already serialized JSON payload.
func (w *Writer) SendRaw(body []byte) error {
	return w.write(EncodeRaw(body))
}

func (w *Writer) write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("writing native message: %w", err)
	}
	return nil
}

// Reader decodes framed messages from an io.Reader.
type Reader struct {
	r       io.Reader
	dec     *Decoder
	logger  *slog.Logger
	errMu   sync.Mutex
	lastErr error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxMessageSize overrides DefaultMaxMessageSize.
func WithMaxMessageSize(n uint32) ReaderOption {
	return func(r *Reader) {
		r.dec = NewDecoder(n)
	}
}

// WithLogger sets the logger used for stream diagnostics.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{
		r:      r,
		dec:    NewDecoder(0),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// Frames starts a goroutine that reads until EOF, a read error, or ctx is
// done, delivering frames in arrival order. The channel is closed when the
// stream ends; Err then reports why (nil for a clean EOF).
func (r *Reader) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame)
	go func() {
		defer close(out)
		r.setErr(r.pump(ctx, out))
	}()
	return out
}

// Err returns the terminal stream error once the Frames channel is closed.
func (r *Reader) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.lastErr
}

func (r *Reader) setErr(err error) {
	r.errMu.Lock()
	r.lastErr = err
	r.errMu.Unlock()
}

func (r *Reader) pump(ctx context.Context, out chan<- Frame) error {
	chunk := make([]byte, readChunkSize)
	for {
		n, readErr := r.r.Read(chunk)
		if n > 0 {
			frames, err := r.dec.Feed(chunk[:n])
			for _, f := range frames {
				select {
				case out <- f:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err != nil {
				r.logger.Error("native message stream corrupted", "error", err)
				return err
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if buffered := r.dec.Buffered(); buffered > 0 {
					r.logger.Warn("stream closed with partial message", "buffered_bytes", buffered)
					return io.ErrUnexpectedEOF
				}
				return nil
			}
			return fmt.Errorf("reading native messages: %w", readErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
