package nativemsg

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// HeaderSize is the length prefix size in bytes.
const HeaderSize = 4

// DefaultMaxMessageSize bounds a single declared payload length.
const DefaultMaxMessageSize = 64 << 20

// ErrMessageTooLarge is returned when a length prefix exceeds the decoder limit.
// The stream cannot be resynchronized after this.
var ErrMessageTooLarge = errors.New("native message exceeds maximum size")

// DecodeError reports a payload that was framed correctly but is not a JSON
// object. Framing is unaffected; the next message decodes normally.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding native message (%d bytes): %v", len(e.Payload), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Frame is one decoded message. Exactly one of Payload and Err is set.
type Frame struct {
	Payload json.RawMessage
	Err     error
}

// Encode frames v as JSON behind a little-endian length header.
func Encode(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling native message: %w", err)
	}
	return EncodeRaw(body), nil
}

// EncodeRaw frames an already serialized payload.
func EncodeRaw(body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out
}

// Decoder reassembles messages from arbitrarily split chunks.
// It is not safe for concurrent use.
type Decoder struct {
	buf []byte
	max uint32
}

// NewDecoder creates a decoder. A maxSize of 0 uses DefaultMaxMessageSize.
func NewDecoder(maxSize uint32) *Decoder {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Decoder{max: maxSize}
}

// Feed appends chunk to the internal buffer and returns every message that is
// now complete, in order. Incomplete trailing bytes stay buffered until the
// next call. The only error is ErrMessageTooLarge, after which the decoder
// must be discarded.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	d.buf = append(d.buf, chunk...)

	var (
		frames   []Frame
		consumed int
	)
	for len(d.buf)-consumed >= HeaderSize {
		n := binary.LittleEndian.Uint32(d.buf[consumed:])
		if n > d.max {
			return frames, fmt.Errorf("%w: declared %d bytes, limit %d", ErrMessageTooLarge, n, d.max)
		}
		end := consumed + HeaderSize + int(n)
		if len(d.buf) < end {
			break
		}

		payload := make([]byte, n)
		copy(payload, d.buf[consumed+HeaderSize:end])
		frames = append(frames, decodePayload(payload))
		consumed = end
	}

	if consumed > 0 {
		remaining := copy(d.buf, d.buf[consumed:])
		d.buf = d.buf[:remaining]
	}
	return frames, nil
}

// Buffered returns the number of bytes held for an incomplete message.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func decodePayload(payload []byte) Frame {
	trimmed := bytes.TrimSpace(payload)
	if !json.Valid(trimmed) {
		return Frame{Err: &DecodeError{Payload: payload, Err: errors.New("invalid JSON")}}
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Frame{Err: &DecodeError{Payload: payload, Err: errors.New("payload is not a JSON object")}}
	}
	return Frame{Payload: json.RawMessage(trimmed)}
}
