package nativemsg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan Frame) []Frame {
	t.Helper()
	var out []Frame
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestReader_ChunkedPipe(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr)
	frames := r.Frames(context.Background())

	encoded := append(mustEncode(t, map[string]any{"n": 1}), mustEncode(t, map[string]any{"n": 2})...)
	go func() {
		// Deliver in 3-byte pieces so the header itself gets split.
		for i := 0; i < len(encoded); i += 3 {
			end := min(i+3, len(encoded))
			if _, err := pw.Write(encoded[i:end]); err != nil {
				return
			}
		}
		pw.Close()
	}()

	got := collect(t, frames)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"n":1}`, string(got[0].Payload))
	assert.JSONEq(t, `{"n":2}`, string(got[1].Payload))
	assert.NoError(t, r.Err())
}

func TestReader_PartialMessageAtEOF(t *testing.T) {
	encoded := mustEncode(t, map[string]any{"type": "GET_CONFIG"})
	r := NewReader(bytes.NewReader(encoded[:len(encoded)-2]))

	got := collect(t, r.Frames(context.Background()))
	assert.Empty(t, got)
	assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
}

func TestReader_TooLargeStopsStream(t *testing.T) {
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(header, 1024)
	r := NewReader(bytes.NewReader(header), WithMaxMessageSize(512))

	got := collect(t, r.Frames(context.Background()))
	assert.Empty(t, got)
	assert.True(t, errors.Is(r.Err(), ErrMessageTooLarge))
}

func TestReader_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := NewReader(pr)
	frames := r.Frames(ctx)

	encoded := mustEncode(t, map[string]any{"n": 1})
	go func() {
		_, _ = pw.Write(encoded)
	}()
	cancel()

	// The pending frame cannot be delivered after cancel; the channel must still close.
	done := make(chan struct{})
	go func() {
		for range frames {
		}
		close(done)
	}()
	pw.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frames channel did not close after cancel")
	}
}

func TestWriter_ConcurrentSendsDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	const senders = 20
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, w.Send(map[string]any{"i": i, "pad": bytes.Repeat([]byte("x"), 512)}))
		}(i)
	}
	wg.Wait()

	d := NewDecoder(0)
	frames, err := d.Feed(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, senders)
	for _, f := range frames {
		assert.NoError(t, f.Err)
	}
	assert.Zero(t, d.Buffered())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriter_WriteError(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Send(map[string]any{"type": "GET_CONFIG"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestWriter_MarshalError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	err := w.Send(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing should be written on marshal failure")
}
