package client

import "errors"

var (
	// ErrDisconnected fails calls that were pending when the host went away,
	// and calls made on a Disconnected client without auto-connect.
	ErrDisconnected = errors.New("connection lost")

	// ErrRequestTimeout is returned when no response arrives in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// RemoteError carries the error string of a {success:false} response.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
