package transport

import (
	"errors"
	"fmt"
)

// ErrNoALPN is returned when a TLS peer does not negotiate h2.
var ErrNoALPN = errors.New("server does not support HTTP/2")

// ConnectError reports a socket or TLS failure while establishing a
// transport connection. Never retried by the transports themselves.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ProtocolError reports malformed framing: a bad status line, an
// unparseable header, or a reset HTTP/2 stream. Line carries the raw input
// and StreamID the affected stream (0 for HTTP/1.1).
type ProtocolError struct {
	Reason   string
	Line     string
	StreamID uint32
	Err      error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.StreamID != 0:
		return fmt.Sprintf("protocol error on stream %d: %s", e.StreamID, e.Reason)
	case e.Line != "":
		return fmt.Sprintf("protocol error: %s: %q", e.Reason, e.Line)
	default:
		return "protocol error: " + e.Reason
	}
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ServerError is returned for status >= 500 when the caller runs the
// HTTP/1.1 client in strict mode. The body is still attached.
type ServerError struct {
	StatusCode int
	Status     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: HTTP %d %s", e.StatusCode, e.Status)
}
