package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	xhttp2 "golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/weburl"
)

// maxClientStreamID is the largest stream id a client may allocate.
const maxClientStreamID = 1<<31 - 1

// Session is a single multiplexed HTTP/2 connection. Stream ids are odd,
// per-session monotonically increasing and never reused while the session
// lives.
type Session struct {
	mu sync.Mutex

	host string
	port uint16

	conn   net.Conn
	framer *xhttp2.Framer
	henc   *hpack.Encoder
	hbuf   bytes.Buffer

	nextStreamID uint32
	goaway       bool
}

// DialSession opens a TCP connection with Nagle disabled, performs the TLS
// handshake advertising h2 via ALPN and completes the HTTP/2 connection
// preface. A peer that negotiates anything but h2 is a hard failure;
// falling back to HTTP/1.1 is the dispatcher's decision, not this
// transport's.
func DialSession(ctx context.Context, host string, port uint16, tlsCfg *tls.Config, dialTimeout time.Duration) (*Session, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout}

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if tcp, ok := raw.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true) // low-latency framing
	}

	cfg := tlsCfg
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	cfg.NextProtos = []string{"h2"}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if proto := conn.ConnectionState().NegotiatedProtocol; proto != "h2" {
		_ = conn.Close()
		return nil, &ConnectError{Addr: addr, Err: fmt.Errorf("%w (negotiated %q)", ErrNoALPN, proto)}
	}

	s := &Session{
		host:         host,
		port:         port,
		conn:         conn,
		framer:       xhttp2.NewFramer(conn, conn),
		nextStreamID: 1,
	}
	s.henc = hpack.NewEncoder(&s.hbuf)
	s.framer.ReadMetaHeaders = hpack.NewDecoder(4096, nil)

	if _, err := io.WriteString(conn, xhttp2.ClientPreface); err != nil {
		_ = conn.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if err := s.framer.WriteSettings(); err != nil {
		_ = conn.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return s, nil
}

// Alive reports whether the session can still open a stream: the
// connection exists, no GOAWAY was received and the id space is not
// exhausted.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.goaway && s.nextStreamID <= maxClientStreamID
}

// Close sends a GOAWAY frame, flushes it and closes the socket. Internal
// state is cleared even when the I/O fails so the session is never
// double-closed or leaked.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	var err error
	if s.framer != nil {
		err = s.framer.WriteGoAway(0, xhttp2.ErrCodeNo, nil)
	}
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	s.conn = nil
	s.framer = nil
	s.henc = nil
	s.goaway = true
	return err
}

var _ cache.Conn = (*Session)(nil)

// buildHeaderBlock assembles the header list for a request: the four
// pseudo-headers first, then caller headers lower-cased in sorted order.
// Caller-supplied pseudo-headers (names starting with ':') are dropped so
// a caller can never inject one.
func buildHeaderBlock(method, path, authority string, headers map[string]string) []hpack.HeaderField {
	fields := []hpack.HeaderField{
		{Name: ":method", Value: strings.ToUpper(method)},
		{Name: ":path", Value: path},
		{Name: ":authority", Value: authority},
		{Name: ":scheme", Value: "https"},
	}

	names := make([]string, 0, len(headers))
	for name := range headers {
		if strings.HasPrefix(name, ":") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fields = append(fields, hpack.HeaderField{
			Name:  strings.ToLower(name),
			Value: headers[name],
		})
	}
	return fields
}

// sendRequest allocates the next stream id and writes the header frame.
// GET carries no body, so the stream is half-closed immediately.
func (s *Session) sendRequest(method, path string, headers map[string]string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.goaway {
		return 0, &ProtocolError{Reason: "session closed"}
	}
	if s.nextStreamID > maxClientStreamID {
		return 0, &ProtocolError{Reason: "stream id space exhausted"}
	}
	streamID := s.nextStreamID
	s.nextStreamID += 2

	s.hbuf.Reset()
	for _, f := range buildHeaderBlock(method, path, s.host, headers) {
		if err := s.henc.WriteField(f); err != nil {
			return 0, &ProtocolError{Reason: "encoding headers", StreamID: streamID, Err: err}
		}
	}

	err := s.framer.WriteHeaders(xhttp2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: s.hbuf.Bytes(),
		EndHeaders:    true,
		EndStream:     true,
	})
	if err != nil {
		return 0, &ProtocolError{Reason: "writing header frame", StreamID: streamID, Err: err}
	}
	return streamID, nil
}

// receiveResponse reads frames until the stream ends, acknowledging every
// DATA frame's byte count for flow control. A reset stream fails this
// request only; the session stays usable. A GOAWAY marks the session
// non-reusable.
func (s *Session) receiveResponse(streamID uint32) (*Response, error) {
	resp := &Response{Proto: "HTTP/2", Headers: make(map[string]string)}
	var body bytes.Buffer

	for {
		frame, err := s.framer.ReadFrame()
		if err != nil {
			return nil, &ProtocolError{Reason: "reading frame", StreamID: streamID, Err: err}
		}

		switch f := frame.(type) {
		case *xhttp2.MetaHeadersFrame:
			if f.StreamID != streamID {
				continue
			}
			for _, hf := range f.Fields {
				if hf.Name == ":status" {
					code, err := strconv.Atoi(hf.Value)
					if err != nil {
						return nil, &ProtocolError{Reason: "non-numeric :status", StreamID: streamID, Line: hf.Value}
					}
					resp.StatusCode = code
					continue
				}
				resp.Headers[strings.ToLower(hf.Name)] = hf.Value
			}
			if f.StreamEnded() {
				resp.Body = body.Bytes()
				return resp, nil
			}

		case *xhttp2.DataFrame:
			if f.StreamID != streamID {
				continue
			}
			data := f.Data()
			body.Write(data)
			if n := len(data); n > 0 {
				// Flow-control acknowledgment for the received bytes, on
				// both the stream and the connection window.
				if err := s.framer.WriteWindowUpdate(streamID, uint32(n)); err != nil {
					return nil, &ProtocolError{Reason: "window update", StreamID: streamID, Err: err}
				}
				if err := s.framer.WriteWindowUpdate(0, uint32(n)); err != nil {
					return nil, &ProtocolError{Reason: "window update", StreamID: streamID, Err: err}
				}
			}
			if f.StreamEnded() {
				resp.Body = body.Bytes()
				return resp, nil
			}

		case *xhttp2.RSTStreamFrame:
			if f.StreamID == streamID {
				return nil, &ProtocolError{
					Reason:   fmt.Sprintf("stream reset (%s)", f.ErrCode),
					StreamID: streamID,
				}
			}

		case *xhttp2.GoAwayFrame:
			s.mu.Lock()
			s.goaway = true
			s.mu.Unlock()
			if f.LastStreamID < streamID {
				return nil, &ProtocolError{
					Reason:   fmt.Sprintf("connection going away (%s)", f.ErrCode),
					StreamID: streamID,
				}
			}

		case *xhttp2.SettingsFrame:
			if !f.IsAck() {
				if err := s.framer.WriteSettingsAck(); err != nil {
					return nil, &ProtocolError{Reason: "settings ack", StreamID: streamID, Err: err}
				}
			}

		case *xhttp2.PingFrame:
			if !f.IsAck() {
				if err := s.framer.WritePing(true, f.Data); err != nil {
					return nil, &ProtocolError{Reason: "ping ack", StreamID: streamID, Err: err}
				}
			}
		}
	}
}

// HTTP2Client performs GET requests over pooled HTTP/2 sessions.
type HTTP2Client struct {
	pool        *cache.ConnectionCache
	userAgent   string
	dialTimeout time.Duration
	tlsConfig   *tls.Config
}

// HTTP2Option configures an HTTP2Client.
type HTTP2Option func(*HTTP2Client)

// WithH2UserAgent overrides the user-agent header.
func WithH2UserAgent(ua string) HTTP2Option {
	return func(c *HTTP2Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithH2DialTimeout bounds connection establishment.
func WithH2DialTimeout(d time.Duration) HTTP2Option {
	return func(c *HTTP2Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithH2TLSConfig supplies a base TLS configuration.
func WithH2TLSConfig(cfg *tls.Config) HTTP2Option {
	return func(c *HTTP2Client) { c.tlsConfig = cfg }
}

// NewHTTP2Client creates a client that shares sessions through pool.
func NewHTTP2Client(pool *cache.ConnectionCache, opts ...HTTP2Option) *HTTP2Client {
	c := &HTTP2Client{
		pool:        pool,
		userAgent:   DefaultUserAgent,
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs a GET for u over HTTP/2, reusing a pooled session when one
// is alive. A failed stream does not kill the session; only connection
// level failures do.
func (c *HTTP2Client) Do(ctx context.Context, u *weburl.URL, rawMode bool) (*Response, error) {
	key, err := u.Key()
	if err != nil {
		return nil, err
	}

	sess, ok := c.checkout(key)
	if !ok {
		sess, err = DialSession(ctx, key.Host, key.Port, c.tlsConfig, c.dialTimeout)
		if err != nil {
			return nil, err
		}
	}

	if deadline, ok := ctx.Deadline(); ok && sess.conn != nil {
		_ = sess.conn.SetDeadline(deadline)
		defer func() {
			if sess.conn != nil {
				_ = sess.conn.SetDeadline(time.Time{})
			}
		}()
	}

	headers := map[string]string{"user-agent": c.userAgent}
	if auth := u.BasicAuth(); auth != "" {
		headers["authorization"] = auth
	}

	streamID, err := sess.sendRequest("GET", u.Path, headers)
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	resp, err := sess.receiveResponse(streamID)
	if err != nil {
		var perr *ProtocolError
		// A reset stream is fatal for this request, not the session.
		if errors.As(err, &perr) && perr.StreamID == streamID && sess.Alive() {
			c.pool.Store(key, sess)
		} else {
			_ = sess.Close()
		}
		return nil, err
	}

	c.pool.Store(key, sess)

	if rawMode {
		resp.Raw = synthesizeRaw(resp)
	}
	if resp.StatusCode >= 400 {
		log.Printf("http2: HTTP %d for %s (stream %d)", resp.StatusCode, u.Raw, streamID)
	}
	return resp, nil
}

func (c *HTTP2Client) checkout(key weburl.Key) (*Session, bool) {
	conn, ok := c.pool.Get(key)
	if !ok {
		return nil, false
	}
	sess, ok := conn.(*Session)
	if !ok {
		log.Printf("http2: unexpected %T pooled under %s, closing", conn, key)
		_ = conn.Close()
		return nil, false
	}
	return sess, true
}

// synthesizeRaw renders an HTTP/2 response in text form for view-source.
// HTTP/2 has no textual framing, so this mirrors the HTTP/1.1 layout.
func synthesizeRaw(resp *Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/2 %d\r\n", resp.StatusCode)
	names := make([]string, 0, len(resp.Headers))
	for name := range resp.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s: %s\r\n", name, resp.Headers[name])
	}
	b.WriteString("\r\n")
	b.Write(resp.Body)
	return b.String()
}
