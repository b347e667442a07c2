package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/weburl"
)

const (
	// DefaultDialTimeout bounds TCP connect and TLS handshake.
	DefaultDialTimeout = 30 * time.Second
	// DefaultUserAgent is sent when the caller supplies none.
	DefaultUserAgent = "riva/1.2"

	// probeTimeout bounds the idle-connection liveness peek.
	probeTimeout = 20 * time.Millisecond
)

// PooledConn is an HTTP/1.1 socket plus its buffered reader. The reader
// travels with the socket through the pool so bytes it already consumed
// are not lost across reuses.
type PooledConn struct {
	net.Conn
	br *bufio.Reader
}

// NewPooledConn wraps an established socket for pooling.
func NewPooledConn(conn net.Conn) *PooledConn {
	return &PooledConn{Conn: conn, br: bufio.NewReader(conn)}
}

// Reader returns the buffered reader bound to this socket.
func (p *PooledConn) Reader() *bufio.Reader { return p.br }

// Alive probes the idle socket with a short read deadline. A timeout means
// the peer is quiet and the socket usable; EOF, an error, or unsolicited
// bytes all mean the handle is dead for reuse.
func (p *PooledConn) Alive() bool {
	if p.Conn == nil {
		return false
	}
	if p.br.Buffered() > 0 {
		return false
	}
	if err := p.Conn.SetReadDeadline(time.Now().Add(probeTimeout)); err != nil {
		return false
	}
	defer p.Conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	one := make([]byte, 1)
	_, err := p.Conn.Read(one)
	return errors.Is(err, os.ErrDeadlineExceeded)
}

var _ cache.Conn = (*PooledConn)(nil)

// HTTP1Client performs GET requests with hand-serialized HTTP/1.1 framing
// over sockets shared through the connection pool.
type HTTP1Client struct {
	pool        *cache.ConnectionCache
	userAgent   string
	dialTimeout time.Duration
	tlsConfig   *tls.Config
	strict      bool
}

// HTTP1Option configures an HTTP1Client.
type HTTP1Option func(*HTTP1Client)

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTP1Option {
	return func(c *HTTP1Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) HTTP1Option {
	return func(c *HTTP1Client) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithTLSConfig supplies a TLS configuration for https URLs.
func WithTLSConfig(cfg *tls.Config) HTTP1Option {
	return func(c *HTTP1Client) { c.tlsConfig = cfg }
}

// WithStrictServerErrors makes status >= 500 a hard failure instead of a
// rendered error page.
func WithStrictServerErrors(strict bool) HTTP1Option {
	return func(c *HTTP1Client) { c.strict = strict }
}

// NewHTTP1Client creates a client that checks connections out of pool.
func NewHTTP1Client(pool *cache.ConnectionCache, opts ...HTTP1Option) *HTTP1Client {
	c := &HTTP1Client{
		pool:        pool,
		userAgent:   DefaultUserAgent,
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs a GET for u. In raw mode the response carries the verbatim
// status line, headers and body for view-source display.
func (c *HTTP1Client) Do(ctx context.Context, u *weburl.URL, rawMode bool) (*Response, error) {
	key, err := u.Key()
	if err != nil {
		return nil, err
	}

	pc, reused := c.checkout(ctx, key)
	if !reused {
		pc, err = c.dial(ctx, u, key)
		if err != nil {
			return nil, err
		}
	}

	resp, reusable, err := c.roundTrip(ctx, pc, u, rawMode)
	if err != nil {
		// Unknown socket state: never leak it back into the pool.
		_ = pc.Close()
		return nil, err
	}

	if reusable {
		c.pool.Store(key, pc)
	} else {
		_ = pc.Close()
	}

	if resp.StatusCode >= 400 {
		log.Printf("http1: HTTP %d %s for %s", resp.StatusCode, resp.StatusMessage, u.Raw)
		if c.strict && resp.StatusCode >= 500 {
			return nil, &ServerError{StatusCode: resp.StatusCode, Status: resp.StatusMessage}
		}
	}
	return resp, nil
}

// checkout asks the pool for a live socket under the request key.
func (c *HTTP1Client) checkout(ctx context.Context, key weburl.Key) (*PooledConn, bool) {
	if err := ctx.Err(); err != nil {
		return nil, false
	}
	conn, ok := c.pool.Get(key)
	if !ok {
		return nil, false
	}
	pc, ok := conn.(*PooledConn)
	if !ok {
		// A handle of the wrong protocol under this key is an integration
		// bug; close it loudly rather than use it.
		log.Printf("http1: unexpected %T pooled under %s, closing", conn, key)
		_ = conn.Close()
		return nil, false
	}
	return pc, true
}

func (c *HTTP1Client) dial(ctx context.Context, u *weburl.URL, key weburl.Key) (*PooledConn, error) {
	addr := net.JoinHostPort(key.Host, strconv.Itoa(int(key.Port)))
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}

	if key.Scheme == "https" {
		cfg := c.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{MinVersion: tls.VersionTLS12}
		} else {
			cfg = cfg.Clone()
		}
		if cfg.ServerName == "" {
			cfg.ServerName = key.Host
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		return NewPooledConn(tlsConn), nil
	}
	return NewPooledConn(conn), nil
}

// roundTrip writes one request and decodes one response. It reports
// whether the socket may be pooled afterwards.
func (c *HTTP1Client) roundTrip(ctx context.Context, pc *PooledConn, u *weburl.URL, rawMode bool) (*Response, bool, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := pc.SetDeadline(deadline); err != nil {
			return nil, false, err
		}
		defer pc.SetDeadline(time.Time{}) //nolint:errcheck
	}

	if _, err := io.WriteString(pc, c.serializeRequest(u)); err != nil {
		return nil, false, &ConnectError{Addr: u.Host, Err: err}
	}

	br := pc.Reader()

	statusLine, err := br.ReadString('\n')
	if err != nil {
		return nil, false, &ProtocolError{Reason: "reading status line", Err: err}
	}
	resp := &Response{Headers: make(map[string]string)}
	if err := parseStatusLine(statusLine, resp); err != nil {
		return nil, false, err
	}

	var (
		rawHeaders    strings.Builder
		contentLength = -1
		forceClose    bool
	)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, false, &ProtocolError{Reason: "reading headers", Err: err}
		}
		if line == "\r\n" || line == "\n" {
			break
		}
		rawHeaders.WriteString(line)

		name, value, ok := strings.Cut(strings.TrimRight(line, "\r\n"), ":")
		if !ok {
			log.Printf("http1: skipping malformed header line %q", line)
			continue
		}
		name = strings.ToLower(name)
		value = strings.TrimSpace(value)
		resp.Headers[name] = value

		switch name {
		case "content-length":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, false, &ProtocolError{Reason: "invalid Content-Length", Line: line}
			}
			contentLength = n
		case "connection":
			if strings.EqualFold(value, "close") {
				forceClose = true
			}
		}
	}

	var body []byte
	if contentLength >= 0 {
		body = make([]byte, contentLength)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, false, &ProtocolError{Reason: "reading body", Err: err}
		}
	} else {
		// No declared length: the response is framed by EOF and the
		// socket cannot be reused safely.
		body, err = io.ReadAll(br)
		if err != nil {
			return nil, false, &ProtocolError{Reason: "reading body to EOF", Err: err}
		}
		forceClose = true
	}
	resp.Body = body

	if rawMode {
		resp.Raw = statusLine + rawHeaders.String() + "\r\n" + string(body)
	}
	return resp, !forceClose, nil
}

// serializeRequest builds the request in the exact wire format: CRLF line
// endings, canonical header casing on output.
func (c *HTTP1Client) serializeRequest(u *weburl.URL) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	b.WriteString("Connection: keep-alive\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", c.userAgent)
	if auth := u.BasicAuth(); auth != "" {
		fmt.Fprintf(&b, "Authorization: %s\r\n", auth)
	}
	b.WriteString("\r\n")
	return b.String()
}

func parseStatusLine(line string, resp *Response) error {
	parts := strings.SplitN(strings.TrimRight(line, "\r\n"), " ", 3)
	if len(parts) < 2 {
		return &ProtocolError{Reason: "malformed status line", Line: line}
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return &ProtocolError{Reason: "non-numeric status", Line: line}
	}
	// The peer's wire version is reported as-is; an HTTP/1.0 answer to
	// an HTTP/1.1 request must not be relabeled.
	resp.Proto = parts[0]
	resp.StatusCode = code
	if len(parts) == 3 {
		resp.StatusMessage = strings.TrimSpace(parts[2])
	}
	return nil
}
