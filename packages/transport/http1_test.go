package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/weburl"
)

// startServer runs handler for every accepted connection until the
// listener closes.
func startServer(t *testing.T, handler func(net.Conn)) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(conn)
		}
	}()
	return ln
}

// readRequest consumes one request's header block off the wire.
func readRequest(conn net.Conn) ([]string, error) {
	br := bufio.NewReader(conn)
	var lines []string
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		if line == "\r\n" {
			return lines, nil
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

func parseURL(t *testing.T, addr net.Addr, path string) *weburl.URL {
	t.Helper()
	u, err := weburl.Parse(fmt.Sprintf("http://%s%s", addr, path))
	require.NoError(t, err)
	return u
}

func TestHTTP1ContentLengthRoundTrip(t *testing.T) {
	requests := make(chan []string, 1)
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		lines, err := readRequest(conn)
		if err != nil {
			return
		}
		requests <- lines
		body := "<html>hello</html>"
		fmt.Fprintf(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\nContent-Length: %d\r\n\r\n%s", len(body), body)
		// Hold the socket open so the client may pool it.
		time.Sleep(200 * time.Millisecond)
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool, WithUserAgent("riva-test/1.0"))

	u := parseURL(t, ln.Addr(), "/hello")
	resp, err := client.Do(context.Background(), u, false)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "OK", resp.StatusMessage)
	assert.Equal(t, "<html>hello</html>", resp.BodyString())
	assert.Equal(t, "text/html", resp.Header("Content-Type"))

	lines := <-requests
	assert.Equal(t, "GET /hello HTTP/1.1", lines[0])
	assert.Contains(t, lines, "Connection: keep-alive")
	assert.Contains(t, lines, "User-Agent: riva-test/1.0")
	assert.Contains(t, lines, fmt.Sprintf("Host: %s", u.Host))

	assert.Equal(t, 1, pool.Size(), "keep-alive socket should be pooled")
}

func TestHTTP1ConnectionReuse(t *testing.T) {
	var accepts atomic.Int32
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		accepts.Add(1)
		for {
			if _, err := readRequest(conn); err != nil {
				return
			}
			fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
		}
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool)
	u := parseURL(t, ln.Addr(), "/")

	for i := 0; i < 3; i++ {
		resp, err := client.Do(context.Background(), u, false)
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.BodyString())
	}

	stats := pool.Snapshot()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int32(1), accepts.Load(), "all requests should share one socket")
}

func TestHTTP1ConnectionCloseNotPooled(t *testing.T) {
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readRequest(conn); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nConnection: close\r\nContent-Length: 3\r\n\r\nbye")
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool)

	resp, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
	require.NoError(t, err)
	assert.Equal(t, "bye", resp.BodyString())
	assert.Equal(t, 0, pool.Size(), "Connection: close forbids reuse")
}

func TestHTTP1NoContentLengthReadsToEOF(t *testing.T) {
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readRequest(conn); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n\r\nstreamed without a length")
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool)

	resp, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
	require.NoError(t, err)
	assert.Equal(t, "streamed without a length", resp.BodyString())
	assert.Equal(t, 0, pool.Size(), "EOF-framed response forbids reuse")
}

func TestHTTP1RawMode(t *testing.T) {
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readRequest(conn); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 200 OK\r\nContent-Length: 4\r\nX-Demo: yes\r\n\r\nbody")
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool)

	resp, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, resp.Raw, "X-Demo: yes\r\n")
	assert.True(t, strings.HasSuffix(resp.Raw, "\r\n\r\nbody"))
}

func TestHTTP1ServerErrorModes(t *testing.T) {
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readRequest(conn); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.1 503 Service Unavailable\r\nContent-Length: 5\r\n\r\nsorry")
	})

	pool := cache.New()
	defer pool.CloseAll()

	t.Run("lenient returns the error page", func(t *testing.T) {
		client := NewHTTP1Client(pool)
		resp, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
		require.NoError(t, err)
		assert.Equal(t, 503, resp.StatusCode)
		assert.Equal(t, "sorry", resp.BodyString())
	})

	t.Run("strict fails hard", func(t *testing.T) {
		client := NewHTTP1Client(pool, WithStrictServerErrors(true))
		_, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
		var serr *ServerError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, 503, serr.StatusCode)
	})
}

func TestHTTP1MalformedResponses(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"garbage status line", "NOPE\r\n\r\n"},
		{"non-numeric status", "HTTP/1.1 abc OK\r\n\r\n"},
		{"bad content length", "HTTP/1.1 200 OK\r\nContent-Length: many\r\n\r\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ln := startServer(t, func(conn net.Conn) {
				defer conn.Close()
				if _, err := readRequest(conn); err != nil {
					return
				}
				fmt.Fprint(conn, tc.response)
			})

			pool := cache.New()
			defer pool.CloseAll()
			client := NewHTTP1Client(pool)

			_, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 0, pool.Size())
		})
	}
}

func TestHTTP1DialFailure(t *testing.T) {
	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool, WithDialTimeout(500*time.Millisecond))

	u, err := weburl.Parse("http://127.0.0.1:1/unreachable")
	require.NoError(t, err)

	_, err = client.Do(context.Background(), u, false)
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
}

func TestPooledConnAlive(t *testing.T) {
	t.Run("quiet peer is alive", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()
		pc := NewPooledConn(client)
		defer pc.Close()
		assert.True(t, pc.Alive())
	})

	t.Run("closed peer is dead", func(t *testing.T) {
		ln := startServer(t, func(conn net.Conn) { conn.Close() })
		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		pc := NewPooledConn(conn)
		defer pc.Close()

		assert.Eventually(t, func() bool { return !pc.Alive() },
			time.Second, 10*time.Millisecond)
	})

	t.Run("unread buffered bytes are dead", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()
		pc := NewPooledConn(client)
		defer pc.Close()

		go func() {
			io.WriteString(server, "leftover")
		}()
		// Pull a byte into the buffer so Buffered() sees the residue.
		b, err := pc.Reader().ReadByte()
		require.NoError(t, err)
		require.NoError(t, pc.Reader().UnreadByte())
		_ = b

		assert.False(t, pc.Alive())
	})
}

func TestParseStatusLineMessageOptional(t *testing.T) {
	resp := &Response{}
	require.NoError(t, parseStatusLine("HTTP/1.1 204\r\n", resp))
	assert.Equal(t, "HTTP/1.1", resp.Proto)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Empty(t, resp.StatusMessage)
}

func TestHTTP1ReportsWireVersion(t *testing.T) {
	ln := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		if _, err := readRequest(conn); err != nil {
			return
		}
		fmt.Fprint(conn, "HTTP/1.0 200 OK\r\nContent-Length: 3\r\n\r\nold")
	})

	pool := cache.New()
	defer pool.CloseAll()
	client := NewHTTP1Client(pool)

	resp, err := client.Do(context.Background(), parseURL(t, ln.Addr(), "/"), false)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.0", resp.Proto, "the peer's version is not relabeled")
	assert.Equal(t, "old", resp.BodyString())
}

func TestResponseHeaderLookupIsCaseInsensitive(t *testing.T) {
	resp := &Response{Headers: map[string]string{"content-type": "text/html"}}
	assert.Equal(t, "text/html", resp.Header("Content-Type"))
	assert.Equal(t, "", resp.Header("missing"))
}
