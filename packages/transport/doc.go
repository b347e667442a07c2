// Package transport speaks HTTP/1.1 and HTTP/2 over raw sockets obtained
// from, and returned to, the connection cache.
//
// The HTTP/1.1 side serializes the request line and headers by hand and
// parses the textual response framing. The HTTP/2 side drives a
// golang.org/x/net/http2 Framer with hpack header coding over a TLS
// connection negotiated to "h2" via ALPN. Both produce the same Response
// type and pool their connections under the same (host, port, scheme) key.
package transport
