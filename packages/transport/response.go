package transport

import "strings"

// Response holds a decoded HTTP response from either transport.
type Response struct {
	StatusCode    int
	StatusMessage string
	Proto         string            // "HTTP/1.1" or "HTTP/2"
	Headers       map[string]string // lower-cased keys, last write wins
	Body          []byte

	// Raw is the verbatim status line + headers + body, populated only in
	// view-source mode.
	Raw string
}

// Header returns a header value by case-insensitive name.
func (r *Response) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// BodyString returns the body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}
