package weburl

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Parse failure causes. Callers branch on these with errors.Is.
var (
	ErrInvalidFormat = errors.New("invalid URL format")
	ErrInvalidScheme = errors.New("unsupported URL scheme")
	ErrInvalidPort   = errors.New("invalid port")
)

// Default ports per scheme. Nil-port schemes have no network component.
var schemePorts = map[string]uint16{
	"http":  80,
	"https": 443,
}

// URL is a parsed URL descriptor. For view-source URLs only Scheme and
// Inner are populated; for file and data URLs only Scheme and Path.
type URL struct {
	Raw    string
	Scheme string
	Host   string
	Port   uint16
	Path   string
	Inner  *URL // set for view-source

	userinfo string // "user:pass" when present, empty otherwise
}

// Key identifies a pooled transport slot.
type Key struct {
	Host   string
	Port   uint16
	Scheme string
}

func (k Key) String() string {
	return fmt.Sprintf("%s://%s:%d", k.Scheme, k.Host, k.Port)
}

// Validate fails fast on key components the cache must never see.
func (k Key) Validate() error {
	if k.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidFormat)
	}
	if k.Port == 0 {
		return fmt.Errorf("%w: port 0", ErrInvalidPort)
	}
	if k.Scheme != "http" && k.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrInvalidScheme, k.Scheme)
	}
	return nil
}

// Parse turns a raw URL string into a typed descriptor.
//
// Precedence: view-source: wraps a recursively parsed inner URL;
// data:text/html, is inline content; path-like strings (backslash, drive
// letter, or no "://") become file URLs; everything else must carry a
// supported scheme.
func Parse(raw string) (*URL, error) {
	if len(raw) < 3 {
		return nil, fmt.Errorf("%w: URL too short", ErrInvalidFormat)
	}

	u := &URL{Raw: raw}

	switch {
	case strings.HasPrefix(raw, "view-source:"):
		inner, err := Parse(strings.TrimPrefix(raw, "view-source:"))
		if err != nil {
			return nil, fmt.Errorf("view-source inner URL: %w", err)
		}
		u.Scheme = "view-source"
		u.Inner = inner
		return u, nil

	case strings.HasPrefix(raw, "data:text/html,"):
		u.Scheme = "data"
		u.Path = strings.TrimPrefix(raw, "data:text/html,")
		return u, nil

	case isWindowsPath(raw):
		u.Scheme = "file"
		u.Path = raw
		return u, nil
	}

	if !strings.Contains(raw, "://") {
		return nil, fmt.Errorf("%w: missing scheme", ErrInvalidFormat)
	}

	scheme, rest, _ := strings.Cut(raw, "://")
	switch scheme {
	case "http", "https":
		u.Scheme = scheme
		if err := u.parseAuthority(rest); err != nil {
			return nil, err
		}
		return u, nil
	case "file":
		u.Scheme = "file"
		u.Path = strings.TrimLeft(rest, "/")
		if !strings.HasPrefix(u.Path, "/") && !isWindowsPath(u.Path) {
			u.Path = "/" + u.Path
		}
		return u, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidScheme, scheme)
	}
}

// parseAuthority splits "user:pass@host:port/path" after the scheme.
func (u *URL) parseAuthority(rest string) error {
	if at := strings.Index(rest, "@"); at >= 0 {
		u.userinfo = rest[:at]
		rest = rest[at+1:]
	}
	if len(rest) < 3 {
		return fmt.Errorf("%w: URL too short", ErrInvalidFormat)
	}

	hostport, path, found := strings.Cut(rest, "/")
	if found {
		u.Path = "/" + path
	} else {
		u.Path = "/"
	}

	host := hostport
	if h, p, ok := strings.Cut(hostport, ":"); ok {
		host = h
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 65535 {
			return fmt.Errorf("%w: %q", ErrInvalidPort, p)
		}
		u.Port = uint16(n)
	} else {
		u.Port = schemePorts[u.Scheme]
	}
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidFormat)
	}

	ascii, err := idna.Lookup.ToASCII(strings.ToLower(host))
	if err != nil {
		return fmt.Errorf("%w: host %q: %v", ErrInvalidFormat, host, err)
	}
	u.Host = ascii
	return nil
}

// Key returns the connection key for network URLs.
func (u *URL) Key() (Key, error) {
	k := Key{Host: u.Host, Port: u.Port, Scheme: u.Scheme}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

// BasicAuth returns the value for an Authorization header when the URL
// carried userinfo, or "" otherwise.
func (u *URL) BasicAuth() string {
	if u.userinfo == "" {
		return ""
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(u.userinfo))
}

// isWindowsPath reports whether the string looks like a Windows file path
// (backslashes or a drive-letter prefix).
func isWindowsPath(s string) bool {
	return strings.Contains(s, `\`) || (len(s) > 1 && s[1] == ':')
}
