package browser

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/core/config"
	"github.com/nukri060/riva/packages/history"
	"github.com/nukri060/riva/packages/metrics"
	"github.com/nukri060/riva/packages/transport"
	"github.com/nukri060/riva/packages/weburl"
)

// Result is one completed fetch.
type Result struct {
	URL      *weburl.URL
	Body     string
	Raw      string // populated for view-source fetches
	Response *transport.Response // nil for non-network schemes
	Protocol string
	Duration time.Duration
}

// Browser routes URLs to transports and local handlers. The connection
// pool is injected so several browsers can share one, and tests can
// bound its lifetime.
type Browser struct {
	cfg  *config.Config
	pool *cache.ConnectionCache
	h1   *transport.HTTP1Client
	h2   *transport.HTTP2Client

	store     *history.Store
	recorder  *metrics.Recorder
	tlsConfig *tls.Config

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Browser.
type Option func(*Browser)

// WithHistory attaches a visit log; nil disables recording.
func WithHistory(s *history.Store) Option {
	return func(b *Browser) { b.store = s }
}

// WithRecorder attaches a latency recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(b *Browser) { b.recorder = r }
}

// WithTLSConfig sets the base TLS configuration for both transports.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(b *Browser) { b.tlsConfig = cfg }
}

// New builds a browser over pool, configured per cfg.
func New(cfg *config.Config, pool *cache.ConnectionCache, opts ...Option) *Browser {
	b := &Browser{
		cfg:      cfg,
		pool:     pool,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.h1 = transport.NewHTTP1Client(pool,
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithStrictServerErrors(cfg.GetStrictServerErrors()),
		transport.WithTLSConfig(b.tlsConfig),
	)
	b.h2 = transport.NewHTTP2Client(pool,
		transport.WithH2UserAgent(cfg.UserAgent),
		transport.WithH2TLSConfig(b.tlsConfig),
	)
	return b
}

// Fetch resolves raw and returns its content.
func (b *Browser) Fetch(ctx context.Context, raw string) (*Result, error) {
	u, err := weburl.Parse(raw)
	if err != nil {
		return nil, err
	}
	return b.fetch(ctx, u, false)
}

func (b *Browser) fetch(ctx context.Context, u *weburl.URL, rawMode bool) (*Result, error) {
	start := time.Now()

	switch u.Scheme {
	case "view-source":
		inner, err := b.fetch(ctx, u.Inner, true)
		if err != nil {
			return nil, err
		}
		inner.URL = u
		inner.Body = inner.Raw
		return inner, nil

	case "data":
		body := u.Path
		if rawMode {
			return &Result{URL: u, Body: body, Raw: body, Protocol: "data", Duration: time.Since(start)}, nil
		}
		return &Result{URL: u, Body: body, Protocol: "data", Duration: time.Since(start)}, nil

	case "file":
		body, err := readLocalFile(u.Path)
		if err != nil {
			return nil, err
		}
		return &Result{URL: u, Body: body, Raw: body, Protocol: "file", Duration: time.Since(start)}, nil

	case "http", "https":
		return b.fetchNetwork(ctx, u, rawMode, start)

	default:
		return nil, fmt.Errorf("%w: %s", weburl.ErrInvalidScheme, u.Scheme)
	}
}

func (b *Browser) fetchNetwork(ctx context.Context, u *weburl.URL, rawMode bool, start time.Time) (*Result, error) {
	if b.cfg.RateLimit > 0 {
		if err := b.limiterFor(u.Host).Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := b.roundTrip(ctx, u, rawMode)
	duration := time.Since(start)

	if b.recorder != nil {
		b.recorder.Record(duration, err)
	}
	if err != nil {
		return nil, err
	}

	if b.store != nil {
		herr := b.store.Add(ctx, history.Entry{
			URL:      u.Raw,
			Status:   resp.StatusCode,
			Protocol: resp.Proto,
			Duration: duration,
		})
		if herr != nil {
			log.Printf("browser: recording visit: %v", herr)
		}
	}

	return &Result{
		URL:      u,
		Body:     resp.BodyString(),
		Raw:      resp.Raw,
		Response: resp,
		Protocol: resp.Proto,
		Duration: duration,
	}, nil
}

// roundTrip picks the transport. Forced protocols go straight through;
// under auto, https tries HTTP/2 first and falls back to HTTP/1.1 when
// the peer cannot speak it.
func (b *Browser) roundTrip(ctx context.Context, u *weburl.URL, rawMode bool) (*transport.Response, error) {
	switch {
	case b.cfg.Protocol == config.ProtocolHTTP2:
		return b.h2.Do(ctx, u, rawMode)

	case b.cfg.Protocol == config.ProtocolAuto && u.Scheme == "https":
		resp, err := b.h2.Do(ctx, u, rawMode)
		var cerr *transport.ConnectError
		if err != nil && errors.As(err, &cerr) {
			log.Printf("browser: HTTP/2 unavailable for %s, retrying over HTTP/1.1: %v", u.Host, err)
			return b.h1.Do(ctx, u, rawMode)
		}
		return resp, err

	default:
		return b.h1.Do(ctx, u, rawMode)
	}
}

func (b *Browser) limiterFor(host string) *rate.Limiter {
	b.limMu.Lock()
	defer b.limMu.Unlock()

	lim, ok := b.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(b.cfg.RateLimit), 1)
		b.limiters[host] = lim
	}
	return lim
}

// readLocalFile loads a file URL target as text. Content that is not
// valid UTF-8 is reinterpreted as latin-1 rather than rejected.
func readLocalFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("file not found: %s", path)
		case errors.Is(err, os.ErrPermission):
			return "", fmt.Errorf("permission denied: %s", path)
		default:
			if info, serr := os.Stat(path); serr == nil && info.IsDir() {
				return "", fmt.Errorf("path is a directory: %s", path)
			}
			return "", fmt.Errorf("error reading file %s: %w", path, err)
		}
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return decodeLatin1(data), nil
}

// decodeLatin1 maps each byte to the code point of the same value.
func decodeLatin1(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}
