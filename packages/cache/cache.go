package cache

import (
	"container/list"
	"log"
	"sync"
	"time"

	"github.com/nukri060/riva/packages/weburl"
)

const (
	// DefaultTimeout is the pool entry TTL; the sweeper runs at half this.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxPoolSize bounds the number of live cached handles.
	DefaultMaxPoolSize = 5
)

// Conn is the closed set of handle types the pool manages. The pool never
// inspects the concrete type; transports provide their own probe semantics.
type Conn interface {
	// Alive reports whether the handle can still carry a request. It may
	// perform a short, deadline-bound I/O probe.
	Alive() bool
	Close() error
}

type entry struct {
	key      weburl.Key
	conn     Conn
	lastUsed time.Time
	created  time.Time
}

// ConnectionCache is a thread-safe LRU pool of idle transport handles.
//
// It is a cache, not a checkout system: Get hands back a handle without
// reserving it, and the caller is responsible for either returning it via
// Store or closing it. At most one live entry exists per key.
type ConnectionCache struct {
	mu      sync.Mutex
	entries map[weburl.Key]*list.Element
	order   *list.List // front = most recently used
	metrics Metrics

	timeout       time.Duration
	maxPoolSize   int
	enableMetrics bool

	closed  bool
	stopCh  chan struct{}
	sweepWG sync.WaitGroup

	now func() time.Time // injectable for TTL tests
}

// Option configures a ConnectionCache.
type Option func(*ConnectionCache)

// WithTimeout sets the entry TTL. Values <= 0 keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *ConnectionCache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxPoolSize bounds the pool. Values <= 0 keep the default.
func WithMaxPoolSize(n int) Option {
	return func(c *ConnectionCache) {
		if n > 0 {
			c.maxPoolSize = n
		}
	}
}

// WithMetrics toggles counter collection.
func WithMetrics(enabled bool) Option {
	return func(c *ConnectionCache) {
		c.enableMetrics = enabled
	}
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(c *ConnectionCache) {
		c.now = now
	}
}

// New creates a pool and starts its background sweeper.
func New(opts ...Option) *ConnectionCache {
	c := &ConnectionCache{
		entries:       make(map[weburl.Key]*list.Element),
		order:         list.New(),
		timeout:       DefaultTimeout,
		maxPoolSize:   DefaultMaxPoolSize,
		enableMetrics: true,
		stopCh:        make(chan struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics.MaxSize = c.maxPoolSize

	c.sweepWG.Add(1)
	go c.sweepLoop()

	return c
}

// Get returns the cached handle for key when one exists, is younger than
// the TTL and passes its liveness probe. Stale or dead entries are closed
// and removed before the miss is reported; a zombie handle is never
// returned. On a hit the entry becomes most recently used.
func (c *ConnectionCache) Get(key weburl.Key) (Conn, bool) {
	if err := key.Validate(); err != nil {
		// A bad key here is a caller bug, not a miss.
		log.Printf("cache: rejected invalid key %s: %v", key, err)
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		if c.enableMetrics {
			c.metrics.Misses++
		}
		return nil, false
	}

	e := el.Value.(*entry)
	if c.now().Sub(e.lastUsed) < c.timeout && e.conn.Alive() {
		c.order.MoveToFront(el)
		if c.enableMetrics {
			c.metrics.Hits++
		}
		return e.conn, true
	}

	// Stale or dead: evict before reporting the miss.
	c.removeLocked(el)
	if c.enableMetrics {
		c.metrics.Misses++
		c.metrics.FailedConnections++
	}
	return nil, false
}

// Store accepts a handle for key. An existing entry for the same key is
// closed and replaced; at capacity the least recently used entry is evicted
// before the new one is counted, so the bound is never transiently
// exceeded. A handle that fails its probe is rejected and nothing changes.
func (c *ConnectionCache) Store(key weburl.Key, conn Conn) bool {
	if err := key.Validate(); err != nil {
		log.Printf("cache: rejected invalid key %s: %v", key, err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = conn.Close()
		return false
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		if e.conn == conn {
			// Returning the handle Get handed out: refresh, don't replace.
			if !conn.Alive() {
				c.removeLocked(el)
				if c.enableMetrics {
					c.metrics.FailedConnections++
				}
				return false
			}
			e.lastUsed = c.now()
			c.order.MoveToFront(el)
			return true
		}
		c.removeLocked(el)
	}
	if c.order.Len() >= c.maxPoolSize {
		c.evictOldestLocked()
	}

	if !conn.Alive() {
		if c.enableMetrics {
			c.metrics.FailedConnections++
		}
		return false
	}

	now := c.now()
	e := &entry{key: key, conn: conn, lastUsed: now, created: now}
	c.entries[key] = c.order.PushFront(e)
	if c.enableMetrics {
		c.metrics.Size = c.order.Len()
		c.metrics.TotalConnections++
	}
	return true
}

// CloseAll stops the sweeper and closes every cached handle. Idempotent.
func (c *ConnectionCache) CloseAll() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.stopCh)
	c.mu.Unlock()

	c.sweepWG.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		c.removeLocked(el)
		el = next
	}
}

// Snapshot returns the current metrics. Pure read under the lock.
func (c *ConnectionCache) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	m.Size = c.order.Len()
	m.HitRatio = m.hitRatio()
	return m
}

// Size returns the number of cached entries.
func (c *ConnectionCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// sweepLoop evicts expired entries on a fixed period of timeout/2, under
// the same lock as every other mutation.
func (c *ConnectionCache) sweepLoop() {
	defer c.sweepWG.Done()

	ticker := time.NewTicker(c.timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *ConnectionCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if now.Sub(e.lastUsed) > c.timeout {
			log.Printf("cache: expired connection removed: %s", e.key)
			c.removeLocked(el)
			if c.enableMetrics {
				c.metrics.Evictions++
			}
		}
		el = prev
	}
}

// evictOldestLocked drops the least recently used entry. Caller holds mu.
func (c *ConnectionCache) evictOldestLocked() {
	if back := c.order.Back(); back != nil {
		c.removeLocked(back)
		if c.enableMetrics {
			c.metrics.Evictions++
		}
	}
}

// removeLocked closes and removes an entry, folding its lifetime into the
// running average. Caller holds mu.
func (c *ConnectionCache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)

	if err := e.conn.Close(); err != nil {
		log.Printf("cache: error closing connection for %s: %v", e.key, err)
	}

	if c.enableMetrics && c.metrics.TotalConnections > 0 {
		lifetime := c.now().Sub(e.created).Seconds()
		n := float64(c.metrics.TotalConnections)
		c.metrics.AvgConnectionLifetime = (c.metrics.AvgConnectionLifetime*(n-1) + lifetime) / n
	}
	if c.enableMetrics {
		c.metrics.Size = c.order.Len()
	}
}
