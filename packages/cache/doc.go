// Package cache implements the connection pool shared by the HTTP/1.1 and
// HTTP/2 transports.
//
// The pool is a size-bounded, LRU-ordered map from connection keys to live
// transport handles. Entries expire after a wall-clock TTL enforced both on
// access and by a background sweeper. Handles are liveness-probed before
// they are handed out and before they are accepted for storage, so a dead
// socket is never returned to a caller and never counted against the bound.
//
// One mutex guards the ordered map and every metric counter, so entries and
// metrics always change atomically together. The liveness probe runs while
// that mutex is held; this serializes pool operations behind probe I/O
// latency and is kept as an explicit simplicity/throughput tradeoff.
package cache
