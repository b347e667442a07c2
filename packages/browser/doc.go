// Package browser dispatches URLs to the right fetch strategy.
//
// Network URLs go through the pooled HTTP/1.1 and HTTP/2 transports,
// view-source wraps another fetch in raw mode, and data and file URLs
// never touch the network. The browser also records visits and fetch
// latencies when a history store or recorder is attached.
package browser
