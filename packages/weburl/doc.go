// Package weburl parses browser-style URL strings into typed descriptors.
//
// Supported schemes are http, https, file, data:text/html and the
// view-source: wrapper. Bare paths and Windows drive paths are treated as
// file URLs. For network schemes the parser produces a connection Key
// (host, port, scheme) used by the connection cache.
package weburl
