// Package netclient wraps resty with the conventions every provider
// adapter shares: a per-request timeout, an X-Request-ID header, rate
// limit hint parsing and classification of transport failures into
// offline, timeout and HTTP status errors.
package netclient
