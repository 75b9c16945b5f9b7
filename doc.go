// Package attohttpc is a minimal, synchronous HTTP/1.1 client: it builds
// requests, opens a plain or TLS connection per request, serializes the
// request onto the wire, parses the response head, and exposes the body as a
// framed, decodable byte stream with transparent chunked decoding,
// decompression and charset handling.
//
// There is no connection pooling, HTTP/2, pipelining, authentication or proxy
// support. Every request rides its own connection, closed once the body is
// drained or the response is closed.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package attohttpc
