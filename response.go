package attohttpc

import (
	"io"
	"mime"
	"net/url"

	"github.com/dbdr/attohttpc/bodyio"
	"github.com/dbdr/attohttpc/header"
	"github.com/dbdr/attohttpc/transport"
	"github.com/dbdr/attohttpc/wire"
)

// Response is a fully parsed response head with its body pipeline still bound
// to the connection that produced it. It owns that connection exclusively:
// reading the body to EOF or calling Close releases it. There is no
// connection reuse, so cleanup is strictly per-response.
type Response struct {
	// Status is the numeric status code, Reason its phrase (not
	// semantically used by this package).
	Status int
	Reason string

	// Headers holds the response header fields.
	Headers header.Headers

	// Trailers is filled after a chunked body has been fully read.
	Trailers header.Headers

	// URL is the final URL, after redirects.
	URL *url.URL

	conn    transport.Conn
	body    io.Reader
	opts    Options
	drained bool
}

var _ io.ReadCloser = (*Response)(nil)

// Read streams decoded body bytes. Reaching EOF closes the underlying
// connection; reads after that keep returning io.EOF, never an error.
func (r *Response) Read(p []byte) (n int, err error) {
	if r.drained {
		return 0, io.EOF
	}

	n, err = r.body.Read(p)
	if err == io.EOF {
		r.drained = true
		r.conn.Close()
	}

	return n, err
}

// Close releases the underlying connection. Unread body bytes are discarded
// with it. Idempotent.
func (r *Response) Close() error {
	return r.conn.Close()
}

// Bytes drains the body fully. On an already-drained body it returns an empty
// slice, never an error, and never re-fetches.
func (r *Response) Bytes() ([]byte, error) {
	b, err := bodyio.ReadAll(r, r.opts.Decode.MaxBodySize)
	if err != nil {
		r.conn.Close()
		return nil, err
	}
	return b, nil
}

// Text drains the body and decodes it using the charset named by
// Content-Type (falling back to the configured default, then UTF-8).
func (r *Response) Text() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}

	return bodyio.DecodeText(b, r.charset())
}

func (r *Response) charset() string {
	if ct, ok := r.Headers.Get("Content-Type"); ok {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			if cs, ok := params["charset"]; ok {
				return cs
			}
		}
	}

	return r.opts.Decode.DefaultCharset
}

// setTrailers stores trailer fields delivered by the chunked decoder.
func (r *Response) setTrailers(fields []wire.Field) {
	trailers := header.New()
	for _, f := range fields {
		trailers.Add(string(f.Name), string(f.Value))
	}
	r.Trailers = trailers
}

func (r *Response) isRedirect() bool {
	switch r.Status {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}
