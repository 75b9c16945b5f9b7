package attohttpc

import (
	"bytes"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/dbdr/attohttpc/bodyio"
	"github.com/dbdr/attohttpc/header"
	"github.com/dbdr/attohttpc/transfer"
	"github.com/dbdr/attohttpc/wire"

	"github.com/pkg/errors"
)

type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyBytes
	bodyText
)

// Body is the request payload: empty, raw bytes, or text in some charset.
// Text bodies are encoded to wire bytes at prepare time.
type Body struct {
	kind    bodyKind
	bytes   []byte
	text    string
	charset string
}

func EmptyBody() Body         { return Body{} }
func BytesBody(b []byte) Body { return Body{kind: bodyBytes, bytes: b} }
func TextBody(s string) Body  { return Body{kind: bodyText, text: s, charset: "utf-8"} }

// TextBodyWith carries text to be sent in the given charset.
func TextBodyWith(s, charset string) Body {
	return Body{kind: bodyText, text: s, charset: charset}
}

// materialize returns the wire bytes and a Content-Type to set when the
// caller didn't set one.
func (b Body) materialize() (data []byte, contentType string, err error) {
	switch b.kind {
	case bodyEmpty:
		return nil, "", nil
	case bodyBytes:
		return b.bytes, "", nil
	default:
		data, err := bodyio.EncodeText(b.text, b.charset)
		if err != nil {
			return nil, "", err
		}
		return data, "text/plain; charset=" + b.charset, nil
	}
}

// RequestBuilder assembles a request step by step. All setters return the
// builder for chaining; errors are deferred to Prepare or Send.
type RequestBuilder struct {
	method  Method
	rawURL  string
	headers header.Headers
	params  [][2]string
	body    Body
	chunked bool
	opts    Options
}

// New starts a request with default options.
func New(method Method, rawURL string) *RequestBuilder {
	return &RequestBuilder{
		method:  method,
		rawURL:  rawURL,
		headers: header.New(),
		opts:    DefaultOptions(),
	}
}

// Header sets a header field, replacing previous values of the same name.
func (rb *RequestBuilder) Header(name, value string) *RequestBuilder {
	rb.headers.Set(name, value)
	return rb
}

// AddHeader appends a value, keeping previous ones (e.g. repeated Cookie).
func (rb *RequestBuilder) AddHeader(name, value string) *RequestBuilder {
	rb.headers.Add(name, value)
	return rb
}

// Param appends a query parameter. Parameters keep their insertion order on
// the wire.
func (rb *RequestBuilder) Param(key, value string) *RequestBuilder {
	rb.params = append(rb.params, [2]string{key, value})
	return rb
}

func (rb *RequestBuilder) Body(b Body) *RequestBuilder {
	rb.body = b
	return rb
}

func (rb *RequestBuilder) Bytes(b []byte) *RequestBuilder { return rb.Body(BytesBody(b)) }
func (rb *RequestBuilder) Text(s string) *RequestBuilder  { return rb.Body(TextBody(s)) }

// Chunked sends the body with the chunked transfer coding instead of a
// Content-Length.
func (rb *RequestBuilder) Chunked() *RequestBuilder {
	rb.chunked = true
	return rb
}

func (rb *RequestBuilder) Options(opts Options) *RequestBuilder {
	rb.opts = opts
	return rb
}

func (rb *RequestBuilder) FollowRedirects(follow bool) *RequestBuilder {
	rb.opts.Redirect.Follow = follow
	return rb
}

func (rb *RequestBuilder) MaxRedirects(max uint) *RequestBuilder {
	rb.opts.Redirect.Max = max
	return rb
}

func (rb *RequestBuilder) DangerAcceptInvalidCerts(accept bool) *RequestBuilder {
	rb.opts.TLS.DangerAcceptInvalidCerts = accept
	return rb
}

// Send prepares the request and runs it through the redirect engine.
func (rb *RequestBuilder) Send() (*Response, error) {
	prepared, err := rb.Prepare()
	if err != nil {
		return nil, err
	}
	return prepared.Send()
}

// Prepare validates the builder and produces an immutable request. The
// redirect engine derives new prepared requests from it instead of mutating
// it.
func (rb *RequestBuilder) Prepare() (*PreparedRequest, error) {
	if rb.method == MethodConnect {
		return nil, errors.Wrap(ErrMethodNotSupported, "CONNECT")
	}

	u, err := url.Parse(rb.rawURL)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidURL, "parsing %q: %s", rb.rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.Wrap(ErrInvalidURL, "url has no host")
	}

	appendParams(u, rb.params)

	headers := rb.headers.Clone()
	if err := validateHeaders(headers); err != nil {
		return nil, err
	}

	body, contentType, err := rb.body.materialize()
	if err != nil {
		return nil, err
	}
	if contentType != "" && !headers.Has("Content-Type") {
		headers.Set("Content-Type", contentType)
	}

	return &PreparedRequest{
		method:  rb.method,
		url:     u,
		headers: headers,
		body:    body,
		chunked: rb.chunked,
		opts:    rb.opts,
	}, nil
}

// PreparedRequest is an immutable request description, ready to serialize.
type PreparedRequest struct {
	method  Method
	url     *url.URL
	headers header.Headers
	body    []byte
	chunked bool
	opts    Options
}

func (pr *PreparedRequest) Method() Method { return pr.method }
func (pr *PreparedRequest) URL() *url.URL  { return pr.url }

// Serialize writes the request onto w: request line, derived and explicit
// headers, blank line, then the body. No other I/O happens here.
func (pr *PreparedRequest) Serialize(w io.Writer) error {
	fields := make([]wire.Field, 0, pr.headers.Len()+4)

	appendField := func(name, value string) {
		fields = append(fields, wire.Field{Name: []byte(name), Value: []byte(value)})
	}

	if !pr.headers.Has("Host") {
		appendField("Host", hostHeader(pr.url))
	}

	for _, f := range pr.headers.Fields() {
		appendField(f[0], f[1])
	}

	if !pr.headers.Has("Connection") {
		// No connection reuse: every response ends with a close.
		appendField("Connection", "close")
	}
	if !pr.opts.Decode.DisableCompression && !pr.headers.Has("Accept-Encoding") {
		appendField("Accept-Encoding", "gzip, deflate")
	}

	body := io.Reader(bytes.NewReader(pr.body))
	switch {
	case pr.chunked:
		appendField("Transfer-Encoding", transfer.CodingChunked)

		framed := bytes.NewBuffer(nil)
		cw := transfer.NewChunkedWriter(framed)
		if _, err := cw.Write(pr.body); err != nil {
			return errors.Wrap(err, "framing chunked body")
		}
		if err := cw.Close(); err != nil {
			return errors.Wrap(err, "framing chunked body")
		}
		body = framed
	case len(pr.body) > 0 || methodUsuallyHasBody(pr.method):
		appendField("Content-Length", strconv.Itoa(len(pr.body)))
	}

	enc := wire.NewRequestEncoder(w)
	err := enc.Encode(wire.Request{
		RequestLine: wire.RequestLine{
			Method:  string(pr.method),
			Target:  requestTarget(pr.url),
			Version: wire.Version11,
		},
		Fields: fields,
		Body:   body,
	})
	return errors.Wrap(err, "serializing request")
}

func methodUsuallyHasBody(m Method) bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	}
	return false
}

// requestTarget renders the origin-form target: path plus query.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.1
func requestTarget(u *url.URL) string {
	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return target
}

// hostHeader derives the Host value from the URL, omitting default ports.
func hostHeader(u *url.URL) string {
	host := u.Hostname()
	port := u.Port()

	switch {
	case port == "":
		return host
	case u.Scheme == "http" && port == "80":
		return host
	case u.Scheme == "https" && port == "443":
		return host
	}

	return host + ":" + port
}

func appendParams(u *url.URL, params [][2]string) {
	if len(params) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(u.RawQuery)
	for _, p := range params {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p[0]))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
	}

	u.RawQuery = sb.String()
}

// validateHeaders rejects names and values that could break message framing.
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.5
func validateHeaders(h header.Headers) error {
	for _, f := range h.Fields() {
		name, value := f[0], f[1]
		if name == "" || strings.ContainsAny(name, "\r\n\x00: \t") {
			return errors.Wrapf(ErrInvalidHeader, "name %q", name)
		}
		for _, c := range []byte(value) {
			if c == '\t' {
				continue
			}
			if c < 0x20 || c == 0x7f {
				return errors.Wrapf(ErrInvalidHeader, "value of %q", name)
			}
		}
	}
	return nil
}
