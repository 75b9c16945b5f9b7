// Package bodyio determines how a response body is delimited and composes
// the layered decoding pipeline over it: framing, then decompression, then
// charset decoding for text access.
package bodyio

import (
	"io"
	"strconv"
	"strings"

	"github.com/dbdr/attohttpc/header"
	"github.com/dbdr/attohttpc/transfer"
	"github.com/dbdr/attohttpc/wire"

	"github.com/pkg/errors"
)

type FramingKind int

const (
	// FramingNone means no body is expected at all.
	FramingNone FramingKind = iota
	// FramingContentLength means the body is exactly Length bytes.
	FramingContentLength
	// FramingChunked means the body uses the chunked transfer coding.
	FramingChunked
	// FramingUntilClose means the body runs until the peer closes.
	FramingUntilClose
)

// Framing says where a response body ends. Derived once per response from the
// request method, status code and headers.
type Framing struct {
	Kind   FramingKind
	Length uint64 // set for FramingContentLength
}

// ClassifyFraming applies the body length rules of RFC 9112.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3
func ClassifyFraming(method string, statusCode int, h header.Headers) (Framing, error) {
	// HEAD responses and 1xx/204/304 never carry a body.
	if method == "HEAD" ||
		(statusCode >= 100 && statusCode < 200) ||
		statusCode == 204 || statusCode == 304 {
		return Framing{Kind: FramingNone}, nil
	}

	// Transfer-Encoding takes precedence over Content-Length. Responses
	// carrying both are how response smuggling works, so the Content-Length
	// is ignored entirely.
	if codings := transferCodings(h); len(codings) > 0 {
		if codings[len(codings)-1] == transfer.CodingChunked {
			return Framing{Kind: FramingChunked}, nil
		}
		// A transfer coding other than final-chunked leaves the body
		// delimited by connection close.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.4.2
		return Framing{Kind: FramingUntilClose}, nil
	}

	if v, ok := h.Get("Content-Length"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return Framing{}, errors.Wrapf(wire.ErrMalformedHeader, "invalid Content-Length %q", v)
		}
		return Framing{Kind: FramingContentLength, Length: n}, nil
	}

	return Framing{Kind: FramingUntilClose}, nil
}

// transferCodings flattens Transfer-Encoding values into lowercase coding
// tokens, in the order they were listed.
func transferCodings(h header.Headers) []string {
	values, ok := h.Values("Transfer-Encoding")
	if !ok {
		return nil
	}

	codings := make([]string, 0, len(values))
	for _, v := range values {
		for _, token := range strings.Split(v, ",") {
			token = strings.ToLower(strings.TrimSpace(token))
			if token != "" {
				codings = append(codings, token)
			}
		}
	}

	return codings
}

// NewReader returns the raw framed body stage over r. onTrailer, if not nil,
// receives trailer fields after a chunked body is fully read.
func NewReader(r io.Reader, f Framing, onTrailer func([]wire.Field)) io.Reader {
	switch f.Kind {
	case FramingNone:
		return emptyReader{}
	case FramingContentLength:
		return &lengthReader{r: r, remain: f.Length}
	case FramingChunked:
		cr := transfer.NewChunkedReader(r)
		if onTrailer != nil {
			cr.SetOnTrailerReceived(onTrailer)
		}
		return cr
	default:
		return r
	}
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// lengthReader counts down a Content-Length. A stream that ends early is
// always [io.ErrUnexpectedEOF], never a short body.
type lengthReader struct {
	r      io.Reader
	remain uint64
}

func (lr *lengthReader) Read(p []byte) (n int, err error) {
	if lr.remain == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > lr.remain {
		p = p[:lr.remain]
	}

	n, err = lr.r.Read(p)
	lr.remain -= uint64(n)

	if err != nil && errors.Is(err, io.EOF) && lr.remain > 0 {
		return n, io.ErrUnexpectedEOF
	}

	return n, err
}
