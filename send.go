package attohttpc

import (
	"io"
	"net/url"
	"strconv"

	"github.com/dbdr/attohttpc/bodyio"
	"github.com/dbdr/attohttpc/header"
	"github.com/dbdr/attohttpc/lib/iolib"
	"github.com/dbdr/attohttpc/transport"
	"github.com/dbdr/attohttpc/wire"

	"github.com/pkg/errors"
)

// maxDrainOnRedirect bounds how much of an intermediate redirect body is read
// before its connection is closed. The connection dies either way; this just
// avoids copying an arbitrarily large body nobody will see.
const maxDrainOnRedirect = 256 << 10

// Send runs the request/response cycle, following redirects per the options.
// It either returns a Response positioned for body reading, or an error with
// every connection opened along the way closed. Callers never see a
// half-parsed response.
func (pr *PreparedRequest) Send() (*Response, error) {
	logger := pr.opts.logger()

	cur := pr
	for hops := uint(0); ; hops++ {
		resp, err := cur.roundtrip()
		if err != nil {
			return nil, err
		}

		if !resp.isRedirect() || !cur.opts.Redirect.Follow {
			return resp, nil
		}

		if hops >= cur.opts.Redirect.Max {
			resp.Close()
			return nil, errors.Wrapf(ErrTooManyRedirects, "after %d hops", hops)
		}

		next, err := cur.redirected(resp)
		if err != nil {
			resp.Close()
			return nil, err
		}

		logger.Debug("following redirect",
			"status", resp.Status,
			"hop", hops+1,
			"url", next.url.String(),
			"method", next.method,
		)

		// Discard the prior attempt before opening the next one.
		io.Copy(io.Discard, io.LimitReader(resp, maxDrainOnRedirect))
		resp.Close()

		cur = next
	}
}

// roundtrip performs one hop: dial, serialize, parse the head, classify the
// framing, and wire the body pipeline. On any failure the connection is
// closed before returning.
func (pr *PreparedRequest) roundtrip() (*Response, error) {
	logger := pr.opts.logger()

	secure := pr.url.Scheme == "https"
	conn, err := transport.Dial(pr.url.Hostname(), pr.port(), secure, pr.opts.transportConfig())
	if err != nil {
		return nil, err
	}

	if err := pr.Serialize(conn); err != nil {
		conn.Close()
		return nil, err
	}

	ur := iolib.NewUntilReader(conn)

	var head wire.ResponseHead
	if err := wire.NewResponseDecoder(ur, pr.opts.headDecode()).DecodeHead(&head); err != nil {
		conn.Close()
		return nil, err
	}

	headers := headersFromFields(head.Fields)

	framing, err := bodyio.ClassifyFraming(string(pr.method), head.StatusCode, headers)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if framing.Kind == bodyio.FramingChunked && headers.Has("Content-Length") {
		logger.Debug("response has both Transfer-Encoding and Content-Length, ignoring Content-Length")
	}

	resp := &Response{
		Status:  head.StatusCode,
		Reason:  head.ReasonPhrase,
		Headers: headers,
		URL:     pr.url,
		conn:    conn,
		opts:    pr.opts,
	}

	body := bodyio.NewReader(ur, framing, resp.setTrailers)

	if framing.Kind != bodyio.FramingNone && !pr.opts.Decode.DisableCompression {
		encoding, _ := headers.Get("Content-Encoding")
		body, err = bodyio.Decompressed(body, encoding)
		if err != nil {
			conn.Close()
			return nil, err
		}
	}

	resp.body = body

	return resp, nil
}

// redirected derives the next request from a redirect response.
//
// 307/308 preserve the method and body. 301/302/303 rewrite POST, PUT, PATCH
// and DELETE to a bodyless GET; GET and HEAD pass through unchanged.
func (pr *PreparedRequest) redirected(resp *Response) (*PreparedRequest, error) {
	location, ok := resp.Headers.Get("Location")
	if !ok || location == "" {
		return nil, errors.Wrapf(ErrMissingLocation, "status %d", resp.Status)
	}

	ref, err := url.Parse(location)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidRedirectURL, "parsing %q: %s", location, err)
	}

	nextURL := pr.url.ResolveReference(ref)
	if nextURL.Scheme != "http" && nextURL.Scheme != "https" {
		return nil, errors.Wrapf(ErrInvalidRedirectURL, "scheme %q", nextURL.Scheme)
	}
	if nextURL.Hostname() == "" {
		return nil, errors.Wrapf(ErrInvalidRedirectURL, "%q has no host", location)
	}

	next := &PreparedRequest{
		method:  pr.method,
		url:     nextURL,
		headers: pr.headers.Clone(),
		body:    pr.body,
		chunked: pr.chunked,
		opts:    pr.opts,
	}

	if resp.Status != 307 && resp.Status != 308 {
		switch pr.method {
		case MethodPost, MethodPut, MethodPatch, MethodDelete:
			next.method = MethodGet
			next.body = nil
			next.chunked = false
			next.headers.Del("Content-Length")
			next.headers.Del("Content-Type")
		}
	}

	return next, nil
}

func (pr *PreparedRequest) port() uint16 {
	if p := pr.url.Port(); p != "" {
		if n, err := strconv.ParseUint(p, 10, 16); err == nil {
			return uint16(n)
		}
	}

	if pr.url.Scheme == "https" {
		return 443
	}
	return 80
}

// headersFromFields converts raw field lines into the ordered multimap.
// Repeated names accumulate values in arrival order.
func headersFromFields(fields []wire.Field) header.Headers {
	h := header.New()
	for _, f := range fields {
		h.Add(string(f.Name), string(f.Value))
	}
	return h
}
