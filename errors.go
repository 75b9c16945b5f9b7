package attohttpc

import (
	"io"

	"github.com/dbdr/attohttpc/bodyio"
	"github.com/dbdr/attohttpc/transfer"
	"github.com/dbdr/attohttpc/transport"
	"github.com/dbdr/attohttpc/wire"

	"github.com/pkg/errors"
)

// Errors produced while building requests and following redirects. Every
// failure surfaces as one of the sentinels below (possibly wrapped with
// context); match with errors.Is.
var (
	ErrInvalidHeader      = errors.New("header name or value contains illegal characters")
	ErrUnsupportedScheme  = errors.New("url scheme must be http or https")
	ErrInvalidURL         = errors.New("url is invalid")
	ErrMethodNotSupported = errors.New("method is not supported")
	ErrMissingLocation    = errors.New("redirect response has no usable Location header")
	ErrInvalidRedirectURL = errors.New("redirect location does not resolve to a valid url")
	ErrTooManyRedirects   = errors.New("too many redirects")
)

// Sentinels from the lower layers, re-exported so the whole taxonomy can be
// matched against this package alone.
var (
	ErrConnect             = transport.ErrConnect
	ErrTLS                 = transport.ErrTLS
	ErrTimeout             = transport.ErrTimeout
	ErrMalformedStatusLine = wire.ErrMalformedStatusLine
	ErrMalformedHeader     = wire.ErrMalformedHeader
	ErrHeaderTooLarge      = wire.ErrHeaderTooLarge
	ErrChunkFraming        = transfer.ErrChunkFraming
	ErrDecode              = bodyio.ErrDecode
	ErrUnsupportedCharset  = bodyio.ErrUnsupportedCharset
	ErrBodyTooLarge        = bodyio.ErrBodyTooLarge

	// ErrUnexpectedEOF reports a stream that ended before a framing
	// boundary: inside the head, inside a sized body, or mid-chunk.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF
)
