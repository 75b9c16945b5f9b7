package attohttpc

import (
	"io"
	"log/slog"
	"time"

	"github.com/dbdr/attohttpc/transport"
	"github.com/dbdr/attohttpc/wire"

	"github.com/benbjohnson/clock"
)

// DefaultMaxRedirects bounds redirect chains unless overridden.
const DefaultMaxRedirects = 5

type Options struct {
	Timeout  TimeoutOptions
	Redirect RedirectOptions
	TLS      TLSOptions
	Decode   DecodeOptions

	// Logger receives debug-level notes on hops and framing decisions.
	// nil means no logging.
	Logger *slog.Logger

	// Clock provides the current time for I/O deadlines.
	// nil means the wall clock.
	Clock clock.Clock
}

type TimeoutOptions struct {
	// Per-operation deadlines. Zero means no deadline.
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

type RedirectOptions struct {
	Follow bool
	Max    uint
}

type TLSOptions struct {
	// DangerAcceptInvalidCerts disables certificate validation.
	DangerAcceptInvalidCerts bool
}

type DecodeOptions struct {
	// Head limits response head line lengths.
	// The zero value falls back to [wire.DefaultDecodeOptions].
	Head wire.DecodeOptions

	// MaxBodySize caps [Response.Bytes] and [Response.Text].
	// 0 means no cap.
	MaxBodySize uint64

	// DefaultCharset is used for text decoding when the response names
	// none. Empty means UTF-8.
	DefaultCharset string

	// DisableCompression drops the Accept-Encoding request header and the
	// transparent decompression stage.
	DisableCompression bool
}

// DefaultOptions follows up to [DefaultMaxRedirects] redirects and applies no
// timeouts.
func DefaultOptions() Options {
	return Options{
		Redirect: RedirectOptions{Follow: true, Max: DefaultMaxRedirects},
	}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *Options) headDecode() wire.DecodeOptions {
	if o.Decode.Head == (wire.DecodeOptions{}) {
		return wire.DefaultDecodeOptions
	}
	return o.Decode.Head
}

func (o *Options) transportConfig() transport.Config {
	return transport.Config{
		ConnectTimeout:     o.Timeout.Connect,
		ReadTimeout:        o.Timeout.Read,
		WriteTimeout:       o.Timeout.Write,
		AcceptInvalidCerts: o.TLS.DangerAcceptInvalidCerts,
		Clock:              o.Clock,
	}
}
