// Package transport provides the duplex byte stream a request rides on:
// a TCP connection, optionally wrapped in TLS, with per-operation deadlines.
package transport

import (
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	// ErrConnect reports a DNS or TCP level connection failure.
	ErrConnect = errors.New("failed to connect")
	// ErrTLS reports a TLS handshake or certificate failure. It is kept
	// distinct from [ErrConnect] so callers can special-case certificate
	// problems.
	ErrTLS = errors.New("tls handshake failed")
	// ErrTimeout reports that a single read or write exceeded its deadline.
	ErrTimeout = errors.New("i/o deadline exceeded")
)

// Conn is a connected stream. Read and Write block, bounded by the deadlines
// derived from [Config]. Close is idempotent.
type Conn interface {
	io.Reader
	io.Writer
	Close() error
}

type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// AcceptInvalidCerts disables certificate chain and hostname
	// verification on TLS connections.
	AcceptInvalidCerts bool

	// Clock provides the current time for deadline computation.
	// nil means the wall clock.
	Clock clock.Clock
}

// Dial opens a connection to host:port, wrapping it in TLS when secure is
// set. DNS and TCP failures are [ErrConnect]; handshake failures are
// [ErrTLS].
func Dial(host string, port uint16, secure bool, cfg Config) (Conn, error) {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}

	addr := net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10))

	raw, err := net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
	if err != nil {
		return nil, errors.Wrapf(ErrConnect, "dialing %s: %s", addr, err)
	}

	if secure {
		raw, err = wrapTLS(raw, host, cfg)
		if err != nil {
			return nil, err
		}
	}

	return &deadlineConn{
		c:            raw,
		clock:        cfg.Clock,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
	}, nil
}

// wrapTLS performs the handshake eagerly so certificate problems surface at
// dial time, not on the first write.
func wrapTLS(raw net.Conn, host string, cfg Config) (net.Conn, error) {
	tlsConn := tls.Client(raw, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: cfg.AcceptInvalidCerts,
	})

	if cfg.ConnectTimeout > 0 {
		deadline := cfg.Clock.Now().Add(cfg.ConnectTimeout)
		if err := tlsConn.SetDeadline(deadline); err != nil {
			raw.Close()
			return nil, errors.Wrap(err, "setting handshake deadline")
		}
	}

	if err := tlsConn.Handshake(); err != nil {
		raw.Close()
		return nil, errors.Wrapf(ErrTLS, "handshake with %s: %s", host, err)
	}

	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		raw.Close()
		return nil, errors.Wrap(err, "clearing handshake deadline")
	}

	return tlsConn, nil
}

// deadlineConn arms a fresh deadline before every read and write and maps
// deadline misses to [ErrTimeout].
type deadlineConn struct {
	c     net.Conn
	clock clock.Clock

	readTimeout  time.Duration
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*deadlineConn)(nil)

func (dc *deadlineConn) Read(p []byte) (n int, err error) {
	if dc.readTimeout > 0 {
		if err := dc.c.SetReadDeadline(dc.clock.Now().Add(dc.readTimeout)); err != nil {
			return 0, errors.Wrap(err, "setting read deadline")
		}
	}

	n, err = dc.c.Read(p)
	return n, mapTimeout(err)
}

func (dc *deadlineConn) Write(p []byte) (n int, err error) {
	if dc.writeTimeout > 0 {
		if err := dc.c.SetWriteDeadline(dc.clock.Now().Add(dc.writeTimeout)); err != nil {
			return 0, errors.Wrap(err, "setting write deadline")
		}
	}

	n, err = dc.c.Write(p)
	return n, mapTimeout(err)
}

func (dc *deadlineConn) Close() error {
	dc.closeOnce.Do(func() { dc.closeErr = dc.c.Close() })
	return dc.closeErr
}

func mapTimeout(err error) error {
	if err == nil {
		return nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errors.Wrapf(ErrTimeout, "%s", err)
	}

	return err
}
