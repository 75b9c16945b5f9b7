// Package wire implements the textual HTTP/1.1 message layer: request
// serialization and response head parsing.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package wire

import (
	"bytes"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

const (
	CR byte = '\r'
	LF byte = '\n'
	SP byte = ' '
)

var (
	CRLF = []byte{CR, LF}
	OWS  = []byte{SP, '\t'}
)

// RequestLine is the first line of a request message.
type RequestLine struct {
	Method  string
	Target  string
	Version Version
}

// Request is a wire-level request: a request line, raw fields in write order,
// and a fully materialized or streaming body.
type Request struct {
	RequestLine
	Fields []Field

	Body io.Reader
}

// StatusLine is the first line of a response message.
type StatusLine struct {
	Version      Version
	StatusCode   int
	ReasonPhrase string
}

// ResponseHead is a parsed status line plus raw header fields. The body is
// not part of the head; it stays on the stream the head was read from.
type ResponseHead struct {
	StatusLine
	Fields []Field
}

// Version is [Major, Minor].
type Version [2]uint

var Version11 = Version{1, 1}

// ParseVersion parses http version text (e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	first, second, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot separator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 64)
	minor, err2 := strconv.ParseUint(string(second), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write([]byte("HTTP/"))
	buf.Write([]byte(strconv.FormatUint(uint64(ver[0]), 10)))
	buf.Write([]byte{'.'})
	buf.Write([]byte(strconv.FormatUint(uint64(ver[1]), 10)))
	return buf.Bytes()
}

func (ver Version) String() string { return string(ver.Text()) }

// Field is one raw header field line.
type Field struct{ Name, Value []byte }

// ParseField splits a field line at the colon.
//
// No whitespace is allowed between the field name and the colon.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Errorf("colon separator not found on header: %q", string(fieldLine))
	}

	for _, c := range OWS {
		if bytes.HasSuffix(name, []byte{c}) {
			return Field{}, errors.New("field name has trailing whitespace")
		}
	}
	if len(name) == 0 {
		return Field{}, errors.New("field name is empty")
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	for _, c := range OWS {
		value = bytes.Trim(value, string([]byte{c}))
	}

	return Field{Name: name, Value: value}, nil
}

func (f *Field) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(f.Name)
	buf.Write([]byte(": "))
	buf.Write(f.Value)
	return buf.Bytes()
}
