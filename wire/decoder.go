package wire

import (
	"bytes"
	"io"
	"strconv"

	"github.com/dbdr/attohttpc/lib/iolib"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// MaxStatusLineLength limits the status line length. 0 means no limit.
	MaxStatusLineLength uint

	// MaxFieldLineLength limits each field line length. 0 means no limit.
	MaxFieldLineLength uint
}

// DefaultDecodeOptions bounds head lines so a hostile server cannot make us
// buffer without limit. 8000 octets is the minimum recommended request-line
// capacity; we apply the same bound on the receiving side.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-5
var DefaultDecodeOptions = DecodeOptions{
	MaxStatusLineLength: 8000,
	MaxFieldLineLength:  8000,
}

var (
	ErrMalformedStatusLine = errors.New("status line is malformed")
	ErrMalformedHeader     = errors.New("header field is malformed")
	ErrHeaderTooLarge      = errors.New("header line length exceeds limit")
)

// ResponseDecoder reads a response head off a stream. The stream must be an
// [iolib.UntilReader] so that bytes read past the blank line stay available
// for the body.
type ResponseDecoder struct {
	r    *iolib.UntilReader
	opts DecodeOptions
}

func NewResponseDecoder(r *iolib.UntilReader, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{r: r, opts: opts}
}

// DecodeHead parses the status line and header fields, consuming the blank
// line that terminates the head. head MUST be a non-nil pointer.
func (rd *ResponseDecoder) DecodeHead(head *ResponseHead) error {
	if err := rd.decodeStatusLine(&head.StatusLine); err != nil {
		return errors.Wrap(err, "parsing status line")
	}

	if err := rd.decodeFields(&head.Fields); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	return nil
}

func (rd *ResponseDecoder) decodeStatusLine(statLine *StatusLine) error {
	var line []byte
	for {
		b, err := rd.readLine(rd.opts.MaxStatusLineLength)
		if err != nil {
			return err
		}

		// An empty line can be received before the message.
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
		if len(b) > 0 {
			line = b
			break
		}
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return errors.Wrapf(ErrMalformedStatusLine, "%q: %s", string(line), err)
	}

	*statLine = parsed

	return nil
}

func (rd *ResponseDecoder) decodeFields(fields *[]Field) error {
	tmp := make([]Field, 0)
	for {
		fieldLine, err := rd.readLine(rd.opts.MaxFieldLineLength)
		if err != nil {
			return err
		}

		if len(fieldLine) == 0 {
			// An empty line. No more headers.
			break
		}

		field, err := ParseField(fieldLine)
		if err != nil {
			return errors.Wrapf(ErrMalformedHeader, "%q: %s", string(fieldLine), err)
		}

		tmp = append(tmp, field)
	}

	*fields = tmp

	return nil
}

// readLine reads one CRLF-terminated line, with the terminator cut.
// A stream that ends mid-head is always [io.ErrUnexpectedEOF].
func (rd *ResponseDecoder) readLine(limit uint) ([]byte, error) {
	// Bound the read itself so an endless line cannot buffer without limit.
	var bound uint64
	if limit > 0 {
		bound = uint64(limit) + 1
	}

	b, err := rd.r.ReadUntilLimit([]byte{LF}, bound)
	if limit > 0 && uint(len(b)) > limit {
		return nil, ErrHeaderTooLarge
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	b = b[:len(b)-1] // Remove LF.

	if len(b) == 0 || b[len(b)-1] != CR {
		return nil, errors.Wrap(ErrMalformedHeader, "missing CR before LF")
	}
	b = b[:len(b)-1] // Remove CR.

	// A bare CR inside a line is replaced by SP.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	b = bytes.ReplaceAll(b, []byte{CR}, []byte{SP})

	return b, nil
}

func parseStatusLine(line []byte) (StatusLine, error) {
	parts := bytes.SplitN(line, []byte{SP}, 3)
	if len(parts) < 2 {
		return StatusLine{}, errors.New("not enough parts")
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return StatusLine{}, errors.Wrap(err, "parsing version")
	}

	statusCodeStr := string(parts[1])
	statusCode, err := strconv.ParseUint(statusCodeStr, 10, 64)
	if err != nil || len(statusCodeStr) != 3 {
		return StatusLine{}, errors.Errorf("status code is malformed: %q", statusCodeStr)
	}
	if statusCode < 100 || statusCode > 599 {
		return StatusLine{}, errors.Errorf("status code out of range: %d", statusCode)
	}

	// reason-phrase is optional.
	reasonPhrase := ""
	if len(parts) == 3 {
		reasonPhrase = string(parts[2])
	}

	return StatusLine{
		Version:      ver,
		StatusCode:   int(statusCode),
		ReasonPhrase: reasonPhrase,
	}, nil
}
