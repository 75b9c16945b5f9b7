package wire

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// RequestEncoder serializes a [Request] onto a stream. It performs no I/O of
// its own beyond writing to the wrapped writer.
type RequestEncoder struct {
	bw *bufio.Writer
}

func NewRequestEncoder(w io.Writer) *RequestEncoder {
	return &RequestEncoder{bw: bufio.NewWriter(w)}
}

func (re *RequestEncoder) Encode(request Request) error {
	if err := re.encodeRequestLine(request.RequestLine); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	if err := re.encodeFields(request.Fields); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	// Flush the head before the body.
	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request line & header")
	}

	if request.Body != nil {
		if _, err := re.bw.ReadFrom(request.Body); err != nil {
			return errors.Wrap(err, "writing request body")
		}
	}

	if err := re.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing request body")
	}

	return nil
}

func (re *RequestEncoder) encodeRequestLine(reqLine RequestLine) error {
	buf := bytes.NewBuffer(nil)

	buf.Write([]byte(reqLine.Method))
	buf.WriteByte(SP)
	buf.Write([]byte(reqLine.Target))
	buf.WriteByte(SP)
	buf.Write(reqLine.Version.Text())

	if err := re.writeLine(buf.Bytes()); err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}

func (re *RequestEncoder) encodeFields(fields []Field) error {
	for _, field := range fields {
		if err := re.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// An empty line terminates the head.
	if err := re.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (re *RequestEncoder) writeLine(line []byte) error {
	if _, err := re.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	if _, err := re.bw.Write(CRLF); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}
