// Package transfer implements the chunked transfer coding.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
package transfer

import (
	"bytes"
	"io"
	"strconv"

	"github.com/dbdr/attohttpc/lib/iolib"
	"github.com/dbdr/attohttpc/wire"

	"github.com/pkg/errors"
)

// CodingChunked is the transfer coding name this package implements.
const CodingChunked = "chunked"

// ErrChunkFraming reports broken chunk framing: a non-hexadecimal size token,
// a missing CRLF delimiter, or a stream that ends before the last chunk.
var ErrChunkFraming = errors.New("chunked framing is broken")

// Chunk is one size-prefixed piece of a chunked body.
type Chunk struct {
	Size       uint64
	Extensions [][2]string
	data       io.Reader
}

// ChunkedReader converts a chunked message body into a plain byte stream.
// Once the last chunk and its trailers are consumed, the reader is done:
// further reads return io.EOF and never an error.
type ChunkedReader struct {
	r     *iolib.UntilReader
	chunk *Chunk
	read  uint64 // reset for each chunk
	done  bool

	onTrailer func(fields []wire.Field)
}

var _ io.Reader = (*ChunkedReader)(nil)

func NewChunkedReader(r io.Reader) *ChunkedReader {
	ur, ok := r.(*iolib.UntilReader)
	if !ok {
		ur = iolib.NewUntilReader(r)
	}
	return &ChunkedReader{r: ur}
}

// SetOnTrailerReceived registers a callback invoked with the trailer fields
// once the last chunk is read. The callback sees an empty slice when the
// server sent no trailers.
func (cr *ChunkedReader) SetOnTrailerReceived(f func(fields []wire.Field)) {
	cr.onTrailer = f
}

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.done {
		return 0, io.EOF
	}

	if cr.chunk == nil {
		if err := cr.decodeChunk(); err != nil {
			return 0, err
		}

		if cr.chunk.Size == 0 {
			// Last chunk.
			if err := cr.decodeTrailers(); err != nil {
				return 0, err
			}
			cr.done = true
			return 0, io.EOF
		}
	}

	remain := cr.chunk.Size - cr.read
	if uint64(len(b)) > remain {
		b = b[:remain]
	}

	n, err := cr.chunk.data.Read(b)
	cr.read += uint64(n)

	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, errors.Wrap(ErrChunkFraming, "stream ended inside chunk data")
		}
		return n, errors.Wrap(err, "reading chunk data")
	}

	if cr.read == cr.chunk.Size {
		if err := cr.consumeCRLF(); err != nil {
			return n, err
		}

		cr.chunk = nil
		cr.read = 0
	}

	return n, nil
}

func (cr *ChunkedReader) consumeCRLF() error {
	dump := make([]byte, 2)
	if _, err := io.ReadFull(cr.r, dump); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errors.Wrap(ErrChunkFraming, "stream ended before chunk delimiter")
		}
		return errors.Wrap(err, "reading chunk delimiter")
	}

	if !bytes.Equal(dump, wire.CRLF) {
		return errors.Wrap(ErrChunkFraming, "CRLF delimiter not found after chunk data")
	}

	return nil
}

func (cr *ChunkedReader) decodeChunk() error {
	line, err := cr.readLine()
	if err != nil {
		return err
	}

	parts := bytes.Split(line, []byte{';'})

	sizeRaw := bytes.Trim(parts[0], string(wire.OWS))
	chunkSize, err := decodeChunkSize(sizeRaw)
	if err != nil {
		return errors.Wrapf(ErrChunkFraming, "decoding chunk size: %s", err)
	}

	// Chunk extensions are tolerated and kept, not interpreted.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1.1
	parts = parts[1:]
	extensions := make([][2]string, 0, len(parts))
	for _, part := range parts {
		k, v, _ := bytes.Cut(part, []byte{'='})
		k = bytes.Trim(k, string(wire.OWS))
		v = bytes.Trim(v, string(wire.OWS))

		extensions = append(extensions, [2]string{string(k), string(v)})
	}

	cr.chunk = &Chunk{
		Size:       chunkSize,
		Extensions: extensions,
		data:       cr.r,
	}

	return nil
}

func decodeChunkSize(b []byte) (uint64, error) {
	if len(b) == 0 {
		return 0, errors.New("empty size token")
	}

	size, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return 0, errors.Errorf("failed to decode hex: %q", string(b))
	}

	return size, nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	fields := make([]wire.Field, 0)
	for {
		line, err := cr.readLine()
		if err != nil {
			return err
		}

		if len(line) == 0 {
			// Last field.
			break
		}

		field, err := wire.ParseField(line)
		if err != nil {
			return errors.Wrapf(ErrChunkFraming, "parsing trailer field: %s", err)
		}

		fields = append(fields, field)
	}

	if cr.onTrailer != nil {
		cr.onTrailer(fields)
	}

	return nil
}

// readLine reads until CRLF and cuts it.
func (cr *ChunkedReader) readLine() ([]byte, error) {
	line, err := cr.r.ReadUntil(wire.CRLF)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrChunkFraming, "stream ended before CRLF")
		}
		return nil, errors.Wrap(err, "reading line")
	}

	return line[:len(line)-2], nil
}

// ChunkedWriter frames written bytes as chunks. Close writes the last chunk
// and the trailer section.
type ChunkedWriter struct {
	w         io.Writer
	headerBuf *bytes.Buffer

	extensions   [][2]string
	sendTrailers func() []wire.Field
}

var _ io.WriteCloser = (*ChunkedWriter)(nil)

func NewChunkedWriter(w io.Writer) *ChunkedWriter {
	return &ChunkedWriter{w: w, headerBuf: bytes.NewBuffer(nil)}
}

// SetExtensions sets extensions for the next chunk.
// They live until the next [ChunkedWriter.Write].
func (cw *ChunkedWriter) SetExtensions(extensions [][2]string) {
	cw.extensions = extensions
}

// SetSendTrailers registers a callback providing trailer fields for Close.
func (cw *ChunkedWriter) SetSendTrailers(f func() []wire.Field) {
	cw.sendTrailers = f
}

func (cw *ChunkedWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		// A zero length chunk would mean EOF. Ignore it.
		return 0, nil
	}

	chunk := Chunk{
		Size:       uint64(len(p)),
		Extensions: cw.extensions,
		data:       bytes.NewReader(p),
	}

	cw.extensions = nil

	n, err = cw.encodeChunk(chunk)
	if err != nil {
		return n, errors.Wrap(err, "encoding chunk")
	}

	return n, nil
}

func (cw *ChunkedWriter) Close() error {
	chunk := Chunk{
		Size:       0,
		Extensions: cw.extensions,
	}

	if _, err := cw.encodeChunk(chunk); err != nil {
		return errors.Wrap(err, "encoding last chunk")
	}

	if err := cw.encodeTrailers(); err != nil {
		return errors.Wrap(err, "encoding trailers")
	}

	return nil
}

func (cw *ChunkedWriter) encodeChunk(chunk Chunk) (n int, err error) {
	// size and extensions
	buf := cw.headerBuf
	buf.Reset()
	buf.Write([]byte(strconv.FormatUint(chunk.Size, 16)))
	for _, ext := range chunk.Extensions {
		buf.Write([]byte{';'})
		buf.Write([]byte(ext[0]))
		buf.Write([]byte{'='})
		buf.Write([]byte(ext[1]))
	}

	if err := writeLine(cw.w, buf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "writing chunk header")
	}

	if chunk.Size == 0 {
		// Last chunk. Only the header is written.
		return 0, nil
	}

	// chunk data + CRLF
	r := io.MultiReader(chunk.data, bytes.NewReader(wire.CRLF))

	n64, err := io.Copy(cw.w, r)
	if err != nil {
		return int(n64), errors.Wrap(err, "writing data")
	}

	return int(n64) - len(wire.CRLF), nil
}

func (cw *ChunkedWriter) encodeTrailers() error {
	if cw.sendTrailers != nil {
		for _, field := range cw.sendTrailers() {
			if err := writeLine(cw.w, field.Text()); err != nil {
				return errors.Wrap(err, "writing trailer")
			}
		}
	}

	if err := writeLine(cw.w, nil); err != nil {
		return errors.Wrap(err, "writing last trailer line")
	}

	return nil
}

func writeLine(w io.Writer, line []byte) error {
	r := bytes.NewReader(append(line, wire.CRLF...))

	_, err := io.Copy(w, r)
	if err != nil {
		return errors.Wrap(err, "writing line")
	}

	return nil
}
