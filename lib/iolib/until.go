package iolib

import (
	"bytes"
	"errors"
	"io"
)

// UntilReader reads from an underlying stream and supports delimiter-bounded
// reads without losing bytes read past the delimiter. Bytes buffered beyond a
// delimiter are replayed on the next Read or ReadUntil, so line-oriented head
// parsing and raw body reads can share one stream.
type UntilReader struct {
	r io.Reader

	buf *bytes.Buffer
}

func NewUntilReader(r io.Reader) *UntilReader {
	return &UntilReader{r: r, buf: bytes.NewBuffer(nil)}
}

func (ur *UntilReader) Read(p []byte) (n int, err error) {
	if ur.buf.Len() > 0 {
		n, err = ur.buf.Read(p)
		if err == io.EOF {
			err = nil
		}
		return n, err
	}

	return ur.r.Read(p)
}

var ErrZeroLenDelim = errors.New("delim has zero length")

// ReadUntil reads until delim and returns everything read, delim included.
// If the underlying reader fails before delim, the partial bytes are returned
// along with the error.
func (ur *UntilReader) ReadUntil(delim []byte) ([]byte, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}

	sum := 0
	temp := make([]byte, 1024)
	lastByte := delim[len(delim)-1]

	r := ur.r
	if ur.buf.Len() > 0 {
		// Replay buffered bytes before touching the stream.
		r = io.MultiReader(
			bytes.NewReader(bytes.Clone(ur.buf.Bytes())),
			ur.r,
		)
		ur.buf.Reset()
	}

	for {
		n, err := r.Read(temp)
		ur.buf.Write(temp[:n])

		// Seek for the last byte of delim on temp.
		// If found, check whether buf ends with delim there.
		for seek := temp[:n]; ; {
			idx := bytes.IndexByte(seek, lastByte)
			if idx < 0 {
				break
			}

			foundIdx := sum + n - len(seek) + idx

			buffered := ur.buf.Bytes()[:foundIdx+1]
			if bytes.HasSuffix(buffered, delim) {
				// Truncate the buffer to only keep bytes after delim.
				buffered = bytes.Clone(buffered)
				ur.buf.Reset()
				ur.buf.Write(seek[idx+1:])
				return buffered, nil
			}

			seek = seek[idx+1:]
		}

		sum += n

		if err != nil {
			// Underlying reader returned error before delim.
			b := bytes.Clone(ur.buf.Bytes())
			ur.buf.Reset()
			return b, err
		}
	}
}

// ReadUntilLimit is ReadUntil bounded to limit bytes from the underlying
// stream. limit == 0 means no limit.
func (ur *UntilReader) ReadUntilLimit(delim []byte, limit uint64) ([]byte, error) {
	if limit > 0 {
		r := ur.r
		ur.r = LimitReader(r, limit)
		defer func() { ur.r = r }()
	}

	return ur.ReadUntil(delim)
}
