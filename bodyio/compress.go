package bodyio

import (
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// ErrDecode reports corrupt compressed data or undecodable text.
var ErrDecode = errors.New("decoding body failed")

// Decompressed wraps the framed body stage with a decompressor selected by
// the Content-Encoding value. Identity, an empty value and unknown codings
// leave the stream untouched.
//
// gzip reads its header eagerly, so an empty body advertised as gzip fails
// here rather than on the first read.
func Decompressed(r io.Reader, contentEncoding string) (io.Reader, error) {
	switch {
	case hasEncodingToken(contentEncoding, "gzip"), hasEncodingToken(contentEncoding, "x-gzip"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(ErrDecode, "gzip header: %s", err)
		}
		return &decodeErrReader{r: gr}, nil
	case hasEncodingToken(contentEncoding, "deflate"):
		return &decodeErrReader{r: flate.NewReader(r)}, nil
	default:
		return r, nil
	}
}

func hasEncodingToken(value, enc string) bool {
	for _, token := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(token), enc) {
			return true
		}
	}
	return false
}

// decodeErrReader maps corrupt-input failures from the decompressor onto
// [ErrDecode], leaving upstream stream errors untouched.
type decodeErrReader struct{ r io.Reader }

func (dr *decodeErrReader) Read(p []byte) (int, error) {
	n, err := dr.r.Read(p)
	return n, mapDecodeErr(err)
}

func mapDecodeErr(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}

	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) ||
		errors.Is(err, gzip.ErrHeader) ||
		errors.Is(err, gzip.ErrChecksum) {
		return errors.Wrapf(ErrDecode, "%s", err)
	}

	return err
}
