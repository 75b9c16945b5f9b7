package bodyio

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnsupportedCharset reports an unknown charset label.
var ErrUnsupportedCharset = errors.New("charset is unsupported")

// DecodeText converts raw body bytes in the given charset to a UTF-8 string.
// An empty label means UTF-8.
func DecodeText(b []byte, label string) (string, error) {
	if label == "" {
		label = "utf-8"
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", errors.Wrapf(ErrUnsupportedCharset, "%q", label)
	}

	if enc == unicode.UTF8 {
		// Pass UTF-8 through verbatim, invalid sequences included,
		// like the identity decode it is.
		return string(b), nil
	}

	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Wrapf(ErrDecode, "decoding %q text: %s", label, err)
	}

	return string(decoded), nil
}

// EncodeText converts a UTF-8 string into the given charset for sending.
func EncodeText(s string, label string) ([]byte, error) {
	if label == "" {
		label = "utf-8"
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedCharset, "%q", label)
	}

	if enc == unicode.UTF8 {
		return []byte(s), nil
	}

	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrapf(ErrDecode, "encoding %q text: %s", label, err)
	}

	return encoded, nil
}
