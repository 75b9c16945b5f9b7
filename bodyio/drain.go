package bodyio

import (
	"io"

	"github.com/pkg/errors"
)

// ErrBodyTooLarge reports that a drain exceeded the caller-supplied cap.
var ErrBodyTooLarge = errors.New("body larger than configured limit")

// ReadAll drains r fully. max bounds the number of decoded bytes accepted;
// 0 means no limit.
func ReadAll(r io.Reader, max uint64) ([]byte, error) {
	if max == 0 {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	b, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(b)) > max {
		return nil, errors.Wrapf(ErrBodyTooLarge, "limit %d bytes", max)
	}

	return b, nil
}
