package iolib

import "io"

// LimitReader creates a new [LimitedReader].
func LimitReader(r io.Reader, n uint64) io.Reader { return &LimitedReader{r, n} }

// LimitedReader is a uint64 port of [io.LimitedReader].
type LimitedReader struct {
	R io.Reader // underlying reader
	N uint64    // max bytes remaining
}

func (l *LimitedReader) Read(p []byte) (n int, err error) {
	if l.N == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > l.N {
		p = p[:l.N]
	}
	n, err = l.R.Read(p)
	l.N -= uint64(n)
	return
}
