package transfer

import (
	"bytes"
	"io"
	"testing"

	"github.com/dbdr/attohttpc/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ChunkedReaderTestSuite struct {
	suite.Suite
}

func TestChunkedReaderTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkedReaderTestSuite))
}

func (s *ChunkedReaderTestSuite) TestRead() {
	input := []byte("" +
		"5;ext=foo\r\n" +
		"ABCDE\r\n" +
		"a\r\n" +
		"FGHIJKLNMO\r\n" +
		"0\r\n" + // last chunk
		"Hello: World\r\n" + // trailer
		"\r\n", // empty trailer (last trailer)
	)

	trailers := make([]wire.Field, 0)
	cr := NewChunkedReader(bytes.NewReader(input))
	cr.SetOnTrailerReceived(func(f []wire.Field) { trailers = f })

	buf := make([]byte, 2)
	// First read reads only AB.
	n, err := cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(len(buf), n)
	s.Equal([]byte("AB"), buf)

	buf = make([]byte, 10)
	// Second read reads the rest of the first chunk.
	n, err = cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Equal([]byte("CDE"), buf[:n])

	// Third read reads all the data in the second chunk.
	n, err = cr.Read(buf)
	s.Require().NoError(err)
	s.Equal(len(buf), n)
	s.Equal([]byte("FGHIJKLNMO"), buf)

	// Fourth read hits the last chunk.
	n, err = cr.Read(buf)
	s.Require().ErrorIs(err, io.EOF)
	s.Equal(0, n)

	s.Len(trailers, 1)
	expected := wire.Field{Name: []byte("Hello"), Value: []byte("World")}
	s.Equal(expected, trailers[0])
}

func (s *ChunkedReaderTestSuite) TestConcatenation() {
	input := []byte("" +
		"3\r\nfoo\r\n" +
		"3\r\nbar\r\n" +
		"4\r\nquux\r\n" +
		"0\r\n" +
		"X-After: trailer\r\n" +
		"\r\n",
	)

	cr := NewChunkedReader(bytes.NewReader(input))

	out, err := io.ReadAll(cr)
	s.Require().NoError(err)
	// Trailer lines never appear in the decoded output.
	s.Equal("foobarquux", string(out))
}

func (s *ChunkedReaderTestSuite) TestDoneIsTerminal() {
	input := []byte("1\r\nA\r\n0\r\n\r\n")

	cr := NewChunkedReader(bytes.NewReader(input))

	out, err := io.ReadAll(cr)
	s.Require().NoError(err)
	s.Equal("A", string(out))

	// Reads past Done keep returning EOF, never an error.
	for i := 0; i < 3; i++ {
		n, err := cr.Read(make([]byte, 8))
		s.Zero(n)
		s.ErrorIs(err, io.EOF)
	}
}

func (s *ChunkedReaderTestSuite) TestFramingErrors() {
	testcases := []struct {
		desc  string
		input string
	}{
		{
			desc:  "non-hex size token",
			input: "haha this aint hex\r\nABCDE\r\n0\r\n\r\n",
		},
		{
			desc:  "empty size token",
			input: "\r\n",
		},
		{
			desc:  "missing CRLF after data",
			input: "5\r\nABCDEF\r\n0\r\n\r\n",
		},
		{
			desc:  "stream ends inside chunk data",
			input: "a\r\nABC",
		},
		{
			desc:  "stream ends before size line",
			input: "5\r\nABCDE\r\n",
		},
		{
			desc:  "stream ends inside trailers",
			input: "0\r\nX-Trailer: 1\r\n",
		},
		{
			desc:  "size larger than 64bit",
			input: "FFFFFFFFFFFFFFFFFF\r\n\r\n",
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			cr := NewChunkedReader(bytes.NewReader([]byte(tc.input)))

			_, err := io.ReadAll(cr)
			s.ErrorIs(err, ErrChunkFraming)
		})
	}
}

func (s *ChunkedReaderTestSuite) TestChunkExtensionsIgnored() {
	input := []byte("5 ; ext = foo ; bare\r\nABCDE\r\n0\r\n\r\n")

	cr := NewChunkedReader(bytes.NewReader(input))

	out, err := io.ReadAll(cr)
	s.Require().NoError(err)
	s.Equal("ABCDE", string(out))
}

func TestDecodeChunkSize(t *testing.T) {
	testcases := []struct {
		desc     string
		input    string
		expected uint64
		wantErr  bool
	}{
		{
			desc:     "normal hex",
			input:    "FF",
			expected: 0xFF,
		},
		{
			desc:     "lowercase hex",
			input:    "1a",
			expected: 0x1A,
		},
		{
			desc:     "zero",
			input:    "0",
			expected: 0,
		},
		{
			desc:    "invalid hex",
			input:   "xyz",
			wantErr: true,
		},
		{
			desc:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			desc:    "hex too long",
			input:   "FFFFFFFFFFFFFFFFFF",
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			size, err := decodeChunkSize([]byte(tc.input))
			if tc.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, size)
		})
	}
}

type ChunkedWriterTestSuite struct {
	suite.Suite
}

func TestChunkedWriterTestSuite(t *testing.T) {
	suite.Run(t, new(ChunkedWriterTestSuite))
}

func (s *ChunkedWriterTestSuite) TestWrite() {
	buf := bytes.NewBuffer(nil)
	cw := NewChunkedWriter(buf)

	n, err := cw.Write([]byte("ABCDE"))
	s.Require().NoError(err)
	s.Equal(5, n)

	s.Require().NoError(cw.Close())

	expected := "5\r\nABCDE\r\n0\r\n\r\n"
	s.Equal(expected, buf.String())
}

func (s *ChunkedWriterTestSuite) TestZeroLengthWriteIgnored() {
	buf := bytes.NewBuffer(nil)
	cw := NewChunkedWriter(buf)

	n, err := cw.Write(nil)
	s.Require().NoError(err)
	s.Zero(n)
	s.Zero(buf.Len())
}

func (s *ChunkedWriterTestSuite) TestTrailers() {
	buf := bytes.NewBuffer(nil)
	cw := NewChunkedWriter(buf)
	cw.SetSendTrailers(func() []wire.Field {
		return []wire.Field{{Name: []byte("X-Sum"), Value: []byte("abc")}}
	})

	_, err := cw.Write([]byte("hi"))
	s.Require().NoError(err)
	s.Require().NoError(cw.Close())

	expected := "2\r\nhi\r\n0\r\nX-Sum: abc\r\n\r\n"
	s.Equal(expected, buf.String())
}

func (s *ChunkedWriterTestSuite) TestRoundTrip() {
	buf := bytes.NewBuffer(nil)
	cw := NewChunkedWriter(buf)

	chunks := []string{"hello ", "chunked ", "world"}
	for _, c := range chunks {
		_, err := cw.Write([]byte(c))
		s.Require().NoError(err)
	}
	s.Require().NoError(cw.Close())

	out, err := io.ReadAll(NewChunkedReader(buf))
	s.Require().NoError(err)
	s.Equal("hello chunked world", string(out))
}
