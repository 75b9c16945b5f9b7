package attohttpc

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRejects(t *testing.T) {
	testcases := []struct {
		desc    string
		build   func() *RequestBuilder
		wantErr error
	}{
		{
			desc:    "connect method",
			build:   func() *RequestBuilder { return New(MethodConnect, "http://example.com/") },
			wantErr: ErrMethodNotSupported,
		},
		{
			desc:    "unsupported scheme",
			build:   func() *RequestBuilder { return Get("ftp://example.com/file") },
			wantErr: ErrUnsupportedScheme,
		},
		{
			desc:    "unparsable url",
			build:   func() *RequestBuilder { return Get("http://exa mple.com/") },
			wantErr: ErrInvalidURL,
		},
		{
			desc:    "no host",
			build:   func() *RequestBuilder { return Get("http:///just-a-path") },
			wantErr: ErrInvalidURL,
		},
		{
			desc:    "header name with space",
			build:   func() *RequestBuilder { return Get("http://example.com/").Header("Bad Name", "v") },
			wantErr: ErrInvalidHeader,
		},
		{
			desc:    "empty header name",
			build:   func() *RequestBuilder { return Get("http://example.com/").Header("", "v") },
			wantErr: ErrInvalidHeader,
		},
		{
			desc: "header value with newline",
			build: func() *RequestBuilder {
				return Get("http://example.com/").Header("X-Sneaky", "a\r\nX-Injected: b")
			},
			wantErr: ErrInvalidHeader,
		},
		{
			desc:    "header value with nul",
			build:   func() *RequestBuilder { return Get("http://example.com/").Header("X-Bin", "a\x00b") },
			wantErr: ErrInvalidHeader,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := tc.build().Prepare()
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPrepareAllowsTabInHeaderValue(t *testing.T) {
	_, err := Get("http://example.com/").Header("X-Tabbed", "a\tb").Prepare()
	assert.NoError(t, err)
}

func serialized(t *testing.T, rb *RequestBuilder) string {
	t.Helper()

	pr, err := rb.Prepare()
	require.NoError(t, err)

	buf := bytes.NewBuffer(nil)
	require.NoError(t, pr.Serialize(buf))

	return buf.String()
}

func TestSerializeGet(t *testing.T) {
	got := serialized(t, Get("http://example.com/path?x=1").Header("User-Agent", "test"))

	expected := "GET /path?x=1 HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"User-Agent: test\r\n" +
		"Connection: close\r\n" +
		"Accept-Encoding: gzip, deflate\r\n" +
		"\r\n"

	assert.Equal(t, expected, got)
}

func TestSerializeDefaultsYieldToExplicitHeaders(t *testing.T) {
	got := serialized(t, Get("http://example.com/").
		Header("Host", "other.example.com").
		Header("Connection", "keep-alive").
		Header("Accept-Encoding", "identity"))

	assert.Contains(t, got, "Host: other.example.com\r\n")
	assert.Contains(t, got, "Connection: keep-alive\r\n")
	assert.Contains(t, got, "Accept-Encoding: identity\r\n")
	assert.Equal(t, 1, bytes.Count([]byte(got), []byte("Host:")))
	assert.Equal(t, 1, bytes.Count([]byte(got), []byte("Connection:")))
	assert.Equal(t, 1, bytes.Count([]byte(got), []byte("Accept-Encoding:")))
}

func TestSerializeHostPort(t *testing.T) {
	testcases := []struct {
		desc     string
		url      string
		expected string
	}{
		{desc: "default http port omitted", url: "http://example.com:80/", expected: "Host: example.com\r\n"},
		{desc: "default https port omitted", url: "https://example.com:443/", expected: "Host: example.com\r\n"},
		{desc: "custom port kept", url: "http://example.com:8080/", expected: "Host: example.com:8080\r\n"},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Contains(t, serialized(t, Get(tc.url)), tc.expected)
		})
	}
}

func TestSerializeEmptyPathAndParams(t *testing.T) {
	got := serialized(t, Get("http://example.com").Param("limit", "2").Param("q", "a b"))
	assert.Contains(t, got, "GET /?limit=2&q=a+b HTTP/1.1\r\n")
}

func TestSerializeParamsAppendToQuery(t *testing.T) {
	got := serialized(t, Get("http://example.com/s?a=1").Param("b", "2"))
	assert.Contains(t, got, "GET /s?a=1&b=2 HTTP/1.1\r\n")
}

func TestSerializePostBody(t *testing.T) {
	got := serialized(t, Post("http://example.com/upload").Bytes([]byte("hello")))

	assert.Contains(t, got, "Content-Length: 5\r\n")
	assert.True(t, bytes.HasSuffix([]byte(got), []byte("\r\n\r\nhello")))
}

func TestSerializeEmptyPostHasContentLength(t *testing.T) {
	got := serialized(t, Post("http://example.com/poke"))
	assert.Contains(t, got, "Content-Length: 0\r\n")
}

func TestSerializeEmptyGetHasNoContentLength(t *testing.T) {
	got := serialized(t, Get("http://example.com/"))
	assert.NotContains(t, got, "Content-Length:")
}

func TestSerializeTextBodySetsContentType(t *testing.T) {
	got := serialized(t, Post("http://example.com/msg").Text("héllo"))

	assert.Contains(t, got, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.Contains(t, got, "Content-Length: 6\r\n")
}

func TestSerializeTextBodyKeepsExplicitContentType(t *testing.T) {
	got := serialized(t, Post("http://example.com/msg").
		Header("Content-Type", "application/json").
		Text(`{}`))

	assert.Contains(t, got, "Content-Type: application/json\r\n")
	assert.NotContains(t, got, "text/plain")
}

func TestSerializeTextBodyEncodesCharset(t *testing.T) {
	got := serialized(t, Post("http://example.com/msg").Body(TextBodyWith("é", "iso-8859-1")))

	assert.Contains(t, got, "Content-Type: text/plain; charset=iso-8859-1\r\n")
	assert.Contains(t, got, "Content-Length: 1\r\n")
	assert.True(t, bytes.HasSuffix([]byte(got), append([]byte("\r\n\r\n"), 0xE9)))
}

func TestSerializeChunked(t *testing.T) {
	got := serialized(t, Post("http://example.com/stream").Bytes([]byte("hi")).Chunked())

	assert.Contains(t, got, "Transfer-Encoding: chunked\r\n")
	assert.NotContains(t, got, "Content-Length:")
	assert.True(t, bytes.HasSuffix([]byte(got), []byte("\r\n\r\n2\r\nhi\r\n0\r\n\r\n")))
}

// TestSerializeReparse feeds the serialized bytes to an independent parser.
func TestSerializeReparse(t *testing.T) {
	got := serialized(t, Post("http://example.com:8080/a/b?k=v").
		Header("X-First", "1").
		AddHeader("X-Multi", "a").
		AddHeader("X-Multi", "b").
		Bytes([]byte("payload")))

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader([]byte(got))))
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/a/b?k=v", req.URL.RequestURI())
	assert.Equal(t, "example.com:8080", req.Host)
	assert.Equal(t, "1", req.Header.Get("X-First"))
	assert.Equal(t, []string{"a", "b"}, req.Header.Values("X-Multi"))

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), body)
}
