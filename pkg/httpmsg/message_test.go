package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const request = "POST /rpc HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"content-type: application/x-java-serialized-object; charset=binary\r\n" +
	"Content-Length: 4\r\n" +
	"X-Trace:  a:b \r\n" +
	"\r\n" +
	"\xac\xed\x00\x05"

func TestParseBytes(t *testing.T) {
	m, err := Parse([]byte(request))
	require.NoError(t, err)
	require.Equal(t, []string{
		"POST /rpc HTTP/1.1",
		"Host: example.com",
		"content-type: application/x-java-serialized-object; charset=binary",
		"Content-Length: 4",
		"X-Trace:  a:b ",
	}, m.Head)
	require.Equal(t, []byte{0xac, 0xed, 0, 5}, m.Body)
	require.Equal(t, request, string(m.Bytes()))

	t.Run("empty body", func(t *testing.T) {
		raw := "GET / HTTP/1.1\r\nHost: a\r\n\r\n"
		m, err := Parse([]byte(raw))
		require.NoError(t, err)
		require.Empty(t, m.Body)
		require.Equal(t, raw, string(m.Bytes()))
	})
	t.Run("body with boundary", func(t *testing.T) {
		raw := "HTTP/1.1 200 OK\r\n\r\nbody\r\n\r\nmore"
		m, err := Parse([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, []string{"HTTP/1.1 200 OK"}, m.Head)
		require.Equal(t, "body\r\n\r\nmore", string(m.Body))
	})
	t.Run("no boundary", func(t *testing.T) {
		_, err := Parse([]byte("GET / HTTP/1.1\r\nHost: a\r\n"))
		require.ErrorIs(t, err, ErrNoBoundary)
	})
}

func TestHeaders(t *testing.T) {
	m, err := Parse([]byte(request))
	require.NoError(t, err)
	require.Equal(t, "POST", m.Method())
	require.Equal(t, "application/x-java-serialized-object", m.MediaType())
	require.False(t, m.Chunked())

	v, ok := m.Get("x-trace")
	require.True(t, ok)
	require.Equal(t, "a:b", v)
	_, ok = m.Get("Cookie")
	require.False(t, ok)
	require.Equal(t, -1, m.Index("POST /rpc HTTP/1.1"))

	marker := Header{Name: "X-Burp", Value: "Decoded"}
	require.False(t, m.Has(marker))
	m.InsertBefore(ContentLength, marker)
	require.True(t, m.Has(Header{Name: "x-burp", Value: "decoded"}))
	require.Equal(t, "X-Burp: Decoded", m.Head[3])
	require.Equal(t, "Content-Length: 4", m.Head[4])

	m.Body = []byte("ünï")
	m.FixContentLength()
	require.Equal(t, "Content-Length: 5", m.Head[4])

	require.Equal(t, 1, m.Remove(marker))
	require.Equal(t, 0, m.Remove(marker))
	require.Equal(t, []string{
		"POST /rpc HTTP/1.1",
		"Host: example.com",
		"content-type: application/x-java-serialized-object; charset=binary",
		"Content-Length: 5",
		"X-Trace:  a:b ",
	}, m.Head)
}

func TestNoContentLength(t *testing.T) {
	m, err := Parse([]byte("HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip, chunked\r\nContent-Type: bogus;;\r\n\r\n0\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, m.Chunked())
	require.Equal(t, "bogus", m.MediaType())

	m.FixContentLength()
	require.Equal(t, -1, m.Index(ContentLength))

	m.InsertBefore(ContentLength, Header{Name: "X-Burp", Value: "Decoded"})
	require.Equal(t, "X-Burp: Decoded", m.Head[len(m.Head)-1])
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(" X-Burp :  Decoded ")
	require.NoError(t, err)
	require.Equal(t, Header{Name: "X-Burp", Value: "Decoded"}, h)
	require.Equal(t, "X-Burp: Decoded", h.String())

	for _, s := range []string{"", "X-Burp", ": v", "X Burp: v"} {
		_, err := ParseHeader(s)
		require.Error(t, err, s)
	}
}
