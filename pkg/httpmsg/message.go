/*
Package httpmsg provides a minimal HTTP/1.x message model which keeps header
lines exactly as they were received. Only the lines that are explicitly
edited change, everything else (order, case, spacing) is written back as is.
*/
package httpmsg

import (
	"bytes"
	"errors"
	"mime"
	"strconv"
	"strings"
)

// ErrNoBoundary is returned by Parse for messages without an empty line
// separating the head from the body.
var ErrNoBoundary = errors.New("no head/body boundary")

// ContentLength is the name of the body length header.
const ContentLength = "Content-Length"

var (
	crlf     = []byte("\r\n")
	boundary = []byte("\r\n\r\n")
)

// Message is an HTTP message split into head lines and body.
type Message struct {
	// Head is the start line followed by header lines, without line
	// terminators.
	Head []string
	Body []byte
}

// Header is a single header, Name is matched case-insensitively.
type Header struct {
	Name  string
	Value string
}

// ParseHeader parses a "Name: value" string.
func ParseHeader(s string) (Header, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return Header{}, errors.New("header must be in the 'Name: value' form")
	}
	return Header{Name: name, Value: strings.TrimSpace(value)}, nil
}

// String implements fmt.Stringer interface, it returns the header line.
func (h Header) String() string {
	return h.Name + ": " + h.Value
}

// Parse splits raw at the first empty line. The body is not copied.
func Parse(raw []byte) (*Message, error) {
	i := bytes.Index(raw, boundary)
	if i < 0 {
		return nil, ErrNoBoundary
	}
	m := &Message{Body: raw[i+len(boundary):]}
	for _, l := range bytes.Split(raw[:i], crlf) {
		m.Head = append(m.Head, string(l))
	}
	return m, nil
}

// Bytes reassembles the message.
func (m *Message) Bytes() []byte {
	var n = len(boundary) + len(m.Body)
	for _, l := range m.Head {
		n += len(l) + len(crlf)
	}
	buf := bytes.NewBuffer(make([]byte, 0, n))
	for i, l := range m.Head {
		if i != 0 {
			buf.Write(crlf)
		}
		buf.WriteString(l)
	}
	buf.Write(boundary)
	buf.Write(m.Body)
	return buf.Bytes()
}

// StartLine returns the request or status line.
func (m *Message) StartLine() string {
	if len(m.Head) == 0 {
		return ""
	}
	return m.Head[0]
}

// Method returns the method of a request.
func (m *Message) Method() string {
	method, _, _ := strings.Cut(m.StartLine(), " ")
	return method
}

// headerAt parses the i-th head line as a header.
func (m *Message) headerAt(i int) (Header, bool) {
	if i == 0 {
		return Header{}, false
	}
	name, value, ok := strings.Cut(m.Head[i], ":")
	if !ok {
		return Header{}, false
	}
	return Header{Name: name, Value: strings.TrimSpace(value)}, true
}

// Index returns the index of the first head line with the given header
// name or -1.
func (m *Message) Index(name string) int {
	for i := range m.Head {
		if h, ok := m.headerAt(i); ok && strings.EqualFold(h.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the first header with the given name.
func (m *Message) Get(name string) (string, bool) {
	i := m.Index(name)
	if i < 0 {
		return "", false
	}
	h, _ := m.headerAt(i)
	return h.Value, true
}

// Has checks whether the message has the exact header h (value comparison
// is case-insensitive too).
func (m *Message) Has(h Header) bool {
	for i := range m.Head {
		if v, ok := m.headerAt(i); ok && strings.EqualFold(v.Name, h.Name) && strings.EqualFold(v.Value, h.Value) {
			return true
		}
	}
	return false
}

// Set replaces the value of the first header with the given name keeping
// its name spelling and position. The header is appended if missing.
func (m *Message) Set(name, value string) {
	if i := m.Index(name); i >= 0 {
		h, _ := m.headerAt(i)
		h.Value = value
		m.Head[i] = h.String()
		return
	}
	m.Head = append(m.Head, Header{Name: name, Value: value}.String())
}

// InsertBefore adds h right before the first header with the given name or
// appends it if there is no such header.
func (m *Message) InsertBefore(name string, h Header) {
	i := m.Index(name)
	if i < 0 {
		m.Head = append(m.Head, h.String())
		return
	}
	m.Head = append(m.Head[:i], append([]string{h.String()}, m.Head[i:]...)...)
}

// Remove drops all occurrences of the exact header h and returns their
// number.
func (m *Message) Remove(h Header) int {
	var (
		res  = m.Head[:0]
		gone int
	)
	for i, l := range m.Head {
		if v, ok := m.headerAt(i); ok && strings.EqualFold(v.Name, h.Name) && strings.EqualFold(v.Value, h.Value) {
			gone++
			continue
		}
		res = append(res, l)
	}
	m.Head = res
	return gone
}

// FixContentLength sets Content-Length to the body length if the header is
// present, messages without it are left without it.
func (m *Message) FixContentLength() {
	if m.Index(ContentLength) >= 0 {
		m.Set(ContentLength, strconv.Itoa(len(m.Body)))
	}
}

// MediaType returns the lowercased media type of Content-Type without
// parameters.
func (m *Message) MediaType() string {
	v, ok := m.Get("Content-Type")
	if !ok {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		mt, _, _ = strings.Cut(v, ";")
		mt = strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}

// Chunked checks whether the body is sent with chunked transfer coding.
func (m *Message) Chunked() bool {
	v, ok := m.Get("Transfer-Encoding")
	return ok && strings.Contains(strings.ToLower(v), "chunked")
}
