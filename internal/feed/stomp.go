package feed

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
)

// STOMP commands used by the feed session.
const (
	CommandConnect   = "CONNECT"
	CommandConnected = "CONNECTED"
	CommandSubscribe = "SUBSCRIBE"
	CommandSend      = "SEND"
	CommandMessage   = "MESSAGE"
	CommandError     = "ERROR"
)

// ErrMalformedFrame is returned when a payload is not a STOMP frame.
var ErrMalformedFrame = errors.New("malformed STOMP frame")

// Header is a single frame header. Order is preserved on encode.
type Header struct {
	Key   string
	Value string
}

// Frame is a STOMP frame.
type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

// NewFrame builds a frame from alternating key/value header arguments.
func NewFrame(command string, body []byte, kv ...string) Frame {
	f := Frame{Command: command, Body: body}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers = append(f.Headers, Header{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Header returns the first value for key.
func (f Frame) Header(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Encode serializes f, terminated by a NUL byte.
func (f Frame) Encode() []byte {
	var b bytes.Buffer
	b.WriteString(f.Command)
	b.WriteByte('\n')
	for _, h := range f.Headers {
		b.WriteString(h.Key)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// IsHeartbeat reports whether data consists only of end-of-line bytes.
func IsHeartbeat(data []byte) bool {
	return len(bytes.Trim(data, "\r\n")) == 0
}

// ParseFrame parses a single STOMP frame. Leading end-of-line bytes
// (heartbeats) are skipped. The body runs to content-length when present,
// otherwise to the first NUL or the end of data.
func ParseFrame(data []byte) (Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return Frame{}, ErrMalformedFrame
	}

	head, body, ok := cutHead(data)
	if !ok {
		return Frame{}, ErrMalformedFrame
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	f := Frame{Command: strings.TrimSpace(lines[0])}
	if f.Command == "" {
		return Frame{}, ErrMalformedFrame
	}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return Frame{}, ErrMalformedFrame
		}
		f.Headers = append(f.Headers, Header{Key: k, Value: v})
	}

	if cl, ok := f.Header("content-length"); ok {
		if n, err := strconv.Atoi(cl); err == nil && n >= 0 && n <= len(body) {
			f.Body = body[:n]
			return f, nil
		}
	}
	if i := bytes.IndexByte(body, 0); i >= 0 {
		body = body[:i]
	}
	f.Body = body
	return f, nil
}

// cutHead splits data at the blank line that ends the headers.
func cutHead(data []byte) (head, body []byte, ok bool) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		if j := bytes.Index(data, []byte("\r\n\r\n")); j >= 0 && j < i {
			return data[:j], data[j+4:], true
		}
		return data[:i], data[i+2:], true
	}
	if j := bytes.Index(data, []byte("\r\n\r\n")); j >= 0 {
		return data[:j], data[j+4:], true
	}
	// A frame with no headers and no body, e.g. "DISCONNECT\n" or "CONNECTED\x00".
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return bytes.TrimRight(data[:i], "\r\n"), nil, true
	}
	return nil, nil, false
}
