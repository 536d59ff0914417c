package httpmsg

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/die-net/webrelay/internal/proxyerr"
)

// Request is a parsed client request. URL is the raw request target exactly
// as the client sent it (an absolute URL for proxy requests).
type Request struct {
	Method  string
	URL     string
	Version string
	Header  Header
}

// ReadRequest reads one request line and its headers from br.
//
// Only GET and HEAD over a version ending in "1.1" are accepted. Header lines
// negotiating keep-alive or proxy connection persistence are dropped and a
// single "Connection: close" line is appended.
func ReadRequest(br *bufio.Reader) (*Request, error) {
	const op = "read request"

	line, err := readLine(br)
	if err != nil {
		return nil, lineError(op, err)
	}
	if line == "" {
		return nil, proxyerr.Errorf(proxyerr.ProtocolError, op, "empty request line")
	}

	method, rest, _ := strings.Cut(line, " ")
	method = strings.TrimSpace(method)
	if !strings.EqualFold(method, "GET") && !strings.EqualFold(method, "HEAD") {
		skipHeaders(br)
		return nil, proxyerr.Errorf(proxyerr.UnsupportedMethodOrVersion, op, "method %q", method)
	}

	// A line without a version is HTTP/0.9, which is not served.
	target, version, ok := strings.Cut(strings.TrimSpace(rest), " ")
	if !ok {
		skipHeaders(br)
		return nil, proxyerr.Errorf(proxyerr.UnsupportedMethodOrVersion, op, "no version in %q", line)
	}
	version = strings.TrimSpace(version)
	if !strings.HasSuffix(version, "1.1") {
		skipHeaders(br)
		return nil, proxyerr.Errorf(proxyerr.UnsupportedMethodOrVersion, op, "version %q", version)
	}

	req := &Request{
		Method:  method,
		URL:     strings.TrimSpace(target),
		Version: version,
	}

	for {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, lineError(op, err)
		}
		if line == "" {
			break
		}
		if hopByHop(line) {
			continue
		}
		req.Header = append(req.Header, line)
	}
	req.Header.Add("Connection", "close")

	return req, nil
}

// skipHeaders consumes the rest of a rejected request's header block so the
// 501 reply is not cut short by a reset for unread input.
func skipHeaders(br *bufio.Reader) {
	for {
		line, err := readLine(br)
		if err != nil || line == "" {
			return
		}
	}
}

// WithURL returns a copy of r whose request target is url.
func (r *Request) WithURL(url string) *Request {
	c := *r
	c.Header = append(Header(nil), r.Header...)
	c.URL = url
	return &c
}

// String returns the wire form: request line, header block, blank line.
func (r *Request) String() string {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(' ')
	sb.WriteString(r.URL)
	sb.WriteByte(' ')
	sb.WriteString(r.Version)
	sb.WriteString("\r\n")
	r.Header.writeTo(&sb)
	sb.WriteString("\r\n")
	return sb.String()
}

// Bytes returns the wire form of r.
func (r *Request) Bytes() []byte {
	return []byte(r.String())
}

// lineError classifies a failure to read a line: running out of input or an
// oversized line is a framing problem, anything else came from the socket.
func lineError(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errLineTooLong) {
		return proxyerr.E(proxyerr.ProtocolError, op, err)
	}
	return proxyerr.E(proxyerr.IOError, op, err)
}
