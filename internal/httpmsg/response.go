package httpmsg

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/die-net/webrelay/internal/proxyerr"
)

// Origin tells where a Response came from.
type Origin uint8

const (
	// Relayed responses were read from an upstream server.
	Relayed Origin = iota
	// Synthesized responses were generated by the proxy itself.
	Synthesized
)

func (o Origin) String() string {
	if o == Synthesized {
		return "synthesized"
	}
	return "relayed"
}

// Response is a parsed HTTP response that keeps its original bytes for
// verbatim retransmission.
type Response struct {
	Version string
	Status  int
	Reason  string
	Header  Header
	Origin  Origin

	raw []byte
}

// ParseResponse parses the status line and headers of payload. The payload
// itself is retained untouched and returned by Bytes.
func ParseResponse(payload []byte) (*Response, error) {
	return parseResponse(payload, Relayed)
}

func parseResponse(payload []byte, origin Origin) (*Response, error) {
	const op = "parse response"

	br := bufio.NewReader(bytes.NewReader(payload))
	line, err := readLine(br)
	if err != nil {
		return nil, lineError(op, err)
	}
	if line == "" {
		return nil, proxyerr.Errorf(proxyerr.ProtocolError, op, "empty status line")
	}

	version, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil, proxyerr.Errorf(proxyerr.ProtocolError, op, "no status code in %q", line)
	}
	code, reason, _ := strings.Cut(strings.TrimSpace(rest), " ")
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 || status > 999 {
		return nil, proxyerr.Errorf(proxyerr.ProtocolError, op, "bad status code %q", code)
	}

	resp := &Response{
		Version: strings.TrimSpace(version),
		Status:  status,
		Reason:  strings.TrimSpace(reason),
		Origin:  origin,
		raw:     payload,
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
		resp.Header = append(resp.Header, line)
	}

	return resp, nil
}

// Bytes returns the full original payload: status line, headers and body.
func (r *Response) Bytes() []byte {
	return r.raw
}

// Body returns the bytes after the blank line ending the header block.
func (r *Response) Body() []byte {
	if i := bytes.Index(r.raw, []byte("\r\n\r\n")); i >= 0 {
		return r.raw[i+4:]
	}
	if i := bytes.Index(r.raw, []byte("\n\n")); i >= 0 {
		return r.raw[i+2:]
	}
	return nil
}

// StatusLineAndHeaders renders the head of the response, for logging.
func (r *Response) StatusLineAndHeaders() string {
	var sb strings.Builder
	sb.WriteString(r.Version)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(r.Status))
	sb.WriteByte(' ')
	sb.WriteString(r.Reason)
	sb.WriteString("\r\n")
	r.Header.writeTo(&sb)
	sb.WriteString("\r\n")
	return sb.String()
}
