package httpmsg

import (
	"strings"
)

// Header is an ordered block of raw "Name: value" lines, without line
// terminators. Duplicate names are kept as-is; Get returns the first match.
type Header []string

// Get returns the trimmed value of the first line whose name matches name
// case-insensitively.
func (h Header) Get(name string) (string, bool) {
	for _, line := range h {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Add appends a "name: value" line.
func (h *Header) Add(name, value string) {
	*h = append(*h, name+": "+value)
}

// Len returns the number of header lines.
func (h Header) Len() int {
	return len(h)
}

func (h Header) writeTo(sb *strings.Builder) {
	for _, line := range h {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
}

// String returns the block with CRLF after every line.
func (h Header) String() string {
	var sb strings.Builder
	h.writeTo(&sb)
	return sb.String()
}

// hopByHop reports whether a request header line negotiates connection
// persistence with the proxy. Such lines are dropped from relayed requests.
func hopByHop(line string) bool {
	upper := strings.ToUpper(line)
	if strings.Contains(upper, "KEEP-ALIVE") || strings.Contains(upper, "PROXY-CONNECTION") {
		return true
	}
	name, _, ok := strings.Cut(line, ":")
	return ok && strings.EqualFold(strings.TrimSpace(name), "Connection")
}
