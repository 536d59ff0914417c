package httpmsg

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/die-net/webrelay/internal/proxyerr"
)

// Target is the origin server addressed by an absolute request URL.
type Target struct {
	Scheme string
	Host   string
	Port   int
	// Path is the origin-form request target: path plus query, never empty.
	Path string
}

// Addr returns host:port suitable for dialing.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget extracts the origin server from an absolute http or https
// request URL, substituting the scheme's default port when none is given.
func ParseTarget(raw string) (Target, error) {
	const op = "parse target"

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, proxyerr.E(proxyerr.MalformedURL, op, err)
	}

	scheme := strings.ToLower(u.Scheme)
	port, ok := defaultPort(scheme)
	if !ok {
		return Target{}, proxyerr.Errorf(proxyerr.MalformedURL, op, "unsupported scheme %q in %q", u.Scheme, raw)
	}

	host := u.Hostname()
	if host == "" {
		return Target{}, proxyerr.Errorf(proxyerr.MalformedURL, op, "missing host in %q", raw)
	}

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, proxyerr.Errorf(proxyerr.MalformedURL, op, "bad port %q in %q", p, raw)
		}
	}

	return Target{
		Scheme: scheme,
		Host:   host,
		Port:   port,
		Path:   u.RequestURI(),
	}, nil
}

func defaultPort(scheme string) (int, bool) {
	switch scheme {
	case "http":
		return 80, true
	case "https":
		return 443, true
	default:
		return 0, false
	}
}
