package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New parses upstream and constructs the matching Dialer.
//
// Supported forms:
//   - direct://
//   - http://host[:port]
//   - socks5://[user:pass@]host[:port]
//
// A missing port is replaced by the scheme's default.
func New(cfg Config, upstream string) (Dialer, error) {
	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid url: path should be empty")
	}

	switch scheme {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "direct":
		return NewDirectDialer(cfg), nil
	case "http", "socks5":
		host := u.Hostname()
		if host == "" {
			return nil, errors.New("invalid url: missing host")
		}
		port := u.Port()
		if port == "" {
			port = defaultPortForScheme(scheme)
		}
		addr := net.JoinHostPort(host, port)

		if scheme == "http" {
			if u.User != nil {
				return nil, errors.New("invalid url: http parent proxy credentials are not supported")
			}
			return NewHTTPProxyDialer(cfg, addr), nil
		}

		var user, pass string
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		return NewSOCKS5ProxyDialer(cfg, addr, user, pass), nil
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
}

func defaultPortForScheme(scheme string) string {
	switch scheme {
	case "http":
		return "8080"
	case "socks5":
		return "1080"
	default:
		return ""
	}
}

// negotiate runs fn against c with NegotiationTimeout as the deadline and
// ctx able to abort it. c is closed if fn fails.
func negotiate(ctx context.Context, c net.Conn, timeout time.Duration, fn func() error) error {
	if timeout > 0 {
		_ = c.SetDeadline(time.Now().Add(timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})

	err := fn()
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = c.Close()
		return err
	}

	if timeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}
	return nil
}
