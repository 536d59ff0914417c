package dialer

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// HTTPProxyDialer reaches targets through a parent HTTP proxy using the
// CONNECT method.
type HTTPProxyDialer struct {
	cfg       Config
	proxyAddr string
	direct    Dialer
}

func NewHTTPProxyDialer(cfg Config, proxyAddr string) *HTTPProxyDialer {
	return &HTTPProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		direct:    NewDirectDialer(cfg),
	}
}

// ProxyAddr returns the parent proxy host:port.
func (f *HTTPProxyDialer) ProxyAddr() string {
	return f.proxyAddr
}

// DialContext connects to the parent proxy and asks it to CONNECT to
// address. The tunnel is established before DialContext returns.
func (f *HTTPProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("http proxy dial %s %s: unsupported network", network, address)
	}

	c, err := f.direct.DialContext(ctx, network, f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("http proxy: %w", err)
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: address},
		Host:   address,
		Header: make(http.Header),
	}

	// The returned conn is used unbuffered, so nothing past the CONNECT
	// response may have been read into br.
	err = negotiate(ctx, c, f.cfg.NegotiationTimeout, func() error {
		if err := req.Write(c); err != nil {
			return fmt.Errorf("http proxy connect write: %w", err)
		}

		br := bufio.NewReaderSize(c, 16)
		resp, err := http.ReadResponse(br, req)
		if err != nil {
			return fmt.Errorf("http proxy connect read: %w", err)
		}
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("http proxy connect failed: %s", resp.Status)
		}
		if br.Buffered() > 0 {
			return fmt.Errorf("http proxy connect: %d unexpected bytes after response", br.Buffered())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
