package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/txthinking/socks5"
)

// SOCKS5ProxyDialer reaches targets through a parent SOCKS5 proxy.
type SOCKS5ProxyDialer struct {
	cfg       Config
	proxyAddr string
	user      string
	pass      string
	direct    Dialer
}

func NewSOCKS5ProxyDialer(cfg Config, proxyAddr, user, pass string) *SOCKS5ProxyDialer {
	return &SOCKS5ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		user:      user,
		pass:      pass,
		direct:    NewDirectDialer(cfg),
	}
}

// ProxyAddr returns the parent proxy host:port.
func (f *SOCKS5ProxyDialer) ProxyAddr() string {
	return f.proxyAddr
}

func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}

	c, err := f.direct.DialContext(ctx, network, f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	err = negotiate(ctx, c, f.cfg.NegotiationTimeout, func() error {
		if err := f.authenticate(c); err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		if err := socks5Connect(c, address); err != nil {
			return fmt.Errorf("socks5 proxy connect %s: %w", address, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (f *SOCKS5ProxyDialer) authenticate(c net.Conn) error {
	methods := []byte{socks5.MethodNone}
	if f.user != "" {
		methods = append(methods, socks5.MethodUsernamePassword)
	}

	if _, err := socks5.NewNegotiationRequest(methods).WriteTo(c); err != nil {
		return fmt.Errorf("write negotiation: %w", err)
	}
	neg, err := socks5.NewNegotiationReplyFrom(c)
	if err != nil {
		return fmt.Errorf("read negotiation: %w", err)
	}

	switch neg.Method {
	case socks5.MethodNone:
		return nil
	case socks5.MethodUsernamePassword:
		if f.user == "" {
			return errors.New("server requires username/password")
		}
		if _, err := socks5.NewUserPassNegotiationRequest([]byte(f.user), []byte(f.pass)).WriteTo(c); err != nil {
			return fmt.Errorf("write userpass: %w", err)
		}
		rep, err := socks5.NewUserPassNegotiationReplyFrom(c)
		if err != nil {
			return fmt.Errorf("read userpass: %w", err)
		}
		if rep.Status != socks5.UserPassStatusSuccess {
			return errors.New("auth failed")
		}
		return nil
	default:
		return fmt.Errorf("unsupported negotiation method: %d", neg.Method)
	}
}

func socks5Connect(c net.Conn, address string) error {
	atyp, dstAddr, dstPort, err := socks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("parse address: %w", err)
	}
	// ParseAddress length-prefixes domains; NewRequest adds its own prefix.
	if atyp == socks5.ATYPDomain {
		dstAddr = dstAddr[1:]
	}

	if _, err := socks5.NewRequest(socks5.CmdConnect, atyp, dstAddr, dstPort).WriteTo(c); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	rep, err := socks5.NewReplyFrom(c)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if rep.Rep != socks5.RepSuccess {
		return fmt.Errorf("rejected with reply code %d", rep.Rep)
	}
	return nil
}
