package dialer

import (
	"net"
	"time"
)

type Config struct {
	// DialTimeout bounds DNS lookup plus TCP connect.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the handshake with a parent proxy.
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig
}
