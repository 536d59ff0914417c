package testutil

import (
	"context"
	"net"
	"sync/atomic"
)

// SpyDialer dials directly and counts how many times it was asked to.
type SpyDialer struct {
	calls atomic.Int64
	d     net.Dialer
}

func (s *SpyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	s.calls.Add(1)
	return s.d.DialContext(ctx, network, address)
}

func (s *SpyDialer) Calls() int64 {
	return s.calls.Load()
}
