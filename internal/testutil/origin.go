package testutil

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
)

// Origin is a minimal HTTP origin server that records every request head it
// receives. It answers the first request on each connection, half-closes its
// side, and keeps draining requests until the client closes.
type Origin struct {
	ln      net.Listener
	respond func(*http.Request) string
	wg      sync.WaitGroup

	mu   sync.Mutex
	reqs []*http.Request
}

// StartOrigin listens on loopback and serves until Wait is called or ctx is
// done. respond returns the raw bytes written back for the first request of
// each connection.
func StartOrigin(t *testing.T, ctx context.Context, respond func(*http.Request) string) *Origin {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	o := &Origin{ln: ln, respond: respond}
	o.wg.Go(func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			o.wg.Go(func() {
				stop := context.AfterFunc(ctx, func() { _ = c.Close() })
				defer stop()
				defer c.Close()
				o.serve(c)
			})
		}
	})
	return o
}

// StaticResponse answers every request with the same raw response.
func StaticResponse(raw string) func(*http.Request) string {
	return func(*http.Request) string { return raw }
}

func (o *Origin) serve(c net.Conn) {
	br := bufio.NewReader(c)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	o.record(req)

	if _, err := c.Write([]byte(o.respond(req))); err != nil {
		return
	}
	if cw, ok := c.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		o.record(req)
	}
}

func (o *Origin) record(req *http.Request) {
	o.mu.Lock()
	o.reqs = append(o.reqs, req)
	o.mu.Unlock()
}

// Addr returns the listener's host:port.
func (o *Origin) Addr() string {
	return o.ln.Addr().String()
}

// Port returns the listener's TCP port.
func (o *Origin) Port() string {
	_, port, _ := net.SplitHostPort(o.Addr())
	return port
}

// URL returns an absolute http URL for path on this origin.
func (o *Origin) URL(path string) string {
	return "http://" + o.Addr() + path
}

// Wait stops accepting, waits for in-flight connections to finish and
// returns everything recorded.
func (o *Origin) Wait() []*http.Request {
	_ = o.ln.Close()
	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*http.Request(nil), o.reqs...)
}
