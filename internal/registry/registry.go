// Package registry owns every live socket of the proxy and exposes them
// through opaque integer handles.
//
// Handles are assigned from a monotonically increasing counter and are never
// reused, so a handle that has been closed can only ever fail lookups with
// proxyerr.HandleNotFound; it can never alias a newer connection.
//
// The handle map is guarded by one lock. Socket I/O is guarded per
// connection, so workers relaying different handles never contend.
package registry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/die-net/webrelay/internal/dialer"
	"github.com/die-net/webrelay/internal/httpmsg"
	"github.com/die-net/webrelay/internal/proxyerr"
)

// DefaultReadTimeout bounds each blocking read on a registered connection.
const DefaultReadTimeout = 10 * time.Second

// Handle identifies one open connection in a Registry.
type Handle uint64

type Config struct {
	// ReadTimeout bounds every individual read. Zero selects
	// DefaultReadTimeout; a negative value disables the timeout.
	ReadTimeout time.Duration

	// Dialer opens upstream connections. Nil dials directly with
	// ReadTimeout as the connect timeout.
	Dialer dialer.Dialer

	Logger *slog.Logger

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

type Registry struct {
	readTimeout time.Duration
	dialer      dialer.Dialer
	log         *slog.Logger
	metrics     *registryMetrics
	buffers     *bufferPool

	next atomic.Uint64

	mu    sync.RWMutex
	conns map[Handle]*conn
}

func New(cfg Config) *Registry {
	timeout := cfg.ReadTimeout
	switch {
	case timeout == 0:
		timeout = DefaultReadTimeout
	case timeout < 0:
		timeout = 0
	}

	d := cfg.Dialer
	if d == nil {
		d = dialer.NewDirectDialer(dialer.Config{DialTimeout: timeout})
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Registry{
		readTimeout: timeout,
		dialer:      d,
		log:         log,
		metrics:     newRegistryMetrics(cfg.PromRegistry, cfg.PromNamespace),
		buffers:     newBufferPool(readChunkSize),
		conns:       make(map[Handle]*conn),
	}
}

// AcceptClient blocks until ln yields a client connection and registers it.
func (r *Registry) AcceptClient(ln net.Listener) (Handle, error) {
	nc, err := ln.Accept()
	if err != nil {
		if !errors.Is(err, net.ErrClosed) {
			r.metrics.acceptError()
		}
		return 0, proxyerr.E(proxyerr.ListenerError, "accept client", err)
	}
	return r.add(nc, kindClient), nil
}

// ConnectUpstream resolves host and connects to host:port through the
// configured dialer. Any failure to establish the connection is reported as
// proxyerr.UpstreamUnreachable; dialers close partially opened sockets
// before returning an error.
func (r *Registry) ConnectUpstream(ctx context.Context, host string, port int) (Handle, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	nc, err := r.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		r.metrics.dialError()
		return 0, proxyerr.E(proxyerr.UpstreamUnreachable, "connect upstream", err)
	}
	return r.add(nc, kindUpstream), nil
}

// ReadRequest reads and parses one request from the connection.
func (r *Registry) ReadRequest(h Handle) (*httpmsg.Request, error) {
	c, err := r.lookup(h, "read request")
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return httpmsg.ReadRequest(c.br)
}

// SendRequest writes req and flushes it.
func (r *Registry) SendRequest(h Handle, req *httpmsg.Request) error {
	c, err := r.lookup(h, "send request")
	if err != nil {
		return err
	}
	if err := c.write(req.Bytes()); err != nil {
		return proxyerr.E(proxyerr.IOError, "send request", err)
	}
	return nil
}

// ReadResponse reads until the peer closes the connection and parses what
// arrived. The read timeout applies to each wait for more data; hitting it
// is an IOError, not the end of the response.
func (r *Registry) ReadResponse(h Handle) (*httpmsg.Response, error) {
	const op = "read response"

	c, err := r.lookup(h, op)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bufp := r.buffers.Get()
	defer r.buffers.Put(bufp)
	chunk := *bufp

	var payload bytes.Buffer
	for {
		n, err := c.br.Read(chunk)
		payload.Write(chunk[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, proxyerr.E(proxyerr.IOError, op, err)
		}
	}

	return httpmsg.ParseResponse(payload.Bytes())
}

// SendResponse writes the response's original bytes and flushes them.
func (r *Registry) SendResponse(h Handle, resp *httpmsg.Response) error {
	c, err := r.lookup(h, "send response")
	if err != nil {
		return err
	}
	if err := c.write(resp.Bytes()); err != nil {
		return proxyerr.E(proxyerr.IOError, "send response", err)
	}
	return nil
}

// Close flushes and closes the connection and forgets the handle. Closing an
// unknown or already closed handle fails with proxyerr.HandleNotFound.
func (r *Registry) Close(h Handle) error {
	r.mu.Lock()
	c, ok := r.conns[h]
	delete(r.conns, h)
	r.mu.Unlock()

	if !ok {
		return proxyerr.Errorf(proxyerr.HandleNotFound, "close", "handle %d", h)
	}

	r.metrics.close(c.kind)
	if err := c.close(); err != nil {
		return proxyerr.E(proxyerr.IOError, "close", err)
	}
	return nil
}

// CloseAll closes every registered connection and returns how many there
// were.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[Handle]*conn)
	r.mu.Unlock()

	for h, c := range conns {
		r.metrics.close(c.kind)
		if err := c.close(); err != nil {
			r.log.Debug("close on shutdown", "handle", h, "err", err)
		}
	}
	return len(conns)
}

// Len returns the number of open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RemoteAddr returns the peer address of h, or "" if h is unknown.
func (r *Registry) RemoteAddr(h Handle) string {
	c, err := r.lookup(h, "remote addr")
	if err != nil {
		return ""
	}
	return c.nc.RemoteAddr().String()
}

func (r *Registry) add(nc net.Conn, kind string) Handle {
	c := newConn(nc, kind, r.readTimeout)
	h := Handle(r.next.Add(1) - 1)

	r.mu.Lock()
	r.conns[h] = c
	r.mu.Unlock()

	r.metrics.open(kind)
	return h
}

func (r *Registry) lookup(h Handle, op string) (*conn, error) {
	r.mu.RLock()
	c, ok := r.conns[h]
	r.mu.RUnlock()

	if !ok {
		return nil, proxyerr.Errorf(proxyerr.HandleNotFound, op, "handle %d", h)
	}
	return c, nil
}
