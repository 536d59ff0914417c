package registry

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// conn is one socket owned by the registry. mu serializes reads and writes
// on it; different conns never share a lock.
type conn struct {
	kind string
	nc   net.Conn

	mu sync.Mutex
	br *bufio.Reader
	bw *bufio.Writer
}

func newConn(nc net.Conn, kind string, readTimeout time.Duration) *conn {
	return &conn{
		kind: kind,
		nc:   nc,
		br:   bufio.NewReader(&deadlineReader{c: nc, timeout: readTimeout}),
		bw:   bufio.NewWriter(nc),
	}
}

func (c *conn) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.bw.Write(b); err != nil {
		return err
	}
	return c.bw.Flush()
}

// close does not take mu: write always flushes before returning, and closing
// the socket is what unblocks a reader stuck waiting on it.
func (c *conn) close() error {
	return c.nc.Close()
}

// deadlineReader arms a fresh read deadline before every Read, so the
// timeout bounds each wait for data rather than the whole exchange.
type deadlineReader struct {
	c       net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.c.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.c.Read(p)
}
