package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/die-net/webrelay/internal/httpmsg"
	"github.com/die-net/webrelay/internal/proxyerr"
	"github.com/die-net/webrelay/internal/queue"
	"github.com/die-net/webrelay/internal/registry"
	"github.com/die-net/webrelay/internal/worker"
)

const maxAcceptDelay = time.Second

// Server is the acceptor: it registers each client, reads its request and
// queues a job for the worker pool.
type Server struct {
	registry *registry.Registry
	queue    *queue.Queue[worker.Job]
	log      *slog.Logger
	metrics  *serverMetrics
}

func NewServer(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		registry: cfg.Registry,
		queue:    cfg.Queue,
		log:      log,
		metrics:  newServerMetrics(cfg.PromRegistry, cfg.PromNamespace),
	}
}

// Serve accepts clients on ln one at a time until ctx is done, which closes
// ln. Transient accept failures are retried with backoff; Serve returns nil
// on cancellation and the accept error if ln is closed underneath it.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var delay time.Duration
	for {
		h, err := s.registry.AcceptClient(ln)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			s.log.Warn("accept failed", "err", err, "retry_in", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		s.ingest(h)
	}
}

func (s *Server) ingest(h registry.Handle) {
	req, err := s.registry.ReadRequest(h)
	if err == nil {
		job := worker.NewJob(req, h)
		s.log.Debug("queued", "job", job.ID, "client", h, "method", req.Method, "url", req.URL)
		s.queue.Push(job)
		s.metrics.request(requestQueued)
		return
	}

	log := s.log.With("client", h, "remote", s.registry.RemoteAddr(h))
	switch proxyerr.KindOf(err) {
	case proxyerr.UnsupportedMethodOrVersion:
		log.Debug("not implemented", "err", err)
		if err := s.registry.SendResponse(h, httpmsg.NotImplemented()); err != nil {
			log.Debug("send 501", "err", err)
		}
		s.metrics.request(requestNotImplemented)
	case proxyerr.ProtocolError:
		log.Debug("bad request", "err", err)
		s.metrics.request(requestProtocolError)
	default:
		log.Warn("read request", "err", err)
		s.metrics.request(requestIOError)
	}

	if err := s.registry.Close(h); err != nil && !errors.Is(err, proxyerr.HandleNotFound) {
		log.Debug("close", "err", err)
	}
}
