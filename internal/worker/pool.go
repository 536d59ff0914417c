// Package worker implements the fixed-size pool that relays queued client
// requests to their origin servers.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/webrelay/internal/httpmsg"
	"github.com/die-net/webrelay/internal/proxyerr"
	"github.com/die-net/webrelay/internal/queue"
	"github.com/die-net/webrelay/internal/registry"
)

// DefaultWorkers is the pool size used when Config.Workers is not positive.
const DefaultWorkers = 20

// Blocklist decides whether requests to host are refused with 403.
type Blocklist interface {
	IsBlocked(host string) bool
}

type Config struct {
	Registry *registry.Registry
	Queue    *queue.Queue[Job]
	Workers  int

	// Blocklist is optional.
	Blocklist Blocklist

	Logger *slog.Logger

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

type Pool struct {
	registry  *registry.Registry
	queue     *queue.Queue[Job]
	workers   int
	blocklist Blocklist
	log       *slog.Logger
	metrics   *poolMetrics
}

func NewPool(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	q := cfg.Queue
	if q == nil {
		q = queue.New[Job]()
	}

	return &Pool{
		registry:  cfg.Registry,
		queue:     q,
		workers:   workers,
		blocklist: cfg.Blocklist,
		log:       log,
		metrics: newPoolMetrics(cfg.PromRegistry, cfg.PromNamespace, func() float64 {
			return float64(q.Len())
		}),
	}
}

// Run starts the workers and blocks until ctx is done. Each worker finishes
// the job it holds before exiting; in-flight jobs are bounded by the
// registry's read timeout, not by ctx.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	jobCtx := context.WithoutCancel(ctx)
	for range p.workers {
		g.Go(func() error {
			for {
				job, err := p.queue.Wait(ctx)
				if err != nil {
					return nil
				}
				p.Process(jobCtx, job)
			}
		})
	}
	return g.Wait()
}

// Process relays one job and always closes its client handle, whatever
// happens along the way, including a panic.
func (p *Pool) Process(ctx context.Context, job Job) {
	start := time.Now()
	log := p.log.With("job", job.ID, "client", job.Client)
	outcome := outcomeError

	p.metrics.start()
	defer func() {
		if r := recover(); r != nil {
			outcome = outcomePanic
			log.Error("panic processing job", "panic", r, "stack", string(debug.Stack()))
		}
		p.close(log, job.Client)
		p.metrics.done(outcome, time.Since(start))
	}()

	outcome = p.relay(ctx, log, job)
}

func (p *Pool) relay(ctx context.Context, log *slog.Logger, job Job) string {
	req := job.Request

	target, err := httpmsg.ParseTarget(req.URL)
	if err != nil {
		log.Debug("malformed url", "url", req.URL, "err", err)
		p.reply(log, job.Client, httpmsg.Text("Malformed url: "+req.URL))
		return outcomeMalformedURL
	}
	log = log.With("host", target.Host)

	if p.blocklist != nil && p.blocklist.IsBlocked(target.Host) {
		log.Info("blocked")
		p.reply(log, job.Client, httpmsg.Forbidden())
		return outcomeBlocked
	}

	up, err := p.registry.ConnectUpstream(ctx, target.Host, target.Port)
	if err != nil {
		if !errors.Is(err, proxyerr.UpstreamUnreachable) {
			log.Warn("connect upstream", "err", err)
			return outcomeError
		}
		log.Debug("unknown host", "err", err)
		p.reply(log, job.Client, httpmsg.Text("Unknown host: "+target.Host))
		return outcomeUnknownHost
	}
	defer p.close(log, up)

	// The origin-form copy goes first, then the request exactly as the
	// client sent it.
	for _, r := range []*httpmsg.Request{req.WithURL(target.Path), req} {
		if err := p.registry.SendRequest(up, r); err != nil {
			log.Warn("send request", "upstream", up, "err", err)
			return outcomeError
		}
	}

	resp, err := p.registry.ReadResponse(up)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			log.Warn("upstream timed out", "upstream", up)
			p.reply(log, job.Client, httpmsg.GatewayTimeout())
			return outcomeGatewayTimeout
		}
		log.Warn("read response", "upstream", up, "err", err)
		return outcomeError
	}

	if err := p.registry.SendResponse(job.Client, resp); err != nil {
		log.Warn("send response", "err", err)
		return outcomeError
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("relayed", "status", resp.Status, "bytes", len(resp.Bytes()), "head", resp.StatusLineAndHeaders())
	}
	return outcomeRelayed
}

func (p *Pool) reply(log *slog.Logger, h registry.Handle, resp *httpmsg.Response) {
	if err := p.registry.SendResponse(h, resp); err != nil {
		log.Warn("send synthesized response", "status", resp.Status, "err", err)
	}
}

func (p *Pool) close(log *slog.Logger, h registry.Handle) {
	if err := p.registry.Close(h); err != nil && !errors.Is(err, proxyerr.HandleNotFound) {
		log.Debug("close", "handle", h, "err", err)
	}
}
