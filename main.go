package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/webrelay/internal/blocklist"
	"github.com/die-net/webrelay/internal/dialer"
	"github.com/die-net/webrelay/internal/logging"
	"github.com/die-net/webrelay/internal/proxy"
	"github.com/die-net/webrelay/internal/queue"
	"github.com/die-net/webrelay/internal/registry"
	"github.com/die-net/webrelay/internal/worker"
)

const promNamespace = "webrelay"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		httpListen = pflag.String("http-listen", ":8080", "HTTP proxy listen address")
		workers    = pflag.Int("workers", worker.DefaultWorkers, "Number of relay workers")

		upstream = pflag.String("upstream", defaultUpstream(), "Upstream connect strategy: direct:// | http://host:port | socks5://[user:pass@]host:port")

		readTimeout        = pflag.Duration("read-timeout", registry.DefaultReadTimeout, "Timeout for each read from a client or origin server")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for the handshake with a parent proxy")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		reusePort          = pflag.Bool("reuse-port", false, "Set SO_REUSEPORT on the listener")

		blocklistPath  = pflag.String("blocklist", "", "Path to a YAML file of blocked domains and patterns. Empty disables.")
		blocklistWatch = pflag.Bool("blocklist-watch", true, "Reload the blocklist when its file changes")

		debugListen = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof and /metrics (e.g. 127.0.0.1:6060). Empty disables.")
		logLevel    = pflag.String("log-level", "info", "Log level: debug|info|warn|error")
		logFormat   = pflag.String("log-format", logging.TextFormat, "Log format: text|json")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	log, err := logging.New(logging.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		return fmt.Errorf("invalid logging flags: %w", err)
	}
	slog.SetDefault(log)

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}
	if *workers <= 0 {
		return fmt.Errorf("invalid --workers: %d must be > 0", *workers)
	}

	d, err := dialer.New(dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
	}, *upstream)
	if err != nil {
		return fmt.Errorf("invalid --upstream: %w", err)
	}

	var (
		bl     *blocklist.List
		policy worker.Blocklist
	)
	if *blocklistPath != "" {
		bl, err = blocklist.Open(*blocklistPath, log)
		if err != nil {
			return fmt.Errorf("invalid --blocklist: %w", err)
		}
		policy = bl
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg := registry.New(registry.Config{
		ReadTimeout:   *readTimeout,
		Dialer:        d,
		Logger:        log,
		PromRegistry:  promReg,
		PromNamespace: promNamespace,
	})
	jobs := queue.New[worker.Job]()

	pool := worker.NewPool(worker.Config{
		Registry:      reg,
		Queue:         jobs,
		Workers:       *workers,
		Blocklist:     policy,
		Logger:        log,
		PromRegistry:  promReg,
		PromNamespace: promNamespace,
	})
	srv := proxy.NewServer(proxy.Config{
		Registry:      reg,
		Queue:         jobs,
		Logger:        log,
		PromRegistry:  promReg,
		PromNamespace: promNamespace,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := proxy.ListenTCP(ctx, "tcp", *httpListen, proxy.ListenConfig{KeepAlive: ka, ReusePort: *reusePort})
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if *debugListen != "" {
		http.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}))
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		log.Info("debug listening", "addr", debugLn.Addr().String())
	}

	if bl != nil && *blocklistWatch {
		g.Go(func() error {
			if err := bl.Watch(ctx); err != nil {
				log.Error("blocklist watch stopped, rules are now static", "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return pool.Run(ctx)
	})

	g.Go(func() error {
		if err := srv.Serve(ctx, ln); err != nil {
			return fmt.Errorf("http proxy serve: %w", err)
		}
		return nil
	})
	log.Info("http proxy listening", "addr", ln.Addr().String(), "workers", *workers, "upstream", *upstream)

	err = g.Wait()

	n := reg.CloseAll()
	log.Info("shutting down", "closed", n)
	return err
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

func defaultUpstream() string {
	for _, k := range []string{"ALL_PROXY", "all_proxy"} {
		if p := os.Getenv(k); p != "" {
			return p
		}
	}
	return "direct://"
}
