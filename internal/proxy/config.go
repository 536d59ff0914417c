package proxy

import (
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/die-net/webrelay/internal/queue"
	"github.com/die-net/webrelay/internal/registry"
	"github.com/die-net/webrelay/internal/worker"
)

type Config struct {
	Registry *registry.Registry
	Queue    *queue.Queue[worker.Job]

	Logger *slog.Logger

	PromRegistry  prometheus.Registerer
	PromNamespace string
}

// ListenConfig controls the client listener.
type ListenConfig struct {
	KeepAlive net.KeepAliveConfig
	// ReusePort sets SO_REUSEPORT so several processes can share the port.
	ReusePort bool
}
