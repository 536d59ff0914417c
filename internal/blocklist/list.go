// Package blocklist decides which origin hosts the proxy refuses to contact.
//
// Rules come from a YAML file and are swapped atomically on Reload, so
// IsBlocked never blocks on a reload in progress.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// List is a hot-reloadable Matcher backed by a file.
type List struct {
	path string
	log  *slog.Logger
	m    atomic.Pointer[Matcher]
}

// Open loads the rules at path.
func Open(path string, log *slog.Logger) (*List, error) {
	if log == nil {
		log = slog.Default()
	}
	l := &List{path: filepath.Clean(path), log: log}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// IsBlocked reports whether requests to host must be refused.
func (l *List) IsBlocked(host string) bool {
	return l.m.Load().Match(host)
}

// Reload re-reads the file. On error the previous rules stay in effect.
func (l *List) Reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("blocklist: %w", err)
	}
	m, err := ParseRules(data)
	if err != nil {
		return fmt.Errorf("blocklist %s: %w", l.path, err)
	}
	l.m.Store(m)
	l.log.Info("blocklist loaded", "path", l.path, "rules", m.Len())
	return nil
}

// Watch reloads the list whenever its file changes, until ctx is done. The
// parent directory is watched so editors that replace the file by rename are
// picked up too.
func (l *List) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("blocklist watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("blocklist watch %s: %w", filepath.Dir(l.path), err)
	}

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("blocklist watch: events channel closed")
			}
			if filepath.Clean(ev.Name) != l.path || ev.Op == fsnotify.Chmod {
				continue
			}
			l.log.Debug("blocklist changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("blocklist watch: errors channel closed")
			}
			l.log.Warn("blocklist watch", "err", err)
		case <-timer.C:
			if err := l.Reload(); err != nil {
				l.log.Error("blocklist reload failed, keeping previous rules", "err", err)
			}
		}
	}
}
