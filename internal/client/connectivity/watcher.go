// Package connectivity probes the community server and reports
// online/offline transitions.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/callshield/internal/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher pings at a fixed interval. OnChange is called once per transition
// and once for the first successful probe.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
	onChange func(online bool)

	mu     sync.Mutex
	online bool
}

func NewWatcher(p Pinger, interval, timeout time.Duration, l logging.Logger, onChange func(online bool)) *Watcher {
	return &Watcher{
		pinger:   p,
		interval: interval,
		timeout:  timeout,
		logger:   l.With("module", "connectivity"),
		onChange: onChange,
	}
}

// Run probes immediately and then on every tick until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Check performs one probe and returns the resulting state.
func (w *Watcher) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.pinger.Ping(pctx)
	cancel()

	online := err == nil

	w.mu.Lock()
	changed := w.online != online
	w.online = online
	w.mu.Unlock()

	if changed {
		if online {
			w.logger.Info(ctx, "server reachable, switching to online mode")
		} else {
			w.logger.Warn(ctx, "server unreachable, switching to offline mode", "error", err)
		}
		if w.onChange != nil {
			w.onChange(online)
		}
	}
	return online
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}
