package wallet

import (
	"context"
	"time"
)

// Watcher keeps a bridge's provider slot in step with its probe, so a key
// file that is removed disconnects the wallet even while nobody asks for it
type Watcher struct {
	bridge   *Bridge
	interval time.Duration
}

// NewWatcher creates a watcher re-probing every interval
func NewWatcher(bridge *Bridge, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{bridge: bridge, interval: interval}
}

// Run re-probes until ctx is done
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.bridge.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.bridge.Refresh()
		}
	}
}
