// Package connectivity tracks whether the storefront backend is reachable.
package connectivity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
)

var onlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "storefront_connectivity_online",
	Help: "1 when the storefront backend is considered reachable, 0 otherwise",
})

// Monitor holds the current online flag and notifies subscribers when the
// state goes from offline to online.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func()
	logger *slog.Logger
}

// NewMonitor creates a monitor with the given initial state.
func NewMonitor(online bool, logger *slog.Logger) *Monitor {
	m := &Monitor{
		online: online,
		subs:   make(map[int]func()),
		logger: logger,
	}
	onlineGauge.Set(boolToFloat(online))
	return m
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity change. Subscribers run synchronously,
// outside the lock, and only on an offline to online transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	prev := m.online
	m.online = online
	var notify []func()
	if !prev && online {
		notify = make([]func(), 0, len(m.subs))
		for _, fn := range m.subs {
			notify = append(notify, fn)
		}
	}
	m.mu.Unlock()

	if prev == online {
		return
	}
	onlineGauge.Set(boolToFloat(online))
	m.logger.Info("connectivity changed", slog.Bool("online", online))

	for _, fn := range notify {
		fn()
	}
}

// Subscribe registers fn for the became-online event.
func (m *Monitor) Subscribe(fn func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Probe checks url every interval until ctx is done and updates the state.
// Any HTTP response counts as reachable; only a network failure marks the
// backend offline.
func (m *Monitor) Probe(ctx context.Context, doer httpclient.Doer, url string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.SetOnline(m.check(ctx, doer, url))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) check(ctx context.Context, doer httpclient.Doer, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		m.logger.Error("build connectivity probe", slog.String("error", err.Error()))
		return m.Online()
	}

	resp, err := doer.Do(httpclient.WithOperation(ctx, "connectivity-probe"), req)
	if err != nil {
		if ctx.Err() != nil {
			return m.Online()
		}
		var rerr *apperrors.RemoteError
		if errors.As(err, &rerr) {
			return !rerr.Network
		}
		return false
	}
	_ = resp.Body.Close()
	return true
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
