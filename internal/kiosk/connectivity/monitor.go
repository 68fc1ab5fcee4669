// Package connectivity tracks whether the kiosk can reach the API.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Monitor holds the online flag and notifies subscribers on changes.
type Monitor struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
	log    zerolog.Logger
}

// NewMonitor starts in the given state.
func NewMonitor(online bool, baseLogger *zerolog.Logger) *Monitor {
	return &Monitor{
		online: online,
		subs:   make(map[int]func(bool)),
		log:    baseLogger.With().Str("component", "connectivity").Logger(),
	}
}

// Online reports the last known state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records the state. Subscribers run only on a change, outside the lock.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.log.Info().Bool("online", online).Msg("Connectivity changed")
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (m *Monitor) Subscribe(fn func(online bool)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Prober polls the API health endpoint and feeds the monitor.
type Prober struct {
	client   *resty.Client
	monitor  *Monitor
	interval time.Duration
	log      zerolog.Logger
}

// NewProber probes baseURL + "/health" every interval.
func NewProber(baseURL string, monitor *Monitor, interval time.Duration, baseLogger *zerolog.Logger) *Prober {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5 * time.Second)
	return &Prober{
		client:   client,
		monitor:  monitor,
		interval: interval,
		log:      baseLogger.With().Str("component", "connectivity_prober").Logger(),
	}
}

// Probe checks once and updates the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	resp, err := p.client.R().SetContext(ctx).Get("/health")
	online := err == nil && resp.StatusCode() == http.StatusOK
	if err != nil {
		p.log.Debug().Err(err).Msg("Health probe failed")
	}
	p.monitor.Set(online)
	return online
}

// Run probes until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
