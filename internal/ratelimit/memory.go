package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultCleanupInterval = 5 * time.Minute
	DefaultRetention       = time.Hour
)

type MemoryConfig struct {
	// CleanupInterval is the sweep cadence. Defaults to DefaultCleanupInterval.
	CleanupInterval time.Duration
	// Retention is the age past which the sweep drops timestamps. It is
	// raised to the longest policy interval checked so far. Defaults to
	// DefaultRetention.
	Retention time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// Registerer receives the tracked-keys gauge when set.
	Registerer prometheus.Registerer
}

// MemoryLimiter keeps the windows in process memory. It is safe for
// concurrent use. Windows of a multi-instance deployment are not shared.
//
// Start launches the background sweep; Stop ends it.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	now             func() time.Time
	retention       time.Duration
	longest         time.Duration
	cleanupInterval time.Duration

	lifecycle sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup

	keysGauge prometheus.Gauge
}

func NewMemoryLimiter(cfg MemoryConfig) *MemoryLimiter {
	m := &MemoryLimiter{
		windows:         make(map[string][]time.Time),
		now:             cfg.Now,
		retention:       cfg.Retention,
		cleanupInterval: cfg.CleanupInterval,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.retention <= 0 {
		m.retention = DefaultRetention
	}
	if m.cleanupInterval <= 0 {
		m.cleanupInterval = DefaultCleanupInterval
	}
	if cfg.Registerer != nil {
		m.keysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auth_ratelimit_keys",
			Help: "Current number of tracked rate limit windows",
		})
		cfg.Registerer.MustRegister(m.keysGauge)
	}
	return m
}

func (m *MemoryLimiter) Check(_ context.Context, p Policy, client string) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{Allowed: true}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if p.Interval > m.longest {
		m.longest = p.Interval
	}

	now := m.now()
	key := p.key(client)
	window := trimBefore(m.windows[key], now.Add(-p.Interval))

	if len(window) >= p.Max {
		m.windows[key] = window
		return Result{
			Allowed:   false,
			Limit:     p.Max,
			Remaining: 0,
			ResetAt:   window[0].Add(p.Interval),
		}, nil
	}

	window = append(window, now)
	m.windows[key] = window
	return Result{
		Allowed:   true,
		Limit:     p.Max,
		Remaining: p.Max - len(window),
		ResetAt:   now.Add(p.Interval),
	}, nil
}

// trimBefore drops the leading timestamps at or before cutoff. Windows are
// appended in clock order so the survivors are a suffix.
func trimBefore(window []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return window
	}
	out := make([]time.Time, len(window)-i, cap(window)-i)
	copy(out, window[i:])
	return out
}

// Sweep drops timestamps older than the retention ceiling and forgets keys
// left empty. A live window of any policy seen by Check is never cut short.
func (m *MemoryLimiter) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-max(m.retention, m.longest))
	for key, window := range m.windows {
		window = trimBefore(window, cutoff)
		if len(window) == 0 {
			delete(m.windows, key)
			continue
		}
		m.windows[key] = window
	}

	if m.keysGauge != nil {
		m.keysGauge.Set(float64(len(m.windows)))
	}
}

func (m *MemoryLimiter) Keys() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Start begins the periodic sweep. Calling it on a running limiter is a no-op.
func (m *MemoryLimiter) Start() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stopChan != nil {
		return
	}
	m.stopChan = make(chan struct{})
	m.wg.Add(1)
	go m.sweepLoop(m.stopChan)
}

// Stop ends the sweep and waits for it to exit. Safe to call more than once.
func (m *MemoryLimiter) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.stopChan == nil {
		return
	}
	close(m.stopChan)
	m.wg.Wait()
	m.stopChan = nil
}

func (m *MemoryLimiter) sweepLoop(stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
