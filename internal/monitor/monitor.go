package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/icesealed/wyvern/internal/engine"
	"github.com/icesealed/wyvern/internal/infrastructure/logging"
	"github.com/icesealed/wyvern/internal/profile"
)

// Default sampling parameters, matching the original monitor view.
const (
	DefaultInterval    = 2 * time.Second
	DefaultHistorySize = 60
)

// Sample is one telemetry reading with its capture time.
type Sample struct {
	Time time.Time `json:"time"`
	engine.Realtime
}

// Stats reports the sampler's health counters.
type Stats struct {
	Running   bool   `json:"running"`
	Samples   uint64 `json:"samples"`
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// Options configures a Monitor.
type Options struct {
	// Interval between ticks. Zero or negative selects DefaultInterval.
	Interval time.Duration

	// HistorySize is the number of samples retained in memory.
	// Zero or negative selects DefaultHistorySize.
	HistorySize int
}

// Monitor samples realtime telemetry from the embedded controller on a
// fixed interval and fans each sample out to registered observers.
type Monitor struct {
	eng      *engine.Engine
	store    *profile.Store
	log      *logging.Logger
	interval time.Duration
	size     int

	mu        sync.RWMutex
	samples   []Sample // ring buffer, next points at the oldest slot
	next      int
	count     int
	observers []func(Sample)
	running   bool
	taken     uint64
	errors    uint64
	lastErr   string
}

// New creates a Monitor. The address map used for reads is resolved
// from the store once at Run start, not here.
func New(eng *engine.Engine, store *profile.Store, opts Options, log *logging.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	return &Monitor{
		eng:      eng,
		store:    store,
		log:      log.With("component", "monitor"),
		interval: opts.Interval,
		size:     opts.HistorySize,
		samples:  make([]Sample, opts.HistorySize),
	}
}

// OnSample registers an observer called synchronously for every
// successful sample. Observers run on the sampling goroutine: a slow
// observer delays the next tick, it never causes overlapping reads.
func (m *Monitor) OnSample(fn func(Sample)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Run samples until the context is cancelled. The realtime register
// offsets are resolved from the default address section once at start;
// edit the config file and restart to change them.
//
// The first sample is taken immediately; after that the timer is reset
// only once a tick has fully completed, so a slow read stretches the
// schedule instead of stacking reads.
func (m *Monitor) Run(ctx context.Context) error {
	am, err := m.store.AddressMap(profile.SectionAddressDefault)
	if err != nil {
		return fmt.Errorf("monitor: resolving address map: %w", err)
	}

	m.setRunning(true)
	defer m.setRunning(false)

	m.log.Info("monitor started",
		"interval", m.interval.String(),
		"history_size", m.size,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return nil
		case <-timer.C:
			m.tick(am)
			timer.Reset(m.interval)
		}
	}
}

// tick performs one synchronous read and fans the sample out.
func (m *Monitor) tick(am *profile.AddressMap) {
	rt, err := m.eng.ReadRealtime(am)
	if err != nil {
		m.mu.Lock()
		m.errors++
		m.lastErr = err.Error()
		errCount := m.errors
		m.mu.Unlock()

		m.log.Warn("telemetry read failed",
			"error", err,
			"error_count", errCount,
		)
		return
	}

	s := Sample{Time: time.Now().UTC(), Realtime: rt}

	m.mu.Lock()
	m.samples[m.next] = s
	m.next = (m.next + 1) % m.size
	if m.count < m.size {
		m.count++
	}
	m.taken++
	observers := make([]func(Sample), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// History returns the retained samples in chronological order,
// oldest first.
func (m *Monitor) History() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Sample, 0, m.count)
	start := m.next - m.count
	if start < 0 {
		start += m.size
	}
	for i := 0; i < m.count; i++ {
		out = append(out, m.samples[(start+i)%m.size])
	}
	return out
}

// Latest returns the most recent sample, if any has been taken.
func (m *Monitor) Latest() (Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.count == 0 {
		return Sample{}, false
	}
	idx := m.next - 1
	if idx < 0 {
		idx += m.size
	}
	return m.samples[idx], true
}

// Stats returns the sampler's health counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		Running:   m.running,
		Samples:   m.taken,
		Errors:    m.errors,
		LastError: m.lastErr,
	}
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}
