package gate

import (
	"sync"
	"time"
)

// DefaultFrameRate approximates a display refresh rate.
const DefaultFrameRate = 60

// Scheduler runs a repeating task. Start replaces any previous task; Stop
// never waits for an in-flight tick, so it is safe to call from inside one.
type Scheduler interface {
	Start(tick func(now time.Time))
	Stop()
}

// FrameTicker fires at a fixed frame rate on its own goroutine. Ticks that
// would overlap a slow tick are dropped, so cadence is best-effort.
type FrameTicker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewFrameTicker(fps int) *FrameTicker {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &FrameTicker{interval: time.Second / time.Duration(fps)}
}

func (f *FrameTicker) Interval() time.Duration { return f.interval }

func (f *FrameTicker) Start(tick func(now time.Time)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		close(f.stop)
	}
	stop := make(chan struct{})
	f.stop = stop

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				tick(now)
			}
		}
	}()
}

func (f *FrameTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stop != nil {
		close(f.stop)
		f.stop = nil
	}
}

// ManualScheduler only ticks when Fire is called. Tests use it to drive the
// gate with simulated timestamps.
type ManualScheduler struct {
	mu     sync.Mutex
	tick   func(now time.Time)
	starts int
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Start(tick func(now time.Time)) {
	m.mu.Lock()
	m.tick = tick
	m.starts++
	m.mu.Unlock()
}

func (m *ManualScheduler) Stop() {
	m.mu.Lock()
	m.tick = nil
	m.mu.Unlock()
}

// Running reports whether a task is currently scheduled.
func (m *ManualScheduler) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick != nil
}

// Starts returns how many times Start has been called.
func (m *ManualScheduler) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Fire runs one tick at now. It reports false if nothing is scheduled.
func (m *ManualScheduler) Fire(now time.Time) bool {
	m.mu.Lock()
	tick := m.tick
	m.mu.Unlock()
	if tick == nil {
		return false
	}
	tick(now)
	return true
}
