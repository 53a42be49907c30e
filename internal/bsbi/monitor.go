package bsbi

import (
	"log/slog"
	"time"
)

// PhaseTiming records the wall-clock duration of one named build phase.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// Monitor accumulates phase timings for the build summary and the
// benchmark-indexing CSV. It is used from one goroutine only.
type Monitor struct {
	timings []PhaseTiming
	started map[string]time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{started: make(map[string]time.Time)}
}

func (m *Monitor) Start(name string) {
	m.started[name] = time.Now()
}

func (m *Monitor) End(name string) {
	start, ok := m.started[name]
	if !ok {
		return
	}
	delete(m.started, name)
	m.timings = append(m.timings, PhaseTiming{Name: name, Duration: time.Since(start)})
}

// Timings returns the completed phases in end order.
func (m *Monitor) Timings() []PhaseTiming {
	return m.timings
}

// LogSummary writes one line per phase through the given logger.
func (m *Monitor) LogSummary(logger *slog.Logger) {
	for _, t := range m.timings {
		logger.Info("build phase complete", "phase", t.Name, "duration", t.Duration)
	}
}
