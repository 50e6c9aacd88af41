package systems

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrDuplicateSystem = errors.New("systems: duplicate system name")

type entry struct {
	system  System
	seq     int
	metrics Metrics
}

// Scheduler runs registered systems in phase order once per tick. A failing
// system does not stop the tick; errors are joined and returned.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry
}

func NewScheduler() *Scheduler {
	return &Scheduler{byName: make(map[string]*entry)}
}

func (s *Scheduler) Register(sys System) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[sys.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, sys.Name())
	}
	e := &entry{system: sys, seq: len(s.entries)}
	s.entries = append(s.entries, e)
	s.byName[sys.Name()] = e
	sort.SliceStable(s.entries, func(i, j int) bool {
		if s.entries[i].system.Phase() != s.entries[j].system.Phase() {
			return s.entries[i].system.Phase() < s.entries[j].system.Phase()
		}
		return s.entries[i].seq < s.entries[j].seq
	})
	return nil
}

func (s *Scheduler) Run(tick Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all error
	for _, e := range s.entries {
		start := time.Now()
		err := e.system.Update(tick)
		elapsed := time.Since(start)

		m := &e.metrics
		m.ExecutionCount++
		m.TotalExecutionTime += elapsed
		m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
		m.MaxExecutionTime = max(m.MaxExecutionTime, elapsed)
		m.LastExecutionTime = start
		if err != nil {
			m.ErrorCount++
			m.LastError = err
			all = errors.Join(all, fmt.Errorf("%s: %w", e.system.Name(), err))
		}
	}
	return all
}

// Order returns system names in execution order.
func (s *Scheduler) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.system.Name()
	}
	return names
}

func (s *Scheduler) Metrics(name string) (Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byName[name]
	if !ok {
		return Metrics{}, false
	}
	return e.metrics, true
}
