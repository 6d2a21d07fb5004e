package host

import (
	"sort"
	"sync"
)

// ManualScheduler queues deferred closures until Advance is called.
// Virtual time only moves when the caller advances it.
type ManualScheduler struct {
	mu      sync.Mutex
	now     int // virtual milliseconds
	seq     int
	pending []manualTask
	delays  []int
}

type manualTask struct {
	at  int
	seq int
	fn  func()
}

// DeferMs records fn to run ms virtual milliseconds from now.
func (s *ManualScheduler) DeferMs(ms int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ms < 0 {
		ms = 0
	}
	s.seq++
	s.pending = append(s.pending, manualTask{at: s.now + ms, seq: s.seq, fn: fn})
	s.delays = append(s.delays, ms)
}

// Advance moves virtual time forward by ms and runs every task that became
// due, in due-time order. Tasks scheduled by running tasks also run if they
// fall inside the advanced range.
func (s *ManualScheduler) Advance(ms int) {
	s.mu.Lock()
	target := s.now + ms
	s.mu.Unlock()

	for {
		s.mu.Lock()
		sort.SliceStable(s.pending, func(i, j int) bool {
			if s.pending[i].at != s.pending[j].at {
				return s.pending[i].at < s.pending[j].at
			}
			return s.pending[i].seq < s.pending[j].seq
		})
		if len(s.pending) == 0 || s.pending[0].at > target {
			s.now = target
			s.mu.Unlock()
			return
		}
		task := s.pending[0]
		s.pending = s.pending[1:]
		if task.at > s.now {
			s.now = task.at
		}
		s.mu.Unlock()

		task.fn()
	}
}

// RunPending runs tasks that are due now without advancing time.
func (s *ManualScheduler) RunPending() {
	s.Advance(0)
}

// Pending returns the number of tasks not yet run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Delays returns every delay passed to DeferMs, in call order.
func (s *ManualScheduler) Delays() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.delays...)
}
