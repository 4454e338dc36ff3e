package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler owns at most one pending countdown tick. Arming it again
// replaces the previous timer.
type Scheduler struct {
	clock clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// Schedule runs fn once after d unless cancelled first.
func (s *Scheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(d, fn)
}

// Cancel stops the pending timer, if any.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
