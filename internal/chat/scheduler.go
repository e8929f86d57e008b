package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/agentoven/chatwidget/pkg/contracts"
)

// TimerScheduler runs tasks on runtime timers.
type TimerScheduler struct{}

var _ contracts.Scheduler = TimerScheduler{}

func (TimerScheduler) Schedule(delay time.Duration, task func()) func() bool {
	t := time.AfterFunc(delay, task)
	return t.Stop
}

// ManualScheduler runs tasks only when its virtual clock is advanced.
// Tasks due at the same instant run in the order they were scheduled.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	at   time.Duration
	seq  int
	fn   func()
	done bool
}

var _ contracts.Scheduler = (*ManualScheduler)(nil)

// NewManualScheduler creates a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Schedule(delay time.Duration, task func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{at: s.now + delay, seq: s.seq, fn: task}
	s.seq++
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.done {
			return false
		}
		t.done = true
		return true
	}
}

// Advance moves the clock forward by d and runs every task that became due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due, rest []*manualTask
	for _, t := range s.tasks {
		switch {
		case t.done:
		case t.at <= s.now:
			t.done = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	s.tasks = rest
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Flush runs every pending task, including tasks scheduled while flushing.
func (s *ManualScheduler) Flush() {
	for s.Pending() > 0 {
		s.mu.Lock()
		var latest time.Duration
		for _, t := range s.tasks {
			if !t.done && t.at > latest {
				latest = t.at
			}
		}
		d := latest - s.now
		s.mu.Unlock()
		s.Advance(d)
	}
}

// Pending returns the number of tasks that have neither run nor been cancelled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.done {
			n++
		}
	}
	return n
}
