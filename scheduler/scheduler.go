package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	// ErrRewind is returned when asked to advance to a time before now.
	ErrRewind = errors.New("scheduler: target is before current time")

	// ErrFailed is returned after a system update panicked. The world holds
	// whatever prefix of the update stream completed; call Reset before
	// advancing again.
	ErrFailed = errors.New("scheduler: previous advance failed")
)

// System is a periodic update registered with the scheduler.
type System[W any] struct {
	ID       SystemID
	Name     string
	Interval time.Duration
	Update   func(world W, now Time)
}

// Scheduler runs systems against a shared world W in due-time order.
type Scheduler[W any] struct {
	clock   *Clock
	systems []System[W] // sorted by ID
	queue   tokenQueue
	failed  bool

	// OnRun, if set, is called after each completed update with the
	// wall-clock time it took.
	OnRun func(tok Token, elapsed time.Duration)
}

// New creates a scheduler with a fixed set of systems. Each system first
// runs one interval after the clock's current time. Invalid registrations
// are programming errors and panic.
func New[W any](clock *Clock, systems ...System[W]) *Scheduler[W] {
	sorted := slices.Clone(systems)
	slices.SortFunc(sorted, func(a, b System[W]) int {
		return int(a.ID) - int(b.ID)
	})
	for i, sys := range sorted {
		if sys.Interval <= 0 {
			panic(fmt.Sprintf("scheduler: system %q has non-positive interval %v", sys.Name, sys.Interval))
		}
		if sys.Update == nil {
			panic(fmt.Sprintf("scheduler: system %q has no update function", sys.Name))
		}
		if i > 0 && sorted[i-1].ID == sys.ID {
			panic(fmt.Sprintf("scheduler: duplicate system id %d", sys.ID))
		}
	}

	s := &Scheduler[W]{
		clock:   clock,
		systems: sorted,
	}
	s.rebuild(clock.Now())
	return s
}

func (s *Scheduler[W]) rebuild(start Time) {
	s.queue = make(tokenQueue, 0, len(s.systems))
	for _, sys := range s.systems {
		s.queue = append(s.queue, Token{Due: start.Add(sys.Interval), System: sys.ID})
	}
	heap.Init(&s.queue)
}

// Clock returns the clock the scheduler advances.
func (s *Scheduler[W]) Clock() *Clock {
	return s.clock
}

// Advance runs every system due at or before target, earliest first, then
// sets the clock to target. A panic in an update propagates to the caller
// and leaves the scheduler failed.
func (s *Scheduler[W]) Advance(world W, target Time) error {
	if s.failed {
		return ErrFailed
	}
	if target < s.clock.Now() {
		return fmt.Errorf("advance to %v from %v: %w", target, s.clock.Now(), ErrRewind)
	}

	for len(s.queue) > 0 && s.queue[0].Due <= target {
		tok := heap.Pop(&s.queue).(Token)
		sys := s.system(tok.System)

		s.clock.set(tok.Due)
		s.run(sys, world, tok)

		heap.Push(&s.queue, Token{Due: tok.Due.Add(sys.Interval), System: tok.System})
	}

	s.clock.set(target)
	return nil
}

func (s *Scheduler[W]) run(sys System[W], world W, tok Token) {
	completed := false
	defer func() {
		if !completed {
			s.failed = true
		}
	}()

	start := time.Now()
	sys.Update(world, tok.Due)
	completed = true

	if s.OnRun != nil {
		s.OnRun(tok, time.Since(start))
	}
}

func (s *Scheduler[W]) system(id SystemID) System[W] {
	i, ok := slices.BinarySearchFunc(s.systems, id, func(sys System[W], id SystemID) int {
		return int(sys.ID) - int(id)
	})
	if !ok {
		panic(fmt.Sprintf("scheduler: token for unknown system %d", id))
	}
	return s.systems[i]
}

// Failed reports whether a previous Advance aborted.
func (s *Scheduler[W]) Failed() bool {
	return s.failed
}

// Reset clears a failure and reschedules every system one interval after
// start. start must not be before the current time.
func (s *Scheduler[W]) Reset(start Time) error {
	if start < s.clock.Now() {
		return fmt.Errorf("reset to %v from %v: %w", start, s.clock.Now(), ErrRewind)
	}
	s.clock.set(start)
	s.rebuild(start)
	s.failed = false
	return nil
}

// Pending returns the queued tokens in run order.
func (s *Scheduler[W]) Pending() []Token {
	out := slices.Clone([]Token(s.queue))
	slices.SortFunc(out, func(a, b Token) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	})
	return out
}

// Name returns the registered name of a system.
func (s *Scheduler[W]) Name(id SystemID) string {
	return s.system(id).Name
}
