// Package sched implements the cooperative deadline scheduler used by the
// signalling engine. There is no background goroutine: the host drives time
// forward explicitly by calling Run, and learns how long it may wait before
// the next call is due by calling Next.
package sched

import "time"

// MaxSlots bounds the number of timers that may be armed at once, mirroring
// the fixed-capacity slot array of the original implementation.
const MaxSlots = 64

// ErrFull denies arming another timer once MaxSlots are in use.
type errFull struct{}

func (errFull) Error() string { return "ss7: sched: scheduler is full" }

// ErrFull is returned by Scheduler.After when no slot is free.
var ErrFull error = errFull{}

// Handle is an opaque reference to an armed timer. The zero Handle is not
// valid and Cancel on it is a no-op, mirroring a caller that never armed a
// timer for that field.
type Handle struct {
	id  int
	gen uint64
}

// Valid reports whether the handle refers to a (possibly already fired)
// slot, as opposed to the zero Handle.
func (h Handle) Valid() bool { return h.gen != 0 }

type slot struct {
	deadline time.Time
	callback func()
	gen      uint64
	used     bool
}

// Scheduler is a fixed-capacity array of {deadline, callback} slots keyed by
// wall-clock deadline. It is not safe for concurrent use; the host loop is
// the only caller, exactly as required by the single-threaded engine.
type Scheduler struct {
	slots [MaxSlots]slot
	gen   uint64
	now   func() time.Time
}

// New returns an empty Scheduler using time.Now for the wall clock.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// NewWithClock returns an empty Scheduler using the given clock function,
// intended for deterministic tests.
func NewWithClock(now func() time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// After arms cb to run no earlier than d from now, returning a Handle that
// cancels it. The callback runs on a later call to Run from the same
// goroutine that calls After — never concurrently.
func (s *Scheduler) After(d time.Duration, cb func()) (Handle, error) {
	for i := range s.slots {
		if !s.slots[i].used {
			s.gen++
			s.slots[i] = slot{
				deadline: s.now().Add(d),
				callback: cb,
				gen:      s.gen,
				used:     true,
			}
			return Handle{id: i, gen: s.gen}, nil
		}
	}
	return Handle{}, ErrFull
}

// Cancel disarms the timer referred to by h, if still armed. Cancelling an
// already-fired or already-cancelled handle is a harmless no-op.
func (s *Scheduler) Cancel(h Handle) {
	if !h.Valid() {
		return
	}
	sl := &s.slots[h.id]
	if sl.used && sl.gen == h.gen {
		*sl = slot{}
	}
}

// Armed reports whether h still refers to a pending timer.
func (s *Scheduler) Armed(h Handle) bool {
	if !h.Valid() {
		return false
	}
	sl := &s.slots[h.id]
	return sl.used && sl.gen == h.gen
}

// Next returns the duration until the earliest armed deadline, and false
// when no timer is armed. A negative-or-zero duration means Run has
// callbacks ready to fire immediately.
func (s *Scheduler) Next() (time.Duration, bool) {
	var earliest time.Time
	found := false
	for i := range s.slots {
		if !s.slots[i].used {
			continue
		}
		if !found || s.slots[i].deadline.Before(earliest) {
			earliest = s.slots[i].deadline
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return earliest.Sub(s.now()), true
}

// Run invokes every callback whose deadline has passed and frees its slot.
// Slot ids stay stable across a Run call: a callback scheduling a new timer
// never disturbs another callback still pending in this same pass, since
// newly-armed timers are only considered for the next Run.
func (s *Scheduler) Run() {
	now := s.now()
	// snapshot due callbacks first: a callback may re-arm itself into a
	// freed slot, which must not be picked up again in this pass.
	var due []func()
	for i := range s.slots {
		sl := &s.slots[i]
		if sl.used && !sl.deadline.After(now) {
			due = append(due, sl.callback)
			*sl = slot{}
		}
	}
	for _, cb := range due {
		cb()
	}
}
