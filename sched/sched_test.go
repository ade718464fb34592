package sched

import (
	"testing"
	"time"
)

func TestAfterRunFires(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	var fired bool
	if _, err := s.After(10*time.Millisecond, func() { fired = true }); err != nil {
		t.Fatalf("After: %v", err)
	}

	s.Run()
	if fired {
		t.Fatal("fired before deadline")
	}

	now = now.Add(11 * time.Millisecond)
	s.Run()
	if !fired {
		t.Fatal("did not fire after deadline")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	var fired bool
	h, _ := s.After(time.Millisecond, func() { fired = true })
	s.Cancel(h)

	now = now.Add(time.Second)
	s.Run()
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestNextReturnsEarliest(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	s.After(5*time.Second, func() {})
	s.After(1*time.Second, func() {})
	s.After(9*time.Second, func() {})

	d, ok := s.Next()
	if !ok {
		t.Fatal("expected a pending timer")
	}
	if d != time.Second {
		t.Fatalf("got %v, want 1s", d)
	}
}

func TestSchedulerFull(t *testing.T) {
	s := New()
	for i := 0; i < MaxSlots; i++ {
		if _, err := s.After(time.Hour, func() {}); err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
	}
	if _, err := s.After(time.Hour, func() {}); err != ErrFull {
		t.Fatalf("got %v, want ErrFull", err)
	}
}

func TestRunDoesNotRefireSelfArmed(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewWithClock(func() time.Time { return now })

	count := 0
	var arm func()
	arm = func() {
		count++
		s.After(time.Millisecond, arm)
	}
	s.After(time.Millisecond, arm)

	now = now.Add(time.Hour)
	s.Run()
	if count != 1 {
		t.Fatalf("got %d fires in one Run, want 1", count)
	}
}
