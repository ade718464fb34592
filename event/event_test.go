package event

import "testing"

func TestPushCheckFIFOOrder(t *testing.T) {
	q := New()
	for i := 0; i < 3; i++ {
		if err := q.PushLink(i, true); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.CheckEvent(nil)
		if !ok {
			t.Fatalf("check %d: queue unexpectedly empty", i)
		}
		if ev.LinkFD != i {
			t.Fatalf("got link %d, want %d (FIFO order)", ev.LinkFD, i)
		}
	}
	if _, ok := q.CheckEvent(nil); ok {
		t.Fatal("expected empty queue")
	}
}

func TestPushFullReportsError(t *testing.T) {
	q := New()
	for i := 0; i < Capacity; i++ {
		if err := q.PushLink(i, true); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := q.PushLink(99, true); err != ErrFull {
		t.Fatalf("got %v, want ErrFull", err)
	}
}

func TestCheckEventRunsHookWithoutSuppressing(t *testing.T) {
	q := New()
	_ = q.PushLink(1, true)

	var hookSawKind Kind
	hookCalled := false
	ev, ok := q.CheckEvent(func(e Event) {
		hookCalled = true
		hookSawKind = e.Kind
	})
	if !ok {
		t.Fatal("expected an event")
	}
	if !hookCalled {
		t.Fatal("hook was not invoked")
	}
	if hookSawKind != KindLinkUp {
		t.Fatalf("hook saw kind %v, want KindLinkUp", hookSawKind)
	}
	if ev.Kind != KindLinkUp {
		t.Fatal("hook must not suppress the delivered event")
	}
}

func TestWrapAroundAfterDrain(t *testing.T) {
	q := New()
	for i := 0; i < Capacity; i++ {
		_ = q.PushLink(i, true)
	}
	for i := 0; i < Capacity/2; i++ {
		q.CheckEvent(nil)
	}
	for i := 0; i < Capacity/2; i++ {
		if err := q.PushLink(100+i, false); err != nil {
			t.Fatalf("push after drain: %v", err)
		}
	}
	if q.Len() != Capacity {
		t.Fatalf("len %d, want %d", q.Len(), Capacity)
	}
}
