// Package event implements the bounded event ring of spec.md §4.5: a
// fixed-capacity FIFO that the core appends to on every received message or
// link-state transition, and that the host drains one event at a time via
// CheckEvent.
package event

import (
	"errors"

	"github.com/romangb/libss7/isup"
)

// Capacity mirrors MAX_EVENTS from the original implementation.
const Capacity = 16

// ErrFull denies enqueuing past Capacity.
var ErrFull = errors.New("ss7: event queue full")

// Kind discriminates the variant carried by an Event. ISUP message kinds
// delegate to isup.Kind; the link-level and process-wide kinds below have
// no ISUP analogue, per spec.md §6 "Event variants surfaced".
type Kind int

const (
	// KindISUP signals that ISUP holds the decoded message; inspect the
	// embedded *isup.Event for the specific message kind.
	KindISUP Kind = iota
	KindLinkUp
	KindLinkDown
	KindUp   // process-wide: queued once, on the first TRA received on any link
	KindDown // process-wide link-set down; no package of this module queues it
)

func (k Kind) String() string {
	switch k {
	case KindISUP:
		return "ISUP"
	case KindLinkUp:
		return "LINK_UP"
	case KindLinkDown:
		return "LINK_DOWN"
	case KindUp:
		return "UP"
	case KindDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Event is the single type surfaced by CheckEvent, wide enough to carry
// either a link-state transition or a decoded ISUP message — the
// discriminated union spec.md §9's generalized dispatch-by-tag guidance
// calls for, extended from ISUP message variants to the link-level ones
// the isup package itself has no business knowing about.
type Event struct {
	Kind Kind

	// LinkFD identifies the link a LINK_UP/LINK_DOWN event concerns; zero
	// for the process-wide UP/DOWN events and for KindISUP, where DPC on
	// the embedded ISUP event already identifies the origin.
	LinkFD int

	// ISUP holds the decoded ISUP event when Kind == KindISUP.
	ISUP *isup.Event
}

// Queue is a bounded FIFO ring of Event, per spec.md §4.5.
type Queue struct {
	buf        [Capacity]Event
	head, size int
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Len reports the number of queued, undelivered events.
func (q *Queue) Len() int { return q.size }

// Push appends ev at the tail, the `next_empty_event` slot of the original
// implementation. It reports ErrFull rather than overwriting the oldest
// event: spec.md §7 requires that a full queue never panic or silently
// drop — the caller decides whether to retry after the next CheckEvent.
func (q *Queue) Push(ev Event) error {
	if q.size == Capacity {
		return ErrFull
	}
	tail := (q.head + q.size) % Capacity
	q.buf[tail] = ev
	q.size++
	return nil
}

// PushISUP is a convenience wrapper for the common case of enqueuing a
// decoded ISUP message.
func (q *Queue) PushISUP(ev *isup.Event) error {
	return q.Push(Event{Kind: KindISUP, ISUP: ev})
}

// PushLink enqueues a per-link state transition.
func (q *Queue) PushLink(fd int, up bool) error {
	k := KindLinkDown
	if up {
		k = KindLinkUp
	}
	return q.Push(Event{Kind: k, LinkFD: fd})
}

// Hook is MTP3's post-process hook, per spec.md §4.5: it observes every
// event about to be delivered to the host and may trigger a side effect —
// originating an SLTM or a TRA broadcast on MTP2_LINK_UP, for instance —
// without suppressing the event itself.
type Hook func(Event)

// CheckEvent dequeues the head event, the `check_event` operation of
// spec.md §4.5, running hook against it first if non-nil. It returns
// (Event{}, false) when the queue is empty.
func (q *Queue) CheckEvent(hook Hook) (Event, bool) {
	if q.size == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.head = (q.head + 1) % Capacity
	q.size--
	if hook != nil {
		hook(ev)
	}
	return ev, true
}
