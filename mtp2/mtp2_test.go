package mtp2

import (
	"testing"
	"time"

	"github.com/romangb/libss7/event"
	"github.com/romangb/libss7/sched"
	"github.com/romangb/libss7/su"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLink() (*Link, *sched.Scheduler, *event.Queue, *fakeClock) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	sch := sched.NewWithClock(func() time.Time { return clock.now })
	q := event.New()
	l := New(1, 0, sch, q, nil)
	return l, sch, q, clock
}

func lssu(status byte, bsn, bib uint8) []byte {
	buf := make([]byte, su.HeadSize+1)
	unit := &su.SU{BSN: bsn, BIB: bib, FSN: 0, FIB: 0, Payload: []byte{status}}
	n, err := unit.Marshal(buf)
	if err != nil {
		panic(err)
	}
	return buf[:n]
}

func fisu(bsn, bib uint8) []byte {
	buf := make([]byte, su.HeadSize)
	unit := &su.SU{BSN: bsn, BIB: bib}
	n, _ := unit.Marshal(buf)
	return buf[:n]
}

// TestAlignmentSequence drives a link from IDLE through IN_SERVICE via the
// normal (non-emergency) proving path.
func TestAlignmentSequence(t *testing.T) {
	l, sch, q, clock := newTestLink()
	l.Start(false)
	if l.State() != StateNotAligned {
		t.Fatalf("state %v, want NOT_ALIGNED", l.State())
	}

	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatalf("receive SIN: %v", err)
	}
	if l.State() != StateAligned {
		t.Fatalf("state %v, want ALIGNED", l.State())
	}

	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatalf("receive SIN (2): %v", err)
	}
	if l.State() != StateProving {
		t.Fatalf("state %v, want PROVING", l.State())
	}

	clock.advance(T4Normal)
	sch.Run()
	if l.State() != StateAlignedReady {
		t.Fatalf("state %v, want ALIGNED_READY after T4", l.State())
	}

	if err := l.Receive(fisu(0, 0)); err != nil {
		t.Fatalf("receive FISU: %v", err)
	}
	if l.State() != StateInService {
		t.Fatalf("state %v, want IN_SERVICE", l.State())
	}

	ev, ok := q.CheckEvent(nil)
	if !ok || ev.Kind != event.KindLinkUp {
		t.Fatalf("got %+v, ok=%v, want KindLinkUp", ev, ok)
	}
}

func bringInService(t *testing.T, l *Link, sch *sched.Scheduler, clock *fakeClock) {
	t.Helper()
	l.Start(false)
	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatal(err)
	}
	clock.advance(T4Normal)
	sch.Run()
	if err := l.Receive(fisu(0, 0)); err != nil {
		t.Fatal(err)
	}
	if l.State() != StateInService {
		t.Fatalf("state %v, want IN_SERVICE", l.State())
	}
}

// TestInServiceDownOnSIOS implements the IN_SERVICE → IDLE → NOT_ALIGNED
// cascade on SIOS receipt: the link drops, surfaces LINK_DOWN, and
// immediately re-attempts alignment rather than going permanently dead.
func TestInServiceDownOnSIOS(t *testing.T) {
	l, sch, q, clock := newTestLink()
	bringInService(t, l, sch, clock)
	q.CheckEvent(nil) // drain the LINK_UP from bringInService

	if err := l.Receive(lssu(StatusSIOS, 0, 0)); err != nil {
		t.Fatalf("receive SIOS: %v", err)
	}
	if l.State() != StateNotAligned {
		t.Fatalf("state %v, want NOT_ALIGNED (SIOS must re-attempt alignment)", l.State())
	}
	ev, ok := q.CheckEvent(nil)
	if !ok || ev.Kind != event.KindLinkDown {
		t.Fatalf("got %+v, ok=%v, want KindLinkDown", ev, ok)
	}
}

// TestTimerExpiryRealigns checks the "Failure semantics" auto-restart:
// a T1 expiry in ALIGNED_READY (no FISU or MSU seen from the peer) drops
// the link and immediately begins a fresh alignment attempt. The link
// never reached IN_SERVICE, so neither LINK_UP nor LINK_DOWN is queued.
func TestTimerExpiryRealigns(t *testing.T) {
	l, sch, q, clock := newTestLink()
	l.Start(false)
	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := l.Receive(lssu(StatusSIN, 0, 0)); err != nil {
		t.Fatal(err)
	}
	clock.advance(T4Normal)
	sch.Run()
	if l.State() != StateAlignedReady {
		t.Fatalf("state %v, want ALIGNED_READY after T4", l.State())
	}

	clock.advance(T1)
	sch.Run() // T1 fires (the only timer armed in ALIGNED_READY)
	if l.State() != StateNotAligned {
		t.Fatalf("state %v, want NOT_ALIGNED after T1 expiry", l.State())
	}
	if ev, ok := q.CheckEvent(nil); ok {
		t.Fatalf("got %+v, want no event (link never reached IN_SERVICE)", ev)
	}
}

// TestRetransmissionOnNAK implements spec.md §8 scenario 3: three queued
// MSUs, a peer ack of FSN 0 with an inverted BIB, and re-emission of FSN
// 1 and 2 in order.
func TestRetransmissionOnNAK(t *testing.T) {
	l, sch, q, clock := newTestLink()
	bringInService(t, l, sch, clock)
	q.CheckEvent(nil)

	for i := 0; i < 3; i++ {
		if err := l.QueueMSU([]byte{byte(i)}); err != nil {
			t.Fatalf("queue %d: %v", i, err)
		}
	}

	buf := make([]byte, su.MaxSize)
	var sent []uint8
	for i := 0; i < 3; i++ {
		n, err := l.PollOut(buf)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		unit, err := su.Unmarshal(buf[:n])
		if err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		sent = append(sent, unit.FSN)
	}
	if sent[0] != 0 || sent[1] != 1 || sent[2] != 2 {
		t.Fatalf("sent FSNs %v, want [0 1 2]", sent)
	}

	// peer acks BSN=0 with inverted BIB: FSN 0 is released, a NAK starts
	// retransmission of FSN 1 and 2.
	if err := l.Receive(lssu(StatusSIB, 0, 1)); err != nil {
		t.Fatalf("receive NAK: %v", err)
	}

	var retx []uint8
	for i := 0; i < 2; i++ {
		n, err := l.PollOut(buf)
		if err != nil {
			t.Fatalf("poll retransmit %d: %v", i, err)
		}
		unit, err := su.Unmarshal(buf[:n])
		if err != nil {
			t.Fatalf("unmarshal retransmit %d: %v", i, err)
		}
		retx = append(retx, unit.FSN)
		if unit.FIB != l.curFIB {
			t.Fatalf("retransmitted FIB %d, want refreshed %d", unit.FIB, l.curFIB)
		}
	}
	if retx[0] != 1 || retx[1] != 2 {
		t.Fatalf("retransmit order %v, want [1 2] (oldest unacked first)", retx)
	}
}

// TestOutOfSequenceMSUDropped exercises the receive-path NAK, per
// spec.md §4.1 "Receive path".
func TestOutOfSequenceMSUDropped(t *testing.T) {
	l, sch, q, clock := newTestLink()
	bringInService(t, l, sch, clock)
	q.CheckEvent(nil)

	var delivered [][]byte
	l.Deliver = func(p []byte) { delivered = append(delivered, p) }

	skip := &su.SU{BSN: 0, BIB: 0, FSN: 5, FIB: 0, Payload: []byte{0xaa, 0xbb, 0xcc}}
	buf := make([]byte, su.MaxSize)
	n, _ := skip.Marshal(buf)
	if err := l.Receive(buf[:n]); err != nil {
		t.Fatalf("receive out-of-sequence MSU: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("delivered %d payloads, want 0 (out-of-sequence must be dropped)", len(delivered))
	}
	if l.curBIB != 1 {
		t.Fatalf("curBIB %d, want 1 (NAK toggled)", l.curBIB)
	}
}
