// Package mtp2 implements the signalling-link layer: signal-unit framing
// (via su), the alignment/proving state machine, and the FSN/BSN
// retransmission protocol, per spec.md §4.1.
package mtp2

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/romangb/libss7/event"
	"github.com/romangb/libss7/sched"
	"github.com/romangb/libss7/su"
)

// State is a link's position in the alignment state machine.
type State int

const (
	StateIdle State = iota
	StateNotAligned
	StateAligned
	StateProving
	StateAlignedReady
	StateInService
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateNotAligned:
		return "NOT_ALIGNED"
	case StateAligned:
		return "ALIGNED"
	case StateProving:
		return "PROVING"
	case StateAlignedReady:
		return "ALIGNED_READY"
	case StateInService:
		return "IN_SERVICE"
	default:
		return "UNKNOWN"
	}
}

// LSSU status-code mnemonics, per spec.md §4.1.
const (
	StatusSIO  = 0x0 // out of alignment
	StatusSIN  = 0x1 // normal alignment
	StatusSIE  = 0x2 // emergency alignment
	StatusSIOS = 0x3 // out of service
	StatusSIPO = 0x4 // processor outage, observed only
	StatusSIB  = 0x5 // busy, observed only
)

// Default timer values, approximating ITU-T Q.703 table A.3 for a 64 kbit/s
// link. T4's normal/emergency split selects the proving period.
const (
	T1          = 45 * time.Second
	T2          = 5 * time.Second
	T3          = 1500 * time.Millisecond
	T4Normal    = 2300 * time.Millisecond
	T4Emergency = 600 * time.Millisecond
)

// MaxQueueDepth bounds tx_queue; a link that cannot drain faster than its
// host enqueues is a configuration error, not something to buffer without
// limit.
const MaxQueueDepth = 256

// ErrQueueFull denies queuing an MSU past MaxQueueDepth.
var ErrQueueFull = errors.New("ss7: mtp2: transmit queue full")

type autoUnit struct {
	lssu   bool
	status byte
}

type txEntry struct {
	fsn     uint8
	payload []byte
}

// Link is one signalling link's MTP2 state machine, per spec.md §3 "MTP2
// Link" and §4.1. The host drives it entirely: Receive on inbound bytes,
// PollOut on each write opportunity, QueueMSU to hand it an outbound MSU.
type Link struct {
	FD  int
	SLC uint8

	Logger *log.Logger

	// Deliver is invoked with the MTP3 payload of every in-order MSU
	// received while IN_SERVICE — MTP3's receive entry point.
	Deliver func(payload []byte)

	sched  *sched.Scheduler
	events *event.Queue

	state     State
	emergency bool
	alarmed   bool

	curFSN       uint8
	curFIB       uint8
	lastFSNAcked uint8
	curBIB       uint8
	retransCount uint

	txQueue       [][]byte
	txBuf         []txEntry // index 0 = head (newest), last = tail (oldest)
	retransmitPos int       // -1 when not retransmitting

	auto autoUnit

	t1, t2, t3, t4 sched.Handle
}

// New returns a link in state IDLE, wired to sch for timers and q for the
// LINK_UP/LINK_DOWN events of spec.md §4.1.
func New(fd int, slc uint8, sch *sched.Scheduler, q *event.Queue, logger *log.Logger) *Link {
	return &Link{
		FD:            fd,
		SLC:           slc,
		Logger:        logger,
		sched:         sch,
		events:        q,
		state:         StateIdle,
		retransmitPos: -1,
	}
}

// State reports the link's current alignment state.
func (l *Link) State() State { return l.state }

// Start begins alignment, per spec.md §4.1 "IDLE → NOT_ALIGNED on
// start(emergency)". It is a no-op while the link is alarmed.
func (l *Link) Start(emergency bool) {
	if l.alarmed {
		return
	}
	l.emergency = emergency
	l.resetSequencing()
	l.setState(StateNotAligned)
	l.setAuto(autoUnit{lssu: true, status: StatusSIO})
	l.t2 = l.arm(T2, l.onT2Expire)
}

// Alarm signals a physical-layer alarm, per spec.md §6 "link_alarm(fd)":
// the link drops to IDLE, cancels its timers, and stops offering
// service until NoAlarm clears the condition.
func (l *Link) Alarm() {
	l.alarmed = true
	l.cancelAll()
	l.flushBufs()
	l.setState(StateIdle)
	l.setAuto(autoUnit{lssu: true, status: StatusSIOS})
}

// NoAlarm clears a physical-layer alarm and resumes alignment, per
// spec.md §6 "link_noalarm(fd)".
func (l *Link) NoAlarm() {
	l.alarmed = false
	l.Start(l.emergency)
}

// Receive processes one inbound, already-deframed-by-transport octet
// string, per spec.md §4.1 "Receive path".
func (l *Link) Receive(raw []byte) error {
	unit, err := su.Unmarshal(raw)
	if err != nil {
		return err
	}
	l.processAck(unit.BSN, unit.BIB)

	switch unit.Class() {
	case su.FISU:
		l.onReadyUnitSeen()
	case su.LSSU:
		if len(unit.Payload) == 0 {
			return su.ErrTruncated
		}
		l.receiveLSSU(unit.Payload[0] & 0x07)
	case su.MSU:
		l.onReadyUnitSeen()
		l.receiveMSU(unit)
	}
	return nil
}

// onReadyUnitSeen implements "ALIGNED_READY → IN_SERVICE on receipt of
// FISU or MSU: cancel T1".
func (l *Link) onReadyUnitSeen() {
	if l.state == StateAlignedReady {
		l.cancel(&l.t1)
		l.setState(StateInService)
	}
}

func (l *Link) receiveMSU(unit *su.SU) {
	if l.state != StateInService {
		return
	}
	if unit.FIB != l.curBIB {
		return // still awaiting retransmission start
	}
	if unit.FSN == l.lastFSNAcked {
		return // duplicate
	}
	want := (l.lastFSNAcked + 1) & 0x7f
	if unit.FSN != want {
		l.retransCount++
		l.curBIB ^= 1 // NAK
		if l.Logger != nil {
			l.Logger.Warn("mtp2: out-of-sequence MSU, NAK", "fd", l.FD, "got", unit.FSN, "want", want)
		}
		return
	}
	l.lastFSNAcked = unit.FSN
	if l.Deliver != nil {
		l.Deliver(unit.Payload)
	}
}

// receiveLSSU drives the alignment state machine on a status byte, per
// spec.md §4.1's transition table.
func (l *Link) receiveLSSU(status byte) {
	switch status {
	case StatusSIO, StatusSIOS:
		l.toIdleAndRealign()

	case StatusSIN, StatusSIE:
		switch l.state {
		case StateNotAligned:
			l.cancel(&l.t2)
			if status == StatusSIE || l.emergency {
				l.beginProving()
			} else {
				l.setState(StateAligned)
				l.t3 = l.arm(T3, l.onT3Expire)
			}
			l.setAuto(autoUnit{lssu: true, status: status})

		case StateAligned:
			l.cancel(&l.t3)
			l.beginProving()
			l.setAuto(autoUnit{lssu: true, status: status})

		case StateProving:
			// re-entry into alignment while already proving: proving
			// failed.
			l.cancel(&l.t4)
			l.toIdleAndRealign()
		}

	case StatusSIPO, StatusSIB:
		// observed but not driven, per spec.md §4.1.
	}
}

func (l *Link) beginProving() {
	l.setState(StateProving)
	dur := T4Normal
	if l.emergency {
		dur = T4Emergency
	}
	l.t4 = l.arm(dur, l.onT4Expire)
}

func (l *Link) onT1Expire() { l.toIdleAndRealign() }
func (l *Link) onT2Expire() { l.toIdleAndRealign() }
func (l *Link) onT3Expire() { l.toIdleAndRealign() }

func (l *Link) onT4Expire() {
	l.setState(StateAlignedReady)
	l.t1 = l.arm(T1, l.onT1Expire)
	l.setAuto(autoUnit{})
}

// toIdleAndRealign implements the "Failure semantics" paragraph of
// spec.md §4.1: timer expiries and alignment restarts return the link to
// IDLE, drain its buffers, and immediately re-attempt alignment.
func (l *Link) toIdleAndRealign() {
	l.cancelAll()
	l.flushBufs()
	l.setState(StateIdle)
	l.setState(StateNotAligned)
	l.setAuto(autoUnit{lssu: true, status: StatusSIO})
	l.t2 = l.arm(T2, l.onT2Expire)
}

// setState transitions the link, enqueuing MTP2_LINK_UP/MTP2_LINK_DOWN
// whenever the transition crosses the IN_SERVICE boundary — in either
// direction, matching the resolution of spec.md §9's open question on
// "every downward transition from IN_SERVICE, not only SIOS/SIO".
func (l *Link) setState(s State) {
	if l.state == StateInService && s != StateInService {
		l.pushLink(false)
	}
	if s == StateInService && l.state != StateInService {
		l.pushLink(true)
	}
	l.state = s
}

func (l *Link) pushLink(up bool) {
	if err := l.events.PushLink(l.FD, up); err != nil && l.Logger != nil {
		l.Logger.Error("mtp2: event queue full, dropping link-state event", "fd", l.FD, "up", up)
	}
}

func (l *Link) setAuto(u autoUnit) { l.auto = u }

func (l *Link) resetSequencing() {
	l.curFSN = 0
	l.curFIB = 0
	l.lastFSNAcked = 0
	l.curBIB = 0
	l.retransCount = 0
}

func (l *Link) flushBufs() {
	l.txQueue = nil
	l.txBuf = nil
	l.retransmitPos = -1
	l.resetSequencing()
}

// processAck releases acknowledged entries from tx_buf and starts
// retransmission on a BIB flip, per spec.md §4.1 "Retransmission protocol".
func (l *Link) processAck(bsn, bib uint8) {
	for n := len(l.txBuf); n > 0; n = len(l.txBuf) {
		tail := l.txBuf[n-1]
		if !seqLE(tail.fsn, bsn) {
			break
		}
		l.txBuf = l.txBuf[:n-1]
	}
	if bib != l.curFIB {
		l.curFIB ^= 1
		l.retransmitPos = len(l.txBuf) - 1
	}
}

// seqLE reports whether a precedes or equals b in modulo-128 sequence
// space, treating a gap of 64 or more as "behind" rather than "ahead".
func seqLE(a, b uint8) bool {
	diff := (b - a) & 0x7f
	return diff < 0x40
}

// QueueMSU appends payload to tx_queue, the outbound FIFO of spec.md §3.
func (l *Link) QueueMSU(payload []byte) error {
	if len(l.txQueue) >= MaxQueueDepth {
		return ErrQueueFull
	}
	l.txQueue = append(l.txQueue, payload)
	return nil
}

// PollOut produces the next SU to write to the transport, per spec.md
// §4.1 "Transmit path": a pending retransmission takes priority, then a
// fresh MSU off tx_queue, then the automatic status unit.
func (l *Link) PollOut(buf []byte) (int, error) {
	if l.retransmitPos >= 0 && l.retransmitPos < len(l.txBuf) {
		entry := l.txBuf[l.retransmitPos]
		l.retransmitPos--
		return l.frameMSU(buf, entry.fsn, entry.payload)
	}
	if len(l.txQueue) > 0 {
		payload := l.txQueue[0]
		l.txQueue = l.txQueue[1:]
		fsn := l.curFSN
		l.curFSN = (l.curFSN + 1) & 0x7f
		l.txBuf = append([]txEntry{{fsn: fsn, payload: payload}}, l.txBuf...)
		return l.frameMSU(buf, fsn, payload)
	}
	return l.frameAuto(buf)
}

func (l *Link) frameMSU(buf []byte, fsn uint8, payload []byte) (int, error) {
	unit := &su.SU{BSN: l.lastFSNAcked, BIB: l.curBIB, FSN: fsn, FIB: l.curFIB, Payload: payload}
	return unit.Marshal(buf)
}

func (l *Link) frameAuto(buf []byte) (int, error) {
	var payload []byte
	if l.auto.lssu {
		payload = []byte{l.auto.status}
	}
	unit := &su.SU{BSN: l.lastFSNAcked, BIB: l.curBIB, FSN: l.curFSN, FIB: l.curFIB, Payload: payload}
	return unit.Marshal(buf)
}

func (l *Link) arm(d time.Duration, cb func()) sched.Handle {
	h, err := l.sched.After(d, cb)
	if err != nil && l.Logger != nil {
		l.Logger.Error("mtp2: scheduler full, timer not armed", "fd", l.FD)
	}
	return h
}

func (l *Link) cancel(h *sched.Handle) {
	l.sched.Cancel(*h)
	*h = sched.Handle{}
}

func (l *Link) cancelAll() {
	l.cancel(&l.t1)
	l.cancel(&l.t2)
	l.cancel(&l.t3)
	l.cancel(&l.t4)
}

// RetransmitCount reports the cumulative NAK count, for observability.
func (l *Link) RetransmitCount() uint { return l.retransCount }

// QueueDepth reports the number of MSUs waiting in tx_queue, for
// observability.
func (l *Link) QueueDepth() int { return len(l.txQueue) }
