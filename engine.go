// Package libss7 is the host-facing facade of spec.md §6: it wires
// su/sched/event/mtp2/mtp3/isup/transport into the single entry point
// a host application drives from its own poll loop, following
// part5.go/monitor.go/caller.go's role as the facade over part5's
// session and info packages.
package libss7

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/romangb/libss7/event"
	"github.com/romangb/libss7/internal/metrics"
	"github.com/romangb/libss7/isup"
	"github.com/romangb/libss7/mtp2"
	"github.com/romangb/libss7/mtp3"
	"github.com/romangb/libss7/sched"
	"github.com/romangb/libss7/su"
	"github.com/romangb/libss7/transport"
)

// SwitchType selects the routing-label and SIO dialect, per spec.md §6
// "new(switch_type)".
type SwitchType int

const (
	ITU SwitchType = iota
	ANSI
)

// ErrUnknownLink denies an operation naming an fd not added via AddLink.
var ErrUnknownLink = errors.New("ss7: unknown link")

type linkEntry struct {
	fd        int
	link      *mtp2.Link
	transport transport.Transport
}

// Engine is one process's SS7 signalling point: the single type a host
// application constructs, configures with the Set* calls, feeds bytes
// through Read/Write, and polls for events via CheckEvent.
type Engine struct {
	Switch  SwitchType
	Logger  *log.Logger
	Metrics *metrics.Registry

	pc         uint32
	ni         uint8
	defaultDPC uint32

	sched *sched.Scheduler
	calls *isup.CallTable
	queue *event.Queue
	ctl   *mtp3.Controller

	links []*linkEntry
}

// New constructs an Engine for switchType. logger and metrics may be
// nil; a nil metrics registry disables instrumentation.
func New(switchType SwitchType, logger *log.Logger, reg *metrics.Registry) *Engine {
	q := event.New()
	calls := isup.NewCallTable()
	e := &Engine{
		Switch:  switchType,
		Logger:  logger,
		Metrics: reg,
		queue:   q,
		calls:   calls,
		sched:   sched.New(),
	}
	e.ctl = mtp3.NewController(0, 0, switchType == ANSI, calls, q, logger)
	return e
}

// SetPC sets this signalling point's own point code, per spec.md §6
// "set_pc(pc)".
func (e *Engine) SetPC(pc uint32) {
	e.pc = pc
	e.ctl.PC = pc
}

// SetNetworkInd sets the network indicator stamped into outbound SIOs
// and checked on inbound ones, per spec.md §6 "set_network_ind(ni)".
func (e *Engine) SetNetworkInd(ni uint8) {
	e.ni = ni
	e.ctl.NetworkIndicator = ni
}

// SetDefaultDPC sets the destination point code used by ISUP
// operations that do not name one explicitly.
func (e *Engine) SetDefaultDPC(pc uint32) {
	e.defaultDPC = pc
}

// SetAdjPC records the adjacent point code reachable over fd, per
// spec.md §6 "set_adjpc(fd, pc)".
func (e *Engine) SetAdjPC(fd int, pc uint32) {
	e.ctl.SetAdjPC(fd, pc)
}

// SetDebug adjusts the logger's verbosity. flags follows the
// charmbracelet/log level scale: 0 is Info, negative values are more
// verbose (Debug), positive values are quieter (Warn/Error).
func (e *Engine) SetDebug(flags int) {
	if e.Logger == nil {
		return
	}
	switch {
	case flags < 0:
		e.Logger.SetLevel(log.DebugLevel)
	case flags == 0:
		e.Logger.SetLevel(log.InfoLevel)
	default:
		e.Logger.SetLevel(log.WarnLevel)
	}
}

// AddLink adds a signalling link over tr, identified by fd, per
// spec.md §6 "add_link(transport, fd)". slc is recorded as the link's
// signalling link code (mtp2.Link.SLC); it is not written into any
// signal unit.
func (e *Engine) AddLink(tr transport.Transport, fd int, slc uint8) {
	ln := mtp2.New(fd, slc, e.sched, e.queue, e.Logger)
	e.ctl.AddLink(ln)
	e.links = append(e.links, &linkEntry{fd: fd, link: ln, transport: tr})
}

func (e *Engine) entry(fd int) *linkEntry {
	for _, le := range e.links {
		if le.fd == fd {
			return le
		}
	}
	return nil
}

// Start begins alignment on every added link, per spec.md §6
// "start()".
func (e *Engine) Start() {
	for _, le := range e.links {
		le.link.Start(false)
	}
}

// Read pulls one SU off fd's transport and feeds it through MTP2, per
// spec.md §6 "read(fd)".
func (e *Engine) Read(fd int) error {
	le := e.entry(fd)
	if le == nil {
		return ErrUnknownLink
	}
	raw, err := le.transport.Read()
	if err != nil {
		return err
	}
	return le.link.Receive(raw)
}

// Write drains one pending SU from fd's link to its transport, per
// spec.md §6 "write(fd)". When the link has no retransmission or
// queued MSU pending, it writes the link's automatic fill-in or status
// unit instead.
func (e *Engine) Write(fd int) error {
	le := e.entry(fd)
	if le == nil {
		return ErrUnknownLink
	}
	buf := make([]byte, su.MaxSize)
	n, err := le.link.PollOut(buf)
	if err != nil {
		return fmt.Errorf("ss7: mtp2: poll out fd %d: %w", fd, err)
	}
	return le.transport.Write(buf[:n])
}

// PollFlags reports which poll events fd currently wants: read is
// always desired; write is desired whenever the link has buffered
// output, per spec.md §6 "pollflags(fd)".
type PollFlags struct {
	Read  bool
	Write bool
}

func (e *Engine) PollFlags(fd int) PollFlags {
	le := e.entry(fd)
	if le == nil {
		return PollFlags{}
	}
	return PollFlags{Read: true, Write: le.link.QueueDepth() > 0}
}

// ScheduleNext reports the duration until the next armed timer fires,
// per spec.md §6 "schedule_next()".
func (e *Engine) ScheduleNext() (time.Duration, bool) {
	return e.sched.Next()
}

// ScheduleRun fires every timer whose deadline has passed, per
// spec.md §6 "schedule_run()".
func (e *Engine) ScheduleRun() {
	e.sched.Run()
}

// CheckEvent dequeues the next event, running MTP3's post-process
// hook on it first, per spec.md §6 "check_event()" and §4.5.
func (e *Engine) CheckEvent() (event.Event, bool) {
	ev, ok := e.queue.CheckEvent(e.ctl.Hook)
	if e.Metrics != nil {
		e.Metrics.SetQueueDepth(e.queue.Len())
		e.Metrics.SetCallRecords(e.calls.Len())
	}
	return ev, ok
}

// LinkAlarm signals a physical-layer alarm on fd, per spec.md §6
// "link_alarm(fd)": MTP2 stops offering service until LinkNoAlarm.
func (e *Engine) LinkAlarm(fd int) error {
	le := e.entry(fd)
	if le == nil {
		return ErrUnknownLink
	}
	le.link.Alarm()
	return nil
}

// LinkNoAlarm clears a physical-layer alarm on fd, per spec.md §6
// "link_noalarm(fd)".
func (e *Engine) LinkNoAlarm(fd int) error {
	le := e.entry(fd)
	if le == nil {
		return ErrUnknownLink
	}
	le.link.NoAlarm()
	return nil
}

// NewCall allocates a call record for cic addressed to dpc (or the
// configured default DPC when dpc is zero), per spec.md §6
// "new_call"/"init_call(cic, dpc)".
func (e *Engine) NewCall(cic uint16, dpc uint32) *isup.Call {
	if dpc == 0 {
		dpc = e.defaultDPC
	}
	return e.calls.LookupOrCreate(dpc, cic)
}

// SendIAM encodes and transmits an Initial Address Message for call.
func (e *Engine) SendIAM(call *isup.Call) error { return e.ctl.TransmitISUP(isup.IAM, call) }

// SendACM encodes and transmits an Address Complete Message.
func (e *Engine) SendACM(call *isup.Call) error { return e.ctl.TransmitISUP(isup.ACM, call) }

// SendANM encodes and transmits an Answer Message.
func (e *Engine) SendANM(call *isup.Call) error { return e.ctl.TransmitISUP(isup.ANM, call) }

// SendCON encodes and transmits a Connect message.
func (e *Engine) SendCON(call *isup.Call) error { return e.ctl.TransmitISUP(isup.CON, call) }

// SendREL encodes and transmits a Release message with the given
// cause, per spec.md §6 "rel(cause)".
func (e *Engine) SendREL(call *isup.Call, cause isup.Cause) error {
	call.Cause = cause
	return e.ctl.TransmitISUP(isup.REL, call)
}

// SendRLC encodes and transmits a Release Complete, then frees the
// call record, per spec.md §3 "Lifecycle".
func (e *Engine) SendRLC(call *isup.Call) error {
	if err := e.ctl.TransmitISUP(isup.RLC, call); err != nil {
		return err
	}
	e.calls.Delete(call.DPC, call.CIC)
	return nil
}

// SendCPG encodes and transmits a Call Progress message.
func (e *Engine) SendCPG(call *isup.Call, progressEvent uint8) error {
	call.EventInfo = progressEvent
	return e.ctl.TransmitISUP(isup.CPG, call)
}

// GRS sends a Circuit Group Reset across [begin,end] toward dpc, per
// spec.md §6 "grs(begin,end,dpc)".
func (e *Engine) GRS(begin, end uint16, dpc uint32) error {
	call := isup.NewTransient(dpc, begin)
	call.GroupStart, call.GroupEnd = begin, end
	return e.ctl.TransmitISUP(isup.GRS, call)
}

// GRA replies to a GRS with the circuit range's status, per spec.md
// §6 "gra".
func (e *Engine) GRA(begin, end uint16, dpc uint32, status []byte) error {
	call := isup.NewTransient(dpc, begin)
	call.GroupStart, call.GroupEnd, call.GroupStatus = begin, end, status
	return e.ctl.TransmitISUP(isup.GRA, call)
}

func (e *Engine) groupOp(t isup.MessageType, begin, end uint16, dpc uint32, status []byte) error {
	call := isup.NewTransient(dpc, begin)
	call.GroupStart, call.GroupEnd, call.GroupStatus = begin, end, status
	return e.ctl.TransmitISUP(t, call)
}

// CGB sends a Circuit Group Blocking request.
func (e *Engine) CGB(begin, end uint16, dpc uint32, status []byte) error {
	return e.groupOp(isup.CGB, begin, end, dpc, status)
}

// CGU sends a Circuit Group Unblocking request.
func (e *Engine) CGU(begin, end uint16, dpc uint32, status []byte) error {
	return e.groupOp(isup.CGU, begin, end, dpc, status)
}

// CGBA acknowledges a Circuit Group Blocking request.
func (e *Engine) CGBA(begin, end uint16, dpc uint32, status []byte) error {
	return e.groupOp(isup.CGBA, begin, end, dpc, status)
}

// CGUA acknowledges a Circuit Group Unblocking request.
func (e *Engine) CGUA(begin, end uint16, dpc uint32, status []byte) error {
	return e.groupOp(isup.CGUA, begin, end, dpc, status)
}

// BLO blocks a single circuit.
func (e *Engine) BLO(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.BLO, isup.NewTransient(dpc, cic))
}

// BLA acknowledges a blocking request.
func (e *Engine) BLA(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.BLA, isup.NewTransient(dpc, cic))
}

// UBL unblocks a single circuit.
func (e *Engine) UBL(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.UBL, isup.NewTransient(dpc, cic))
}

// UBA acknowledges an unblocking request.
func (e *Engine) UBA(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.UBA, isup.NewTransient(dpc, cic))
}

// RSC resets a single circuit.
func (e *Engine) RSC(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.RSC, isup.NewTransient(dpc, cic))
}

// LPA acknowledges a loopback test.
func (e *Engine) LPA(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.LPA, isup.NewTransient(dpc, cic))
}

// UCIC reports an unequipped CIC.
func (e *Engine) UCIC(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.UCIC, isup.NewTransient(dpc, cic))
}

// CCR requests a continuity check.
func (e *Engine) CCR(cic uint16, dpc uint32) error {
	return e.ctl.TransmitISUP(isup.CCR, isup.NewTransient(dpc, cic))
}

// CQR replies to a circuit group query with per-circuit status.
func (e *Engine) CQR(begin, end uint16, dpc uint32, status []byte) error {
	return e.groupOp(isup.CQR, begin, end, dpc, status)
}
