package mtp3

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/romangb/libss7/event"
	"github.com/romangb/libss7/isup"
	"github.com/romangb/libss7/mtp2"
)

// LinkState is a link's position in the link-set controller, per spec.md
// §3 "MTP3 Link-set" — distinct from mtp2.State, which tracks the same
// link's alignment state machine in finer detail.
type LinkState int

const (
	LinkDown LinkState = iota
	LinkInAlarm
	LinkAligning
	LinkUp
)

func (s LinkState) String() string {
	switch s {
	case LinkDown:
		return "DOWN"
	case LinkInAlarm:
		return "IN_ALARM"
	case LinkAligning:
		return "ALIGNING"
	case LinkUp:
		return "UP"
	default:
		return "UNKNOWN"
	}
}

// Heading codes for the NET_MNG and link-test sub-protocols, per spec.md
// §4.2. H0 occupies the low nibble, H1 the high nibble of the first octet
// after the routing label.
const (
	h0SLT    = 0x1
	h1SLTM   = 0x1
	h1SLTA   = 0x2
	h0NetMng = 0x7
	h1TRA    = 0x1
)

// ErrUnknownLink denies a transmit request naming an fd not added via
// AddLink.
var ErrUnknownLink = errors.New("ss7: mtp3: unknown link")

// ErrNoLinkAvailable denies a transmit request when no link is UP and the
// link-set is empty.
var ErrNoLinkAvailable = errors.New("ss7: mtp3: no link available")

type linkEntry struct {
	fd    int
	link  *mtp2.Link
	state LinkState
}

// Controller is the MTP3 link-set: one process-local point code's view of
// its adjacent signalling point across one or more MTP2 links, per
// spec.md §3 "MTP3 Link-set" and §4.2.
type Controller struct {
	PC               uint32
	NetworkIndicator uint8
	ANSI             bool

	calls  *isup.CallTable
	events *event.Queue
	logger *log.Logger

	links      []*linkEntry
	slsCounter int
	adjPC      map[int]uint32 // per-link adjacent point code, set via SetAdjPC

	upSurfaced bool // SS7_EVENT_UP is surfaced once per process, per spec.md §4.2
}

// NewController returns an empty link-set controller.
func NewController(pc uint32, ni uint8, ansi bool, calls *isup.CallTable, events *event.Queue, logger *log.Logger) *Controller {
	return &Controller{
		PC:               pc,
		NetworkIndicator: ni,
		ANSI:             ansi,
		calls:            calls,
		events:           events,
		logger:           logger,
		adjPC:            make(map[int]uint32),
	}
}

// SetAdjPC records the adjacent point code reachable over the link at fd,
// per spec.md §6 "set_adjpc(fd, pc)".
func (c *Controller) SetAdjPC(fd int, pc uint32) {
	c.adjPC[fd] = pc
}

// AddLink wires an MTP2 link into the link-set, routing its deliveries
// through the controller's receive path.
func (c *Controller) AddLink(ln *mtp2.Link) {
	e := &linkEntry{fd: ln.FD, link: ln, state: LinkDown}
	ln.Deliver = func(payload []byte) { c.receive(e, payload) }
	c.links = append(c.links, e)
}

func (c *Controller) entry(fd int) *linkEntry {
	for _, e := range c.links {
		if e.fd == fd {
			return e
		}
	}
	return nil
}

// LinkState reports the controller's view of the named link.
func (c *Controller) LinkState(fd int) (LinkState, bool) {
	e := c.entry(fd)
	if e == nil {
		return LinkDown, false
	}
	return e.state, true
}

// selectLink implements spec.md §4.2 "SLS to link": round-robin via the
// rolling SLS counter, falling back to the first UP link, else the first
// link at all.
func (c *Controller) selectLink(sls uint8) (*linkEntry, error) {
	if len(c.links) == 0 {
		return nil, ErrNoLinkAvailable
	}
	idx := int(sls) % len(c.links)
	if c.links[idx].state == LinkUp {
		return c.links[idx], nil
	}
	for _, e := range c.links {
		if e.state == LinkUp {
			return e, nil
		}
	}
	return c.links[0], nil
}

func (c *Controller) nextSLS() uint8 {
	s := c.slsCounter
	c.slsCounter++
	if c.ANSI {
		return uint8(s)
	}
	return uint8(s) & 0xf
}

// Transmit builds an SIO + routing label + payload frame and hands it to
// the SLS-selected link's tx_queue, per spec.md §4.2 "Transmit". It
// stamps a fresh round-robin SLS and is for originating new traffic;
// replies and link-pinned originations must preserve or target a
// specific link instead, via transmitOnLink.
func (c *Controller) Transmit(up UserPart, dpc uint32, payload []byte) error {
	sls := c.nextSLS()
	e, err := c.selectLink(sls)
	if err != nil {
		return err
	}
	return c.transmitOnLink(e, up, dpc, sls, payload)
}

// transmitOnLink builds and queues an SIO + routing label + payload frame
// on a specific link, with an explicit SLS — used for SLTA replies (which
// carry the request's SLS back out the link it arrived on) and
// for SLTM/TRA originated toward a specific newly-UP link, neither of
// which should be subject to Transmit's general round-robin selection.
func (c *Controller) transmitOnLink(e *linkEntry, up UserPart, dpc uint32, sls uint8, payload []byte) error {
	sio := SIO{NetworkIndicator: c.NetworkIndicator, UserPart: up, Priority: ansiPriority}
	label := Label{OPC: c.PC, DPC: dpc, SLS: sls}
	labelBytes, err := label.Marshal(c.ANSI)
	if err != nil {
		return err
	}

	frame := make([]byte, 0, 1+len(labelBytes)+len(payload))
	frame = append(frame, sio.Marshal(c.ANSI))
	frame = append(frame, labelBytes...)
	frame = append(frame, payload...)
	return e.link.QueueMSU(frame)
}

// TransmitISUP encodes and sends an ISUP message for call.
func (c *Controller) TransmitISUP(t isup.MessageType, call *isup.Call) error {
	payload, err := isup.Encode(c.ANSI, t, call)
	if err != nil {
		return err
	}
	return c.Transmit(UserPartISUP, call.DPC, payload)
}

// receive implements spec.md §4.2 "Receive": parse SIO, reject a mismatched
// network indicator, parse the routing label, reject a mismatched DPC, and
// dispatch by user part.
func (c *Controller) receive(e *linkEntry, payload []byte) {
	if len(payload) < 1 {
		return
	}
	sio := UnmarshalSIO(c.ANSI, payload[0])
	if sio.NetworkIndicator != c.NetworkIndicator {
		c.logDrop("network indicator mismatch", sio.NetworkIndicator)
		return
	}

	rest := payload[1:]
	label, err := UnmarshalLabel(c.ANSI, rest)
	if err != nil {
		c.logDrop("truncated routing label", err)
		return
	}
	if label.DPC != c.PC {
		c.logDrop("destination point code mismatch", label.DPC)
		return
	}
	body := rest[Len(c.ANSI):]

	switch sio.UserPart {
	case UserPartISUP:
		c.receiveISUP(label, body)
	case UserPartStdTest, UserPartSpcTest:
		c.receiveLinkTest(e, label, body)
	case UserPartNetMng:
		c.receiveNetMng(e, label, body)
	default:
		c.logDrop("unsupported user part", sio.UserPart)
	}
}

func (c *Controller) receiveISUP(label Label, body []byte) {
	ev, err := isup.Decode(c.ANSI, body, c.calls, label.OPC)
	if err != nil {
		c.logDrop("isup decode error", err)
		return
	}
	if err := c.events.PushISUP(ev); err != nil && c.logger != nil {
		c.logger.Error("mtp3: event queue full, dropping isup event")
	}
}

// receiveLinkTest implements the Signalling Link Test Control Procedure,
// per spec.md §4.2 "Link test": echo an SLTM request back as an SLTA,
// reversing OPC/DPC and preserving SLS.
func (c *Controller) receiveLinkTest(e *linkEntry, label Label, body []byte) {
	if len(body) < 1 {
		return
	}
	h0, h1 := body[0]&0xf, (body[0]>>4)&0xf
	if h0 != h0SLT || h1 != h1SLTM {
		return
	}

	reply := make([]byte, len(body))
	copy(reply, body)
	reply[0] = h0SLT | h1SLTA<<4

	up := UserPartStdTest
	if c.ANSI {
		up = UserPartSpcTest
	}
	if err := c.transmitOnLink(e, up, label.OPC, label.SLS, reply); err != nil && c.logger != nil {
		c.logger.Error("mtp3: failed to send SLTA", "err", err)
	}
}

// receiveNetMng implements the TRA half of spec.md §4.2 "NET_MNG": mark
// the originating link UP and, on the first occurrence per process,
// surface the process-wide UP event.
func (c *Controller) receiveNetMng(e *linkEntry, label Label, body []byte) {
	if len(body) < 1 {
		return
	}
	h0, h1 := body[0]&0xf, (body[0]>>4)&0xf
	if h0 != h0NetMng || h1 != h1TRA {
		return
	}
	e.state = LinkUp
	if !c.upSurfaced {
		c.upSurfaced = true
		if err := c.events.Push(event.Event{Kind: event.KindUp}); err != nil && c.logger != nil {
			c.logger.Error("mtp3: event queue full, dropping process-wide UP event")
		}
	}
}

// Hook is the MTP3 post-process hook of spec.md §4.5: on a drained
// MTP2_LINK_UP event it marks the link-set entry UP and, when an adjacent
// point code is set for that link via SetAdjPC, originates an SLTM and a
// TRA toward it, without suppressing the event handed to the host.
func (c *Controller) Hook(ev event.Event) {
	if ev.Kind != event.KindLinkUp {
		return
	}
	e := c.entry(ev.LinkFD)
	if e == nil {
		return
	}
	e.state = LinkUp

	sltm := []byte{h0SLT | h1SLTM<<4, 0x10, 0x5a}
	testUP := UserPartStdTest
	tra := []byte{h0NetMng | h1TRA<<4}
	if c.ANSI {
		testUP = UserPartSpcTest
	}

	adjPC, ok := c.adjPC[ev.LinkFD]
	if !ok {
		return // no configured adjacency: nothing to originate toward
	}
	sls := c.nextSLS()
	if err := c.transmitOnLink(e, testUP, adjPC, sls, sltm); err != nil && c.logger != nil {
		c.logger.Error("mtp3: failed to originate SLTM", "err", err)
	}
	if err := c.transmitOnLink(e, UserPartNetMng, adjPC, sls, tra); err != nil && c.logger != nil {
		c.logger.Error("mtp3: failed to transmit TRA", "err", err)
	}
}

func (c *Controller) logDrop(reason string, detail interface{}) {
	if c.logger != nil {
		c.logger.Debug("mtp3: dropped MSU", "reason", reason, "detail", detail)
	}
}
