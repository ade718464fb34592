package isup

// Call is a record keyed by (DPC, CIC), per spec.md §3 "ISUP Call". The
// original C implementation threads calls through a singly-linked list
// with linear search by CIC; spec.md §9 directs this to become a map,
// generalized here into CallTable.
type Call struct {
	DPC uint32
	CIC uint16

	Called Number
	Calling Number

	// ANSI-specific miscellany, per spec.md §3.
	ChargeNumber    Number
	JIP             string
	GenericAddress  []byte
	GenericDigits   []byte
	CallReference   uint32
	OLI             uint8 // originating-line information
	ANI2            uint8 // ANI II digits

	TransportCap    uint8 // transmission-medium-requirement (ITU) / user-service-info (ANSI)
	CallingCategory uint8

	Cause Cause

	ContinuityCheckRequired bool
	ContinuityPassed        bool

	EventInfo uint8

	GroupStart, GroupEnd uint16
	GroupStatus          []byte

	// transient marks a call record allocated only for the duration of a
	// non-call-associated message (BLO/UBL/CGB/CGU/UCIC/LPA/CCR etc, per
	// spec.md §3 invariant 3), freed immediately after use rather than
	// being retained in a CallTable.
	transient bool
}

// key identifies a call record by its (DPC, CIC) pair.
type key struct {
	dpc uint32
	cic uint16
}

// CallTable holds at most one Call per (DPC, CIC) for call-associated
// messages, per spec.md §3 invariant 3.
type CallTable struct {
	calls map[key]*Call
}

// NewCallTable returns an empty table.
func NewCallTable() *CallTable {
	return &CallTable{calls: make(map[key]*Call)}
}

// Lookup returns the call for (dpc, cic), if any.
func (t *CallTable) Lookup(dpc uint32, cic uint16) (*Call, bool) {
	c, ok := t.calls[key{dpc, cic}]
	return c, ok
}

// LookupOrCreate returns the existing call for (dpc, cic), creating and
// storing a fresh one if none exists yet — the IAM/call-creating-lookup
// path of spec.md §3 "Lifecycle".
func (t *CallTable) LookupOrCreate(dpc uint32, cic uint16) *Call {
	k := key{dpc, cic}
	if c, ok := t.calls[k]; ok {
		return c
	}
	c := &Call{DPC: dpc, CIC: cic}
	t.calls[k] = c
	return c
}

// Delete removes the call for (dpc, cic), if present. Called on RLC,
// GRA/GRS completion, or supervisory completion, per spec.md §3
// "Lifecycle".
func (t *CallTable) Delete(dpc uint32, cic uint16) {
	delete(t.calls, key{dpc, cic})
}

// Len reports the number of retained (non-transient) call records.
func (t *CallTable) Len() int { return len(t.calls) }

// CircuitStatus reports whether the i-th circuit of a GRS/GRA/CGB/CGU/
// CGBA/CGUA range (0-indexed from GroupStart) is set in GroupStatus.
func (c *Call) CircuitStatus(i int) bool { return statusBit(c.GroupStatus, i) }

// NewTransient returns a call record for a non-call-associated message.
// It is never stored in the table and must be discarded by the caller
// once the message has been processed.
func NewTransient(dpc uint32, cic uint16) *Call {
	return &Call{DPC: dpc, CIC: cic, transient: true}
}
