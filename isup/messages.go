package isup

import (
	"fmt"
	"strings"
)

// messageMeta returns the fixed/variable/optional layout for t under the
// given dialect, per the message-metadata table of spec.md §4.3. The ANSI
// column only differs from ITU where spec.md calls it out explicitly:
// IAM's fixed/variable split, and RLC's optional-parameter prohibition.
func messageMeta(t MessageType, ansi bool) (meta, bool) {
	switch t {
	case IAM:
		if ansi {
			return meta{fixedSizes: []int{1, 2, 1}, varCount: 2, optAllowed: true}, true
		}
		return meta{fixedSizes: []int{1, 2, 1, 1}, varCount: 1, optAllowed: true}, true
	case ACM:
		return meta{fixedSizes: []int{2}, optAllowed: true}, true
	case ANM:
		return meta{optAllowed: true}, true
	case CON:
		return meta{fixedSizes: []int{2}, optAllowed: true}, true
	case REL:
		return meta{varCount: 1, optAllowed: true}, true
	case RLC:
		return meta{optAllowed: !ansi}, true
	case GRS:
		return meta{fixedSizes: []int{1}, optAllowed: true}, true
	case GRA:
		return meta{varCount: 1, optAllowed: true}, true
	case CGB, CGU, CGBA, CGUA:
		return meta{fixedSizes: []int{1}, varCount: 1, optAllowed: true}, true
	case COT:
		return meta{fixedSizes: []int{1}, optAllowed: true}, true
	case CCR:
		return meta{optAllowed: false}, true
	case BLO, UBL, BLA, UBA:
		return meta{optAllowed: true}, true
	case LPA:
		return meta{optAllowed: false}, true
	case RSC:
		return meta{optAllowed: true}, true
	case CPG:
		return meta{fixedSizes: []int{1}, optAllowed: true}, true
	case UCIC:
		return meta{optAllowed: false}, true
	case CQM:
		return meta{fixedSizes: []int{1}, optAllowed: true}, true
	case CQR:
		return meta{varCount: 1, optAllowed: true}, true
	case FAA, FAR:
		return meta{optAllowed: true}, true
	case SUS, RES:
		return meta{fixedSizes: []int{1}, optAllowed: true}, true
	default:
		return meta{}, false
	}
}

// callingNumberOpt builds the optional calling-party-number parameter
// shared by several message types.
func callingNumberOpt(c *Call) (OptParam, bool) {
	if c.Calling.Digits == "" {
		return OptParam{}, false
	}
	data, err := encodeNumber(c.Calling, true)
	if err != nil {
		return OptParam{}, false
	}
	return OptParam{code: optCallingPartyNumber, data: data}, true
}

func ansiOpts(c *Call) []OptParam {
	var opts []OptParam
	if c.JIP != "" {
		bcd, _, err := encodeBCD(c.JIP)
		if err == nil {
			opts = append(opts, OptParam{code: optJIP, data: bcd})
		}
	}
	if len(c.GenericAddress) > 0 {
		opts = append(opts, OptParam{code: optGenericAddress, data: c.GenericAddress})
	}
	if len(c.GenericDigits) > 0 {
		opts = append(opts, OptParam{code: optGenericDigits, data: c.GenericDigits})
	}
	if c.CallReference != 0 {
		opts = append(opts, OptParam{code: optCallReference, data: []byte{
			byte(c.CallReference), byte(c.CallReference >> 8), byte(c.CallReference >> 16),
		}})
	}
	if c.ChargeNumber.Digits != "" {
		if data, err := encodeNumber(c.ChargeNumber, true); err == nil {
			opts = append(opts, OptParam{code: optChargeNumber, data: data})
		}
	}
	if c.OLI != 0 {
		opts = append(opts, OptParam{code: optOLI, data: []byte{c.OLI}})
	}
	return opts
}

func applyAnsiOpts(c *Call, opts []OptParam) {
	if data, ok := findOpt(opts, optJIP); ok {
		if digits, err := decodeBCD(data, false); err == nil {
			c.JIP = digits
		}
	}
	if data, ok := findOpt(opts, optGenericAddress); ok {
		c.GenericAddress = data
	}
	if data, ok := findOpt(opts, optGenericDigits); ok {
		c.GenericDigits = data
	}
	if data, ok := findOpt(opts, optCallReference); ok && len(data) >= 3 {
		c.CallReference = uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	}
	if data, ok := findOpt(opts, optChargeNumber); ok {
		if n, err := decodeNumber(data, true); err == nil {
			c.ChargeNumber = n
		}
	}
	if data, ok := findOpt(opts, optOLI); ok && len(data) >= 1 {
		c.OLI = data[0]
	}
}

// Encode builds the ISUP message-type payload for c, following the send
// algorithm of spec.md §4.3. The returned bytes begin at the CIC and do
// not include the routing label or SIO — those are MTP3's concern.
func Encode(ansi bool, t MessageType, c *Call) ([]byte, error) {
	m, ok := messageMeta(t, ansi)
	if !ok {
		return nil, ErrUnknownMessageType
	}

	var fixed, vars [][]byte
	var opts []OptParam

	switch t {
	case IAM:
		fixed = append(fixed, []byte{0})                                          // nature of connection indicators
		fixed = append(fixed, []byte{0, 0})                                       // forward call indicators
		fixed = append(fixed, []byte{c.CallingCategory})                          // calling party's category
		called := c.Called
		if !ansi && !strings.HasSuffix(called.Digits, "#") {
			// end-of-pulsing terminator, per spec.md:191/215: the ITU
			// codec appends it on encode so callers never have to.
			called.Digits += "#"
		}
		calledData, err := encodeNumber(called, false)
		if err != nil {
			return nil, err
		}
		if ansi {
			vars = append(vars, calledData, []byte{c.TransportCap})
		} else {
			fixed = append(fixed, []byte{c.TransportCap})
			vars = append(vars, calledData)
		}
		if o, ok := callingNumberOpt(c); ok {
			opts = append(opts, o)
		}
		if ansi {
			opts = append(opts, ansiOpts(c)...)
		}

	case ACM, CON:
		fixed = append(fixed, []byte{0, 0}) // backward call indicators
		if o, ok := callingNumberOpt(c); ok {
			opts = append(opts, o)
		}

	case ANM:
		if o, ok := callingNumberOpt(c); ok {
			opts = append(opts, o)
		}

	case REL:
		vars = append(vars, encodeCause(c.Cause))

	case RLC:
		// no parameters; ANSI additionally forbids any optionals.

	case GRS, CQM:
		count := int(c.GroupEnd) - int(c.GroupStart) + 1
		fixed = append(fixed, encodeRangeOnly(count))

	case GRA, CQR:
		count := int(c.GroupEnd) - int(c.GroupStart) + 1
		vars = append(vars, encodeRangeAndStatus(RangeAndStatus{
			Range:  uint8(count - 1),
			Status: c.GroupStatus,
		}))

	case CGB, CGU, CGBA, CGUA:
		count := int(c.GroupEnd) - int(c.GroupStart) + 1
		fixed = append(fixed, []byte{c.EventInfo}) // supervision type indicator
		vars = append(vars, encodeRangeAndStatus(RangeAndStatus{
			Range:  uint8(count - 1),
			Status: c.GroupStatus,
		}))

	case COT:
		var ind uint8
		if c.ContinuityPassed {
			ind = 1
		}
		fixed = append(fixed, []byte{ind})

	case CPG:
		fixed = append(fixed, []byte{c.EventInfo})

	case CCR, BLO, UBL, BLA, UBA, LPA, RSC, UCIC, FAA, FAR:
		// no parameters beyond CIC and message type.

	case SUS, RES:
		fixed = append(fixed, []byte{c.EventInfo}) // suspend/resume indicator

	default:
		return nil, ErrUnknownMessageType
	}

	return encodeMessage(ansi, c.CIC, t, m, fixed, vars, opts)
}

// Decode parses an ISUP payload, updates or allocates the relevant call
// record in calls, and returns the event to surface to the host
// application, per spec.md §4.3 "Receive algorithm" and "Event mapping".
func Decode(ansi bool, payload []byte, calls *CallTable, dpc uint32) (*Event, error) {
	// peek the message type before full metadata-driven parsing, since
	// the metadata itself is keyed by type.
	if len(payload) < 3 {
		return nil, ErrTruncatedParameter
	}
	t := MessageType(payload[2])

	m, ok := messageMeta(t, ansi)
	if !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownMessageType, byte(t))
	}

	d, err := decodeMessage(ansi, payload, m)
	if err != nil {
		return nil, err
	}

	nonCallAssociated := t == BLO || t == BLA || t == UBL || t == UBA ||
		t == CGB || t == CGBA || t == CGU || t == CGUA ||
		t == UCIC || t == LPA || t == CCR || t == RSC

	var call *Call
	if nonCallAssociated {
		call = NewTransient(dpc, d.cic)
	} else {
		call = calls.LookupOrCreate(dpc, d.cic)
	}

	ev := &Event{CIC: d.cic, DPC: dpc, Call: call}

	switch t {
	case IAM:
		ev.Kind = EventIAM
		call.CallingCategory = d.fixed[2][0]
		if ansi {
			call.TransportCap = d.vars[1][0]
			called, err := decodeNumber(d.vars[0], false)
			if err != nil {
				return nil, err
			}
			call.Called = called
		} else {
			call.TransportCap = d.fixed[3][0]
			called, err := decodeNumber(d.vars[0], false)
			if err != nil {
				return nil, err
			}
			call.Called = called
		}
		if data, ok := findOpt(d.opts, optCallingPartyNumber); ok {
			calling, err := decodeNumber(data, true)
			if err != nil {
				return nil, err
			}
			call.Calling = calling
		}
		if ansi {
			applyAnsiOpts(call, d.opts)
		}

	case ACM:
		ev.Kind = EventACM
	case ANM:
		ev.Kind = EventANM
	case CON:
		ev.Kind = EventCON
	case REL:
		cause, err := decodeCause(d.vars[0])
		if err != nil {
			return nil, err
		}
		call.Cause = cause
		ev.Kind = EventREL

	case RLC:
		ev.Kind = EventRLC
		calls.Delete(dpc, d.cic)

	case GRS:
		count, err := decodeRangeOnly(d.fixed[0])
		if err != nil {
			return nil, err
		}
		call.GroupStart = d.cic
		call.GroupEnd = d.cic + uint16(count) - 1
		ev.Kind = EventGRS
		ev.StartCIC = call.GroupStart
		ev.EndCIC = call.GroupEnd

	case GRA:
		rs, err := decodeRangeAndStatus(d.vars[0])
		if err != nil {
			return nil, err
		}
		call.GroupStart = d.cic
		call.GroupEnd = d.cic + uint16(rs.Range)
		call.GroupStatus = rs.Status
		ev.Kind = EventGRA
		ev.StartCIC, ev.EndCIC = call.GroupStart, call.GroupEnd
		calls.Delete(dpc, d.cic)

	case CGB, CGU, CGBA, CGUA:
		rs, err := decodeRangeAndStatus(d.vars[0])
		if err != nil {
			return nil, err
		}
		call.EventInfo = d.fixed[0][0]
		call.GroupStart = d.cic
		call.GroupEnd = d.cic + uint16(rs.Range)
		call.GroupStatus = rs.Status
		ev.StartCIC, ev.EndCIC = call.GroupStart, call.GroupEnd
		switch t {
		case CGB:
			ev.Kind = EventCGB
		case CGU:
			ev.Kind = EventCGU
		case CGBA:
			ev.Kind = EventCGBA
		case CGUA:
			ev.Kind = EventCGUA
		}

	case COT:
		call.ContinuityPassed = d.fixed[0][0]&0x01 != 0
		ev.Kind = EventCOT
		ev.Passed = call.ContinuityPassed

	case CCR:
		ev.Kind = EventCCR
	case BLO:
		ev.Kind = EventBLO
	case UBL:
		ev.Kind = EventUBL
	case BLA:
		ev.Kind = EventBLA
	case UBA:
		ev.Kind = EventUBA
	case RSC:
		ev.Kind = EventRSC
	case LPA:
		ev.Kind = EventLPA
	case UCIC:
		ev.Kind = EventUCIC
	case CPG:
		call.EventInfo = d.fixed[0][0]
		ev.Kind = EventCPG
		ev.CPGEvent = call.EventInfo
	case CQM:
		count, err := decodeRangeOnly(d.fixed[0])
		if err != nil {
			return nil, err
		}
		call.GroupStart = d.cic
		call.GroupEnd = d.cic + uint16(count) - 1
		ev.Kind = EventCQM
		ev.StartCIC, ev.EndCIC = call.GroupStart, call.GroupEnd
	case CQR:
		rs, err := decodeRangeAndStatus(d.vars[0])
		if err != nil {
			return nil, err
		}
		call.GroupStart = d.cic
		call.GroupEnd = d.cic + uint16(rs.Range)
		call.GroupStatus = rs.Status
		ev.Kind = EventCQR
		ev.StartCIC, ev.EndCIC = call.GroupStart, call.GroupEnd
	case FAA:
		ev.Kind = EventFAA
	case FAR:
		ev.Kind = EventFAR
	case SUS:
		call.EventInfo = d.fixed[0][0]
		ev.Kind = EventSUS
	case RES:
		call.EventInfo = d.fixed[0][0]
		ev.Kind = EventRES

	default:
		return nil, ErrUnknownMessageType
	}

	return ev, nil
}
