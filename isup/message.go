package isup

import "errors"

// ErrUnknownMessageType denies decoding a message type absent from the
// metadata table.
var ErrUnknownMessageType = errors.New("ss7: isup: unknown message type")

// ErrCICRange denies a CIC outside the dialect's bit width.
var ErrCICRange = errors.New("ss7: isup: circuit identification code out of range")

// cicMask returns the bit mask for a CIC: 12 bits ITU, 14 bits ANSI, per
// spec.md §3 "ISUP Call".
func cicMask(ansi bool) uint16 {
	if ansi {
		return 0x3fff
	}
	return 0x0fff
}

// meta is the message-type metadata of spec.md §4.3: a fixed-length
// parameter size list (order fixed per message type), a count of
// mandatory variable parameters, and whether an optional section may
// follow.
type meta struct {
	fixedSizes []int
	varCount   int
	optAllowed bool
}

// OptParam is a decoded or to-be-encoded optional parameter.
type OptParam struct {
	code optParamCode
	data []byte
}

// encodeMessage lays down CIC, message type and the three parameter
// sections, following the send algorithm of spec.md §4.3.
func encodeMessage(ansi bool, cic uint16, t MessageType, m meta, fixed [][]byte, vars [][]byte, opts []OptParam) ([]byte, error) {
	mask := cicMask(ansi)
	if cic > mask {
		return nil, ErrCICRange
	}
	if len(fixed) != len(m.fixedSizes) || len(vars) != m.varCount {
		return nil, errors.New("ss7: isup: parameter count mismatch for message type")
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, byte(cic), byte(cic>>8))
	buf = append(buf, byte(t))

	for i, f := range fixed {
		if len(f) != m.fixedSizes[i] {
			return nil, errors.New("ss7: isup: fixed parameter size mismatch")
		}
		buf = append(buf, f...)
	}

	if m.varCount > 0 {
		pointerStart := len(buf)
		buf = append(buf, make([]byte, m.varCount)...)
		for i, v := range vars {
			lenOffset := len(buf)
			pointerOffset := pointerStart + i
			buf[pointerOffset] = byte(lenOffset - pointerOffset)
			buf = append(buf, byte(len(v)))
			buf = append(buf, v...)
		}
	}

	switch {
	case len(opts) > 0 && m.optAllowed:
		optPtrOffset := len(buf)
		buf = append(buf, 0)
		firstOffset := len(buf)
		buf[optPtrOffset] = byte(firstOffset - optPtrOffset)
		for _, o := range opts {
			buf = append(buf, byte(o.code), byte(len(o.data)))
			buf = append(buf, o.data...)
		}
		buf = append(buf, byte(optEnd))

	case m.optAllowed:
		// no optionals present: a zero pointer octet signals as much.
		buf = append(buf, 0)

		// m.optAllowed == false: no pointer octet at all, matching
		// the ANSI RLC exception of spec.md §4.3.
	}

	return buf, nil
}

// decoded holds the raw sections of a parsed message, before the
// message-specific Parse function interprets them semantically.
type decoded struct {
	cic   uint16
	typ   MessageType
	fixed [][]byte
	vars  [][]byte
	opts  []OptParam
}

// decodeMessage splits payload into CIC, message type and its three
// parameter sections per the receive algorithm of spec.md §4.3.
func decodeMessage(ansi bool, payload []byte, m meta) (decoded, error) {
	if len(payload) < 3 {
		return decoded{}, ErrTruncatedParameter
	}

	mask := cicMask(ansi)
	cic := (uint16(payload[0]) | uint16(payload[1])<<8) & mask
	typ := MessageType(payload[2])

	data := payload[3:]
	offset := 0

	fixed := make([][]byte, len(m.fixedSizes))
	for i, sz := range m.fixedSizes {
		if offset+sz > len(data) {
			return decoded{}, ErrTruncatedParameter
		}
		fixed[i] = data[offset : offset+sz]
		offset += sz
	}

	vars := make([][]byte, m.varCount)
	if m.varCount > 0 {
		pointerStart := offset
		if pointerStart+m.varCount > len(data) {
			return decoded{}, ErrTruncatedParameter
		}
		maxEnd := pointerStart + m.varCount
		for i := 0; i < m.varCount; i++ {
			ptr := data[pointerStart+i]
			lenOffset := pointerStart + i + int(ptr)
			if lenOffset >= len(data) {
				return decoded{}, ErrTruncatedParameter
			}
			length := int(data[lenOffset])
			start := lenOffset + 1
			end := start + length
			if end > len(data) {
				return decoded{}, ErrTruncatedParameter
			}
			vars[i] = data[start:end]
			if end > maxEnd {
				maxEnd = end
			}
		}
		offset = maxEnd
	}

	var opts []OptParam
	if m.optAllowed && offset < len(data) {
		optPtrOffset := offset
		ptr := data[optPtrOffset]
		if ptr != 0 {
			pos := optPtrOffset + int(ptr)
			for pos < len(data) && data[pos] != byte(optEnd) {
				if pos+2 > len(data) {
					return decoded{}, ErrTruncatedParameter
				}
				code := optParamCode(data[pos])
				length := int(data[pos+1])
				start := pos + 2
				end := start + length
				if end > len(data) {
					return decoded{}, ErrTruncatedParameter
				}
				opts = append(opts, OptParam{code: code, data: append([]byte(nil), data[start:end]...)})
				pos = end
			}
		}
	}

	return decoded{cic: cic, typ: typ, fixed: fixed, vars: vars, opts: opts}, nil
}

func findOpt(opts []OptParam, code optParamCode) ([]byte, bool) {
	for _, o := range opts {
		if o.code == code {
			return o.data, true
		}
	}
	return nil, false
}
