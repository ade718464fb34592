package isup

// Number is a called/calling/charge party number. See spec.md §4.3
// "Encoding/decoding contracts": nature-of-address in the flags octet bits
// 0-6 with the odd/even indicator in bit 7, numbering plan in the next
// octet's bits 4-6, presentation in bits 2-3 and screening in bits 0-1
// (calling/charge numbers only — called numbers carry neither).
type Number struct {
	Digits       string
	Nature       NatureOfAddress
	Plan         NumberingPlan
	Presentation Presentation
	Screening    Screening
}

func encodeNumber(n Number, withPresentation bool) ([]byte, error) {
	bcd, odd, err := encodeBCD(n.Digits)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 2, 2+len(bcd))
	head[0] = uint8(n.Nature) & 0x7f
	if odd {
		head[0] |= 0x80
	}
	head[1] = uint8(n.Plan&0x07) << 4
	if withPresentation {
		head[1] |= uint8(n.Presentation&0x03)<<2 | uint8(n.Screening&0x03)
	}
	return append(head, bcd...), nil
}

func decodeNumber(data []byte, withPresentation bool) (Number, error) {
	if len(data) < 2 {
		return Number{}, ErrTruncatedParameter
	}

	odd := data[0]&0x80 != 0
	n := Number{
		Nature: NatureOfAddress(data[0] & 0x7f),
		Plan:   NumberingPlan((data[1] >> 4) & 0x07),
	}
	if withPresentation {
		n.Presentation = Presentation((data[1] >> 2) & 0x03)
		n.Screening = Screening(data[1] & 0x03)
	}

	digits, err := decodeBCD(data[2:], odd)
	if err != nil {
		return Number{}, err
	}
	n.Digits = digits
	return n, nil
}

// Cause carries a release/reject reason. See spec.md §4.3 "Cause
// indicator": coding standard in bits 5-6 of the first octet, location in
// bits 0-3 of the first octet, cause value (including its class in bits
// 4-6) in bits 0-6 of the second octet.
type Cause struct {
	CodingStandard uint8
	Location       uint8
	Value          uint8
}

// Class returns the cause-value class, the top 3 bits of Value.
func (c Cause) Class() uint8 { return (c.Value >> 4) & 0x7 }

func encodeCause(c Cause) []byte {
	return []byte{
		0x80 | (c.CodingStandard&0x03)<<5 | (c.Location & 0x0f),
		0x80 | (c.Value & 0x7f),
	}
}

func decodeCause(data []byte) (Cause, error) {
	if len(data) < 2 {
		return Cause{}, ErrTruncatedParameter
	}
	return Cause{
		CodingStandard: (data[0] >> 5) & 0x03,
		Location:       data[0] & 0x0f,
		Value:          data[1] & 0x7f,
	}, nil
}

// RangeAndStatus carries a circuit range starting at a message's CIC, with
// an optional per-circuit status bitmap (present on GRA/CGB/CGU/CGBA/CGUA/
// CQR, but not on the GRS/CQM requests which carry only the range).
type RangeAndStatus struct {
	Range  uint8 // circuit count minus one, 0..255
	Status []byte
}

func encodeRangeOnly(count int) []byte {
	return []byte{uint8(count - 1)}
}

func decodeRangeOnly(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, ErrTruncatedParameter
	}
	return int(data[0]) + 1, nil
}

func encodeRangeAndStatus(rs RangeAndStatus) []byte {
	return append([]byte{rs.Range}, rs.Status...)
}

func decodeRangeAndStatus(data []byte) (RangeAndStatus, error) {
	if len(data) < 1 {
		return RangeAndStatus{}, ErrTruncatedParameter
	}
	return RangeAndStatus{
		Range:  data[0],
		Status: append([]byte(nil), data[1:]...),
	}, nil
}

// BuildCircuitStatus packs one status bit per circuit, matching the wire
// layout used by RangeAndStatus.Status, for callers composing a GRA/CGBA/
// CGUA response from per-circuit state rather than a pre-packed bitmap.
func BuildCircuitStatus(count int, set func(i int) bool) []byte {
	buf := make([]byte, (count+7)/8)
	for i := 0; i < count; i++ {
		if set(i) {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return buf
}

func statusBit(status []byte, i int) bool {
	octet := i / 8
	if octet >= len(status) {
		return false
	}
	return status[octet]&(1<<uint(i%8)) != 0
}
