package mtp3

// UserPart identifies the SIO's user-part subfield, per spec.md §4.2.
type UserPart uint8

const (
	UserPartNetMng  UserPart = 0x1 // SNM: network management
	UserPartStdTest UserPart = 0x2 // signalling link test, ITU
	UserPartSCCP    UserPart = 0x3
	UserPartISUP    UserPart = 0x5
	UserPartSpcTest UserPart = 0x7 // signalling link test, ANSI
)

// ANSI stamps a fixed priority into every outbound SIO; source observed no
// per-message priority selection.
const ansiPriority = 0

// SIO is the Service Information Octet: network indicator, (ANSI) priority,
// and user part.
type SIO struct {
	NetworkIndicator uint8
	Priority         uint8 // ANSI only
	UserPart         UserPart
}

// Marshal packs the SIO into its single wire octet: network indicator in
// the high 2 bits, priority in the next 2 (ANSI only), user part in the
// low 4.
func (s SIO) Marshal(ansi bool) byte {
	b := (s.NetworkIndicator&0x03)<<6 | byte(s.UserPart&0x0f)
	if ansi {
		b |= (s.Priority & 0x03) << 4
	}
	return b
}

// UnmarshalSIO decodes the wire octet.
func UnmarshalSIO(ansi bool, b byte) SIO {
	s := SIO{
		NetworkIndicator: (b >> 6) & 0x03,
		UserPart:         UserPart(b & 0x0f),
	}
	if ansi {
		s.Priority = (b >> 4) & 0x03
	}
	return s
}
