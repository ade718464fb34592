package isup

import (
	"errors"
	"strings"
)

// ErrTruncatedParameter signals a parameter buffer shorter than its
// declared or implied length (spec.md §9: bounds-checked slices replace
// pointer arithmetic into the shared SU buffer).
var ErrTruncatedParameter = errors.New("ss7: isup: truncated parameter")

// errBadDigit denies a digit outside 0-9, '*' or '#'.
var errBadDigit = errors.New("ss7: isup: invalid BCD digit")

// encodeBCD packs digits two per octet, low nibble first, as used by the
// called/calling/charge number parameters. An odd digit count is padded
// with a filler nibble and reported through the returned odd flag.
func encodeBCD(digits string) (data []byte, odd bool, err error) {
	data = make([]byte, (len(digits)+1)/2)
	for i, r := range digits {
		nibble, err := bcdNibble(r)
		if err != nil {
			return nil, false, err
		}
		octet := i / 2
		if i%2 == 0 {
			data[octet] = nibble
		} else {
			data[octet] |= nibble << 4
		}
	}
	odd = len(digits)%2 == 1
	return data, odd, nil
}

// decodeBCD unpacks a digit string from data. When odd is false, the final
// nibble of the last octet is significant; when true, it is filler and
// dropped.
func decodeBCD(data []byte, odd bool) (string, error) {
	var b strings.Builder
	n := len(data) * 2
	if odd {
		n--
	}
	for i := 0; i < n; i++ {
		octet := data[i/2]
		var nibble byte
		if i%2 == 0 {
			nibble = octet & 0x0f
		} else {
			nibble = octet >> 4
		}
		r, err := bcdDigit(nibble)
		if err != nil {
			return "", err
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func bcdNibble(r rune) (byte, error) {
	switch {
	case r >= '0' && r <= '9':
		return byte(r - '0'), nil
	case r == '*' || r == '#':
		// the terminator digit shifted from '*' to '#' across libss7
		// revisions of the same file, both coding to nibble 0xF;
		// accept either spelling on encode, per spec.md §9.
		return 0xf, nil
	default:
		return 0, errBadDigit
	}
}

func bcdDigit(nibble byte) (rune, error) {
	switch {
	case nibble <= 9:
		return rune('0' + nibble), nil
	case nibble == 0xf:
		// emit '#' for the terminator on decode, matching the ITU
		// encode convention; callers comparing against '*' must
		// normalise, as both decode to the same nibble.
		return '#', nil
	default:
		return 0, errBadDigit
	}
}
