// Package mtp3 implements the signalling-network layer: the routing-label
// codec (ITU and ANSI), the Service Information Octet, user-part dispatch,
// the link-test and network-management sub-protocols, and SLS→link
// selection, per spec.md §4.2.
package mtp3

import "errors"

// ErrTruncatedLabel denies a routing label shorter than its dialect's
// packed width.
var ErrTruncatedLabel = errors.New("ss7: mtp3: truncated routing label")

// ErrPointCodeRange denies a point code wider than the dialect allows.
var ErrPointCodeRange = errors.New("ss7: mtp3: point code out of range")

// Label is a routing label: {OPC, DPC, SLS}, per spec.md §3. ITU packs it
// into 4 octets (14-bit DPC/OPC, 4-bit SLS); ANSI into 7 octets (24-bit
// DPC/OPC, 8-bit SLS). Both are little-endian within each field.
type Label struct {
	OPC uint32
	DPC uint32
	SLS uint8
}

const (
	ituPCMax  = 1<<14 - 1
	ituSLSMax = 1<<4 - 1
	ansiPCMax = 1<<24 - 1
)

// Marshal packs l into the dialect's wire format.
func (l Label) Marshal(ansi bool) ([]byte, error) {
	if ansi {
		if l.DPC > ansiPCMax || l.OPC > ansiPCMax {
			return nil, ErrPointCodeRange
		}
		buf := make([]byte, 7)
		buf[0] = byte(l.DPC)
		buf[1] = byte(l.DPC >> 8)
		buf[2] = byte(l.DPC >> 16)
		buf[3] = byte(l.OPC)
		buf[4] = byte(l.OPC >> 8)
		buf[5] = byte(l.OPC >> 16)
		buf[6] = l.SLS
		return buf, nil
	}

	if l.DPC > ituPCMax || l.OPC > ituPCMax || l.SLS > ituSLSMax {
		return nil, ErrPointCodeRange
	}
	buf := make([]byte, 4)
	// 14-bit DPC, 14-bit OPC, 4-bit SLS packed little-endian across 4
	// octets: DPC in bits 0-13, OPC in bits 14-27, SLS in bits 28-31.
	v := uint32(l.DPC&0x3fff) | uint32(l.OPC&0x3fff)<<14 | uint32(l.SLS&0xf)<<28
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	return buf, nil
}

// UnmarshalLabel decodes a routing label from the front of data.
func UnmarshalLabel(ansi bool, data []byte) (Label, error) {
	if ansi {
		if len(data) < 7 {
			return Label{}, ErrTruncatedLabel
		}
		return Label{
			DPC: uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16,
			OPC: uint32(data[3]) | uint32(data[4])<<8 | uint32(data[5])<<16,
			SLS: data[6],
		}, nil
	}

	if len(data) < 4 {
		return Label{}, ErrTruncatedLabel
	}
	v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
	return Label{
		DPC: v & 0x3fff,
		OPC: (v >> 14) & 0x3fff,
		SLS: uint8((v >> 28) & 0xf),
	}, nil
}

// Len reports the wire width of a routing label under the dialect.
func Len(ansi bool) int {
	if ansi {
		return 7
	}
	return 4
}
