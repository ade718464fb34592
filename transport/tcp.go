package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// StateTag is the one-octet frame kind carried ahead of every TCP
// datagram, per spec.md §6 "Transport": DAHDI transports carry one SU
// per read/write with no tag; TCP multiplexes link-state signals onto
// the same byte-stream as SU payloads, so each datagram needs one.
type StateTag uint8

const (
	TagUp      StateTag = 1
	TagDown    StateTag = 2
	TagPayload StateTag = 5
)

// ErrTruncatedFrame denies a TCP datagram whose length prefix is zero,
// leaving no room for the state tag. A stream that ends before the
// declared length arrives surfaces io.ErrUnexpectedEOF instead.
var ErrTruncatedFrame = errors.New("ss7: transport: truncated frame")

// ErrOversizeFrame denies an SU wider than the wire can carry.
var ErrOversizeFrame = errors.New("ss7: transport: frame too large")

// maxFrame bounds the 16-bit length prefix to the largest SU, per
// su.MaxSize, plus the one-octet state tag.
const maxFrame = 279 + 1

// TCP is the Transport implementation of spec.md §6's "2-octet length
// prefix precedes each SU, first byte of each SU carries a state tag"
// rule, grounded on part5/session's apdu length-prefix codec but
// simplified to the cooperative, host-polled model: no goroutines, no
// channels — Read/Write are called directly from the host's poll loop.
type TCP struct {
	conn      net.Conn
	r         *bufio.Reader
	lastState StateTag
}

// NewTCP wraps an established connection. The caller owns dialing and
// accepting; TCP only implements the framing.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{conn: conn, r: bufio.NewReader(conn)}
}

// Read blocks until the next SU payload datagram arrives and returns
// its bytes with the state tag stripped, matching the bare-SU contract
// DAHDI-style transports give Transport.Read. A state datagram (UP or
// DOWN) updates LastState instead of being returned as an SU; Read
// keeps reading past it rather than surfacing it to the MTP2 layer.
func (t *TCP) Read() ([]byte, error) {
	for {
		tag, payload, err := t.readDatagram()
		if err != nil {
			return nil, err
		}
		if tag == TagPayload {
			return payload, nil
		}
		t.lastState = tag
	}
}

// LastState reports the most recent state tag (TagUp/TagDown) this
// connection has carried, for callers that want in-band link-state
// signalling rather than the out-of-band LinkAlarm/LinkNoAlarm calls.
func (t *TCP) LastState() StateTag { return t.lastState }

func (t *TCP) readDatagram() (StateTag, []byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(t.r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	if int(n) > maxFrame {
		return 0, nil, ErrOversizeFrame
	}
	if n == 0 {
		return 0, nil, ErrTruncatedFrame
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		return 0, nil, err
	}
	return StateTag(buf[0]), buf[1:], nil
}

// Write sends su tagged as an ISUP/MTP payload datagram.
func (t *TCP) Write(su []byte) error {
	return t.writeTagged(TagPayload, su)
}

// WriteState sends a bare state-change datagram (TagUp or TagDown)
// with no SU payload, for transports that signal link state in-band.
func (t *TCP) WriteState(tag StateTag) error {
	return t.writeTagged(tag, nil)
}

func (t *TCP) writeTagged(tag StateTag, payload []byte) error {
	n := len(payload) + 1
	if n > maxFrame {
		return ErrOversizeFrame
	}
	frame := make([]byte, 2+n)
	binary.BigEndian.PutUint16(frame[0:2], uint16(n))
	frame[2] = byte(tag)
	copy(frame[3:], payload)
	_, err := t.conn.Write(frame)
	return err
}

// Close closes the underlying connection.
func (t *TCP) Close() error {
	return t.conn.Close()
}
