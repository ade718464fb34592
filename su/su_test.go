package su

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

func TestClassFromLI(t *testing.T) {
	tests := []struct {
		payloadLen int
		want       Class
	}{
		{0, FISU},
		{1, LSSU},
		{2, LSSU},
		{3, MSU},
		{100, MSU},
	}
	for _, tt := range tests {
		u := SU{Payload: make([]byte, tt.payloadLen)}
		if got := u.Class(); got != tt.want {
			t.Errorf("payload len %d: got class %s, want %s", tt.payloadLen, got, tt.want)
		}
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		u := &SU{
			BSN:     uint8(rapid.IntRange(0, 127).Draw(rt, "bsn")),
			BIB:     uint8(rapid.IntRange(0, 1).Draw(rt, "bib")),
			FSN:     uint8(rapid.IntRange(0, 127).Draw(rt, "fsn")),
			FIB:     uint8(rapid.IntRange(0, 1).Draw(rt, "fib")),
			Payload: rapid.SliceOfN(rapid.Byte(), 0, 60).Draw(rt, "payload"),
		}

		buf := make([]byte, MaxSize)
		n, err := u.Marshal(buf)
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}

		got, err := Unmarshal(buf[:n])
		if err != nil {
			rt.Fatalf("unmarshal: %v", err)
		}

		if got.BSN != u.BSN || got.BIB != u.BIB || got.FSN != u.FSN || got.FIB != u.FIB {
			rt.Fatalf("header mismatch: got %+v, want %+v", got, u)
		}
		if !bytes.Equal(got.Payload, u.Payload) && !(len(got.Payload) == 0 && len(u.Payload) == 0) {
			rt.Fatalf("payload mismatch: got %x, want %x", got.Payload, u.Payload)
		}
	})
}

func TestUnmarshalTruncated(t *testing.T) {
	if _, err := Unmarshal([]byte{0x01}); err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}
}

func TestMarshalTooLarge(t *testing.T) {
	u := &SU{Payload: make([]byte, MaxSize)}
	buf := make([]byte, MaxSize)
	if _, err := u.Marshal(buf); err != ErrTooLarge {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}
