package isup

import (
	"testing"

	"pgregory.net/rapid"
)

func TestBCDRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "len")
		digits := make([]byte, n)
		for i := range digits {
			digits[i] = byte(rapid.IntRange(0, 9).Draw(rt, "digit")) + '0'
		}
		want := string(digits)

		data, odd, err := encodeBCD(want)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		if wantOdd := len(want)%2 == 1; odd != wantOdd {
			rt.Fatalf("odd flag: got %v, want %v", odd, wantOdd)
		}
		if wantLen := (len(want) + 1) / 2; len(data) != wantLen {
			rt.Fatalf("encoded length %d, want %d", len(data), wantLen)
		}

		got, err := decodeBCD(data, odd)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if got != want {
			rt.Fatalf("got %q, want %q", got, want)
		}
	})
}

func TestBCDTerminatorAcceptsBothSpellings(t *testing.T) {
	for _, digits := range []string{"12345*", "12345#"} {
		data, odd, err := encodeBCD(digits)
		if err != nil {
			t.Fatalf("encode %q: %v", digits, err)
		}
		got, err := decodeBCD(data, odd)
		if err != nil {
			t.Fatalf("decode %q: %v", digits, err)
		}
		if want := "12345#"; got != want {
			t.Fatalf("got %q, want %q (terminator normalises to '#')", got, want)
		}
	}
}
