package isup

import "testing"

// TestITUIAMRoundTrip implements spec.md §8 end-to-end scenario 1.
func TestITUIAMRoundTrip(t *testing.T) {
	calls := NewCallTable()

	call := calls.LookupOrCreate(2, 1)
	call.Called = Number{Digits: "12345", Nature: NatureNational, Plan: PlanISDN}
	call.Calling = Number{Digits: "7654321", Nature: NatureNational, Plan: PlanISDN}

	wire, err := Encode(false, IAM, call)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if call.Called.Digits != "12345" {
		t.Fatalf("Encode must not mutate the caller's Call.Called, got %q", call.Called.Digits)
	}

	ev, err := Decode(false, wire, NewCallTable(), 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != EventIAM {
		t.Fatalf("got kind %v, want IAM", ev.Kind)
	}
	if ev.Call.CIC != 1 {
		t.Fatalf("got cic %d, want 1", ev.Call.CIC)
	}
	if want := "12345#"; ev.Call.Called.Digits != want {
		t.Fatalf("called number %q, want %q (trailing '#' on ITU)", ev.Call.Called.Digits, want)
	}
	if ev.Call.Calling.Digits != "7654321" {
		t.Fatalf("calling number %q, want 7654321", ev.Call.Calling.Digits)
	}
}

// TestANSIIAMFixedVariableSplit implements spec.md §8 end-to-end scenario 6.
func TestANSIIAMFixedVariableSplit(t *testing.T) {
	m, ok := messageMeta(IAM, true)
	if !ok {
		t.Fatal("no metadata for ANSI IAM")
	}
	if len(m.fixedSizes) != 3 {
		t.Fatalf("fixed count %d, want 3", len(m.fixedSizes))
	}
	if m.varCount != 2 {
		t.Fatalf("var count %d, want 2", m.varCount)
	}

	itu, _ := messageMeta(IAM, false)
	if len(itu.fixedSizes) != 4 || itu.varCount != 1 {
		t.Fatalf("ITU metadata %+v, want 4 fixed / 1 var", itu)
	}

	call := NewTransient(2, 1)
	call.Called = Number{Digits: "555"}
	call.TransportCap = 0x02

	wire, err := Encode(true, IAM, call)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := Decode(true, wire, NewCallTable(), 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Call.TransportCap != 0x02 {
		t.Fatalf("got transport cap %#x, want 0x02", ev.Call.TransportCap)
	}
	if ev.Call.Called.Digits != "555" {
		t.Fatalf("called number %q, want 555 (ANSI encode must not append '#')", ev.Call.Called.Digits)
	}
}

// TestITUIAMCalledTerminatorNotDoubled checks that an already-terminated
// called number round-trips unchanged rather than gaining a second '#'.
func TestITUIAMCalledTerminatorNotDoubled(t *testing.T) {
	call := NewTransient(2, 1)
	call.Called = Number{Digits: "999#", Nature: NatureNational, Plan: PlanISDN}

	wire, err := Encode(false, IAM, call)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ev, err := Decode(false, wire, NewCallTable(), 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := "999#"; ev.Call.Called.Digits != want {
		t.Fatalf("called number %q, want %q", ev.Call.Called.Digits, want)
	}
}

// TestResetSequence implements spec.md §8 end-to-end scenario 2.
func TestResetSequence(t *testing.T) {
	calls := NewCallTable()
	req := NewTransient(2, 1)
	req.GroupStart, req.GroupEnd = 1, 24

	wire, err := Encode(false, GRS, req)
	if err != nil {
		t.Fatalf("encode GRS: %v", err)
	}
	ev, err := Decode(false, wire, calls, 2)
	if err != nil {
		t.Fatalf("decode GRS: %v", err)
	}
	if ev.Kind != EventGRS || ev.StartCIC != 1 || ev.EndCIC != 24 {
		t.Fatalf("got %+v, want GRS [1,24]", ev)
	}

	resp := NewTransient(2, 1)
	resp.GroupStart, resp.GroupEnd = 1, 24
	resp.GroupStatus = make([]byte, 3) // all-zero: all circuits idle

	graWire, err := Encode(false, GRA, resp)
	if err != nil {
		t.Fatalf("encode GRA: %v", err)
	}
	graEv, err := Decode(false, graWire, NewCallTable(), 2)
	if err != nil {
		t.Fatalf("decode GRA: %v", err)
	}
	if graEv.Kind != EventGRA || graEv.StartCIC != 1 || graEv.EndCIC != 24 {
		t.Fatalf("got %+v, want GRA [1,24]", graEv)
	}
	for i, b := range graEv.Call.GroupStatus {
		if b != 0 {
			t.Fatalf("status byte %d = %#x, want 0", i, b)
		}
	}
}

// TestCallRelease implements spec.md §8 end-to-end scenario 5.
func TestCallRelease(t *testing.T) {
	calls := NewCallTable()
	calls.LookupOrCreate(2, 7)

	rel := NewTransient(2, 7)
	rel.Cause = Cause{Value: 16}
	wire, err := Encode(false, REL, rel)
	if err != nil {
		t.Fatalf("encode REL: %v", err)
	}

	ev, err := Decode(false, wire, calls, 2)
	if err != nil {
		t.Fatalf("decode REL: %v", err)
	}
	if ev.Kind != EventREL || ev.Call.Cause.Value != 16 {
		t.Fatalf("got %+v, want REL cause=16", ev)
	}

	rlc := NewTransient(2, 7)
	rlcWire, err := Encode(false, RLC, rlc)
	if err != nil {
		t.Fatalf("encode RLC: %v", err)
	}
	if _, err := Decode(false, rlcWire, calls, 2); err != nil {
		t.Fatalf("decode RLC: %v", err)
	}

	if _, ok := calls.Lookup(2, 7); ok {
		t.Fatal("call record still present after RLC")
	}
}

func TestANSIRLCForbidsOptionals(t *testing.T) {
	m, _ := messageMeta(RLC, true)
	if m.optAllowed {
		t.Fatal("ANSI RLC must not allow optional parameters")
	}
	itu, _ := messageMeta(RLC, false)
	if !itu.optAllowed {
		t.Fatal("ITU RLC should allow optional parameters")
	}
}

func TestCGBAndCGBADistinctEvents(t *testing.T) {
	if EventCGB == EventCGBA {
		t.Fatal("CGB and CGBA must be distinct events, per spec.md §9")
	}
}
