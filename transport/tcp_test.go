package transport

import (
	"net"
	"testing"
)

func TestTCPPayloadRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewTCP(client)
	s := NewTCP(server)

	su := []byte{0x01, 0x02, 0x03}
	done := make(chan error, 1)
	go func() { done <- c.Write(su) }()

	got, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("write: %v", err)
	}

	if string(got) != string(su) {
		t.Fatalf("payload %x, want %x", got, su)
	}
}

func TestTCPReadSkipsStateDatagrams(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewTCP(client)
	s := NewTCP(server)

	su := []byte{0x01, 0x02, 0x03}
	done := make(chan error, 1)
	go func() {
		if err := c.WriteState(TagDown); err != nil {
			done <- err
			return
		}
		done <- c.Write(su)
	}()

	got, err := s.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("write: %v", err)
	}
	if string(got) != string(su) {
		t.Fatalf("payload %x, want %x (state datagram should be skipped)", got, su)
	}
	if s.LastState() != TagDown {
		t.Fatalf("LastState %v, want TagDown", s.LastState())
	}
}

func TestTCPRejectsOversizeFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewTCP(client)
	if err := c.Write(make([]byte, maxFrame)); err != ErrOversizeFrame {
		t.Fatalf("got %v, want ErrOversizeFrame", err)
	}
	_ = server
}
