// Package transport defines the host-facing byte-stream contract of
// spec.md §6: a blocking/non-blocking byte-stream with framing
// boundaries preserved per read, plus a TCP implementation of the
// framing DAHDI-style transports do not need, grounded on
// part5/session's apdu length-prefix codec.
package transport

import "errors"

// Transport is the contract an MTP2 link polls for wire I/O. One SU is
// read per Read call and one SU is written per Write call; the
// implementation is responsible for preserving those boundaries (one
// frame per write on DAHDI-style transports, an explicit length prefix
// on TCP).
type Transport interface {
	// Read returns the next complete SU, or an error if none is
	// currently available. ErrWouldBlock signals "try again later"
	// on a non-blocking transport.
	Read() ([]byte, error)

	// Write sends one complete SU.
	Write(su []byte) error

	// Close releases the underlying byte-stream.
	Close() error
}

// ErrWouldBlock is returned by a non-blocking Transport's Read when no
// complete SU is currently buffered.
var ErrWouldBlock = errors.New("ss7: transport: would block")

// ErrClosed is returned once the underlying byte-stream is gone.
var ErrClosed = errors.New("ss7: transport: closed")
