// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package port defines the transport contract the protocol core consumes,
// and a real half-duplex serial backend that implements it.
//
// Everything board-specific — UART drivers, DMA/interrupt plumbing, GPIO
// direction control for RS-485 transceivers, clocking — lives outside this
// package. The core never sees it; it only ever calls through Port.
package port

// Direction is a hint passed to half-duplex transceivers so they can steer
// an RS-485 driver-enable line. Full-duplex backends may treat it as a
// no-op.
type Direction int

const (
	// RX selects the receive direction (driver disabled, listening).
	RX Direction = iota
	// TX selects the transmit direction (driver enabled, talking).
	TX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// Port is the opaque byte-oriented half-duplex channel the protocol core
// is built against. Implementations must never block in RxReady/RxPop;
// TxWrite and TxDrain may block until the bytes have left the wire — those
// are the core's only legitimate suspension points (see spec §5).
type Port interface {
	// RxReady returns the number of bytes available to read without
	// blocking. Interrupt-driven backends may report only "some" (a
	// positive constant) versus "none" (0).
	RxReady() int

	// RxPop returns the next received byte. Calling it when RxReady()
	// returned 0 is undefined behavior.
	RxPop() byte

	// TxWrite enqueues p and blocks until it has been fully handed off to
	// the line.
	TxWrite(p []byte) error

	// TxDrain blocks until the physical line has gone idle. Callers use
	// this before deasserting an RS-485 direction-control line.
	TxDrain() error

	// SetDirection hints the intended bus direction to a half-duplex
	// transceiver. Full-duplex ports may no-op this.
	SetDirection(d Direction)

	// NowMs returns a monotonic millisecond counter. Wrap-around is
	// expected; callers only ever take differences of two readings.
	NowMs() uint32
}
