// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package frame implements the fixed-capacity byte buffer shared by the RX
// and TX phases of a Modbus-RTU session.
package frame

import "errors"

// MaxSize is the default frame buffer capacity. The Modbus-over-Serial-Line
// standard allows ADUs up to 256 bytes; this implementation uses the full
// budget rather than the 64-byte ceiling the embedded reference used,
// lifting the reference's forced <=31-register limit per operation.
const MaxSize = 256

// ErrOverflow is returned by Push when the buffer is already at capacity.
var ErrOverflow = errors.New("frame: buffer overflow")

// Buffer is a fixed-capacity byte array plus a length cursor. One Buffer is
// shared between the RX and TX phases of a session: a new phase always
// begins with Reset, and only one side uses the buffer at a time.
type Buffer struct {
	data [MaxSize]byte
	len  int
}

// Reset clears the cursor to zero. Capacity and previously written bytes
// are left in place; Push starts overwriting from index 0.
func (b *Buffer) Reset() {
	b.len = 0
}

// Len reports the number of bytes currently written.
func (b *Buffer) Len() int {
	return b.len
}

// Cap reports the buffer's fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Push appends a single byte, returning ErrOverflow if the buffer is full.
func (b *Buffer) Push(by byte) error {
	if b.len >= len(b.data) {
		return ErrOverflow
	}
	b.data[b.len] = by
	b.len++
	return nil
}

// PushBytes appends p one byte at a time, stopping (and returning
// ErrOverflow) at the first byte that would overflow. Bytes already
// appended before the overflow remain in the buffer.
func (b *Buffer) PushBytes(p []byte) error {
	for _, by := range p {
		if err := b.Push(by); err != nil {
			return err
		}
	}
	return nil
}

// Set overwrites the byte at index i, which must be < Cap. Set does not
// move the cursor; a frame written past Len is given its length by SetLen.
func (b *Buffer) Set(i int, by byte) {
	b.data[i] = by
}

// Get returns the byte at index i, which must be < Len.
func (b *Buffer) Get(i int) byte {
	return b.data[i]
}

// Bytes returns the first n bytes of the buffer as a slice aliasing the
// internal array. n is clamped to Len.
func (b *Buffer) Bytes(n int) []byte {
	if n > b.len {
		n = b.len
	}
	return b.data[:n]
}

// Frame returns the currently written bytes (0..Len) aliasing the internal
// array.
func (b *Buffer) Frame() []byte {
	return b.data[:b.len]
}

// SetLen forces the cursor to n, which must be <= Cap. Used when a frame is
// assembled by direct index writes (Set) rather than sequential Push calls.
func (b *Buffer) SetLen(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.len = n
}
