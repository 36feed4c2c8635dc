// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc computes the Modbus CRC-16 checksum used to guard every RTU
// frame on the wire.
package crc

// Modbus CRC-16: polynomial 0xA001 (reflected form of 0x8005), initial value
// 0xFFFF, no final XOR.
const (
	initial = 0xFFFF
	poly    = 0xA001
)

// CRC accumulates a Modbus CRC-16 over a byte span. The zero value is ready
// to use after Reset.
type CRC struct {
	value uint16
}

// Reset reinitializes the accumulator to the Modbus seed value and returns
// the receiver so calls can be chained: crc.Reset().PushBytes(b).
func (c *CRC) Reset() *CRC {
	c.value = initial
	return c
}

// PushBytes folds b into the running checksum and returns the receiver.
func (c *CRC) PushBytes(b []byte) *CRC {
	for _, by := range b {
		c.value ^= uint16(by)
		for i := 0; i < 8; i++ {
			if c.value&1 != 0 {
				c.value = (c.value >> 1) ^ poly
			} else {
				c.value >>= 1
			}
		}
	}
	return c
}

// Value returns the checksum accumulated so far.
func (c *CRC) Value() uint16 {
	return c.value
}

// Checksum computes the Modbus CRC-16 of b in one shot. An empty span
// yields the seed value 0xFFFF, matching a freshly Reset accumulator that
// never saw a byte.
func Checksum(b []byte) uint16 {
	var c CRC
	c.Reset().PushBytes(b)
	return c.Value()
}

// Verify checks that frame's trailing two bytes, read in the wire's
// low-byte-first transmission order, match the CRC-16 of everything before
// them. frame must be at least 2 bytes long.
func Verify(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	body := frame[:len(frame)-2]
	want := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	return Checksum(body) == want
}

// Append computes the CRC-16 of b and appends it in wire order (low byte
// first, then high byte), returning the extended slice.
func Append(b []byte) []byte {
	sum := Checksum(b)
	return append(b, byte(sum), byte(sum>>8))
}
