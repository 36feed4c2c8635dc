// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "encoding/binary"

// packBits writes qty bools from bits (indexed from 0, not from a region
// start offset — callers slice bits beforehand) into dst as Modbus-packed
// coil bytes: bit b of byte B corresponds to coil B*8+b, tail bits of the
// final byte are left zero. dst must already hold byteCount(qty) zeroed
// bytes.
func packBits(dst []byte, bits []bool) {
	for i, v := range bits {
		if !v {
			continue
		}
		dst[i/8] |= 1 << uint(i%8)
	}
}

// unpackBits reads qty coils out of packed Modbus bytes src into dst,
// using the correct (byte>>bit)&1 extraction — spec §9 calls out the
// reference implementation's `(buf & (bit+1)) >> bit` as a defect to
// resolve, not to reproduce.
func unpackBits(dst []bool, src []byte, qty int) {
	for i := 0; i < qty; i++ {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		dst[i] = (src[byteIdx]>>bitIdx)&1 != 0
	}
}

// byteCount returns ceil(qty/8), the number of packed bytes needed to
// carry qty coils.
func byteCount(qty uint16) int {
	n := int(qty) / 8
	if int(qty)%8 != 0 {
		n++
	}
	return n
}

// putWordsBE appends qty big-endian 16-bit words from src to dst.
func putWordsBE(dst []byte, src []uint16) []byte {
	for _, w := range src {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], w)
		dst = append(dst, b[0], b[1])
	}
	return dst
}

// getWordsBE reads qty big-endian 16-bit words out of src into dst.
func getWordsBE(dst []uint16, src []byte, qty int) {
	for i := 0; i < qty; i++ {
		dst[i] = binary.BigEndian.Uint16(src[i*2:])
	}
}
