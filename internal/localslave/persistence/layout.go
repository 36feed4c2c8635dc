// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/Penguin096/ModbusRtu/bank"
)

// layout is the byte offsets and total size of a Sizes-shaped region image:
//
//	DO: sz.DO bytes (one per coil, 0 or 1)       offset 0
//	DI: sz.DI bytes                              offset sizeDO
//	AI: sz.AI*2 bytes (host-endian uint16)       offset sizeDO+sizeDI
//	AO: sz.AO*2 bytes (host-endian uint16)       offset sizeDO+sizeDI+sizeAI
type layout struct {
	sizeDO, sizeDI, sizeAI, sizeAO          int
	offsetDO, offsetDI, offsetAI, offsetAO  int
	total                                   int
}

func newLayout(sz Sizes) layout {
	var l layout
	l.sizeDO = sz.DO
	l.sizeDI = sz.DI
	l.sizeAI = sz.AI * 2
	l.sizeAO = sz.AO * 2

	l.offsetDO = 0
	l.offsetDI = l.offsetDO + l.sizeDO
	l.offsetAI = l.offsetDI + l.sizeDI
	l.offsetAO = l.offsetAI + l.sizeAI
	l.total = l.offsetAO + l.sizeAO
	return l
}

// mapBytesToBank constructs a RegisterBank whose slices alias data in
// place: DO/DI are byte slices reinterpreted as bool (both are one byte
// wide), and AI/AO are uint16 slices in host byte order. This gives file-
// and mmap-backed storage zero-copy access at the cost of portability
// across machines with different endianness — acceptable for a local
// slave pinned to one host.
func mapBytesToBank(data []byte, sz Sizes) *bank.RegisterBank {
	l := newLayout(sz)
	bk := &bank.RegisterBank{
		DO: []bool{},
		DI: []bool{},
		AI: []uint16{},
		AO: []uint16{},
	}

	if l.sizeDO > 0 {
		doBytes := data[l.offsetDO : l.offsetDO+l.sizeDO]
		bk.DO = unsafe.Slice((*bool)(unsafe.Pointer(&doBytes[0])), l.sizeDO)
	}
	if l.sizeDI > 0 {
		diBytes := data[l.offsetDI : l.offsetDI+l.sizeDI]
		bk.DI = unsafe.Slice((*bool)(unsafe.Pointer(&diBytes[0])), l.sizeDI)
	}
	if l.sizeAI > 0 {
		aiBytes := data[l.offsetAI : l.offsetAI+l.sizeAI]
		bk.AI = unsafe.Slice((*uint16)(unsafe.Pointer(&aiBytes[0])), sz.AI)
	}
	if l.sizeAO > 0 {
		aoBytes := data[l.offsetAO : l.offsetAO+l.sizeAO]
		bk.AO = unsafe.Slice((*uint16)(unsafe.Pointer(&aoBytes[0])), sz.AO)
	}
	return bk
}
