// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import "github.com/Penguin096/ModbusRtu/bank"

// MemoryStorage is a no-op storage (non-persistent): the bank lives only
// in process memory and is lost on restart.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load(sz Sizes) (*bank.RegisterBank, error) {
	return &bank.RegisterBank{
		DO: make([]bool, sz.DO),
		DI: make([]bool, sz.DI),
		AI: make([]uint16, sz.AI),
		AO: make([]uint16, sz.AO),
	}, nil
}

func (ms *MemoryStorage) OnWrite(bk *bank.RegisterBank, r bank.Region, start, quantity uint16) {
	// No-op.
}

func (ms *MemoryStorage) Close() error {
	return nil
}
