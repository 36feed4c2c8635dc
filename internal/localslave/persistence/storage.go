// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package persistence backs a local Modbus slave's register bank with one
// of several storage engines: an in-memory no-op, a plain file, a
// memory-mapped file, or a SQL database.
package persistence

import "github.com/Penguin096/ModbusRtu/bank"

// Sizes gives the region capacities a Storage must allocate before it can
// produce a usable RegisterBank.
type Sizes struct {
	DO, DI, AI, AO int
}

// Storage defines the interface for persisting a local slave's register
// bank.
type Storage interface {
	// Load returns a RegisterBank sized per sz, populated from whatever
	// this storage engine already holds (zero-valued if this is the first
	// run).
	Load(sz Sizes) (*bank.RegisterBank, error)

	// OnWrite is called after the protocol core commits a write to bk in
	// region r, covering [start, start+quantity). It lets the storage
	// engine persist just the change rather than the whole bank.
	OnWrite(bk *bank.RegisterBank, r bank.Region, start, quantity uint16)

	// Close releases any resources (open files, database handles).
	Close() error
}
