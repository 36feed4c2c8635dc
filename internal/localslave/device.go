// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package localslave wires a register bank to a pluggable persistence
// backend, for use as the data side of an rtu.Slave.
package localslave

import (
	"fmt"

	"github.com/Penguin096/ModbusRtu/bank"
	"github.com/Penguin096/ModbusRtu/internal/localslave/persistence"
)

// Device owns a RegisterBank and the Storage backing it.
type Device struct {
	bank    *bank.RegisterBank
	storage persistence.Storage
}

// Open loads (or creates) a register bank of the given sizes from storage.
func Open(storage persistence.Storage, sz persistence.Sizes) (*Device, error) {
	bk, err := storage.Load(sz)
	if err != nil {
		return nil, fmt.Errorf("localslave: %w", err)
	}
	return &Device{bank: bk, storage: storage}, nil
}

// NewStorage constructs a Storage engine by name ("memory", "file",
// "mmap", or a SQL driver name), matching internal/config's
// local.persistence.type field.
func NewStorage(kind, path string) (persistence.Storage, error) {
	switch kind {
	case "", "memory":
		return persistence.NewMemoryStorage(), nil
	case "file":
		return persistence.NewFileStorage(path), nil
	case "mmap":
		return persistence.NewMmapStorage(path), nil
	default:
		// Any other name is treated as a database/sql driver name; path is
		// the driver's DSN. The driver itself must be imported for side
		// effects by the command that calls NewStorage.
		return persistence.NewSQLStorage(kind, path), nil
	}
}

// Bank returns the backing RegisterBank, for handing to rtu.NewSlave's
// Poll calls.
func (d *Device) Bank() *bank.RegisterBank {
	return d.bank
}

// OnWrite forwards a write notification to the underlying storage. It has
// the exact signature rtu.Slave.OnWrite expects.
func (d *Device) OnWrite(r bank.Region, start, quantity uint16) {
	d.storage.OnWrite(d.bank, r, start, quantity)
}

// Close releases the storage backend's resources.
func (d *Device) Close() error {
	return d.storage.Close()
}
