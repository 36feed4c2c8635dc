// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package localslave

import (
	"path/filepath"
	"testing"

	"github.com/Penguin096/ModbusRtu/bank"
	"github.com/Penguin096/ModbusRtu/internal/localslave/persistence"
)

func TestOpenMemoryDevice(t *testing.T) {
	storage, err := NewStorage("memory", "")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	d, err := Open(storage, persistence.Sizes{DO: 8, DI: 8, AI: 4, AO: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	bk := d.Bank()
	if len(bk.DO) != 8 || len(bk.AO) != 4 {
		t.Fatalf("unexpected bank sizes: DO=%d AO=%d", len(bk.DO), len(bk.AO))
	}
	bk.AO[0] = 42
	d.OnWrite(bank.RegionAO, 0, 1) // no-op for memory storage, must not panic
}

func TestFileDevicePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.bin")
	sz := persistence.Sizes{DO: 8, DI: 0, AI: 0, AO: 4}

	storage1, _ := NewStorage("file", path)
	d1, err := Open(storage1, sz)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	d1.Bank().AO[1] = 0x1234
	d1.OnWrite(bank.RegionAO, 1, 1)
	if err := d1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	storage2, _ := NewStorage("file", path)
	d2, err := Open(storage2, sz)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer d2.Close()
	if d2.Bank().AO[1] != 0x1234 {
		t.Fatalf("AO[1] = %#x after reopen, want 0x1234", d2.Bank().AO[1])
	}
}
