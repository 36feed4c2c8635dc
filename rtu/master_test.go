// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"testing"
	"time"

	"github.com/Penguin096/ModbusRtu/crc"
	"github.com/Penguin096/ModbusRtu/port"
)

func settle(p *port.Mock, m *Master) (int, error) {
	for i := 0; i < 10; i++ {
		n, err := m.Poll()
		if n != 0 || err != nil {
			return n, err
		}
		p.Advance(1)
	}
	return 0, nil
}

func TestMasterReadHoldingRegisters(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{})

	words := make([]uint16, 2)
	err := m.Query(Telegram{SlaveID: 0x11, Func: FuncReadHoldingRegisters, Address: 0x6B, Quantity: 2, Words: words})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(p.Written) != 1 {
		t.Fatalf("expected one write, got %d", len(p.Written))
	}
	want := crc.Append([]byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x02})
	if string(p.Written[0]) != string(want) {
		t.Fatalf("wrote %x, want %x", p.Written[0], want)
	}

	p.Feed(crc.Append([]byte{0x11, 0x03, 0x04, 0x00, 0x0A, 0x00, 0x0B}))
	n, err := settle(p, m)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected a completed response")
	}
	if words[0] != 0x000A || words[1] != 0x000B {
		t.Fatalf("words = %v, want [10 11]", words)
	}
	if m.InCount != 1 || m.OutCount != 1 || m.ErrCount != 0 {
		t.Fatalf("counters = in:%d out:%d err:%d", m.InCount, m.OutCount, m.ErrCount)
	}
}

func TestMasterReadCoils(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{})

	bits := make([]bool, 10)
	if err := m.Query(Telegram{SlaveID: 0x11, Func: FuncReadCoils, Address: 0x13, Quantity: 10, Bits: bits}); err != nil {
		t.Fatalf("Query: %v", err)
	}

	packed := []byte{0xCD, 0x01}
	p.Feed(crc.Append(append([]byte{0x11, 0x01, 0x02}, packed...)))
	n, err := settle(p, m)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	want := []bool{true, false, true, true, false, false, true, true, true, false}
	for i, b := range want {
		if bits[i] != b {
			t.Fatalf("bit %d = %v, want %v", i, bits[i], b)
		}
	}
}

func TestMasterWriteSingleRegister(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{})

	words := []uint16{0x0003}
	if err := m.Query(Telegram{SlaveID: 0x11, Func: FuncWriteSingleRegister, Address: 0x01, Words: words}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	// Slave echoes the request back unchanged.
	p.Feed(p.Written[0])
	n, err := settle(p, m)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	if words[0] != 0x0003 {
		t.Fatalf("words[0] = %#x, want 0x0003", words[0])
	}
}

func TestMasterTimeout(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{Timeout: 10 * time.Millisecond})
	words := make([]uint16, 1)
	if err := m.Query(Telegram{SlaveID: 1, Func: FuncReadHoldingRegisters, Address: 0, Quantity: 1, Words: words}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	p.Advance(11)
	_, err := m.Poll()
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("Poll err = %v, want ErrNoReply", err)
	}
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE after timeout", m.State())
	}
}

func TestMasterRemoteException(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{})
	words := make([]uint16, 1)
	if err := m.Query(Telegram{SlaveID: 1, Func: FuncReadHoldingRegisters, Address: 0, Quantity: 1, Words: words}); err != nil {
		t.Fatalf("Query: %v", err)
	}
	p.Feed(crc.Append([]byte{0x01, 0x83, byte(ExcAddrRange)}))
	_, err := settle(p, m)
	var remote *RemoteException
	if !errors.As(err, &remote) || remote.Code != ExcAddrRange {
		t.Fatalf("err = %v, want RemoteException{ExcAddrRange}", err)
	}
	if !errors.Is(err, ErrException) {
		t.Fatalf("errors.Is(err, ErrException) = false")
	}
}

func TestMasterRejectsSecondQueryWhileWaiting(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{})
	words := make([]uint16, 1)
	if err := m.Query(Telegram{SlaveID: 1, Func: FuncReadHoldingRegisters, Quantity: 1, Words: words}); err != nil {
		t.Fatalf("first Query: %v", err)
	}
	if err := m.Query(Telegram{SlaveID: 1, Func: FuncReadHoldingRegisters, Quantity: 1, Words: words}); !errors.Is(err, ErrNotIdle) {
		t.Fatalf("second Query err = %v, want ErrNotIdle", err)
	}
}

func TestMasterRejectsNonMasterUnitID(t *testing.T) {
	p := port.NewMock()
	m := NewMaster(p, Config{UnitID: 3})
	if err := m.Query(Telegram{SlaveID: 1, Func: FuncReadHoldingRegisters, Quantity: 1}); !errors.Is(err, ErrNotMaster) {
		t.Fatalf("Query err = %v, want ErrNotMaster", err)
	}
}
