// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"testing"

	"github.com/Penguin096/ModbusRtu/bank"
	"github.com/Penguin096/ModbusRtu/crc"
	"github.com/Penguin096/ModbusRtu/port"
)

func settleSlave(p *port.Mock, s *Slave, bk *bank.RegisterBank) (int, error) {
	for i := 0; i < 10; i++ {
		n, err := s.Poll(bk)
		if n != 0 || err != nil {
			return n, err
		}
		p.Advance(1)
	}
	return 0, nil
}

func TestSlaveReadHoldingRegisters(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{AO: []uint16{0, 0, 0, 0, 10, 11}}

	p.Feed(crc.Append([]byte{0x11, 0x03, 0x00, 0x04, 0x00, 0x02}))
	n, err := settleSlave(p, s, bk)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	want := crc.Append([]byte{0x11, 0x03, 0x04, 0x00, 0x0A, 0x00, 0x0B})
	if string(p.Written[0]) != string(want) {
		t.Fatalf("response = %x, want %x", p.Written[0], want)
	}
}

func TestSlaveWriteSingleCoil(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{DO: make([]bool, 8)}

	req := crc.Append([]byte{0x11, 0x05, 0x00, 0x03, 0xFF, 0x00})
	p.Feed(req)
	n, err := settleSlave(p, s, bk)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	if !bk.DO[3] {
		t.Fatalf("DO[3] = false, want true")
	}
	if string(p.Written[0]) != string(req) {
		t.Fatalf("response = %x, want echoed request %x", p.Written[0], req)
	}
}

func TestSlaveWriteMultipleCoilsBitOrder(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{DO: make([]bool, 32)}

	// Write 10 coils starting at 0x13, payload 0xCD 0x01 (the scenario-3
	// bytes from the spec's worked examples).
	req := crc.Append([]byte{0x11, 0x0F, 0x00, 0x13, 0x00, 0x0A, 0x02, 0xCD, 0x01})
	p.Feed(req)
	n, err := settleSlave(p, s, bk)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	want := []bool{true, false, true, true, false, false, true, true, true, false}
	for i, b := range want {
		if bk.DO[0x13+i] != b {
			t.Fatalf("DO[%d] = %v, want %v", 0x13+i, bk.DO[0x13+i], b)
		}
	}
	wantResp := crc.Append([]byte{0x11, 0x0F, 0x00, 0x13, 0x00, 0x0A})
	if string(p.Written[0]) != string(wantResp) {
		t.Fatalf("response = %x, want %x", p.Written[0], wantResp)
	}
}

func TestSlaveIgnoresOtherAddresses(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{AO: make([]uint16, 4)}

	p.Feed(crc.Append([]byte{0x22, 0x03, 0x00, 0x00, 0x00, 0x01}))
	n, err := settleSlave(p, s, bk)
	if err != nil || n != 0 {
		t.Fatalf("expected no reply to a foreign address, got n=%d err=%v", n, err)
	}
	if len(p.Written) != 0 {
		t.Fatalf("expected no transmission, got %d", len(p.Written))
	}
}

func TestSlaveBroadcastSuppressesReply(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{AO: make([]uint16, 4)}

	req := crc.Append([]byte{0x00, 0x06, 0x00, 0x01, 0x00, 0x2A})
	p.Feed(req)
	n, err := settleSlave(p, s, bk)
	if err != nil || n != 0 {
		t.Fatalf("expected broadcast to suppress reply, got n=%d err=%v", n, err)
	}
	if bk.AO[1] != 0x2A {
		t.Fatalf("AO[1] = %#x, want 0x2A (broadcast write still applies)", bk.AO[1])
	}
}

func TestSlaveExceptionOnBadAddressRange(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{AO: make([]uint16, 2)}

	p.Feed(crc.Append([]byte{0x11, 0x03, 0x00, 0x00, 0x00, 0x05}))
	n, err := settleSlave(p, s, bk)
	if err != nil || n == 0 {
		t.Fatalf("Poll: n=%d err=%v", n, err)
	}
	resp := p.Written[0]
	if len(resp) < 3 || resp[1] != byte(FuncReadHoldingRegisters)|exceptionBit || resp[2] != byte(ExcAddrRange) {
		t.Fatalf("response = %x, want exception ExcAddrRange", resp)
	}
	if s.ErrCount != 1 {
		t.Fatalf("ErrCount = %d, want 1", s.ErrCount)
	}
}

func TestSlaveIgnoresBadCRC(t *testing.T) {
	p := port.NewMock()
	s := NewSlave(p, Config{UnitID: 0x11})
	bk := &bank.RegisterBank{AO: make([]uint16, 4)}

	frameBytes := crc.Append([]byte{0x11, 0x03, 0x00, 0x00, 0x00, 0x01})
	frameBytes[len(frameBytes)-1] ^= 0xFF
	p.Feed(frameBytes)
	n, err := settleSlave(p, s, bk)
	if err != nil || n != 0 {
		t.Fatalf("expected a bad-CRC frame to be silently dropped, got n=%d err=%v", n, err)
	}
	if len(p.Written) != 0 {
		t.Fatalf("expected no transmission for a bad-CRC frame")
	}
}
