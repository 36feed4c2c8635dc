// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"

	"github.com/Penguin096/ModbusRtu/bank"
	"github.com/Penguin096/ModbusRtu/crc"
	"github.com/Penguin096/ModbusRtu/frame"
	"github.com/Penguin096/ModbusRtu/port"
)

// Slave is one slave-side Modbus-RTU session: frame assembly, address and
// CRC filtering, function-code dispatch against a caller-supplied
// RegisterBank, and exception-PDU construction.
type Slave struct {
	cfg  Config
	port port.Port
	buf  frame.Buffer
	asm  frameAssembler

	lastRxMs uint32

	// Restart, if non-nil, is invoked when a diagnostics (FC8) request
	// carries sub-function 1 ("Restart Communications Option"). Callers
	// wire this to whatever their platform considers a restart; a nil
	// Restart makes sub-function 1 a silent no-op, same as every other
	// sub-function (spec §9's resolved Open Question on FC8).
	Restart func()

	// OnWrite, if non-nil, is invoked after a successful FC5/6/15/16 write
	// commits to bk, naming the touched region and address range. Callers
	// wire this to a persistence layer; the protocol core itself has no
	// notion of storage.
	OnWrite func(r bank.Region, start, quantity uint16)

	InCount, OutCount, ErrCount uint16
}

// NewSlave constructs a Slave bound to p. cfg.UnitID must be in 1..247.
func NewSlave(p port.Port, cfg Config) *Slave {
	return &Slave{port: p, cfg: cfg.WithDefaults(), lastRxMs: p.NowMs()}
}

// WatchdogExpired reports whether longer than cfg.Timeout has passed since
// the last frame addressed to this slave (unicast or broadcast) was
// received, regardless of whether it required a reply.
func (s *Slave) WatchdogExpired() bool {
	now := s.port.NowMs()
	return elapsedSince(s.lastRxMs+uint32(s.cfg.Timeout.Milliseconds()), now)
}

// Poll assembles and, once complete, processes one incoming request against
// bk. It returns (0, nil) while a frame is still arriving, (n, nil) once a
// request addressed to this slave has been handled (n is the response
// length, 0 for broadcasts and suppressed replies), and a non-nil error
// only for conditions the caller should log — malformed or misaddressed
// frames are silently ignored, per the protocol's definition of "noise on
// a shared bus".
func (s *Slave) Poll(bk *bank.RegisterBank) (int, error) {
	now := s.port.NowMs()
	complete, err := s.asm.poll(s.port, now, uint32(s.cfg.T35.Milliseconds()), &s.buf)
	if err != nil {
		saturatingIncr(&s.ErrCount)
		return 0, err
	}
	if !complete {
		return 0, nil
	}

	n := s.buf.Len()
	if n < 4 {
		return 0, nil
	}
	if !crc.Verify(s.buf.Frame()) {
		return 0, nil
	}

	addr := s.buf.Get(0)
	broadcast := addr == 0
	if !broadcast && addr != s.cfg.UnitID {
		return 0, nil
	}

	saturatingIncr(&s.InCount)
	s.lastRxMs = now

	fc := FuncCode(s.buf.Get(1))
	if !isSupported(fc) {
		return s.reply(broadcast, ExcFuncCode)
	}

	switch fc {
	case FuncReadCoils:
		return s.processRead(bk, bank.RegionDO, broadcast, true)
	case FuncReadDiscreteInputs:
		return s.processRead(bk, bank.RegionDI, broadcast, true)
	case FuncReadHoldingRegisters:
		return s.processRead(bk, bank.RegionAO, broadcast, false)
	case FuncReadInputRegisters:
		return s.processRead(bk, bank.RegionAI, broadcast, false)
	case FuncWriteSingleCoil:
		return s.processWriteSingleCoil(bk, broadcast)
	case FuncWriteSingleRegister:
		return s.processWriteSingleRegister(bk, broadcast)
	case FuncDiagnostics:
		return s.processDiagnostics(broadcast)
	case FuncWriteMultipleCoils:
		return s.processWriteMultipleCoils(bk, broadcast)
	case FuncWriteMultipleRegister:
		return s.processWriteMultipleRegisters(bk, broadcast)
	default:
		return s.reply(broadcast, ExcFuncCode)
	}
}

// processRead serves FC1/2/3/4. bits selects whether r is a coil-style
// region (packed response) or a word-style region (2-byte-per-item
// response).
func (s *Slave) processRead(bk *bank.RegisterBank, r bank.Region, broadcast, bits bool) (int, error) {
	n := s.buf.Len()
	if n < 8 {
		return s.reply(broadcast, ExcFuncCode)
	}
	start := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	qty := binary.BigEndian.Uint16(s.buf.Bytes(n)[4:6])

	if bits {
		if qty == 0 || qty > 2000 {
			return s.reply(broadcast, ExcRegsQuant)
		}
	} else {
		if qty == 0 || qty > 125 {
			return s.reply(broadcast, ExcRegsQuant)
		}
	}
	if !bk.InRange(r, start, qty) {
		return s.reply(broadcast, ExcAddrRange)
	}
	if broadcast {
		// Read functions make no sense as broadcasts; the reference treats
		// them as a no-op with no reply.
		return 0, nil
	}

	if bits {
		var src []bool
		if r == bank.RegionDO {
			src = bk.DO[start : start+qty]
		} else {
			src = bk.DI[start : start+qty]
		}
		nb := byteCount(qty)
		s.buf.Set(2, byte(nb))
		packed := make([]byte, nb)
		packBits(packed, src)
		for i, by := range packed {
			s.buf.Set(3+i, by)
		}
		s.buf.SetLen(3 + nb)
	} else {
		var src []uint16
		if r == bank.RegionAO {
			src = bk.AO[start : start+qty]
		} else {
			src = bk.AI[start : start+qty]
		}
		s.buf.Set(2, byte(qty*2))
		for i, w := range src {
			s.buf.Set(3+2*i, byte(w>>8))
			s.buf.Set(3+2*i+1, byte(w))
		}
		s.buf.SetLen(3 + int(qty)*2)
	}
	return s.send()
}

// processWriteSingleCoil serves FC5. The request bytes [4:6] hold 0xFF00 or
// 0x0000; on success the response is the request frame unchanged (it is
// already resident in buf), per spec §9's buffer-reuse note.
func (s *Slave) processWriteSingleCoil(bk *bank.RegisterBank, broadcast bool) (int, error) {
	n := s.buf.Len()
	if n < 8 {
		return s.reply(broadcast, ExcFuncCode)
	}
	addr := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	value := binary.BigEndian.Uint16(s.buf.Bytes(n)[4:6])
	if value != 0xFF00 && value != 0x0000 {
		return s.reply(broadcast, ExcRegsQuant)
	}
	if !bk.InRangeSingle(bank.RegionDO, addr) {
		return s.reply(broadcast, ExcAddrRange)
	}
	bk.DO[addr] = value == 0xFF00
	if s.OnWrite != nil {
		s.OnWrite(bank.RegionDO, addr, 1)
	}
	if broadcast {
		return 0, nil
	}
	s.buf.SetLen(6)
	return s.send()
}

// processWriteSingleRegister serves FC6, echoing the request frame back
// unchanged on success.
func (s *Slave) processWriteSingleRegister(bk *bank.RegisterBank, broadcast bool) (int, error) {
	n := s.buf.Len()
	if n < 8 {
		return s.reply(broadcast, ExcFuncCode)
	}
	addr := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	value := binary.BigEndian.Uint16(s.buf.Bytes(n)[4:6])
	if !bk.InRangeSingle(bank.RegionAO, addr) {
		return s.reply(broadcast, ExcAddrRange)
	}
	bk.AO[addr] = value
	if s.OnWrite != nil {
		s.OnWrite(bank.RegionAO, addr, 1)
	}
	if broadcast {
		return 0, nil
	}
	s.buf.SetLen(6)
	return s.send()
}

// processDiagnostics serves FC8. The request's address field doubles as the
// diagnostics sub-function selector; every sub-function other than 1
// ("Restart Communications Option") is accepted and echoed with no side
// effect, matching the original firmware's minimal diagnostics support.
func (s *Slave) processDiagnostics(broadcast bool) (int, error) {
	n := s.buf.Len()
	if n < 8 {
		return s.reply(broadcast, ExcFuncCode)
	}
	subFunc := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	if subFunc == 1 && s.Restart != nil {
		s.Restart()
	}
	if broadcast {
		return 0, nil
	}
	s.buf.SetLen(8)
	return s.send()
}

// processWriteMultipleCoils serves FC15, unpacking the request's packed
// coil bytes into bk.DO and replying with [addr, qty] truncated from the
// still-resident request (spec §9's buffer-reuse note).
func (s *Slave) processWriteMultipleCoils(bk *bank.RegisterBank, broadcast bool) (int, error) {
	n := s.buf.Len()
	if n < 9 {
		return s.reply(broadcast, ExcFuncCode)
	}
	start := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	qty := binary.BigEndian.Uint16(s.buf.Bytes(n)[4:6])
	nb := int(s.buf.Get(6))
	if qty == 0 || qty > 1968 || nb != byteCount(qty) {
		return s.reply(broadcast, ExcRegsQuant)
	}
	if n < 7+nb+2 {
		return s.reply(broadcast, ExcFuncCode)
	}
	if !bk.InRange(bank.RegionDO, start, qty) {
		return s.reply(broadcast, ExcAddrRange)
	}
	values := make([]bool, qty)
	unpackBits(values, s.buf.Bytes(n)[7:7+nb], int(qty))
	copy(bk.DO[start:start+qty], values)
	if s.OnWrite != nil {
		s.OnWrite(bank.RegionDO, start, qty)
	}
	if broadcast {
		return 0, nil
	}
	s.buf.SetLen(6)
	return s.send()
}

// processWriteMultipleRegisters serves FC16, writing big-endian words into
// bk.AO and replying with [addr, qty] truncated from the still-resident
// request.
func (s *Slave) processWriteMultipleRegisters(bk *bank.RegisterBank, broadcast bool) (int, error) {
	n := s.buf.Len()
	if n < 9 {
		return s.reply(broadcast, ExcFuncCode)
	}
	start := binary.BigEndian.Uint16(s.buf.Bytes(n)[2:4])
	qty := binary.BigEndian.Uint16(s.buf.Bytes(n)[4:6])
	nb := int(s.buf.Get(6))
	if qty == 0 || qty > 123 || nb != int(qty)*2 {
		return s.reply(broadcast, ExcRegsQuant)
	}
	if n < 7+nb+2 {
		return s.reply(broadcast, ExcFuncCode)
	}
	if !bk.InRange(bank.RegionAO, start, qty) {
		return s.reply(broadcast, ExcAddrRange)
	}
	values := make([]uint16, qty)
	getWordsBE(values, s.buf.Bytes(n)[7:7+nb], int(qty))
	copy(bk.AO[start:start+qty], values)
	if s.OnWrite != nil {
		s.OnWrite(bank.RegionAO, start, qty)
	}
	if broadcast {
		return 0, nil
	}
	s.buf.SetLen(6)
	return s.send()
}

// reply builds and, unless broadcast, sends an exception response. It
// always reports the exception in ErrCount; broadcasts never produce a
// wire reply, per spec §4.5.3.
func (s *Slave) reply(broadcast bool, exc Exception) (int, error) {
	saturatingIncr(&s.ErrCount)
	if broadcast {
		return 0, nil
	}
	addr := s.buf.Get(0)
	fc := s.buf.Get(1)
	s.buf.Reset()
	s.buf.Push(addr)
	s.buf.Push(fc | exceptionBit)
	s.buf.Push(byte(exc))
	return s.send()
}

// send appends the CRC to the buffer's current frame and transmits it.
func (s *Slave) send() (int, error) {
	frameBytes := crc.Append(append([]byte{}, s.buf.Frame()...))
	s.buf.Reset()
	if err := s.buf.PushBytes(frameBytes); err != nil {
		saturatingIncr(&s.ErrCount)
		return 0, ErrBufferOverflow
	}

	if s.cfg.TxenMode == TxenPin {
		s.port.SetDirection(port.TX)
	}
	if err := s.port.TxWrite(s.buf.Frame()); err != nil {
		saturatingIncr(&s.ErrCount)
		return 0, err
	}
	if err := s.port.TxDrain(); err != nil {
		saturatingIncr(&s.ErrCount)
		return 0, err
	}
	spinOvertime(s.port, s.cfg.Overtime)
	if s.cfg.TxenMode == TxenPin {
		s.port.SetDirection(port.RX)
	}

	saturatingIncr(&s.OutCount)
	return s.buf.Len(), nil
}
