// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"

	"github.com/Penguin096/ModbusRtu/crc"
	"github.com/Penguin096/ModbusRtu/frame"
	"github.com/Penguin096/ModbusRtu/port"
)

// Telegram describes one master request: which slave, which function, the
// starting address/quantity, and the caller-owned register image the
// request reads from or writes results into.
//
// Bits backs FC1/2 (read results), FC5 (Bits[0] is the value to write) and
// FC15 (write values). Words backs FC3/4 (read results), FC6 (Words[0] is
// the value to write) and FC16 (write values). FC8 uses neither; Address
// carries the diagnostic sub-function number.
type Telegram struct {
	SlaveID  byte
	Func     FuncCode
	Address  uint16
	Quantity uint16
	Bits     []bool
	Words    []uint16
}

// Master is one master-side Modbus-RTU session: at most one outstanding
// query at a time, a shared frame buffer, and the counters spec §4.5.5
// requires.
type Master struct {
	cfg  Config
	port port.Port
	buf  frame.Buffer
	asm  frameAssembler

	state        State
	lastError    error
	txDeadlineMs uint32
	pending      *Telegram

	InCount, OutCount, ErrCount uint16
}

// NewMaster constructs a Master bound to p. cfg.UnitID must be 0.
func NewMaster(p port.Port, cfg Config) *Master {
	return &Master{port: p, cfg: cfg.WithDefaults(), state: StateIdle}
}

// State reports the session's current position in the query/poll machine.
func (m *Master) State() State { return m.state }

// LastError reports the most recent error recorded by Query or Poll.
func (m *Master) LastError() error { return m.lastError }

// Start forcibly drains the port and returns the session to IDLE, per
// spec §5's cooperative-cancellation escape hatch.
func (m *Master) Start() {
	for m.port.RxReady() > 0 {
		m.port.RxPop()
	}
	m.asm = frameAssembler{}
	m.state = StateIdle
	m.pending = nil
}

// Query submits a master request. It returns ErrNotMaster if cfg.UnitID
// isn't 0, ErrNotIdle if a query is already outstanding, and ErrInvalidID
// if t.SlaveID is in the reserved 248..255 range. Broadcast (SlaveID==0)
// is accepted; the session still transitions to WAITING, though the
// caller should not expect a reply.
func (m *Master) Query(t Telegram) error {
	if m.cfg.UnitID != 0 {
		return ErrNotMaster
	}
	if m.state != StateIdle {
		return ErrNotIdle
	}
	if t.SlaveID > 247 {
		return ErrInvalidID
	}

	m.buf.Reset()
	m.buf.Push(t.SlaveID)
	m.buf.Push(byte(t.Func))
	m.buf.Push(byte(t.Address >> 8))
	m.buf.Push(byte(t.Address))

	switch t.Func {
	case FuncReadCoils, FuncReadDiscreteInputs, FuncReadHoldingRegisters, FuncReadInputRegisters:
		m.buf.Push(byte(t.Quantity >> 8))
		m.buf.Push(byte(t.Quantity))

	case FuncWriteSingleCoil:
		if len(t.Bits) > 0 && t.Bits[0] {
			m.buf.Push(0xFF)
		} else {
			m.buf.Push(0x00)
		}
		m.buf.Push(0x00)

	case FuncWriteSingleRegister:
		var val uint16
		if len(t.Words) > 0 {
			val = t.Words[0]
		}
		m.buf.Push(byte(val >> 8))
		m.buf.Push(byte(val))

	case FuncDiagnostics:
		m.buf.Push(0x00)
		m.buf.Push(0x00)

	case FuncWriteMultipleCoils:
		nb := byteCount(t.Quantity)
		m.buf.Push(byte(t.Quantity >> 8))
		m.buf.Push(byte(t.Quantity))
		m.buf.Push(byte(nb))
		packed := make([]byte, nb)
		packBits(packed, t.Bits[:t.Quantity])
		m.buf.PushBytes(packed)

	case FuncWriteMultipleRegister:
		m.buf.Push(byte(t.Quantity >> 8))
		m.buf.Push(byte(t.Quantity))
		m.buf.Push(byte(t.Quantity * 2))
		payload := putWordsBE(nil, t.Words[:t.Quantity])
		m.buf.PushBytes(payload)

	default:
		return Exception(ExcFuncCode)
	}

	frameBytes := crc.Append(append([]byte{}, m.buf.Frame()...))
	m.buf.Reset()
	if err := m.buf.PushBytes(frameBytes); err != nil {
		return ErrBufferOverflow
	}

	if m.cfg.TxenMode == TxenPin {
		m.port.SetDirection(port.TX)
	}
	if err := m.port.TxWrite(m.buf.Frame()); err != nil {
		return err
	}
	if err := m.port.TxDrain(); err != nil {
		return err
	}
	spinOvertime(m.port, m.cfg.Overtime)
	if m.cfg.TxenMode == TxenPin {
		m.port.SetDirection(port.RX)
	}
	// Discard any bytes the transceiver echoed back while transmitting.
	for discarded := 0; discarded < len(frameBytes) && m.port.RxReady() > 0; discarded++ {
		m.port.RxPop()
	}

	saturatingIncr(&m.OutCount)
	m.txDeadlineMs = m.port.NowMs() + uint32(m.cfg.Timeout.Milliseconds())
	m.state = StateWaiting
	m.lastError = nil
	telegram := t
	m.pending = &telegram
	m.asm = frameAssembler{}
	return nil
}

// Poll collects a pending query's response. It returns (0, nil) when there
// is nothing to report yet, (0, ErrNoReply) on timeout, and (n, nil) with n
// the received frame length once a valid response has been decoded into
// the pending telegram's register image.
func (m *Master) Poll() (int, error) {
	if m.state != StateWaiting {
		return 0, nil
	}

	now := m.port.NowMs()
	if elapsedSince(m.txDeadlineMs, now) {
		m.state = StateIdle
		m.lastError = ErrNoReply
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, ErrNoReply
	}

	if m.port.RxReady() == 0 {
		return 0, nil
	}

	complete, err := m.asm.poll(m.port, now, uint32(m.cfg.T35.Milliseconds()), &m.buf)
	if err != nil {
		m.state = StateIdle
		m.lastError = err
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, err
	}
	if !complete {
		return 0, nil
	}

	saturatingIncr(&m.InCount)
	n := m.buf.Len()
	if n < 5 {
		m.state = StateIdle
		m.lastError = ErrFraming
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, ErrFraming
	}

	if !crc.Verify(m.buf.Frame()) {
		m.state = StateIdle
		m.lastError = ErrNoReply
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, ErrNoReply
	}

	fcByte := m.buf.Get(1)
	if fcByte&exceptionBit != 0 {
		exc := Exception(m.buf.Get(2))
		m.state = StateIdle
		remoteErr := &RemoteException{Code: exc}
		m.lastError = remoteErr
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, remoteErr
	}
	if !isSupported(FuncCode(fcByte)) {
		m.state = StateIdle
		m.lastError = ExcFuncCode
		saturatingIncr(&m.ErrCount)
		m.pending = nil
		return 0, ExcFuncCode
	}

	t := m.pending
	switch FuncCode(fcByte) {
	case FuncReadCoils, FuncReadDiscreteInputs:
		qty := int(t.Quantity)
		nb := byteCount(t.Quantity)
		if n < 3+nb {
			m.state = StateIdle
			m.lastError = ErrFraming
			saturatingIncr(&m.ErrCount)
			m.pending = nil
			return 0, ErrFraming
		}
		unpackBits(t.Bits[:qty], m.buf.Bytes(n)[3:3+nb], qty)

	case FuncReadHoldingRegisters, FuncReadInputRegisters:
		qty := int(t.Quantity)
		if n < 3+qty*2 {
			m.state = StateIdle
			m.lastError = ErrFraming
			saturatingIncr(&m.ErrCount)
			m.pending = nil
			return 0, ErrFraming
		}
		getWordsBE(t.Words[:qty], m.buf.Bytes(n)[3:], qty)

	case FuncWriteSingleCoil:
		if n >= 6 && len(t.Bits) > 0 {
			t.Bits[0] = binary.BigEndian.Uint16(m.buf.Bytes(n)[4:6]) != 0
		}

	case FuncWriteSingleRegister:
		if n >= 6 && len(t.Words) > 0 {
			t.Words[0] = binary.BigEndian.Uint16(m.buf.Bytes(n)[4:6])
		}

	case FuncWriteMultipleCoils, FuncWriteMultipleRegister, FuncDiagnostics:
		// No data update.
	}

	m.state = StateIdle
	m.lastError = nil
	m.pending = nil
	return n, nil
}

// elapsedSince reports whether now is at or past deadline, tolerating a
// single wrap of the monotonic millisecond counter (spec §4.3's "wrap-
// around is expected and the core uses only differences").
func elapsedSince(deadline, now uint32) bool {
	return int32(now-deadline) >= 0
}

// spinOvertime busy-waits for d, modeling the reference's post-tx-drain
// settle spin (spec §9 "Master restart after transmit"). The wait runs on
// p's millisecond clock with d truncated to whole milliseconds, so a d
// under 1ms (such as the 500us default) returns at once without waiting.
// Real ports may instead implement the settle time via a hardware
// transmit-complete interrupt and treat SetDirection(RX) as the settle
// point.
func spinOvertime(p port.Port, d interface{ Milliseconds() int64 }) {
	if d.Milliseconds() <= 0 {
		return
	}
	start := p.NowMs()
	target := start + uint32(d.Milliseconds())
	if target == start {
		target++
	}
	for !elapsedSince(target, p.NowMs()) {
	}
}
