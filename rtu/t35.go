// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"github.com/Penguin096/ModbusRtu/frame"
	"github.com/Penguin096/ModbusRtu/port"
)

// frameAssembler implements the polled T3.5 inter-character silence rule
// (spec §4.5.4, variant 1): sample the port's available-byte count each
// call, and declare the frame complete once that count has held steady for
// at least t35Ms. Master and Slave each own one assembler instance.
type frameAssembler struct {
	haveSample bool
	lastCount  int
	lastByteMs uint32
}

// poll samples p and, once the byte count has been stable for t35Ms,
// drains the accumulated bytes into buf and reports the frame complete.
// It reports (false, nil) while a frame is still arriving or nothing has
// arrived yet, and (false, ErrBufferOverflow) if the drained frame would
// not fit in buf — in which case buf has been reset and the assembler is
// ready for the next frame.
func (a *frameAssembler) poll(p port.Port, nowMs uint32, t35Ms uint32, buf *frame.Buffer) (complete bool, err error) {
	current := p.RxReady()
	if current == 0 {
		return false, nil
	}
	if !a.haveSample || current != a.lastCount {
		a.haveSample = true
		a.lastCount = current
		a.lastByteMs = nowMs
		return false, nil
	}
	if nowMs-a.lastByteMs < t35Ms {
		return false, nil
	}

	buf.Reset()
	overflowed := false
	for i := 0; i < current; i++ {
		b := p.RxPop()
		if !overflowed {
			if pushErr := buf.Push(b); pushErr != nil {
				overflowed = true
			}
		}
	}
	a.haveSample = false
	a.lastCount = 0
	if overflowed {
		buf.Reset()
		return false, ErrBufferOverflow
	}
	return true, nil
}

// InterruptAssembler implements the interrupt-driven T3.5 variant (spec
// §4.5.4, variant 2) for backends that deliver bytes one at a time from an
// RX interrupt rather than through Port's polled RxReady/RxPop. PushByte is
// safe to call from such a context; it never blocks or allocates once
// warmed up.
type InterruptAssembler struct {
	lastByteMs uint32
	haveByte   bool
}

// PushByte folds a single incoming byte into buf. If the gap since the
// previous byte exceeded t35Ms, the previous partial frame is discarded
// first (buf is reset before by is appended). It reports the frame
// complete once buf holds at least 8 bytes and, for FC15/FC16, at least
// byteCount+9 bytes (the write-multiple- payload's declared length plus
// its 9-byte envelope).
func (a *InterruptAssembler) PushByte(buf *frame.Buffer, by byte, nowMs uint32, t35Ms uint32) (complete bool) {
	if a.haveByte && nowMs-a.lastByteMs > t35Ms {
		buf.Reset()
	}
	a.lastByteMs = nowMs
	a.haveByte = true

	if err := buf.Push(by); err != nil {
		buf.Reset()
		return false
	}

	n := buf.Len()
	if n < 8 {
		return false
	}
	fc := FuncCode(buf.Get(1))
	if fc == FuncWriteMultipleCoils || fc == FuncWriteMultipleRegister {
		if n < int(buf.Get(6))+9 {
			return false
		}
	}
	return true
}
