// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rtu implements the Modbus-RTU protocol core: frame validation,
// the master query/poll state machine, the slave request/response
// pipeline, and encoding/decoding for function codes 1, 2, 3, 4, 5, 6, 8,
// 15 and 16.
package rtu

import (
	"errors"
	"fmt"
	"time"
)

// FuncCode identifies a Modbus function code. Only the nine values in
// Supported are accepted by this engine.
type FuncCode byte

const (
	FuncReadCoils             FuncCode = 1
	FuncReadDiscreteInputs    FuncCode = 2
	FuncReadHoldingRegisters  FuncCode = 3
	FuncReadInputRegisters    FuncCode = 4
	FuncWriteSingleCoil       FuncCode = 5
	FuncWriteSingleRegister   FuncCode = 6
	FuncDiagnostics           FuncCode = 8
	FuncWriteMultipleCoils    FuncCode = 15
	FuncWriteMultipleRegister FuncCode = 16
)

// exceptionBit, set in a response's function-code byte, flags an exception
// PDU; the byte following it carries the Exception code.
const exceptionBit = 0x80

// Supported lists the function codes this engine accepts, in whitelist
// check order.
var Supported = [...]FuncCode{
	FuncReadCoils, FuncReadDiscreteInputs, FuncReadHoldingRegisters,
	FuncReadInputRegisters, FuncWriteSingleCoil, FuncWriteSingleRegister,
	FuncDiagnostics, FuncWriteMultipleCoils, FuncWriteMultipleRegister,
}

func isSupported(fc FuncCode) bool {
	for _, s := range Supported {
		if s == fc {
			return true
		}
	}
	return false
}

// Exception is a Modbus protocol exception code (spec §7). It implements
// error so it can be returned and compared directly.
type Exception byte

const (
	ExcFuncCode  Exception = 1
	ExcAddrRange Exception = 2
	ExcRegsQuant Exception = 3
	ExcExecute   Exception = 4
)

func (e Exception) Error() string {
	switch e {
	case ExcFuncCode:
		return "rtu: illegal function code"
	case ExcAddrRange:
		return "rtu: illegal data address"
	case ExcRegsQuant:
		return "rtu: illegal data value"
	case ExcExecute:
		return "rtu: slave device failure"
	default:
		return fmt.Sprintf("rtu: exception %d", byte(e))
	}
}

// Transport-level and API-misuse errors (spec §7). ErrNoReply (which also
// covers a bad CRC), ErrBufferOverflow, ErrFraming and ErrException are
// never transmitted on the wire;
// ErrNotMaster/ErrNotIdle/ErrInvalidID guard API misuse.
var (
	ErrNotMaster      = errors.New("rtu: instance is not configured as master")
	ErrNotIdle        = errors.New("rtu: master session already has a query outstanding")
	ErrInvalidID      = errors.New("rtu: slave id out of range")
	ErrNoReply        = errors.New("rtu: no reply (timeout or bad crc)")
	ErrBufferOverflow = errors.New("rtu: frame exceeded buffer capacity")
	ErrFraming        = errors.New("rtu: received frame shorter than the protocol minimum")
	ErrException      = errors.New("rtu: remote returned an exception response")
)

// RemoteException wraps an Exception code carried in a response's
// exception PDU, so callers can both errors.Is(err, ErrException) and read
// the specific code via errors.As.
type RemoteException struct {
	Code Exception
}

func (e *RemoteException) Error() string {
	return fmt.Sprintf("%v: %v", ErrException, e.Code)
}

func (e *RemoteException) Unwrap() error {
	return ErrException
}

// TxenMode selects how a session drives its transceiver's direction line.
type TxenMode int

const (
	// TxenNone is full-duplex: the port is never asked to change
	// direction.
	TxenNone TxenMode = iota
	// TxenPin is half-duplex: the session calls Port.SetDirection around
	// every transmit.
	TxenPin
)

// Config holds the tunables spec §6 enumerates. Zero-value fields are
// filled in by WithDefaults.
type Config struct {
	// UnitID is 0 for a master, 1..247 for a slave.
	UnitID byte
	// TxenMode selects full- or half-duplex direction handling.
	TxenMode TxenMode
	// Timeout is the master response timeout and the slave watchdog
	// period. Default 1000ms.
	Timeout time.Duration
	// Overtime is the post-tx-drain settle delay spun before a
	// half-duplex port is told to switch back to RX, compensating for
	// transceivers with slow fall times. Default 500us (spec's
	// overtime_ticks=500, reinterpreted per spec §9 "Design Notes" as a
	// microsecond delay rather than a busy-wait tick count). The wait is
	// measured on the port's millisecond clock and truncated to whole
	// milliseconds, so any Overtime below 1ms, the default included,
	// produces no wait at all.
	Overtime time.Duration
	// T35 is the inter-frame silence threshold. Default 5ms.
	T35 time.Duration
}

const (
	defaultTimeout  = 1000 * time.Millisecond
	defaultOvertime = 500 * time.Microsecond
	defaultT35      = 5 * time.Millisecond
)

// WithDefaults returns a copy of cfg with zero-valued tunables replaced by
// their spec §6 defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Overtime <= 0 {
		cfg.Overtime = defaultOvertime
	}
	if cfg.T35 <= 0 {
		cfg.T35 = defaultT35
	}
	return cfg
}

// State is a master session's position in the query/poll state machine.
type State int

const (
	StateIdle State = iota
	StateWaiting
)

func (s State) String() string {
	if s == StateWaiting {
		return "WAITING"
	}
	return "IDLE"
}

// saturatingIncr increments a 16-bit saturating counter (spec §4.5.5: "three
// 16-bit saturating counters").
func saturatingIncr(c *uint16) {
	if *c < 0xFFFF {
		*c++
	}
}
