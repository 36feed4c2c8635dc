// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package port

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/grid-x/serial"
)

// Config describes a half-duplex RS-485 or full-duplex RS-232/USB-CDC
// serial line. Field shape mirrors the pack's established SerialConfig
// convention, kept close to grid-x/serial's own Config.
type Config struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   string
	StopBits int

	// ReadPollInterval bounds how long a single blocking read on the
	// underlying port is allowed to take before the reader goroutine
	// checks for a shutdown request. It does not affect protocol timing;
	// RxReady/RxPop are always non-blocking from the core's perspective.
	ReadPollInterval time.Duration

	// RS485 carries transceiver direction-control timing. When Enabled,
	// the serial driver (or kernel RS-485 support) toggles the line
	// automatically; SetDirection below is then only a hint forwarded to
	// DirFunc for boards that need an explicit GPIO nudge on top of that.
	RS485 RS485Config

	// DirFunc is the external collaborator that actually drives an
	// RS-485 transceiver's direction pin. It is outside this package's
	// concern (spec §1): board GPIO wiring is supplied by the host. A nil
	// DirFunc means direction control is entirely delegated to the
	// driver/kernel.
	DirFunc func(Direction)
}

// RS485Config mirrors the RS-485 timing knobs grid-x/serial exposes.
type RS485Config struct {
	Enabled            bool
	DelayRtsBeforeSend time.Duration
	DelayRtsAfterSend  time.Duration
	RtsHighDuringSend  bool
	RtsHighAfterSend   bool
	RxDuringTx         bool
}

// SerialPort is a Port backed by a real serial device via grid-x/serial. A
// background goroutine performs short blocking reads off the OS handle and
// feeds a small in-memory queue, so RxReady/RxPop never block the caller —
// the frame assembly and T3.5 timing stay entirely inside the protocol
// core, as spec §4.3 requires.
type SerialPort struct {
	cfg Config

	mu     sync.Mutex
	handle io.ReadWriteCloser

	rxMu  sync.Mutex
	rxBuf []byte

	closeCh chan struct{}
	doneCh  chan struct{}

	epoch time.Time
}

// NewSerialPort allocates a SerialPort for cfg. The underlying device is not
// opened until Open is called.
func NewSerialPort(cfg Config) *SerialPort {
	if cfg.ReadPollInterval <= 0 {
		cfg.ReadPollInterval = 5 * time.Millisecond
	}
	return &SerialPort{cfg: cfg, epoch: time.Now()}
}

// Open opens the underlying device and starts the background reader.
func (p *SerialPort) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return nil
	}

	sc := &serial.Config{
		Address:  p.cfg.Device,
		BaudRate: p.cfg.BaudRate,
		DataBits: p.cfg.DataBits,
		StopBits: p.cfg.StopBits,
		Parity:   p.cfg.Parity,
		Timeout:  p.cfg.ReadPollInterval,
	}
	if p.cfg.RS485.Enabled {
		sc.RS485 = serial.RS485Config{
			Enabled:            true,
			DelayRtsBeforeSend: p.cfg.RS485.DelayRtsBeforeSend,
			DelayRtsAfterSend:  p.cfg.RS485.DelayRtsAfterSend,
			RtsHighDuringSend:  p.cfg.RS485.RtsHighDuringSend,
			RtsHighAfterSend:   p.cfg.RS485.RtsHighAfterSend,
			RxDuringTx:         p.cfg.RS485.RxDuringTx,
		}
	}

	h, err := serial.Open(sc)
	if err != nil {
		return fmt.Errorf("port: open %s: %w", p.cfg.Device, err)
	}
	p.handle = h
	p.closeCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	go p.readLoop()
	return nil
}

// Close stops the reader and closes the underlying device.
func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == nil {
		return nil
	}
	close(p.closeCh)
	err := p.handle.Close()
	<-p.doneCh
	p.handle = nil
	return err
}

func (p *SerialPort) readLoop() {
	defer close(p.doneCh)
	buf := make([]byte, 256)
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}
		n, err := p.handle.Read(buf)
		if n > 0 {
			p.rxMu.Lock()
			p.rxBuf = append(p.rxBuf, buf[:n]...)
			p.rxMu.Unlock()
		}
		if err != nil {
			select {
			case <-p.closeCh:
				return
			default:
			}
		}
	}
}

// RxReady implements Port.
func (p *SerialPort) RxReady() int {
	p.rxMu.Lock()
	defer p.rxMu.Unlock()
	return len(p.rxBuf)
}

// RxPop implements Port.
func (p *SerialPort) RxPop() byte {
	p.rxMu.Lock()
	defer p.rxMu.Unlock()
	b := p.rxBuf[0]
	p.rxBuf = p.rxBuf[1:]
	return b
}

// TxWrite implements Port.
func (p *SerialPort) TxWrite(b []byte) error {
	p.mu.Lock()
	h := p.handle
	p.mu.Unlock()
	if h == nil {
		return fmt.Errorf("port: write on closed port")
	}
	_, err := h.Write(b)
	return err
}

// TxDrain implements Port. grid-x/serial's Write is synchronous, so by the
// time TxWrite returns the bytes are already queued in the kernel driver;
// TxDrain exists for ports where that isn't true and is a no-op here.
func (p *SerialPort) TxDrain() error {
	return nil
}

// SetDirection implements Port by forwarding the hint to the host-supplied
// DirFunc, if any.
func (p *SerialPort) SetDirection(d Direction) {
	if p.cfg.DirFunc != nil {
		p.cfg.DirFunc(d)
	}
}

// NowMs implements Port.
func (p *SerialPort) NowMs() uint32 {
	return uint32(time.Since(p.epoch).Milliseconds())
}
