// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"testing"

	"github.com/Penguin096/ModbusRtu/frame"
	"github.com/Penguin096/ModbusRtu/port"
)

func TestFrameAssemblerWaitsForSilence(t *testing.T) {
	p := port.NewMock()
	var asm frameAssembler
	var buf frame.Buffer

	p.Feed([]byte{0x11, 0x03, 0x00})
	complete, err := asm.poll(p, p.NowMs(), 5, &buf)
	if err != nil || complete {
		t.Fatalf("expected incomplete sample, got complete=%v err=%v", complete, err)
	}

	// Same byte count, but not enough time has passed.
	p.Advance(2)
	complete, err = asm.poll(p, p.NowMs(), 5, &buf)
	if err != nil || complete {
		t.Fatalf("expected still waiting for silence, got complete=%v err=%v", complete, err)
	}

	p.Advance(5)
	complete, err = asm.poll(p, p.NowMs(), 5, &buf)
	if err != nil || !complete {
		t.Fatalf("expected frame complete, got complete=%v err=%v", complete, err)
	}
	if buf.Len() != 3 {
		t.Fatalf("buf.Len() = %d, want 3", buf.Len())
	}
}

func TestFrameAssemblerResetsOnNewBytes(t *testing.T) {
	p := port.NewMock()
	var asm frameAssembler
	var buf frame.Buffer

	p.Feed([]byte{0x01})
	asm.poll(p, p.NowMs(), 5, &buf)
	p.Advance(1)
	p.Feed([]byte{0x02})
	complete, err := asm.poll(p, p.NowMs(), 5, &buf)
	if err != nil || complete {
		t.Fatalf("expected the new byte to restart the silence timer, got complete=%v err=%v", complete, err)
	}
}

func TestFrameAssemblerOverflow(t *testing.T) {
	p := port.NewMock()
	var asm frameAssembler
	var buf frame.Buffer

	big := make([]byte, frame.MaxSize+1)
	p.Feed(big)
	asm.poll(p, p.NowMs(), 5, &buf)
	p.Advance(5)
	_, err := asm.poll(p, p.NowMs(), 5, &buf)
	if err != frame.ErrOverflow && err != ErrBufferOverflow {
		t.Fatalf("expected an overflow error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected buf reset after overflow, got len %d", buf.Len())
	}
}

func TestInterruptAssemblerCompletesFixedFrame(t *testing.T) {
	var asm InterruptAssembler
	var buf frame.Buffer
	frameBytes := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x02, 0x76, 0x87}
	var now uint32
	for i, b := range frameBytes {
		complete := asm.PushByte(&buf, b, now, 5)
		if i < len(frameBytes)-1 && complete {
			t.Fatalf("frame reported complete early at byte %d", i)
		}
		now++
	}
	if buf.Len() != len(frameBytes) {
		t.Fatalf("buf.Len() = %d, want %d", buf.Len(), len(frameBytes))
	}
}

func TestInterruptAssemblerGapResetsFrame(t *testing.T) {
	var asm InterruptAssembler
	var buf frame.Buffer
	asm.PushByte(&buf, 0x11, 0, 5)
	asm.PushByte(&buf, 0x03, 1, 5)
	// Big gap: previous partial frame should be discarded.
	asm.PushByte(&buf, 0xFF, 100, 5)
	if buf.Len() != 1 || buf.Get(0) != 0xFF {
		t.Fatalf("expected buffer reset to [0xFF], got len=%d", buf.Len())
	}
}
