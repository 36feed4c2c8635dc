// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Penguin096/ModbusRtu/bank"
)

// FileStorage implements persistence using plain file operations: the
// whole register image is read into memory on Load and rewritten on every
// OnWrite. Simpler and slower than MmapStorage, but avoids mmap on
// filesystems that don't support it.
type FileStorage struct {
	path string
	file *os.File
	data []byte
	sz   Sizes
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load loads the register bank by file operations, resizing the file
// (growing or truncating it) to the size sz requires if it doesn't
// already match.
func (ms *FileStorage) Load(sz Sizes) (*bank.RegisterBank, error) {
	ms.sz = sz
	l := newLayout(sz)

	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	ms.file = f

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(l.total) {
		if err := f.Truncate(int64(l.total)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize file: %w", err)
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	ms.data = data

	return mapBytesToBank(data, sz), nil
}

// OnWrite rewrites the whole file and fsyncs it, trading write amplification
// for a simple implementation that needs no per-region offset bookkeeping.
func (ms *FileStorage) OnWrite(bk *bank.RegisterBank, r bank.Region, start, quantity uint16) {
	if err := ms.sync(); err != nil {
		slog.Error("failed to sync register file", "err", err)
	}
}

func (ms *FileStorage) sync() error {
	if ms.data == nil || ms.file == nil {
		return nil
	}
	if _, err := ms.file.WriteAt(ms.data, 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return ms.file.Sync()
}

// Close closes the backing file.
func (ms *FileStorage) Close() error {
	if ms.file == nil {
		return nil
	}
	return ms.file.Close()
}
