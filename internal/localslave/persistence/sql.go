// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Penguin096/ModbusRtu/bank"
)

// SQLStorage implements persistence using a SQL database, upserting one
// row per touched register rather than rewriting the whole bank. The
// driver (e.g. sqlite3, mysql) must be imported for side effects by the
// caller — this package only calls database/sql against whatever driver
// name it's given.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
}

// NewSQLStorage creates a new SQLStorage.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{driver: driver, dsn: dsn}
}

// Load connects to the database, ensures the schema exists, and overlays
// whatever rows are already stored onto a zero-valued bank sized per sz.
func (s *SQLStorage) Load(sz Sizes) (*bank.RegisterBank, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	s.db = db

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	bk := &bank.RegisterBank{
		DO: make([]bool, sz.DO),
		DI: make([]bool, sz.DI),
		AI: make([]uint16, sz.AI),
		AO: make([]uint16, sz.AO),
	}

	rows, err := db.Query("SELECT region, address, value FROM modbus_registers")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var region int
		var addr, val int
		if err := rows.Scan(&region, &addr, &val); err != nil {
			continue
		}
		switch bank.Region(region) {
		case bank.RegionDO:
			if addr < len(bk.DO) {
				bk.DO[addr] = val != 0
			}
		case bank.RegionDI:
			if addr < len(bk.DI) {
				bk.DI[addr] = val != 0
			}
		case bank.RegionAI:
			if addr < len(bk.AI) {
				bk.AI[addr] = uint16(val)
			}
		case bank.RegionAO:
			if addr < len(bk.AO) {
				bk.AO[addr] = uint16(val)
			}
		}
	}

	return bk, nil
}

func (s *SQLStorage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS modbus_registers (
			region INTEGER,
			address INTEGER,
			value INTEGER,
			PRIMARY KEY (region, address)
		);
	`)
	return err
}

// OnWrite upserts every touched register in [start, start+quantity).
func (s *SQLStorage) OnWrite(bk *bank.RegisterBank, r bank.Region, start, quantity uint16) {
	if s.db == nil {
		return
	}
	const upsert = `INSERT INTO modbus_registers (region, address, value) VALUES (?, ?, ?)
		ON CONFLICT(region, address) DO UPDATE SET value=excluded.value`

	for i := 0; i < int(quantity); i++ {
		addr := int(start) + i
		var val int64
		switch r {
		case bank.RegionDO:
			if bk.DO[addr] {
				val = 1
			}
		case bank.RegionDI:
			if bk.DI[addr] {
				val = 1
			}
		case bank.RegionAI:
			val = int64(bk.AI[addr])
		case bank.RegionAO:
			val = int64(bk.AO[addr])
		}
		if _, err := s.db.Exec(upsert, int(r), addr, val); err != nil {
			slog.Error("failed to persist register", "region", r, "addr", addr, "err", err)
		}
	}
}

// Close closes the database handle.
func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
