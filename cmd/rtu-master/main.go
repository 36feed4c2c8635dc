// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command rtu-master is a polling Modbus-RTU master: it repeatedly issues
// one configured query, waits for the reply, and logs the decoded result.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Penguin096/ModbusRtu/internal/config"
	"github.com/Penguin096/ModbusRtu/port"
	"github.com/Penguin096/ModbusRtu/rtu"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	slaveID := flag.Int("slave", 1, "target slave id for the demo poll loop")
	address := flag.Int("address", 0, "starting register address")
	quantity := flag.Int("quantity", 2, "number of holding registers to read")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	slog.Info("starting Modbus-RTU master", "device", cfg.Serial.Device)

	p := port.NewSerialPort(port.Config{
		Device:   cfg.Serial.Device,
		BaudRate: cfg.Serial.BaudRate,
		DataBits: cfg.Serial.DataBits,
		Parity:   cfg.Serial.Parity,
		StopBits: cfg.Serial.StopBits,
		RS485: port.RS485Config{
			Enabled:            cfg.Serial.RS485,
			DelayRtsBeforeSend: cfg.Serial.DelayRtsBeforeSend,
			DelayRtsAfterSend:  cfg.Serial.DelayRtsAfterSend,
			RtsHighDuringSend:  cfg.Serial.RtsHighDuringSend,
			RtsHighAfterSend:   cfg.Serial.RtsHighAfterSend,
			RxDuringTx:         cfg.Serial.RxDuringTx,
		},
	})
	if err := p.Open(); err != nil {
		slog.Error("failed to open serial port", "err", err)
		os.Exit(1)
	}
	defer p.Close()

	txen := rtu.TxenNone
	if cfg.Txen == "pin" {
		txen = rtu.TxenPin
	}
	master := rtu.NewMaster(p, rtu.Config{
		TxenMode: txen,
		Timeout:  cfg.Timing.Timeout,
		Overtime: cfg.Timing.Overtime,
		T35:      cfg.Timing.T35,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	words := make([]uint16, *quantity)
	telegram := rtu.Telegram{
		SlaveID:  byte(*slaveID),
		Func:     rtu.FuncReadHoldingRegisters,
		Address:  uint16(*address),
		Quantity: uint16(*quantity),
		Words:    words,
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-sigCh:
			break loop
		default:
		}

		if err := master.Query(telegram); err != nil {
			slog.Error("query failed", "err", err)
		} else {
			for master.State() == rtu.StateWaiting {
				select {
				case <-sigCh:
					break loop
				default:
				}
				if _, err := master.Poll(); err != nil {
					slog.Warn("poll error", "err", err)
					break
				}
			}
			slog.Info("read holding registers", "slave", *slaveID, "address", *address, "words", words)
		}

		select {
		case <-ticker.C:
		case <-sigCh:
			break loop
		}
	}

	slog.Info("shutting down",
		"in", master.InCount, "out", master.OutCount, "errors", master.ErrCount)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
