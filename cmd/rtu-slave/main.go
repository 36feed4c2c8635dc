// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command rtu-slave serves a local register bank over Modbus-RTU,
// persisting it through one of the backends in internal/localslave.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Penguin096/ModbusRtu/internal/config"
	"github.com/Penguin096/ModbusRtu/internal/localslave"
	"github.com/Penguin096/ModbusRtu/internal/localslave/persistence"
	"github.com/Penguin096/ModbusRtu/port"
	"github.com/Penguin096/ModbusRtu/rtu"
)

func main() {
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	storage, err := localslave.NewStorage(cfg.Local.Persistence.Type, cfg.Local.Persistence.Path)
	if err != nil {
		slog.Error("failed to construct storage backend", "type", cfg.Local.Persistence.Type, "err", err)
		os.Exit(1)
	}
	device, err := localslave.Open(storage, persistence.Sizes{
		DO: sizeOrDefault(cfg.Local.DOSize),
		DI: sizeOrDefault(cfg.Local.DISize),
		AI: sizeOrDefault(cfg.Local.AISize),
		AO: sizeOrDefault(cfg.Local.AOSize),
	})
	if err != nil {
		slog.Error("failed to open local slave device", "err", err)
		os.Exit(1)
	}
	defer device.Close()

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
	slave := rtu.NewSlave(p, rtu.Config{
		UnitID:   byte(cfg.UnitID),
		TxenMode: txen,
		Timeout:  cfg.Timing.Timeout,
		Overtime: cfg.Timing.Overtime,
		T35:      cfg.Timing.T35,
	})
	slave.OnWrite = device.OnWrite
	slave.Restart = func() {
		slog.Warn("diagnostics sub-function 1 received: restart requested, ignoring")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("serving local Modbus-RTU slave", "unit_id", cfg.UnitID, "device", cfg.Serial.Device)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := slave.Poll(device.Bank()); err != nil {
				slog.Warn("slave poll error", "err", err)
			}
		}
	}()

	<-sigCh
	close(stop)
	<-done
	slog.Info("shutting down",
		"in", slave.InCount, "out", slave.OutCount, "errors", slave.ErrCount)
}

func sizeOrDefault(n int) int {
	if n <= 0 {
		return 1024
	}
	return n
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
