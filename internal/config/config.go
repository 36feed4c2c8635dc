// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads the YAML configuration consumed by the rtu-master
// and rtu-slave command-line entry points.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config defines the global configuration structure for a single
// Modbus-RTU session (master or slave — the binary decides which role to
// run in, but both read the same file shape).
type Config struct {
	Role   string       `mapstructure:"role"` // "master" or "slave"
	UnitID int          `mapstructure:"unit_id"`
	Txen   string       `mapstructure:"txen"` // "none" or "pin"
	Serial SerialConfig `mapstructure:"serial"`
	Timing TimingConfig `mapstructure:"timing"`
	Local  LocalConfig  `mapstructure:"local"` // slave role only
	Log    LogConfig    `mapstructure:"log"`
}

// LogConfig defines logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// TimingConfig carries the protocol core's tunables (spec §6).
type TimingConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Overtime time.Duration `mapstructure:"overtime"`
	T35      time.Duration `mapstructure:"t35"`
}

// LocalConfig defines settings for the local Modbus slave device a
// rtu-slave process exposes.
type LocalConfig struct {
	DOSize      int               `mapstructure:"do_size"`
	DISize      int               `mapstructure:"di_size"`
	AISize      int               `mapstructure:"ai_size"`
	AOSize      int               `mapstructure:"ao_size"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings for the register bank.
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // File path for "file"/"mmap"; DSN for "sql"
}

// SerialConfig defines the RS-232/RS-485 line settings.
type SerialConfig struct {
	Device   string `mapstructure:"device"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// LoadConfig loads configuration from file. An empty configFile falls back
// to the search path below, same precedence order the teacher uses.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbus-rtu/")
		v.AddConfigPath("$HOME/.modbus-rtu")
		v.AddConfigPath(".")
	}

	v.SetDefault("role", "master")
	v.SetDefault("unit_id", 1)
	v.SetDefault("txen", "none")
	v.SetDefault("log.level", "info")
	v.SetDefault("timing.timeout", 1000*time.Millisecond)
	v.SetDefault("timing.overtime", 500*time.Microsecond)
	v.SetDefault("timing.t35", 5*time.Millisecond)
	v.SetDefault("local.persistence.type", "memory")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&cfg.Serial)
	cfg.Role = strings.ToLower(cfg.Role)
	cfg.Txen = strings.ToLower(cfg.Txen)

	return &cfg, nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.BaudRate == 0 {
		s.BaudRate = 9600
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.Parity == "" {
		s.Parity = "N"
	}
}
