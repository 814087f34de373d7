// Package logutil installs the process-wide structured logger used by
// every actor in the resource manager core.
package logutil

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Config controls where and how the global logger writes. It is embedded
// directly into the master and slave Config structs (internal/config).
type Config struct {
	File  string `toml:"log-file" json:"log-file"`
	Level string `toml:"log-level" json:"log-level"`
	// Quiet suppresses everything below Error, overriding Level. It backs
	// the master CLI's --quiet flag (spec §6).
	Quiet bool `toml:"-" json:"-"`
}

// InitLogger builds and installs the global zap logger that log.L()/log.S()
// return from then on. It must be called once, early in main, before any
// actor is spawned.
func InitLogger(cfg *Config) error {
	level := cfg.Level
	if cfg.Quiet {
		level = "error"
	}
	if level == "" {
		level = "info"
	}
	zapCfg := &log.Config{
		Level: level,
		File:  log.FileLogConfig{Filename: cfg.File},
	}
	logger, props, err := log.InitLogger(zapCfg)
	if err != nil {
		return err
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// With returns a child logger tagged with the given fields, for attaching
// a stable identity (actor address, slave id, framework id) to every line
// an actor emits.
func With(fields ...zap.Field) *zap.Logger {
	return log.L().With(fields...)
}
