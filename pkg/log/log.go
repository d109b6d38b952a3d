// Copyright (c) 2024 Sapien Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package log provides the global loggers for the module. By default logs are
// written to stdout at info level; InitLoggers reconfigures the globals from
// a GlobalConfig.
package log

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// GlobalConfig defines the global logger configurations
type GlobalConfig struct {
	Zap *zap.Config `json:"zap" yaml:"zap"`
}

var (
	_globalMu     sync.RWMutex
	_globalLogger *zap.Logger
)

func init() {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	_globalLogger = logger
}

// L wraps the global logger
func L() *zap.Logger {
	_globalMu.RLock()
	defer _globalMu.RUnlock()
	return _globalLogger
}

// S wraps the global sugared logger
func S() *zap.SugaredLogger { return L().Sugar() }

// InitLoggers initializes the global logger from the given config
func InitLoggers(cfg GlobalConfig) error {
	zapCfg := zap.NewProductionConfig()
	if cfg.Zap != nil {
		zapCfg = *cfg.Zap
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return errors.Wrap(err, "failed to build zap logger")
	}
	_globalMu.Lock()
	_globalLogger = logger
	_globalMu.Unlock()
	return nil
}
