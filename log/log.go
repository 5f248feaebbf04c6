// Package log wires up the btclog subsystem logging backend shared by every
// package in this module. Each package that wants to log declares its own
// package-level btclog.Logger and a UseLogger setter; this package creates
// one sub-logger per subsystem tag and wires them together at startup.
package log

import (
	"os"

	"github.com/btcsuite/btclog"
)

// Backend is the single logging backend every subsystem logger writes
// through. It defaults to stdout; cmd/signerd may redirect it before any
// subsystem is used.
var Backend = btclog.NewBackend(os.Stdout)

// NewSubLogger creates a logger for the named subsystem against the shared
// Backend, defaulting to Info level.
func NewSubLogger(subsystem string) btclog.Logger {
	logger := Backend.Logger(subsystem)
	logger.SetLevel(btclog.LevelInfo)
	return logger
}

// subsystemLoggers tracks every logger created via NewSubLoggerRegistered so
// SetLevels can adjust them all at once.
var subsystemLoggers = make(map[string]btclog.Logger)

// NewSubLoggerRegistered is like NewSubLogger but also registers the result
// under subsystem so SetLevel/SetLevels can reach it later.
func NewSubLoggerRegistered(subsystem string) btclog.Logger {
	logger := NewSubLogger(subsystem)
	subsystemLoggers[subsystem] = logger
	return logger
}

// SetLevel sets the level of a single registered subsystem logger. Unknown
// subsystems are ignored.
func SetLevel(subsystem, levelName string) {
	logger, ok := subsystemLoggers[subsystem]
	if !ok {
		return
	}
	level, ok := btclog.LevelFromString(levelName)
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLevels sets every registered subsystem logger to levelName.
func SetLevels(levelName string) {
	for subsystem := range subsystemLoggers {
		SetLevel(subsystem, levelName)
	}
}

// Closure defers evaluation of an expensive log argument until the message
// is actually emitted at the configured level.
type Closure func() string

// String invokes the underlying function and returns the result.
func (c Closure) String() string {
	return c()
}

// C wraps fn as a fmt.Stringer for use with btclog's %v-style arguments.
func C(fn func() string) Closure {
	return Closure(fn)
}
