/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

// Package log defines the logging seam used by keymanager and cmd/pmtunseal.
// The paymentmethodtoken package itself takes no logger: a verify/decrypt
// hot path that logs risks turning failure detail into a side channel, so
// it stays silent and returns an *Error instead.
package log

import "sync"

// Level is a log severity level.
type Level int

// Log levels, most to least severe.
const (
	PANIC Level = iota
	ERROR
	WARN
	INFO
	DEBUG
)

// Logger is a general-purpose, module-scoped logger.
type Logger interface {
	Panicf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
}

// Provider is a factory for module-scoped Loggers.
type Provider interface {
	GetLogger(module string) Logger
}

//nolint:gochecknoglobals
var (
	providerMu sync.RWMutex
	provider   Provider = logrusProvider{}
)

// Initialize swaps the default logrus-backed Provider for a custom one.
// A Logger returned by New picks up the Provider current at its first log
// call; one that has already logged keeps the Provider it resolved then.
func Initialize(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()

	provider = p
}

func currentProvider() Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()

	return provider
}

// Log is a Logger that lazily resolves its underlying implementation from
// the current Provider on first use, so Initialize can still take effect
// for loggers already constructed via New.
type Log struct {
	module string
	once   sync.Once
	inst   Logger
}

// New returns a Logger scoped to module.
func New(module string) *Log {
	return &Log{module: module}
}

func (l *Log) logger() Logger {
	l.once.Do(func() {
		l.inst = currentProvider().GetLogger(l.module)
	})

	return l.inst
}

// Panicf implements Logger.
func (l *Log) Panicf(msg string, args ...interface{}) { l.logger().Panicf(msg, args...) }

// Errorf implements Logger.
func (l *Log) Errorf(msg string, args ...interface{}) { l.logger().Errorf(msg, args...) }

// Warnf implements Logger.
func (l *Log) Warnf(msg string, args ...interface{}) { l.logger().Warnf(msg, args...) }

// Infof implements Logger.
func (l *Log) Infof(msg string, args ...interface{}) { l.logger().Infof(msg, args...) }

// Debugf implements Logger.
func (l *Log) Debugf(msg string, args ...interface{}) { l.logger().Debugf(msg, args...) }
