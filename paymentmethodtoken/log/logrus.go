/*
Copyright the paymentmethodtoken-go Authors.

SPDX-License-Identifier: Apache-2.0
*/

package log

import "github.com/sirupsen/logrus"

// logrusProvider is the default Provider, backing every module logger with
// its own *logrus.Entry so module name is attached to every line as a
// field rather than a prefix.
type logrusProvider struct{}

func (logrusProvider) GetLogger(module string) Logger {
	return &logrusLogger{entry: logrus.WithField("module", module)}
}

type logrusLogger struct {
	entry *logrus.Entry
}

func (l *logrusLogger) Panicf(msg string, args ...interface{}) { l.entry.Panicf(msg, args...) }
func (l *logrusLogger) Errorf(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }
func (l *logrusLogger) Warnf(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *logrusLogger) Infof(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *logrusLogger) Debugf(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
