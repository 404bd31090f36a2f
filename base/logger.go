// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import "go.uber.org/zap"

// Logger defines the interface the manifest package uses to report
// noteworthy events: MANIFEST write failures, compaction-input expansion,
// recovery outcomes. It is intentionally narrow so that callers can adapt
// whatever logging library their surrounding service already uses.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLogger logs through a zap.SugaredLogger built from zap's production
// configuration.
type DefaultLogger struct {
	sugar *zap.SugaredLogger
}

// NewDefaultLogger builds a DefaultLogger backed by a zap production logger.
// If zap fails to build one (which only happens under misconfiguration, such
// as an unwritable stderr), logging is silently disabled rather than
// panicking the caller.
func NewDefaultLogger() *DefaultLogger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return &DefaultLogger{sugar: l.Sugar()}
}

// Infof implements Logger.
func (d *DefaultLogger) Infof(format string, args ...interface{}) {
	d.sugar.Infof(format, args...)
}

// Errorf implements Logger.
func (d *DefaultLogger) Errorf(format string, args ...interface{}) {
	d.sugar.Errorf(format, args...)
}
