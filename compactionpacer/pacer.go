// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compactionpacer throttles how fast the manifest package is
// allowed to fsync the MANIFEST and CURRENT files during LogAndApply, so a
// burst of small compactions (each appending and syncing its own
// VersionEdit) cannot starve a foreground write's own fsync of disk
// bandwidth.
package compactionpacer

import (
	"context"

	"github.com/cockroachdb/tokenbucket"
)

// Limiter paces a sequence of fsync calls against a token budget: one
// token per fsync by convention, refilled at RatePerSec and capped at
// Burst outstanding tokens.
type Limiter struct {
	tb tokenbucket.TokenBucket
}

// NewLimiter returns a Limiter allowing ratePerSec fsyncs per second on
// average, bursting up to burst in a row before blocking.
func NewLimiter(ratePerSec float64, burst float64) *Limiter {
	l := &Limiter{}
	l.tb.Init(tokenbucket.TokensPerSecond(ratePerSec), tokenbucket.Tokens(burst))
	return l
}

// Wait blocks until a single fsync is admitted, or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.tb.WaitCtx(ctx, 1)
}

// NoLimit returns a Limiter that never blocks, for tests and single-shot
// tools that have no reason to pace themselves.
func NoLimit() *Limiter {
	return NewLimiter(1e9, 1e9)
}
