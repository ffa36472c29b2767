// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

// Package framing segments a raw serial byte stream into discrete units.
//
// Two splitters implement the same contract: LineSplitter cuts on line
// terminators for devices that speak plain text, FrameSplitter cuts on
// marker-delimited, byte-stuffed binary frames for devices that emit
// defmt-encoded logs. Both are pure synchronous transforms of bytes that
// have already been read; neither blocks.
package framing

import "errors"

// Frame delimiter bytes for binary mode. Special bytes inside a frame are
// escaped as Esc followed by the byte XOR EscXor.
const (
	FrameStart = 0x7E
	FrameEnd   = 0x7F
	Esc        = 0x7D
	EscXor     = 0x20
)

// DefaultMaxUnitSize bounds how many bytes a splitter will accumulate while
// waiting for a terminator before declaring a protocol fault.
const DefaultMaxUnitSize = 4096

var (
	// ErrOversizeUnit is reported when no terminator arrives within the
	// configured byte cap. The accumulated bytes are surfaced with the
	// error and the splitter resets.
	ErrOversizeUnit = errors.New("framing: unit exceeds size cap without terminator")

	// ErrDanglingEscape is reported when a frame ends in the middle of an
	// escape sequence.
	ErrDanglingEscape = errors.New("framing: incomplete escape sequence in frame")

	// ErrUnterminatedFrame is reported when a frame is cut short, either by
	// a new start marker arriving mid-frame or by the connection closing.
	ErrUnterminatedFrame = errors.New("framing: frame not terminated")
)

// Unit is one complete segment cut from the stream. Err is non-nil for
// protocol faults (oversize accumulation, bad escape); Bytes then holds
// whatever had been accumulated so nothing is lost silently.
type Unit struct {
	Bytes []byte
	Err   error
}

// Splitter is a stateful accumulator over a raw byte stream. Feed never
// blocks and may return zero or more complete units per call. Flush emits
// any held tail; it is called once when the connection closes. A Splitter
// is restartable within a connection (after a fault) but not across
// reconnects: a fresh connection gets a fresh Splitter.
type Splitter interface {
	Feed(p []byte) []Unit
	Flush() []Unit
}

// Config carries splitter tuning shared by both modes.
type Config struct {
	// MaxUnitSize caps accumulation between terminators. Zero means
	// DefaultMaxUnitSize.
	MaxUnitSize int
}

func (c Config) maxUnitSize() int {
	if c.MaxUnitSize <= 0 {
		return DefaultMaxUnitSize
	}
	return c.MaxUnitSize
}
