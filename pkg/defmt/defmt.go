// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

// Package defmt decodes defmt-encoded log frames emitted by embedded
// firmware.
//
// Firmware built with defmt interns its format strings into the `.defmt`
// section of the ELF image; the wire carries only a varint index (the
// discriminator) followed by the argument bytes. Load extracts that symbol
// table from the image once; Decode reconstructs the formatted message for
// each frame against it. The table is immutable after Load and safe to share
// by reference across goroutines.
package defmt

import "errors"

// Level is the severity a format entry was logged at.
type Level int

// Severity levels, from the defmt tag on each interned symbol. LevelNone is
// used for defmt_println entries, which carry no severity.
const (
	LevelNone Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the canonical upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return ""
	}
}

// Message is one fully decoded log frame.
type Message struct {
	Index  uint64 // discriminator the frame carried
	Level  Level
	Module string // crate name recorded in the symbol tag
	Text   string // format string with arguments interpolated
}

// Load failures.
var (
	// ErrNoMetadata: the image is not an ELF or carries no .defmt section.
	ErrNoMetadata = errors.New("defmt: image carries no defmt symbol section")

	// ErrMalformed: the section is present but cannot be used, including a
	// wire-format version this decoder does not speak. No partial table is
	// ever returned.
	ErrMalformed = errors.New("defmt: malformed defmt symbol section")
)

// Decode failures. Each maps to a distinct, recoverable record variant in
// the capture pipeline; none of them is ever fatal to a session.
var (
	// ErrNoTable: decoding was attempted without a loaded symbol table.
	ErrNoTable = errors.New("defmt: no symbol table loaded")

	// ErrUnknownIndex: the frame's discriminator has no table entry,
	// usually a firmware/image mismatch.
	ErrUnknownIndex = errors.New("defmt: unknown frame index")

	// ErrTruncated: the frame ended before the entry's declared arguments
	// were satisfied.
	ErrTruncated = errors.New("defmt: frame shorter than declared arguments")

	// ErrBadArgument: argument bytes are present but cannot be parsed as
	// the declared type.
	ErrBadArgument = errors.New("defmt: argument bytes do not match declared type")
)
