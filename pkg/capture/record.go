// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

// Package capture is the acquisition-and-decoding pipeline: it owns the
// connection, runs the dedicated reading loop, splits the byte stream into
// units, decodes them, and hands timestamped records to consumers through a
// synchronized store.
package capture

import (
	"errors"
	"time"

	"github.com/serimon/serimon/pkg/defmt"
	"github.com/serimon/serimon/pkg/framing"
)

// Kind discriminates a record's payload.
type Kind int

// Record payload kinds.
const (
	KindText        Kind = iota // one plain text line, terminator stripped
	KindDecoded                 // a defmt frame decoded against the symbol table
	KindRaw                     // binary unit kept raw (no decode attempted)
	KindDecodeError             // a unit that could not be decoded
	KindSent                    // bytes the user sent to the device
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDecoded:
		return "decoded"
	case KindRaw:
		return "raw"
	case KindDecodeError:
		return "error"
	case KindSent:
		return "sent"
	default:
		return "unknown"
	}
}

// DecodeReason classifies why a KindDecodeError record exists.
type DecodeReason int

// Decode failure reasons. Protocol faults come from the splitter, decode
// faults from the frame decoder, and sequence gaps from the store's
// contiguity guard.
const (
	ReasonNone DecodeReason = iota
	ReasonNoTable
	ReasonUnknownDiscriminator
	ReasonTruncatedArguments
	ReasonArgumentTypeMismatch
	ReasonOversizeUnit
	ReasonUnterminatedFrame
	ReasonDanglingEscape
	ReasonSequenceGap
)

func (r DecodeReason) String() string {
	switch r {
	case ReasonNoTable:
		return "no_table"
	case ReasonUnknownDiscriminator:
		return "unknown_discriminator"
	case ReasonTruncatedArguments:
		return "truncated_arguments"
	case ReasonArgumentTypeMismatch:
		return "argument_type_mismatch"
	case ReasonOversizeUnit:
		return "oversize_unit"
	case ReasonUnterminatedFrame:
		return "unterminated_frame"
	case ReasonDanglingEscape:
		return "dangling_escape"
	case ReasonSequenceGap:
		return "sequence_gap"
	default:
		return ""
	}
}

// Record is the atomic unit flowing through the pipeline.
//
// Time is the arrival timestamp, assigned the moment the splitter recognizes
// a complete unit, before any decode work, so ordering survives decode
// latency. Seq is assigned by the acquisition loop and is strictly
// increasing and contiguous within a session.
type Record struct {
	Seq     uint64
	Time    time.Time
	Elapsed time.Duration // since the session's first byte watch started

	Kind    Kind
	Text    string        // KindText, KindSent
	Message defmt.Message // KindDecoded
	Raw     []byte        // KindRaw, KindDecodeError: the original unit bytes
	Reason  DecodeReason  // KindDecodeError
	Note    string        // KindDecodeError: human-readable detail
}

// reasonFor maps splitter and decoder errors onto record reasons.
func reasonFor(err error) DecodeReason {
	switch {
	case errors.Is(err, framing.ErrOversizeUnit):
		return ReasonOversizeUnit
	case errors.Is(err, framing.ErrUnterminatedFrame):
		return ReasonUnterminatedFrame
	case errors.Is(err, framing.ErrDanglingEscape):
		return ReasonDanglingEscape
	case errors.Is(err, defmt.ErrNoTable):
		return ReasonNoTable
	case errors.Is(err, defmt.ErrUnknownIndex):
		return ReasonUnknownDiscriminator
	case errors.Is(err, defmt.ErrTruncated):
		return ReasonTruncatedArguments
	case errors.Is(err, defmt.ErrBadArgument):
		return ReasonArgumentTypeMismatch
	default:
		return ReasonNone
	}
}
