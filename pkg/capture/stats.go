// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"fmt"
	"time"
)

// Stats tracks session counters and rates for the status display.
type Stats struct {
	StartTime time.Time

	BytesRead    uint64
	TotalRecords uint64

	TextRecords    uint64
	DecodedRecords uint64
	RawRecords     uint64
	SentRecords    uint64
	DecodeErrors   uint64

	// DecodeErrors breakdown
	NoTable              uint64
	UnknownDiscriminator uint64
	TruncatedArguments   uint64
	ArgumentTypeMismatch uint64
	ProtocolFaults       uint64 // oversize units, lost frame sync

	// Calculated by Rates
	RecordRate float64 // records/sec
	ErrorRate  float64 // errors/sec
}

func (s *Stats) update(r Record) {
	s.TotalRecords++

	switch r.Kind {
	case KindText:
		s.TextRecords++
	case KindDecoded:
		s.DecodedRecords++
	case KindRaw:
		s.RawRecords++
	case KindSent:
		s.SentRecords++
	case KindDecodeError:
		s.DecodeErrors++
		switch r.Reason {
		case ReasonNoTable:
			s.NoTable++
		case ReasonUnknownDiscriminator:
			s.UnknownDiscriminator++
		case ReasonTruncatedArguments:
			s.TruncatedArguments++
		case ReasonArgumentTypeMismatch:
			s.ArgumentTypeMismatch++
		case ReasonOversizeUnit, ReasonUnterminatedFrame, ReasonDanglingEscape:
			s.ProtocolFaults++
		}
	}
}

// CalculateRates refreshes the per-second record and error rates.
func (s *Stats) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RecordRate = float64(s.TotalRecords) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// String returns a formatted summary for the plain-text consumers.
func (s *Stats) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Session (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Read:      %8d\n", s.BytesRead)
	result += fmt.Sprintf("Total Records:   %8d\n", s.TotalRecords)

	if s.TextRecords > 0 {
		result += fmt.Sprintf("Text:            %8d\n", s.TextRecords)
	}
	if s.DecodedRecords > 0 {
		result += fmt.Sprintf("Decoded:         %8d\n", s.DecodedRecords)
	}
	if s.SentRecords > 0 {
		result += fmt.Sprintf("Sent:            %8d\n", s.SentRecords)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
		if s.NoTable > 0 {
			result += fmt.Sprintf("  No Table:          %5d\n", s.NoTable)
		}
		if s.UnknownDiscriminator > 0 {
			result += fmt.Sprintf("  Unknown Index:     %5d\n", s.UnknownDiscriminator)
		}
		if s.TruncatedArguments > 0 {
			result += fmt.Sprintf("  Truncated Args:    %5d\n", s.TruncatedArguments)
		}
		if s.ArgumentTypeMismatch > 0 {
			result += fmt.Sprintf("  Type Mismatch:     %5d\n", s.ArgumentTypeMismatch)
		}
		if s.ProtocolFaults > 0 {
			result += fmt.Sprintf("  Protocol Faults:   %5d\n", s.ProtocolFaults)
		}
	}

	result += fmt.Sprintf("Record Rate:     %8.1f rec/sec\n", s.RecordRate)
	result += fmt.Sprintf("Error Rate:      %8.1f err/sec\n", s.ErrorRate)
	result += "==============================\n"

	return result
}
