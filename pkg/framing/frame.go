// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package framing

// FrameSplitter segments a binary stream into marker-delimited frames.
// A frame is FrameStart, a byte-stuffed payload, FrameEnd. The emitted unit
// carries the unstuffed payload; framing and escape bytes are removed.
//
// Bytes seen while hunting for a start marker are skipped, not emitted; the
// Skipped counter makes the sync loss observable to the caller.
type FrameSplitter struct {
	cfg     Config
	buf     []byte
	inFrame bool
	escaped bool
	skipped uint64
}

// NewFrameSplitter creates a binary-mode splitter.
func NewFrameSplitter(cfg Config) *FrameSplitter {
	return &FrameSplitter{
		cfg: cfg,
		buf: make([]byte, 0, 256),
	}
}

// Feed consumes raw bytes and returns the frames they complete.
func (s *FrameSplitter) Feed(p []byte) []Unit {
	var units []Unit
	max := s.cfg.maxUnitSize()

	for _, b := range p {
		if !s.inFrame {
			if b == FrameStart {
				s.begin()
			} else {
				s.skipped++
			}
			continue
		}

		if s.escaped {
			s.escaped = false
			s.buf = append(s.buf, b^EscXor)
			if len(s.buf) >= max {
				units = append(units, s.fault(ErrOversizeUnit))
			}
			continue
		}

		switch b {
		case Esc:
			s.escaped = true

		case FrameStart:
			// Start marker mid-frame: the previous frame lost its end
			// marker. Surface what was held and resync on this marker.
			units = append(units, s.fault(ErrUnterminatedFrame))
			s.begin()

		case FrameEnd:
			units = append(units, Unit{Bytes: s.take()})
			s.inFrame = false

		default:
			s.buf = append(s.buf, b)
			if len(s.buf) >= max {
				units = append(units, s.fault(ErrOversizeUnit))
			}
		}
	}

	return units
}

// Flush surfaces a partial frame held at connection close.
func (s *FrameSplitter) Flush() []Unit {
	if !s.inFrame {
		return nil
	}
	err := ErrUnterminatedFrame
	if s.escaped {
		err = ErrDanglingEscape
	}
	return []Unit{s.fault(err)}
}

// Skipped reports how many out-of-frame bytes have been discarded while
// hunting for a start marker.
func (s *FrameSplitter) Skipped() uint64 {
	return s.skipped
}

func (s *FrameSplitter) begin() {
	s.inFrame = true
	s.escaped = false
	s.buf = s.buf[:0]
}

func (s *FrameSplitter) fault(err error) Unit {
	u := Unit{Bytes: s.take(), Err: err}
	s.inFrame = false
	s.escaped = false
	return u
}

func (s *FrameSplitter) take() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	s.buf = s.buf[:0]
	return out
}
