// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package framing

// LineSplitter segments a text stream into lines. It accepts LF, CRLF and
// lone CR terminators and strips them from the emitted unit. An unterminated
// tail is held until more bytes arrive or Flush is called.
type LineSplitter struct {
	cfg    Config
	buf    []byte
	skipLF bool // a CR just ended a line; swallow an immediately following LF
}

// NewLineSplitter creates a text-mode splitter.
func NewLineSplitter(cfg Config) *LineSplitter {
	return &LineSplitter{
		cfg: cfg,
		buf: make([]byte, 0, 256),
	}
}

// Feed consumes raw bytes and returns the complete lines they finish.
func (s *LineSplitter) Feed(p []byte) []Unit {
	var units []Unit
	max := s.cfg.maxUnitSize()

	for _, b := range p {
		if s.skipLF {
			s.skipLF = false
			if b == '\n' {
				continue
			}
		}

		switch b {
		case '\n':
			units = append(units, Unit{Bytes: s.take()})
		case '\r':
			units = append(units, Unit{Bytes: s.take()})
			s.skipLF = true
		default:
			s.buf = append(s.buf, b)
			if len(s.buf) >= max {
				units = append(units, Unit{Bytes: s.take(), Err: ErrOversizeUnit})
			}
		}
	}

	return units
}

// Flush emits the held tail as a final unit, even though it never saw a
// terminator. Returns nil if nothing is buffered.
func (s *LineSplitter) Flush() []Unit {
	s.skipLF = false
	if len(s.buf) == 0 {
		return nil
	}
	return []Unit{{Bytes: s.take()}}
}

// take hands out the buffered bytes and resets the accumulator.
func (s *LineSplitter) take() []byte {
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	s.buf = s.buf[:0]
	return out
}
