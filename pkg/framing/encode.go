// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package framing

// StuffFrame wraps a payload in frame markers, escaping any payload byte
// that collides with a marker. It is the exact inverse of what FrameSplitter
// emits and exists for test rigs and replay tools; live firmware does its
// own stuffing on the wire.
func StuffFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, FrameStart)
	for _, b := range payload {
		if b == FrameStart || b == FrameEnd || b == Esc {
			out = append(out, Esc, b^EscXor)
		} else {
			out = append(out, b)
		}
	}
	return append(out, FrameEnd)
}
