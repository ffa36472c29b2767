// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package defmt

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Decode reconstructs the log message carried by one binary frame.
//
// A frame is a varint discriminator followed by argument bytes laid out per
// the table entry's declared types. Decode is deterministic: the same frame
// and table always produce the same message. It never panics on malformed
// input; every failure mode maps to one of the package's decode errors.
func Decode(frame []byte, table *Table) (Message, error) {
	if table == nil {
		return Message{}, ErrNoTable
	}

	index, n := binary.Uvarint(frame)
	if n == 0 {
		return Message{}, fmt.Errorf("%w: empty frame", ErrTruncated)
	}
	if n < 0 {
		return Message{}, fmt.Errorf("%w: discriminator varint overflows", ErrBadArgument)
	}

	entry, ok := table.Entry(index)
	if !ok {
		return Message{}, fmt.Errorf("%w: 0x%x", ErrUnknownIndex, index)
	}

	values, err := readArgs(frame[n:], entry.compiled.args)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Index:  index,
		Level:  entry.Level,
		Module: entry.Module,
		Text:   render(entry.compiled.segs, values),
	}, nil
}

// readArgs consumes the argument bytes for each declared type in order.
// Leftover bytes after the last argument are a firmware/table mismatch and
// are reported rather than ignored.
func readArgs(data []byte, types []ArgType) ([]string, error) {
	values := make([]string, len(types))

	for i, typ := range types {
		var v string
		var n int
		var err error

		switch typ {
		case TypeU8, TypeU16, TypeU32, TypeU64:
			var u uint64
			u, n, err = readUint(data, intWidth(typ))
			v = strconv.FormatUint(u, 10)
		case TypeI8, TypeI16, TypeI32, TypeI64:
			var u uint64
			width := intWidth(typ)
			u, n, err = readUint(data, width)
			v = strconv.FormatInt(signExtend(u, width), 10)
		case TypeF32:
			var u uint64
			u, n, err = readUint(data, 4)
			v = strconv.FormatFloat(float64(math.Float32frombits(uint32(u))), 'g', -1, 32)
		case TypeF64:
			var u uint64
			u, n, err = readUint(data, 8)
			v = strconv.FormatFloat(math.Float64frombits(u), 'g', -1, 64)
		case TypeBool:
			v, n, err = readBool(data)
		case TypeStr:
			v, n, err = readStr(data)
		case TypeBytes:
			var raw []byte
			raw, n, err = readPrefixed(data)
			v = fmt.Sprintf("[% x]", raw)
		default:
			err = fmt.Errorf("%w: unhandled argument type %d", ErrBadArgument, typ)
		}

		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
		data = data[n:]
	}

	if len(data) > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after last argument",
			ErrBadArgument, len(data))
	}

	return values, nil
}

func intWidth(typ ArgType) int {
	switch typ {
	case TypeU8, TypeI8:
		return 1
	case TypeU16, TypeI16:
		return 2
	case TypeU32, TypeI32:
		return 4
	default:
		return 8
	}
}

// readUint reads a little-endian unsigned integer of the given byte width.
func readUint(data []byte, width int) (uint64, int, error) {
	if len(data) < width {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, width, len(data))
	}
	var u uint64
	for i := 0; i < width; i++ {
		u |= uint64(data[i]) << (8 * i)
	}
	return u, width, nil
}

func signExtend(u uint64, width int) int64 {
	shift := 64 - uint(width)*8
	return int64(u<<shift) >> shift
}

func readBool(data []byte) (string, int, error) {
	if len(data) < 1 {
		return "", 0, fmt.Errorf("%w: need 1 byte, have 0", ErrTruncated)
	}
	switch data[0] {
	case 0:
		return "false", 1, nil
	case 1:
		return "true", 1, nil
	default:
		return "", 0, fmt.Errorf("%w: bool byte 0x%02x", ErrBadArgument, data[0])
	}
}

// readPrefixed reads a varint-length-prefixed byte slice.
func readPrefixed(data []byte) ([]byte, int, error) {
	length, n := binary.Uvarint(data)
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: missing length prefix", ErrTruncated)
	}
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: length varint overflows", ErrBadArgument)
	}
	rest := data[n:]
	if uint64(len(rest)) < length {
		return nil, 0, fmt.Errorf("%w: declared %d bytes, have %d", ErrTruncated, length, len(rest))
	}
	return rest[:length], n + int(length), nil
}

func readStr(data []byte) (string, int, error) {
	raw, n, err := readPrefixed(data)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(raw) {
		return "", 0, fmt.Errorf("%w: string is not valid UTF-8", ErrBadArgument)
	}
	return string(raw), n, nil
}

// render interpolates decoded argument values into the compiled segments.
func render(segs []segment, values []string) string {
	var b strings.Builder
	for _, seg := range segs {
		if seg.arg < 0 {
			b.WriteString(seg.literal)
		} else if seg.arg < len(values) {
			b.WriteString(values[seg.arg])
		}
	}
	return b.String()
}
