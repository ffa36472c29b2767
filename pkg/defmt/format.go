// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package defmt

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgType is the wire encoding of one format argument.
type ArgType int

// Supported argument types. Integers are little-endian; Str and Bytes are
// varint-length-prefixed. A bare {} placeholder defaults to I32.
const (
	TypeU8 ArgType = iota
	TypeU16
	TypeU32
	TypeU64
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeF32
	TypeF64
	TypeBool
	TypeStr
	TypeBytes
)

var typeNames = map[string]ArgType{
	"u8":   TypeU8,
	"u16":  TypeU16,
	"u32":  TypeU32,
	"u64":  TypeU64,
	"i8":   TypeI8,
	"i16":  TypeI16,
	"i32":  TypeI32,
	"i64":  TypeI64,
	"f32":  TypeF32,
	"f64":  TypeF64,
	"bool": TypeBool,
	"str":  TypeStr,
	"[u8]": TypeBytes,
}

// segment is one compiled piece of a format string: either a literal or a
// reference to a positional argument.
type segment struct {
	literal string
	arg     int // argument position; -1 for literals
}

// compiledFormat is a format string parsed once at table load so decode is a
// straight walk over segments.
type compiledFormat struct {
	segs []segment
	args []ArgType // indexed by position
}

// compileFormat parses a defmt format string. Placeholders are {}, {=type},
// {n} and {n=type}; {{ and }} are literal braces. Explicit positions may
// repeat as long as their declared types agree.
func compileFormat(format string) (compiledFormat, error) {
	var cf compiledFormat
	var lit strings.Builder

	// Types keyed by position; -1 marks "seen untyped", resolved to I32.
	declared := map[int]ArgType{}
	nextImplicit := 0
	maxPos := -1

	flushLit := func() {
		if lit.Len() > 0 {
			cf.segs = append(cf.segs, segment{literal: lit.String(), arg: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		switch c {
		case '{':
			if i+1 < len(format) && format[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return cf, fmt.Errorf("unterminated placeholder at byte %d", i)
			}
			spec := format[i+1 : i+end]
			i += end

			pos, typ, typed, err := parsePlaceholder(spec)
			if err != nil {
				return cf, err
			}
			if pos < 0 {
				pos = nextImplicit
				nextImplicit++
			}
			if prev, ok := declared[pos]; ok {
				if typed && prev != typ {
					return cf, fmt.Errorf("argument %d declared with conflicting types", pos)
				}
			} else if typed {
				declared[pos] = typ
			} else {
				declared[pos] = TypeI32
			}
			if pos > maxPos {
				maxPos = pos
			}

			flushLit()
			cf.segs = append(cf.segs, segment{arg: pos})

		case '}':
			if i+1 < len(format) && format[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return cf, fmt.Errorf("unmatched '}' at byte %d", i)

		default:
			lit.WriteByte(c)
		}
	}
	flushLit()

	cf.args = make([]ArgType, maxPos+1)
	for pos := 0; pos <= maxPos; pos++ {
		typ, ok := declared[pos]
		if !ok {
			return cf, fmt.Errorf("argument %d never referenced", pos)
		}
		cf.args[pos] = typ
	}

	return cf, nil
}

// parsePlaceholder splits the inside of a {...} placeholder into an optional
// position and an optional =type. Returns pos -1 when implicit.
func parsePlaceholder(spec string) (pos int, typ ArgType, typed bool, err error) {
	pos = -1

	posPart := spec
	if eq := strings.IndexByte(spec, '='); eq >= 0 {
		posPart = spec[:eq]
		name := spec[eq+1:]
		typ, typed = typeNames[name]
		if !typed {
			return 0, 0, false, fmt.Errorf("unknown argument type %q", name)
		}
	}

	if posPart != "" {
		n, perr := strconv.Atoi(posPart)
		if perr != nil || n < 0 {
			return 0, 0, false, fmt.Errorf("bad argument position %q", posPart)
		}
		pos = n
	}

	return pos, typ, typed, nil
}
