// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package defmt

import (
	"bytes"
	"debug/elf"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SupportedWireVersion is the only defmt wire format this decoder accepts.
// Images built against any other version are rejected outright rather than
// decoded on a best-effort basis.
const SupportedWireVersion = "4"

// versionPrefix is the name of the .defmt symbol that carries the wire
// format version, e.g. "_defmt_version_ = 4".
const versionPrefix = "_defmt_version_ = "

// Entry is one interned format descriptor keyed by frame discriminator.
type Entry struct {
	Format string
	Level  Level
	Module string

	compiled compiledFormat
}

// Table is the immutable discriminator → format descriptor mapping extracted
// from a firmware image.
type Table struct {
	entries map[uint64]*Entry
	version string
}

// symbolTag is the JSON payload defmt encodes into each .defmt symbol name.
type symbolTag struct {
	Tag           string `json:"tag"`
	Data          string `json:"data"`
	Package       string `json:"package"`
	Disambiguator string `json:"disambiguator"`
	CrateName     string `json:"crate_name"`
}

var tagLevels = map[string]Level{
	"defmt_trace":   LevelTrace,
	"defmt_debug":   LevelDebug,
	"defmt_info":    LevelInfo,
	"defmt_warn":    LevelWarn,
	"defmt_error":   LevelError,
	"defmt_println": LevelNone,
}

// Load parses a firmware image and extracts its defmt symbol table.
//
// It fails with ErrNoMetadata when the image is not an ELF or has no .defmt
// section, and with ErrMalformed when the section exists but cannot be fully
// understood (bad symbol JSON, missing or unsupported wire version, duplicate
// discriminators). On success the returned table is complete and immutable.
func Load(image []byte) (*Table, error) {
	f, err := elf.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("%w: not an ELF image", ErrNoMetadata)
	}
	defer f.Close()

	sect := f.Section(".defmt")
	if sect == nil {
		return nil, ErrNoMetadata
	}
	sectIndex := elf.SectionIndex(0)
	for i, s := range f.Sections {
		if s == sect {
			sectIndex = elf.SectionIndex(i)
			break
		}
	}

	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, fmt.Errorf("%w: image has no symbol table", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: reading symbols: %v", ErrMalformed, err)
	}

	entries := make(map[uint64]*Entry)
	version := ""

	for _, sym := range syms {
		if sym.Section != sectIndex {
			continue
		}

		if strings.HasPrefix(sym.Name, versionPrefix) {
			version = strings.TrimPrefix(sym.Name, versionPrefix)
			continue
		}

		// Interned format descriptors are JSON-named symbols; anything
		// else in the section (linker artifacts) is not ours to judge.
		if !strings.HasPrefix(sym.Name, "{") {
			continue
		}

		var tag symbolTag
		if err := json.Unmarshal([]byte(sym.Name), &tag); err != nil {
			return nil, fmt.Errorf("%w: bad symbol tag %q: %v", ErrMalformed, sym.Name, err)
		}

		level, ok := tagLevels[tag.Tag]
		if !ok {
			// Non-log defmt symbols (interned strings, bitflags) share
			// the section but are not frame discriminators.
			continue
		}

		compiled, err := compileFormat(tag.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: format %q: %v", ErrMalformed, tag.Data, err)
		}

		if _, dup := entries[sym.Value]; dup {
			return nil, fmt.Errorf("%w: duplicate discriminator 0x%x", ErrMalformed, sym.Value)
		}
		entries[sym.Value] = &Entry{
			Format:   tag.Data,
			Level:    level,
			Module:   tag.CrateName,
			compiled: compiled,
		}
	}

	if version == "" {
		return nil, fmt.Errorf("%w: missing wire version symbol", ErrMalformed)
	}
	if version != SupportedWireVersion {
		return nil, fmt.Errorf("%w: unsupported wire version %q (want %s)",
			ErrMalformed, version, SupportedWireVersion)
	}

	return &Table{entries: entries, version: version}, nil
}

// NewTable builds a table directly from entries. It serves test rigs and
// replay tools that have no ELF at hand; Load is the production path.
func NewTable(entries map[uint64]Entry) (*Table, error) {
	t := &Table{
		entries: make(map[uint64]*Entry, len(entries)),
		version: SupportedWireVersion,
	}
	for idx, e := range entries {
		compiled, err := compileFormat(e.Format)
		if err != nil {
			return nil, fmt.Errorf("%w: format %q: %v", ErrMalformed, e.Format, err)
		}
		e.compiled = compiled
		entry := e
		t.entries[idx] = &entry
	}
	return t, nil
}

// Entry looks up the format descriptor for a discriminator.
func (t *Table) Entry(index uint64) (*Entry, bool) {
	e, ok := t.entries[index]
	return e, ok
}

// Len returns the number of format descriptors in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Version returns the wire format version the image was built against.
func (t *Table) Version() string {
	return t.version
}

// Indices returns all discriminators in ascending order.
func (t *Table) Indices() []uint64 {
	out := make([]uint64, 0, len(t.entries))
	for idx := range t.entries {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
