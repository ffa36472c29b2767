// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/serimon/serimon/pkg/defmt"
)

func TestCSVLogger_RowsPerKind(t *testing.T) {
	store := NewStore(0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.Push(Record{
		Seq: 1, Time: base, Elapsed: 10 * time.Millisecond,
		Kind: KindText, Text: "hello",
	})
	store.Push(Record{
		Seq: 2, Time: base.Add(time.Second), Elapsed: 1010 * time.Millisecond,
		Kind: KindDecoded,
		Message: defmt.Message{
			Level: defmt.LevelWarn, Module: "ctl", Text: "rpm 1500",
		},
	})
	store.Push(Record{
		Seq: 3, Time: base.Add(2 * time.Second), Elapsed: 2 * time.Second,
		Kind: KindDecodeError, Reason: ReasonUnknownDiscriminator,
		Raw: []byte{0x09, 0x01}, Note: "defmt: unknown frame index: 0x9",
	})
	store.Push(Record{
		Seq: 4, Time: base.Add(3 * time.Second), Elapsed: 3 * time.Second,
		Kind: KindSent, Text: "reset",
	})

	var buf bytes.Buffer
	logger := NewCSVLogger(&buf, store, quietLogger())
	n, err := logger.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n != 4 {
		t.Fatalf("flushed %d records, want 4", n)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back csv: %v", err)
	}
	if len(rows) != 5 { // header + 4 records
		t.Fatalf("got %d rows", len(rows))
	}

	header := rows[0]
	if header[0] != "timestamp" || header[8] != "error" {
		t.Errorf("header: %v", header)
	}

	text := rows[1]
	if text[2] != "1" || text[3] != "text" || text[6] != "hello" {
		t.Errorf("text row: %v", text)
	}

	decoded := rows[2]
	if decoded[4] != "WARN" || decoded[5] != "ctl" || decoded[6] != "rpm 1500" {
		t.Errorf("decoded row: %v", decoded)
	}

	decodeErr := rows[3]
	if decodeErr[7] != "0901" || decodeErr[8] != "unknown_discriminator" {
		t.Errorf("error row: %v", decodeErr)
	}

	sent := rows[4]
	if sent[3] != "sent" || sent[6] != "reset" {
		t.Errorf("sent row: %v", sent)
	}
}

func TestCSVLogger_FlushDrainsSpoolOnce(t *testing.T) {
	store := NewStore(0)
	store.Push(rec(1, "a"))

	var buf bytes.Buffer
	logger := NewCSVLogger(&buf, store, quietLogger())

	if n, _ := logger.Flush(); n != 1 {
		t.Fatalf("first flush: %d", n)
	}
	if n, _ := logger.Flush(); n != 0 {
		t.Errorf("second flush rewrote records: %d", n)
	}
}

func TestCSVLogger_RunFinalFlushOnCancel(t *testing.T) {
	store := NewStore(0)
	var buf bytes.Buffer
	logger := NewCSVLogger(&buf, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- logger.Run(ctx, time.Hour) }()

	// Pushed after Run starts, flushed only by the final cancel flush
	// because the interval never fires.
	store.Push(rec(1, "tail"))
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][6] != "tail" {
		t.Errorf("final flush missing: %v", rows)
	}
}
