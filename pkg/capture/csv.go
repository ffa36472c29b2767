// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// csvHeader is the column layout, one row per record.
var csvHeader = []string{
	"timestamp", "elapsed_ms", "sequence", "kind",
	"level", "module", "message", "raw_hex", "error",
}

// CSVLogger drains the store's spool into CSV rows. The spool is append-only
// and unaffected by ring eviction, so the written file covers the complete
// session regardless of display backpressure.
type CSVLogger struct {
	w     *csv.Writer
	store *Store
	log   logrus.FieldLogger

	wroteHeader bool
}

// NewCSVLogger creates a logger writing to w. Nothing is written until the
// first Flush.
func NewCSVLogger(w io.Writer, store *Store, log logrus.FieldLogger) *CSVLogger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CSVLogger{
		w:     csv.NewWriter(w),
		store: store,
		log:   log,
	}
}

// Flush drains the spool and appends one row per record. It returns the
// number of records written.
func (l *CSVLogger) Flush() (int, error) {
	records := l.store.DrainSpool()
	if len(records) == 0 {
		return 0, nil
	}

	if !l.wroteHeader {
		if err := l.w.Write(csvHeader); err != nil {
			return 0, fmt.Errorf("writing csv header: %w", err)
		}
		l.wroteHeader = true
	}

	for i, r := range records {
		if err := l.w.Write(csvRow(r)); err != nil {
			return i, fmt.Errorf("writing csv row: %w", err)
		}
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return len(records), fmt.Errorf("flushing csv: %w", err)
	}
	return len(records), nil
}

// Run flushes on the given interval until ctx is canceled, then performs a
// final flush so the tail of the session is not lost.
func (l *CSVLogger) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if _, err := l.Flush(); err != nil {
				return err
			}
			return nil
		case <-ticker.C:
			n, err := l.Flush()
			if err != nil {
				return err
			}
			if n > 0 {
				l.log.WithField("records", n).Debug("csv flush")
			}
		}
	}
}

func csvRow(r Record) []string {
	row := []string{
		r.Time.Format(time.RFC3339Nano),
		strconv.FormatInt(r.Elapsed.Milliseconds(), 10),
		strconv.FormatUint(r.Seq, 10),
		r.Kind.String(),
		"", // level
		"", // module
		"", // message
		"", // raw_hex
		"", // error
	}

	switch r.Kind {
	case KindText, KindSent:
		row[6] = r.Text
	case KindDecoded:
		row[4] = r.Message.Level.String()
		row[5] = r.Message.Module
		row[6] = r.Message.Text
	case KindRaw:
		row[7] = fmt.Sprintf("%x", r.Raw)
	case KindDecodeError:
		row[6] = r.Note
		row[7] = fmt.Sprintf("%x", r.Raw)
		row[8] = r.Reason.String()
	}

	return row
}
