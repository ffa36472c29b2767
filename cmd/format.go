// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/serimon/serimon/pkg/capture"
	"github.com/serimon/serimon/pkg/defmt"
)

// ANSI colors for terminal output
const (
	colorRed    = "\033[1;31m"
	colorYellow = "\033[1;33m"
	colorCyan   = "\033[1;36m"
	colorDim    = "\033[2m"
	colorReset  = "\033[0m"
)

// newLogger builds the stderr logger shared by all subcommands, so pipeline
// diagnostics never interleave with record output on stdout.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return log
}

// formatRecord renders one record as a terminal line, without a trailing
// newline. Colors are applied only when color is true.
func formatRecord(r capture.Record, color bool) string {
	ts := r.Time.Format("15:04:05.000")

	paint := func(c, s string) string {
		if !color {
			return s
		}
		return c + s + colorReset
	}

	switch r.Kind {
	case capture.KindText:
		return fmt.Sprintf("[%s] %s", ts, r.Text)

	case capture.KindDecoded:
		level := r.Message.Level.String()
		if level == "" {
			level = "PRINT"
		}
		switch {
		case r.Message.Level >= defmt.LevelError:
			level = paint(colorRed, level)
		case r.Message.Level >= defmt.LevelWarn:
			level = paint(colorYellow, level)
		}
		if r.Message.Module != "" {
			return fmt.Sprintf("[%s] %-5s %s: %s", ts, level, r.Message.Module, r.Message.Text)
		}
		return fmt.Sprintf("[%s] %-5s %s", ts, level, r.Message.Text)

	case capture.KindSent:
		return paint(colorCyan, fmt.Sprintf("[%s] >> %s", ts, r.Text))

	case capture.KindRaw:
		return fmt.Sprintf("[%s] raw [% x]", ts, r.Raw)

	case capture.KindDecodeError:
		s := fmt.Sprintf("[%s] decode error (%s)", ts, r.Reason)
		if r.Note != "" {
			s += ": " + r.Note
		}
		if len(r.Raw) > 0 {
			s += fmt.Sprintf(" [% x]", r.Raw)
		}
		return paint(colorRed, s)

	default:
		return fmt.Sprintf("[%s] %s", ts, r.Text)
	}
}
