// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/serimon/serimon/pkg/capture"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI with scrolling records, plotting, and a send box",
	Long: `Watch the decoded stream in a full-screen TUI: a scrolling record log,
a time-series plot of the first numeric value found in each record, session
statistics, and an input box for sending commands to the device.

Keys:
  q / ctrl+c  quit
  space       pause or resume the display (capture continues)
  c           clear the display
  s           focus the send box (enter sends, esc cancels)`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal; route pipeline diagnostics nowhere.
	log := logrus.New()
	log.SetOutput(io.Discard)

	sc, connInfo, err := sessionConfig(log)
	if err != nil {
		return err
	}

	store := capture.NewStore(cfg.RingCapacity)
	sess := capture.NewSession(sc, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newMonitorModel(sess, store, connInfo, cfg.Window, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		err := sess.Run(ctx)
		p.Send(sessionDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return err
	}
	return sess.Err()
}
