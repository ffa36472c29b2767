// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/serimon/serimon/pkg/capture"
)

var recordOutput string

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the decoded stream to a CSV file",
	Long: `Capture every record to a CSV file, including decode errors and the
raw bytes that caused them, so nothing the device sent is lost. Records are
buffered and flushed on an interval (--csv-flush-interval).

The output file defaults to serimon-<timestamp>.csv in the working directory.`,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "CSV output file")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	log := newLogger()

	sc, connInfo, err := sessionConfig(log)
	if err != nil {
		return err
	}

	path := recordOutput
	if path == "" {
		path = fmt.Sprintf("serimon-%s.csv", time.Now().Format("20060102-150405"))
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	store := capture.NewStore(cfg.RingCapacity)
	sess := capture.NewSession(sc, store)
	logger := capture.NewCSVLogger(f, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("connection", connInfo).WithField("output", path).Info("recording")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx)
	})
	interval := cfg.CSVFlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	g.Go(func() error {
		return logger.Run(gctx, interval)
	})

	err = g.Wait()

	// Disconnect can spool a final partial unit after the logger's last
	// flush; drain once more before closing the file.
	if _, ferr := logger.Flush(); ferr != nil && err == nil {
		err = ferr
	}

	stats := sess.Stats()
	stats.CalculateRates()
	fmt.Fprintln(os.Stderr, stats.String())

	if err != nil {
		return err
	}
	log.WithField("output", path).Info("recording complete")
	return nil
}
