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
	"golang.org/x/term"

	"github.com/serimon/serimon/pkg/capture"
)

var tailNoColor bool

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Stream decoded records to stdout",
	Long: `Continuously print records as they arrive: text lines as-is, decoded
log frames with level and module, and decode errors with the raw bytes that
caused them.

Supports both serial and WebSocket connections.`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailNoColor, "no-color", false, "Disable ANSI colors")
	rootCmd.AddCommand(tailCmd)
}

func runTail(cmd *cobra.Command, args []string) error {
	log := newLogger()

	sc, connInfo, err := sessionConfig(log)
	if err != nil {
		return err
	}

	color := !tailNoColor && term.IsTerminal(int(os.Stdout.Fd()))

	store := capture.NewStore(cfg.RingCapacity)
	sess := capture.NewSession(sc, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Connection: %s\n", connInfo)
	fmt.Fprintf(os.Stderr, "Press Ctrl+C to exit\n\n")

	var cursor uint64
	printNew := func() {
		for _, r := range store.Since(cursor) {
			fmt.Println(formatRecord(r, color))
			cursor = r.Seq
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sess.Run(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				printNew()
			}
		}
	})

	err = g.Wait()
	// Disconnect flushes any final partial unit; print whatever is left.
	printNew()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "\nDisconnected")
	return nil
}
