// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/serimon/serimon/pkg/defmt"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <firmware.elf>",
	Short: "Dump the defmt symbol table embedded in a firmware image",
	Long: `Load the defmt symbol table from a firmware ELF image and print every
interned format entry with its discriminator, severity level, and module.
Useful for verifying that an image matches the firmware on the device before
starting a binary capture.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	table, err := defmt.Load(image)
	if err != nil {
		return fmt.Errorf("loading symbol table from %s: %w", args[0], err)
	}

	fmt.Printf("Wire format version: %s\n", table.Version())
	fmt.Printf("Entries: %d\n\n", table.Len())

	for _, idx := range table.Indices() {
		entry, _ := table.Entry(idx)
		level := entry.Level.String()
		if level == "" {
			level = "PRINT"
		}
		if entry.Module != "" {
			fmt.Printf("%6d  %-5s  %s  %q\n", idx, level, entry.Module, entry.Format)
		} else {
			fmt.Printf("%6d  %-5s  %q\n", idx, level, entry.Format)
		}
	}
	return nil
}
