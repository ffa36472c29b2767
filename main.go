// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors
//
// Serimon - serial monitor with text and defmt log decoding.

package main

import (
	"os"

	"github.com/serimon/serimon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
