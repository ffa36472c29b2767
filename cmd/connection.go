// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/serimon/serimon/pkg/capture"
	"github.com/serimon/serimon/pkg/defmt"
	"github.com/serimon/serimon/pkg/transport"
)

// getPassword retrieves the WebSocket password from the environment or
// prompts the user without echo.
func getPassword() (string, error) {
	if pw := os.Getenv("SERIMON_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fall back to echoed input when no terminal is attached.
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// buildDialer turns the connection flags into a dial function plus a
// human-readable description of the endpoint. Credentials are resolved
// eagerly so the prompt happens before the session starts.
func buildDialer() (func() (transport.Conn, error), string, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = getPassword()
			if err != nil {
				return nil, "", err
			}
		}

		url, username, skipVerify := cfg.URL, cfg.Username, cfg.NoSSLVerify
		dial := func() (transport.Conn, error) {
			return transport.OpenWebSocket(url, username, password, skipVerify)
		}
		return dial, fmt.Sprintf("WebSocket: %s", cfg.URL), nil
	}

	if cfg.Port != "" {
		sc := transport.SerialConfig{
			Port:     cfg.Port,
			BaudRate: cfg.Baud,
			DataBits: cfg.DataBits,
			Parity:   cfg.Parity,
			StopBits: cfg.StopBits,
			RTSCTS:   cfg.RTSCTS,
		}
		dial := func() (transport.Conn, error) {
			return transport.OpenSerial(sc)
		}
		return dial, fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// loadSymbolTable loads the defmt symbol table from --elf, or returns nil
// when no image was given.
func loadSymbolTable() (*defmt.Table, error) {
	if cfg.ELFPath == "" {
		return nil, nil
	}
	image, err := os.ReadFile(cfg.ELFPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", cfg.ELFPath, err)
	}
	table, err := defmt.Load(image)
	if err != nil {
		return nil, fmt.Errorf("loading symbol table from %s: %w", cfg.ELFPath, err)
	}
	return table, nil
}

// sessionConfig assembles a capture session from the resolved settings.
// The returned string describes the endpoint for display.
func sessionConfig(log logrus.FieldLogger) (capture.Config, string, error) {
	dial, desc, err := buildDialer()
	if err != nil {
		return capture.Config{}, "", err
	}

	table, err := loadSymbolTable()
	if err != nil {
		return capture.Config{}, "", err
	}

	mode := capture.ModeText
	switch {
	case cfg.Raw:
		mode = capture.ModeBinary
		if table != nil {
			log.Warn("--elf given with --raw: frames are kept raw, symbol table is unused")
		}
	case cfg.Binary:
		mode = capture.ModeBinary
		if table == nil {
			// Frames still arrive, they just cannot be decoded.
			log.Warn("binary mode without --elf: frames will be recorded as decode errors")
		}
	default:
		if table != nil {
			log.Warn("--elf given without --binary: symbol table is unused in text mode")
		}
	}

	return capture.Config{
		Dial:        dial,
		Mode:        mode,
		Table:       table,
		RawFrames:   cfg.Raw,
		ReadTimeout: cfg.ReadTimeout,
		MaxUnitSize: cfg.MaxUnitSize,
		Logger:      log,
	}, desc, nil
}
