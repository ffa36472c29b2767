// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/serimon/serimon/pkg/capture"
	"github.com/serimon/serimon/pkg/framing"
)

var cfgFile string

// settings is the resolved runtime configuration: defaults, then the config
// file, then SERIMON_* environment variables, then flags.
type settings struct {
	// Serial connection
	Port     string
	Baud     int
	DataBits int
	Parity   string
	StopBits string
	RTSCTS   bool

	// WebSocket connection
	URL         string
	Username    string
	NoSSLVerify bool

	// Decoding
	ELFPath string
	Binary  bool
	Raw     bool

	// Pipeline tuning
	RingCapacity     int
	MaxUnitSize      int
	ReadTimeout      time.Duration
	CSVFlushInterval time.Duration
	Window           int
}

var cfg settings

var rootCmd = &cobra.Command{
	Use:   "serimon",
	Short: "Serial monitor with text and defmt log decoding",
	Long: `Serimon attaches to a serial device and turns its byte stream into
timestamped records: plain text lines, or defmt-encoded log frames decoded
against the symbol table embedded in a firmware ELF image. Records can be
tailed to stdout, recorded to CSV, or watched live in a TUI with plotting.

Connection modes:
  Serial:    --port /dev/ttyACM0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Decoding modes:
  Text (default): newline-delimited lines pass through as-is.
  Binary:         --binary --elf firmware.elf decodes framed defmt logs.
  Raw:            --raw records framed binary payloads without decoding.

For WebSocket authentication, the password is read from the SERIMON_PASSWORD
environment variable, or prompted interactively if not set. A --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Assigned here rather than in the composite literal to avoid an
	// initialization cycle (loadSettings refers back to rootCmd).
	rootCmd.PersistentPreRunE = loadSettings

	pf := rootCmd.PersistentFlags()

	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/serimon/config.yml)")

	// Serial connection flags
	pf.StringP("port", "p", "", "Serial port device")
	pf.IntP("baud", "b", 115200, "Baud rate (serial only)")
	pf.Int("data-bits", 8, "Serial data bits (5-8)")
	pf.String("parity", "none", "Serial parity (none, odd, even, mark, space)")
	pf.String("stop-bits", "1", "Serial stop bits (1, 1.5, 2)")
	pf.Bool("flow", false, "Assert RTS for hardware flow control")

	// WebSocket connection flags
	pf.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	pf.String("username", "", "Username for HTTP Basic auth")
	pf.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Decoding flags
	pf.String("elf", "", "Firmware ELF image carrying the defmt symbol table")
	pf.Bool("binary", false, "Treat the stream as framed binary logs instead of text lines")
	pf.Bool("raw", false, "Record framed binary payloads without decoding them")

	// Pipeline tuning flags
	pf.Int("ring-capacity", capture.DefaultRingCapacity, "Records kept in memory for live display")
	pf.Int("max-unit-size", framing.DefaultMaxUnitSize, "Byte cap per line/frame before a protocol fault")
	pf.Duration("read-timeout", capture.DefaultReadTimeout, "Bounded read interval on the device")
	pf.Duration("csv-flush-interval", time.Second, "How often buffered records are flushed to CSV")
	pf.Int("window", 0, "Display window in records (0 = whole ring)")
}

// loadSettings resolves the configuration stack into cfg before any
// subcommand runs.
func loadSettings(*cobra.Command, []string) error {
	v := viper.New()
	v.SetEnvPrefix("SERIMON")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "serimon"))
		v.SetConfigName("config")
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			// A missing default config file is fine.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg = settings{
		Port:             v.GetString("port"),
		Baud:             v.GetInt("baud"),
		DataBits:         v.GetInt("data-bits"),
		Parity:           v.GetString("parity"),
		StopBits:         v.GetString("stop-bits"),
		RTSCTS:           v.GetBool("flow"),
		URL:              v.GetString("url"),
		Username:         v.GetString("username"),
		NoSSLVerify:      v.GetBool("no-ssl-verify"),
		ELFPath:          v.GetString("elf"),
		Binary:           v.GetBool("binary"),
		Raw:              v.GetBool("raw"),
		RingCapacity:     v.GetInt("ring-capacity"),
		MaxUnitSize:      v.GetInt("max-unit-size"),
		ReadTimeout:      v.GetDuration("read-timeout"),
		CSVFlushInterval: v.GetDuration("csv-flush-interval"),
		Window:           v.GetInt("window"),
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
