// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConfig is the immutable per-session serial port configuration.
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string // none, odd, even, mark, space
	StopBits string // 1, 1.5, 2
	RTSCTS   bool   // hardware flow control via RTS/CTS lines
}

// serialConn wraps a serial port as a Conn.
type serialConn struct {
	port serial.Port
}

// OpenSerial opens a serial port with the given configuration.
func OpenSerial(cfg SerialConfig) (Conn, error) {
	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}

	dataBits := cfg.DataBits
	if dataBits == 0 {
		dataBits = 8
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", cfg.Port, err)
	}

	if cfg.RTSCTS {
		// go.bug.st/serial has no portable flow-control mode knob; assert
		// RTS ourselves so the device is clear to send.
		if err := port.SetRTS(true); err != nil {
			port.Close()
			return nil, fmt.Errorf("asserting RTS on %s: %w", cfg.Port, err)
		}
	}

	return &serialConn{port: port}, nil
}

// ListPorts enumerates serial port device names present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

func (c *serialConn) Read(p []byte) (int, error)  { return c.port.Read(p) }
func (c *serialConn) Write(p []byte) (int, error) { return c.port.Write(p) }
func (c *serialConn) Close() error                { return c.port.Close() }

func (c *serialConn) SetReadTimeout(d time.Duration) error {
	return c.port.SetReadTimeout(d)
}

func parseParity(s string) (serial.Parity, error) {
	switch s {
	case "", "none":
		return serial.NoParity, nil
	case "odd":
		return serial.OddParity, nil
	case "even":
		return serial.EvenParity, nil
	case "mark":
		return serial.MarkParity, nil
	case "space":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("unknown parity %q", s)
	}
}

func parseStopBits(s string) (serial.StopBits, error) {
	switch s {
	case "", "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("unknown stop bits %q", s)
	}
}
