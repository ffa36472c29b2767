// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

// Package transport provides byte-stream connections for the capture
// pipeline: a local serial port, or a WebSocket bridge for serial ports
// exposed over the network.
package transport

import (
	"errors"
	"io"
	"time"
)

// ErrClosed is returned when reading from a connection that has been closed,
// locally or by the peer.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a byte-stream source/sink owned by exactly one acquisition loop.
//
// SetReadTimeout bounds a single Read so the loop can observe a stop request
// within one timeout interval; a timed-out Read returns (0, nil). Transports
// that cannot bound reads implement SetReadTimeout as a no-op and rely on
// Close to unblock a pending Read.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer

	SetReadTimeout(d time.Duration) error
}
