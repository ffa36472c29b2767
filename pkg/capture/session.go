// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/serimon/serimon/pkg/defmt"
	"github.com/serimon/serimon/pkg/framing"
	"github.com/serimon/serimon/pkg/transport"
)

// Mode selects the wire format at connection time.
type Mode int

// Wire format modes.
const (
	ModeText   Mode = iota // newline-delimited text lines
	ModeBinary             // marker-delimited defmt frames
)

// State is the session's lifecycle state.
type State int

// Session states. Faulted is terminal: reconnection is a fresh session, not
// a resume.
const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateDisconnecting
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDisconnecting:
		return "disconnecting"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// DefaultReadTimeout bounds a single serial read so a stop request is
// observed within one interval.
const DefaultReadTimeout = 100 * time.Millisecond

// ErrNotStreaming is returned by Send when the session is not connected.
var ErrNotStreaming = errors.New("capture: session is not streaming")

// Config describes one capture session. It is fixed at session creation;
// changing the connection means creating a new session.
type Config struct {
	// Dial opens the byte-stream source. The session owns the returned
	// connection exclusively until it returns to Idle or faults.
	Dial func() (transport.Conn, error)

	// Mode selects the splitter/decoder pair.
	Mode Mode

	// Table decodes binary frames. May be nil in binary mode, in which
	// case every frame surfaces as a no-table decode error.
	Table *defmt.Table

	// RawFrames records binary frames as-is instead of decoding them,
	// for capturing devices whose frame payloads are not defmt. Only
	// meaningful in ModeBinary.
	RawFrames bool

	// ReadTimeout bounds one read; zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	// MaxUnitSize caps splitter accumulation; zero means the framing
	// package default.
	MaxUnitSize int

	// Logger receives connection lifecycle events. Nil means the logrus
	// standard logger.
	Logger logrus.FieldLogger
}

// Session is the acquisition loop: the only component that reads from the
// connection. It runs in its own goroutine (the caller's call to Run) and
// communicates with consumers exclusively through the Store.
type Session struct {
	cfg   Config
	store *Store
	log   logrus.FieldLogger

	mu    sync.Mutex
	state State
	err   error
	conn  transport.Conn
	seq   uint64
	t0    time.Time
	stats Stats
}

// NewSession creates a session that pushes into store. The store may be
// shared with any number of concurrent readers.
func NewSession(cfg Config, store *Store) *Session {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Session{
		cfg:   cfg,
		store: store,
		log:   log,
		state: StateIdle,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the connection fault that moved the session to Faulted.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stats returns a copy of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run executes the acquisition loop until ctx is canceled or the connection
// faults. It returns nil after a clean disconnect (held tail flushed, state
// Idle) and the underlying error after a fault (state Faulted).
//
// Run may be called once per session.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateConnecting)

	conn, err := s.cfg.Dial()
	if err != nil {
		err = fmt.Errorf("connecting: %w", err)
		s.fail(err)
		return err
	}

	timeout := s.cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := conn.SetReadTimeout(timeout); err != nil {
		conn.Close()
		err = fmt.Errorf("setting read timeout: %w", err)
		s.fail(err)
		return err
	}

	splitter := s.newSplitter()

	s.mu.Lock()
	s.conn = conn
	s.t0 = time.Now()
	s.stats = Stats{StartTime: s.t0}
	s.state = StateStreaming
	s.mu.Unlock()

	s.log.WithField("mode", s.modeName()).Info("session streaming")

	// Transports without bounded reads (websocket) unblock via Close.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return s.disconnect(conn, splitter)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.stats.BytesRead += uint64(n)
			s.mu.Unlock()

			for _, u := range splitter.Feed(buf[:n]) {
				s.push(s.recordUnit(u, time.Now()))
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				// The watcher closed the connection under us.
				return s.disconnect(nil, splitter)
			}
			err = fmt.Errorf("reading: %w", err)
			conn.Close()
			s.fail(err)
			return err
		}
		// n == 0 with nil error is a read timeout on an idle link: not an
		// error, no record, no sequence advance.
	}
}

// Send writes a command line to the device and records it in the session
// transcript. A CR LF terminator is appended, matching what line-oriented
// firmware consoles expect.
func (s *Session) Send(cmd string) error {
	s.mu.Lock()
	conn := s.conn
	streaming := s.state == StateStreaming
	s.mu.Unlock()

	if !streaming || conn == nil {
		return ErrNotStreaming
	}

	if _, err := conn.Write(append([]byte(cmd), '\r', '\n')); err != nil {
		return fmt.Errorf("writing command: %w", err)
	}

	s.push(Record{
		Time: time.Now(),
		Kind: KindSent,
		Text: cmd,
	})
	return nil
}

// disconnect performs the cooperative teardown: flush the splitter's held
// tail, close the connection, return to Idle.
func (s *Session) disconnect(conn transport.Conn, splitter framing.Splitter) error {
	s.setState(StateDisconnecting)

	for _, u := range splitter.Flush() {
		s.push(s.recordUnit(u, time.Now()))
	}
	if conn != nil {
		conn.Close()
	}

	s.mu.Lock()
	s.conn = nil
	s.state = StateIdle
	s.mu.Unlock()

	s.log.Info("session disconnected")
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.conn = nil
	s.state = StateFaulted
	s.mu.Unlock()

	s.log.WithError(err).Error("session faulted")
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) newSplitter() framing.Splitter {
	cfg := framing.Config{MaxUnitSize: s.cfg.MaxUnitSize}
	if s.cfg.Mode == ModeBinary {
		return framing.NewFrameSplitter(cfg)
	}
	return framing.NewLineSplitter(cfg)
}

func (s *Session) modeName() string {
	switch {
	case s.cfg.Mode == ModeBinary && s.cfg.RawFrames:
		return "raw"
	case s.cfg.Mode == ModeBinary:
		return "binary"
	default:
		return "text"
	}
}

// recordUnit turns one complete unit into a record. ts is the arrival time,
// captured when the unit completed, before decode work.
func (s *Session) recordUnit(u framing.Unit, ts time.Time) Record {
	rec := Record{Time: ts}

	if u.Err != nil {
		rec.Kind = KindDecodeError
		rec.Reason = reasonFor(u.Err)
		rec.Raw = u.Bytes
		rec.Note = u.Err.Error()
		return rec
	}

	if s.cfg.Mode == ModeText {
		rec.Kind = KindText
		rec.Text = string(u.Bytes)
		return rec
	}

	if s.cfg.RawFrames {
		rec.Kind = KindRaw
		rec.Raw = u.Bytes
		return rec
	}

	msg, err := defmt.Decode(u.Bytes, s.cfg.Table)
	if err != nil {
		rec.Kind = KindDecodeError
		rec.Reason = reasonFor(err)
		rec.Raw = u.Bytes
		rec.Note = err.Error()
		return rec
	}

	rec.Kind = KindDecoded
	rec.Message = msg
	return rec
}

// push assigns the next sequence number and hands the record to the store.
// The store push stays under s.mu: the read loop and Send push concurrently,
// and releasing the lock between sequence assignment and delivery would let
// records arrive at the store out of order.
func (s *Session) push(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rec.Seq = s.seq
	rec.Elapsed = rec.Time.Sub(s.t0)
	s.stats.update(rec)
	s.store.Push(rec)
}
