// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/serimon/serimon/pkg/defmt"
	"github.com/serimon/serimon/pkg/framing"
	"github.com/serimon/serimon/pkg/transport"
)

// scriptConn replays scripted chunks, then simulates an idle link by
// returning zero-byte timeout reads (or a scripted terminal error).
type scriptConn struct {
	mu       sync.Mutex
	chunks   [][]byte
	idx      int
	finalErr error // returned after chunks are exhausted; nil means idle
	writes   [][]byte
	closed   bool
}

func (c *scriptConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, transport.ErrClosed
	}
	if c.idx < len(c.chunks) {
		n := copy(p, c.chunks[c.idx])
		c.idx++
		return n, nil
	}
	if c.finalErr != nil {
		return 0, c.finalErr
	}
	// Idle link: a bounded read timed out with nothing to deliver.
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (c *scriptConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *scriptConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptConn) SetReadTimeout(time.Duration) error { return nil }

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func dialTo(conn transport.Conn) func() (transport.Conn, error) {
	return func() (transport.Conn, error) { return conn, nil }
}

// waitFor polls until cond returns true or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSession_TextStreaming(t *testing.T) {
	conn := &scriptConn{chunks: [][]byte{[]byte("AA\n B"), []byte("B\n")}}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return store.Len() == 2 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := store.Snapshot(0)
	if snap[0].Text != "AA" || snap[1].Text != " BB" {
		t.Errorf("records: %q, %q", snap[0].Text, snap[1].Text)
	}
	if snap[0].Seq != 1 || snap[1].Seq != 2 {
		t.Errorf("seq: %d, %d", snap[0].Seq, snap[1].Seq)
	}
	if sess.State() != StateIdle {
		t.Errorf("state after clean stop: %v", sess.State())
	}
}

func TestSession_IdleTimeoutsProduceNothing(t *testing.T) {
	conn := &scriptConn{} // nothing but timeouts
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return sess.State() == StateStreaming })
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("idle link produced %d records", store.Len())
	}
	if seq, ok := store.LastSeq(); ok {
		t.Errorf("sequence advanced to %d on an idle link", seq)
	}
}

func TestSession_DisconnectFlushesTail(t *testing.T) {
	conn := &scriptConn{chunks: [][]byte{[]byte("partial")}}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool {
		st := sess.Stats()
		return st.BytesRead == uint64(len("partial"))
	})
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := store.Snapshot(0)
	if len(snap) != 1 || snap[0].Text != "partial" {
		t.Fatalf("tail not flushed: %+v", snap)
	}
	if sess.State() != StateIdle {
		t.Errorf("state: %v", sess.State())
	}
}

func TestSession_ReadErrorFaults(t *testing.T) {
	readErr := errors.New("device removed")
	conn := &scriptConn{chunks: [][]byte{[]byte("ok\n")}, finalErr: readErr}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	err := sess.Run(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected device error, got %v", err)
	}
	if sess.State() != StateFaulted {
		t.Errorf("state: %v", sess.State())
	}
	if !errors.Is(sess.Err(), readErr) {
		t.Errorf("Err(): %v", sess.Err())
	}
}

func TestSession_DialFailureFaults(t *testing.T) {
	dialErr := errors.New("port busy")
	store := NewStore(0)
	sess := NewSession(Config{
		Dial:   func() (transport.Conn, error) { return nil, dialErr },
		Logger: quietLogger(),
	}, store)

	err := sess.Run(context.Background())
	if !errors.Is(err, dialErr) {
		t.Fatalf("expected dial error, got %v", err)
	}
	if sess.State() != StateFaulted {
		t.Errorf("state: %v", sess.State())
	}
}

func TestSession_BinaryDecode(t *testing.T) {
	table, err := defmt.NewTable(map[uint64]defmt.Entry{
		1: {Format: "booted", Level: defmt.LevelInfo, Module: "app"},
	})
	if err != nil {
		t.Fatal(err)
	}

	wire := framing.StuffFrame([]byte{1})          // known discriminator
	wire = append(wire, framing.StuffFrame([]byte{9})...) // unknown

	conn := &scriptConn{chunks: [][]byte{wire}}
	store := NewStore(0)
	sess := NewSession(Config{
		Dial:   dialTo(conn),
		Mode:   ModeBinary,
		Table:  table,
		Logger: quietLogger(),
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return store.Len() == 2 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := store.Snapshot(0)
	if snap[0].Kind != KindDecoded || snap[0].Message.Text != "booted" {
		t.Errorf("first record: %+v", snap[0])
	}
	if snap[1].Kind != KindDecodeError || snap[1].Reason != ReasonUnknownDiscriminator {
		t.Errorf("second record: %+v", snap[1])
	}
	if len(snap[1].Raw) != 1 || snap[1].Raw[0] != 9 {
		t.Errorf("original bytes not preserved: %v", snap[1].Raw)
	}
}

func TestSession_BinaryWithoutTable(t *testing.T) {
	conn := &scriptConn{chunks: [][]byte{framing.StuffFrame([]byte{1})}}
	store := NewStore(0)
	sess := NewSession(Config{
		Dial:   dialTo(conn),
		Mode:   ModeBinary,
		Logger: quietLogger(),
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return store.Len() == 1 })
	cancel()
	<-errCh

	snap := store.Snapshot(0)
	if snap[0].Kind != KindDecodeError || snap[0].Reason != ReasonNoTable {
		t.Errorf("expected no-table record, got %+v", snap[0])
	}
}

func TestSession_SendRecordsTranscript(t *testing.T) {
	conn := &scriptConn{}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	if err := sess.Send("early"); !errors.Is(err, ErrNotStreaming) {
		t.Errorf("send before streaming: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()
	waitFor(t, func() bool { return sess.State() == StateStreaming })

	if err := sess.Send("reset"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	cancel()
	<-errCh

	conn.mu.Lock()
	writes := conn.writes
	conn.mu.Unlock()
	if len(writes) != 1 || string(writes[0]) != "reset\r\n" {
		t.Errorf("device writes: %q", writes)
	}

	snap := store.Snapshot(0)
	if len(snap) != 1 || snap[0].Kind != KindSent || snap[0].Text != "reset" {
		t.Errorf("transcript: %+v", snap)
	}
}

func TestSession_StatsCounters(t *testing.T) {
	conn := &scriptConn{chunks: [][]byte{[]byte("a\nb\n")}}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()
	waitFor(t, func() bool { return store.Len() == 2 })
	cancel()
	<-errCh

	st := sess.Stats()
	if st.TextRecords != 2 || st.TotalRecords != 2 || st.BytesRead != 4 {
		t.Errorf("stats: %+v", st)
	}
}

func TestSession_ConcurrentSendKeepsSequenceOrder(t *testing.T) {
	// Keep the read loop busy while Send pushes from other goroutines.
	chunks := make([][]byte, 100)
	for i := range chunks {
		chunks[i] = []byte("tick\n")
	}
	conn := &scriptConn{chunks: chunks}
	store := NewStore(0)
	sess := NewSession(Config{Dial: dialTo(conn), Logger: quietLogger()}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return sess.State() == StateStreaming })

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if err := sess.Send("ping"); err != nil {
					t.Errorf("Send: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return sess.Stats().TotalRecords == 200 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	spooled := store.DrainSpool()
	if len(spooled) != 200 {
		t.Fatalf("spool length = %d, want 200", len(spooled))
	}
	for i, r := range spooled {
		if r.Seq != uint64(i+1) {
			t.Fatalf("spool[%d].Seq = %d, want %d (records delivered out of order)", i, r.Seq, i+1)
		}
		if r.Reason == ReasonSequenceGap {
			t.Fatalf("spool[%d] is a gap marker; contiguous pushes must not fabricate gaps", i)
		}
	}
}

func TestSession_RawFramesSkipDecode(t *testing.T) {
	// Payloads that are not defmt at all; raw mode must keep them intact
	// instead of surfacing decode errors.
	wire := append(framing.StuffFrame([]byte{0xde, 0xad}), framing.StuffFrame([]byte{0x7e, 0x7f})...)
	conn := &scriptConn{chunks: [][]byte{wire}}
	store := NewStore(0)
	sess := NewSession(Config{
		Dial:      dialTo(conn),
		Mode:      ModeBinary,
		RawFrames: true,
		Logger:    quietLogger(),
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sess.Run(ctx) }()

	waitFor(t, func() bool { return store.Len() == 2 })
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := store.Snapshot(0)
	for i, want := range [][]byte{{0xde, 0xad}, {0x7e, 0x7f}} {
		if snap[i].Kind != KindRaw {
			t.Errorf("record %d kind = %v, want raw", i, snap[i].Kind)
		}
		if !bytes.Equal(snap[i].Raw, want) {
			t.Errorf("record %d raw = % x, want % x", i, snap[i].Raw, want)
		}
	}
	if got := sess.Stats().RawRecords; got != 2 {
		t.Errorf("RawRecords = %d, want 2", got)
	}
}
