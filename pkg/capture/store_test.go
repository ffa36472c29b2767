// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"sync"
	"testing"
	"time"
)

func rec(seq uint64, text string) Record {
	return Record{
		Seq:  seq,
		Time: time.Now(),
		Kind: KindText,
		Text: text,
	}
}

func TestStore_SnapshotOrdering(t *testing.T) {
	s := NewStore(10)
	for i := uint64(1); i <= 5; i++ {
		s.Push(rec(i, "r"))
	}

	snap := s.Snapshot(0)
	if len(snap) != 5 {
		t.Fatalf("expected 5 records, got %d", len(snap))
	}
	for i, r := range snap {
		if r.Seq != uint64(i+1) {
			t.Errorf("position %d: seq %d", i, r.Seq)
		}
	}

	snap = s.Snapshot(2)
	if len(snap) != 2 || snap[0].Seq != 4 || snap[1].Seq != 5 {
		t.Errorf("windowed snapshot wrong: %+v", snap)
	}
}

func TestStore_EvictionKeepsNewest(t *testing.T) {
	const capacity = 8
	const extra = 5
	s := NewStore(capacity)

	for i := uint64(1); i <= capacity+extra; i++ {
		s.Push(rec(i, "r"))
	}

	snap := s.Snapshot(0)
	if len(snap) != capacity {
		t.Fatalf("ring exceeded capacity: %d records", len(snap))
	}
	// Exactly the most recent `capacity` records remain.
	for i, r := range snap {
		want := uint64(extra + 1 + i)
		if r.Seq != want {
			t.Errorf("position %d: got seq %d, want %d", i, r.Seq, want)
		}
	}
	if s.Dropped() != extra {
		t.Errorf("dropped: got %d, want %d", s.Dropped(), extra)
	}
}

func TestStore_SpoolUnaffectedByEviction(t *testing.T) {
	s := NewStore(4)
	for i := uint64(1); i <= 20; i++ {
		s.Push(rec(i, "r"))
	}

	spooled := s.DrainSpool()
	if len(spooled) != 20 {
		t.Fatalf("spool incomplete: %d records", len(spooled))
	}
	for i, r := range spooled {
		if r.Seq != uint64(i+1) {
			t.Errorf("spool position %d: seq %d", i, r.Seq)
		}
	}

	if len(s.DrainSpool()) != 0 {
		t.Error("second drain should be empty")
	}
	if s.Len() != 4 {
		t.Errorf("ring disturbed by drain: %d", s.Len())
	}
}

func TestStore_Since(t *testing.T) {
	s := NewStore(10)
	for i := uint64(1); i <= 6; i++ {
		s.Push(rec(i, "r"))
	}

	out := s.Since(4)
	if len(out) != 2 || out[0].Seq != 5 || out[1].Seq != 6 {
		t.Errorf("Since(4): %+v", out)
	}
	if len(s.Since(6)) != 0 {
		t.Error("Since(newest) should be empty")
	}
}

func TestStore_SequenceGapMarker(t *testing.T) {
	s := NewStore(10)
	s.Push(rec(1, "a"))
	s.Push(rec(5, "b")) // seqs 2..4 went missing

	snap := s.Snapshot(0)
	if len(snap) != 3 {
		t.Fatalf("expected gap marker + 2 records, got %d", len(snap))
	}
	marker := snap[1]
	if marker.Kind != KindDecodeError || marker.Reason != ReasonSequenceGap {
		t.Errorf("expected sequence gap marker, got %+v", marker)
	}
	if marker.Seq != 2 {
		t.Errorf("marker seq: got %d, want 2", marker.Seq)
	}
}

func TestStore_SnapshotSeqStrictlyIncreasing(t *testing.T) {
	s := NewStore(16)
	for i := uint64(1); i <= 40; i++ {
		s.Push(rec(i, "r"))
	}

	snap := s.Snapshot(0)
	for i := 1; i < len(snap); i++ {
		if snap[i].Seq <= snap[i-1].Seq {
			t.Fatalf("snapshot seq not strictly increasing at %d: %d then %d",
				i, snap[i-1].Seq, snap[i].Seq)
		}
	}
}

// Concurrent pushes and snapshots must never tear; run with -race.
func TestStore_ConcurrentSnapshotDuringPush(t *testing.T) {
	s := NewStore(64)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 2000; i++ {
			s.Push(rec(i, "r"))
		}
		close(done)
	}()

	for {
		snap := s.Snapshot(32)
		for i := 1; i < len(snap); i++ {
			if snap[i].Seq != snap[i-1].Seq+1 {
				t.Errorf("torn snapshot: %d then %d", snap[i-1].Seq, snap[i].Seq)
			}
		}
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(4)
	for i := uint64(1); i <= 6; i++ {
		s.Push(rec(i, "r"))
	}

	s.Clear()
	if s.Len() != 0 || s.SpoolLen() != 0 || s.Dropped() != 0 {
		t.Errorf("clear left state: len=%d spool=%d dropped=%d",
			s.Len(), s.SpoolLen(), s.Dropped())
	}

	// Sequence tracking survives a clear; no fake gap marker.
	s.Push(rec(7, "r"))
	snap := s.Snapshot(0)
	if len(snap) != 1 || snap[0].Seq != 7 {
		t.Errorf("push after clear: %+v", snap)
	}
}
