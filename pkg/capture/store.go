// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Serimon Authors

package capture

import (
	"fmt"
	"sync"
)

// DefaultRingCapacity covers a comfortably large visible window; the ring
// exists for live display, the spool for full-session export.
const DefaultRingCapacity = 4096

// Store is the synchronized buffer between the acquisition loop and its
// consumers: a bounded ring of the most recent records plus an append-only
// spool for full-session CSV export.
//
// Push is exclusive to the producing session. Snapshot, Since and DrainSpool
// may be called concurrently at any rate; readers always observe the ring
// either before or after a push, never mid-update.
type Store struct {
	mu sync.RWMutex

	ring     []Record
	start    int
	count    int
	capacity int

	lastSeq uint64
	haveSeq bool
	dropped uint64

	spool []Record
}

// NewStore creates a store whose ring holds at most capacity records.
// capacity <= 0 selects DefaultRingCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Store{
		ring:     make([]Record, capacity),
		capacity: capacity,
	}
}

// Push appends one record to the ring and the spool, evicting the oldest
// ring record when capacity is exceeded.
//
// Sequence contiguity is enforced here: if a gap is detected, a synthetic
// decode-error record is inserted first so consumers can render a visible
// discontinuity marker instead of silently missing data.
func (s *Store) Push(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveSeq && r.Seq > s.lastSeq+1 {
		missing := r.Seq - s.lastSeq - 1
		s.appendLocked(Record{
			Seq:     s.lastSeq + 1,
			Time:    r.Time,
			Elapsed: r.Elapsed,
			Kind:    KindDecodeError,
			Reason:  ReasonSequenceGap,
			Note:    fmt.Sprintf("%d record(s) missing", missing),
		})
	}

	s.appendLocked(r)
}

func (s *Store) appendLocked(r Record) {
	if s.count == s.capacity {
		s.start = (s.start + 1) % s.capacity
		s.count--
		s.dropped++
	}
	s.ring[(s.start+s.count)%s.capacity] = r
	s.count++

	s.lastSeq = r.Seq
	s.haveSeq = true

	s.spool = append(s.spool, r)
}

// Snapshot returns a copy of the newest window records in sequence order.
// window <= 0 returns the whole ring.
func (s *Store) Snapshot(window int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.count
	if window > 0 && window < n {
		n = window
	}

	out := make([]Record, n)
	first := s.count - n
	for i := 0; i < n; i++ {
		out[i] = s.ring[(s.start+first+i)%s.capacity]
	}
	return out
}

// Since returns copies of ring records with Seq greater than seq, oldest
// first. Records already evicted from the ring are gone for Since callers;
// full-session consumers use the spool.
func (s *Store) Since(seq uint64) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := 0; i < s.count; i++ {
		r := s.ring[(s.start+i)%s.capacity]
		if r.Seq > seq {
			out = append(out, r)
		}
	}
	return out
}

// DrainSpool removes and returns everything spooled since the last drain.
// The ring is unaffected; eviction never touches the spool, so a periodic
// drainer sees the complete session.
func (s *Store) DrainSpool() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.spool
	s.spool = nil
	return out
}

// Len returns the number of records currently in the ring.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// SpoolLen returns the number of records awaiting a spool drain.
func (s *Store) SpoolLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spool)
}

// Dropped returns how many records the ring has evicted so far.
func (s *Store) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// LastSeq returns the newest sequence number pushed, and whether any record
// has been pushed at all.
func (s *Store) LastSeq() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq, s.haveSeq
}

// Clear empties the ring and the spool. Used by the display's clear action;
// sequence tracking is kept so a later push does not fake a gap.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start = 0
	s.count = 0
	s.dropped = 0
	s.spool = nil
}
