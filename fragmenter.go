// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"fmt"
	"sort"

	"github.com/petermattis/rangedel/internal/base"
)

// Fragmenter fragments a stream of range tombstones so that any two of the
// produced fragments either share identical bounds or do not overlap at all.
// Producers of tombstone streams (the memtable and sstable writers in the
// surrounding engine) fragment before persisting so that a stream can be
// indexed by start key without losing coverage information. The Aggregator
// itself accepts unfragmented input.
//
// Add must be called with tombstones in nondecreasing start key order. Emit
// is invoked with groups of fragments as their bounds are finalized; within
// a group the fragments share bounds and are ordered by descending sequence
// number.
type Fragmenter struct {
	Cmp  base.Compare
	Emit func(fragmented []Tombstone)

	// pending holds the tombstones overlapping the most recently added start
	// key. All pending tombstones share that start key; their end keys may
	// differ.
	pending  []Tombstone
	finished bool
}

// Add adds a tombstone to the fragmenter. Tombstones may overlap; the
// fragmenter splits them at their overlap points.
func (f *Fragmenter) Add(start base.InternalKey, end []byte) {
	if f.finished {
		panic("rangedel: add after finish")
	}
	if len(f.pending) > 0 {
		// Since all of the pending tombstones have the same start key, we
		// only need to compare against the first one.
		switch c := f.Cmp(f.pending[0].Start.UserKey, start.UserKey); {
		case c > 0:
			panic(fmt.Sprintf("rangedel: start key out of order: %s, %s",
				base.FormatBytes(f.pending[0].Start.UserKey), base.FormatBytes(start.UserKey)))
		case c == 0:
			f.pending = append(f.pending, Tombstone{Start: start, End: end})
			return
		}
		f.truncateAndFlush(start.UserKey)
	}
	f.pending = append(f.pending, Tombstone{Start: start, End: end})
}

// truncateAndFlush flushes the portion of every pending tombstone lying
// before key, and rebases the remainder to start at key.
func (f *Fragmenter) truncateAndFlush(key []byte) {
	var done []Tombstone
	pending := f.pending
	f.pending = f.pending[:0]
	for _, t := range pending {
		if f.Cmp(key, t.End) < 0 {
			//   t: a--+--e
			// new:    c------
			done = append(done, Tombstone{Start: t.Start, End: key})
			f.pending = append(f.pending, Tombstone{
				Start: base.MakeInternalKey(key, t.SeqNum(), t.Start.Kind()),
				End:   t.End,
			})
		} else {
			//   t: a-----e
			// new:         c---
			done = append(done, t)
		}
	}
	f.flush(done)
}

// flush fragments and emits the specified tombstones, all of which share the
// same start key.
func (f *Fragmenter) flush(buf []Tombstone) {
	for len(buf) > 0 {
		// The fragment [start, end), where end is the smallest end key in
		// buf, is covered by every tombstone in buf.
		end := buf[0].End
		for _, t := range buf[1:] {
			if f.Cmp(t.End, end) < 0 {
				end = t.End
			}
		}
		frag := make([]Tombstone, len(buf))
		for i, t := range buf {
			frag[i] = Tombstone{Start: t.Start, End: end}
		}
		sort.SliceStable(frag, func(i, j int) bool {
			return frag[i].SeqNum() > frag[j].SeqNum()
		})
		f.Emit(frag)

		// Rebase the tombstones extending past end; the rest are fully
		// emitted.
		var rest []Tombstone
		for _, t := range buf {
			if f.Cmp(end, t.End) < 0 {
				rest = append(rest, Tombstone{
					Start: base.MakeInternalKey(end, t.SeqNum(), t.Start.Kind()),
					End:   t.End,
				})
			}
		}
		buf = rest
	}
}

// Finish flushes any remaining fragments. Add may not be called after
// Finish.
func (f *Fragmenter) Finish() {
	if f.finished {
		panic("rangedel: finish called twice")
	}
	f.finished = true
	pending := f.pending
	f.pending = nil
	f.flush(pending)
}
