// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"slices"
	"sort"

	"github.com/petermattis/rangedel/internal/base"
)

// Snapshots stores a list of snapshot sequence numbers, in ascending order.
//
// Snapshots divide the sequence number space into stripes: a snapshot at
// sequence number S bounds the stripe (P, S], where P is the next smaller
// snapshot (or zero). The newest stripe, (M, +inf) for the largest snapshot
// M, is unbounded above. A stripe's upper bound is inclusive: a key written
// at exactly a snapshot's sequence number is observable by that snapshot and
// belongs to its stripe.
//
// The stripes partition the sequence number space: every sequence number
// falls in exactly one stripe. Tombstone coverage checks are confined to a
// single stripe, which is what prevents a tombstone from deleting a key that
// a snapshot in an older stripe must still observe.
type Snapshots []base.SeqNum

// makeSnapshots constructs an ordered snapshot list from the caller-supplied
// sequence numbers, which need not be sorted or unique.
func makeSnapshots(seqNums []base.SeqNum) Snapshots {
	s := slices.Clone(seqNums)
	slices.Sort(s)
	return Snapshots(slices.Compact(s))
}

// Index returns the index of the stripe containing seq: the index of the
// first snapshot sequence number which is >= seq, or len(s) for the
// unbounded newest stripe.
func (s Snapshots) Index(seq base.SeqNum) int {
	return sort.Search(len(s), func(i int) bool {
		return s[i] >= seq
	})
}

// IndexAndSeqNum returns the index of the stripe containing seq and that
// stripe's inclusive upper bound, which is SeqNumMax for the unbounded
// newest stripe.
func (s Snapshots) IndexAndSeqNum(seq base.SeqNum) (int, base.SeqNum) {
	index := s.Index(seq)
	if index == len(s) {
		return index, base.SeqNumMax
	}
	return index, s[index]
}
