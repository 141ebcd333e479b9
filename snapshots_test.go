// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/petermattis/rangedel/internal/base"
)

func TestSnapshotsIndex(t *testing.T) {
	testCases := []struct {
		snapshots      []base.SeqNum
		seq            base.SeqNum
		expectedIndex  int
		expectedSeqNum base.SeqNum
	}{
		{snapshots: nil, seq: 1, expectedIndex: 0, expectedSeqNum: base.SeqNumMax},
		{snapshots: []base.SeqNum{1}, seq: 0, expectedIndex: 0, expectedSeqNum: 1},
		// A stripe's upper bound is inclusive: a sequence number equal to a
		// snapshot resolves to the stripe that snapshot bounds.
		{snapshots: []base.SeqNum{1}, seq: 1, expectedIndex: 0, expectedSeqNum: 1},
		{snapshots: []base.SeqNum{1}, seq: 2, expectedIndex: 1, expectedSeqNum: base.SeqNumMax},
		{snapshots: []base.SeqNum{100, 200}, seq: 50, expectedIndex: 0, expectedSeqNum: 100},
		{snapshots: []base.SeqNum{100, 200}, seq: 100, expectedIndex: 0, expectedSeqNum: 100},
		{snapshots: []base.SeqNum{100, 200}, seq: 101, expectedIndex: 1, expectedSeqNum: 200},
		{snapshots: []base.SeqNum{100, 200}, seq: 200, expectedIndex: 1, expectedSeqNum: 200},
		{snapshots: []base.SeqNum{100, 200}, seq: 201, expectedIndex: 2, expectedSeqNum: base.SeqNumMax},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			s := Snapshots(c.snapshots)
			idx, seqNum := s.IndexAndSeqNum(c.seq)
			require.Equal(t, c.expectedIndex, idx)
			require.Equal(t, c.expectedSeqNum, seqNum)
		})
	}
}

func TestMakeSnapshots(t *testing.T) {
	s := makeSnapshots([]base.SeqNum{200, 100, 200, 50})
	require.Equal(t, Snapshots{50, 100, 200}, s)
	require.Empty(t, makeSnapshots(nil))
}

// TestSnapshotsPartition verifies that the stripes are disjoint and cover
// the whole sequence number space: every sequence number resolves to exactly
// the stripe whose interval (prev, bound] contains it.
func TestSnapshotsPartition(t *testing.T) {
	rng := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	for run := 0; run < 100; run++ {
		var raw []base.SeqNum
		for n := rng.Intn(8); n > 0; n-- {
			raw = append(raw, base.SeqNum(rng.Uint64n(1000)))
		}
		s := makeSnapshots(raw)
		for q := 0; q < 100; q++ {
			seq := base.SeqNum(rng.Uint64n(1100))
			// Reference: linear scan over the stripe intervals.
			expected := len(s)
			for i, bound := range s {
				if seq <= bound {
					expected = i
					break
				}
			}
			require.Equal(t, expected, s.Index(seq), "snapshots=%v seq=%d", s, seq)
		}
	}
}
