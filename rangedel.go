// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rangedel provides aggregation of range deletion tombstones for a
// log-structured storage engine. A range deletion tombstone deletes every
// key in the range [start,end) written before the tombstone's own sequence
// number.
//
// The central type is the Aggregator, a short-lived object constructed fresh
// for each read or each compaction/flush job. On the read path it answers
// whether a point key is deleted by a tombstone visible to it. On the write
// path it absorbs the tombstone streams of the inputs being rewritten and
// re-emits the relevant tombstones into the output table, widening the
// output's key bounds so that readers cannot skip a tombstone covering a gap.
//
// Tombstones are partitioned into snapshot stripes, the sequence number
// intervals between consecutive snapshots. Coverage checks are confined to a
// single stripe, which guarantees that a tombstone never deletes a key that
// a registered snapshot must still observe.
package rangedel

import "github.com/petermattis/rangedel/internal/base"

// InternalKey exports the base.InternalKey type.
type InternalKey = base.InternalKey

// SeqNum exports the base.SeqNum type.
type SeqNum = base.SeqNum

// Comparer exports the base.Comparer type.
type Comparer = base.Comparer

// InternalIterator exports the base.InternalIterator type.
type InternalIterator = base.InternalIterator

// DefaultComparer exports base.DefaultComparer.
var DefaultComparer = base.DefaultComparer

// ErrCorruption marks errors caused by undecodable tombstone records.
var ErrCorruption = base.ErrCorruption

// ErrMalformedKey marks errors caused by undecodable point keys.
var ErrMalformedKey = base.ErrMalformedKey
