// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import "github.com/petermattis/rangedel/internal/base"

// Tombstone is a range deletion tombstone. A range deletion tombstone deletes
// all of the keys in the range [start,end). Note that the start key is
// inclusive and the end key is exclusive.
type Tombstone struct {
	Start base.InternalKey
	End   []byte
}

// SeqNum returns the sequence number at which the deletion was written. The
// tombstone deletes only keys with smaller sequence numbers.
func (t Tombstone) SeqNum() base.SeqNum {
	return t.Start.SeqNum()
}

// Empty returns true if the tombstone does not cover any keys.
func (t Tombstone) Empty() bool {
	return len(t.End) == 0
}

// Contains returns true if the specified user key resides within the
// tombstone's bounds.
func (t Tombstone) Contains(cmp base.Compare, userKey []byte) bool {
	return cmp(t.Start.UserKey, userKey) <= 0 && cmp(userKey, t.End) < 0
}

// Overlaps returns true if the tombstone's bounds intersect the target range
// [lower,upper). A nil lower or upper leaves the target range unbounded in
// that direction.
func (t Tombstone) Overlaps(cmp base.Compare, lower, upper []byte) bool {
	if upper != nil && cmp(upper, t.Start.UserKey) <= 0 {
		return false
	}
	if lower != nil && cmp(t.End, lower) <= 0 {
		return false
	}
	return true
}

// Clip returns the tombstone clipped to the target range [lower,upper). The
// caller must have established that the tombstone overlaps the target range.
func (t Tombstone) Clip(cmp base.Compare, lower, upper []byte) Tombstone {
	clipped := t
	if lower != nil && cmp(clipped.Start.UserKey, lower) < 0 {
		clipped.Start = base.MakeInternalKey(lower, t.SeqNum(), t.Start.Kind())
	}
	if upper != nil && cmp(upper, clipped.End) < 0 {
		clipped.End = upper
	}
	return clipped
}

// String implements fmt.Stringer.
func (t Tombstone) String() string {
	return t.Start.String() + "-" + base.FormatBytes(t.End).String()
}

// Decode decodes a raw tombstone record: an encoded internal key holding the
// start key and sequence number, and a value holding the end key. The record
// must carry a RANGEDEL kind; anything else in a tombstone stream indicates
// corruption.
func Decode(encodedKey, value []byte) (Tombstone, error) {
	start, err := base.ParseInternalKey(encodedKey)
	if err != nil {
		return Tombstone{}, base.CorruptionErrorf(
			"rangedel: invalid tombstone key %s", base.FormatBytes(encodedKey))
	}
	if start.Kind() != base.InternalKeyKindRangeDelete {
		return Tombstone{}, base.CorruptionErrorf(
			"rangedel: unexpected %s key in tombstone stream", start.Kind())
	}
	return Tombstone{Start: start, End: value}, nil
}
