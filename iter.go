// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"sort"

	"github.com/petermattis/rangedel/internal/base"
)

// Iter is an iterator over a set of range tombstones, sorted by start key. It
// implements base.InternalIterator, yielding each tombstone's encoded start
// key and its end key as the value. The encoded keys are owned by the
// iterator and remain valid until Close, satisfying the zero-copy contract of
// base.InternalIterator.
type Iter struct {
	cmp        base.Compare
	tombstones []Tombstone
	keys       [][]byte
	index      int
}

var _ base.InternalIterator = (*Iter)(nil)

// NewIter returns a new iterator over a set of range tombstones. The
// tombstones must be sorted by start key under cmp.
func NewIter(cmp base.Compare, tombstones []Tombstone) *Iter {
	keys := make([][]byte, len(tombstones))
	for i := range tombstones {
		buf := make([]byte, tombstones[i].Start.Size())
		tombstones[i].Start.Encode(buf)
		keys[i] = buf
	}
	return &Iter{
		cmp:        cmp,
		tombstones: tombstones,
		keys:       keys,
		index:      -1,
	}
}

// SeekGE positions the iterator at the first tombstone whose start key is
// greater than or equal to the specified user key and reports whether such a
// tombstone exists.
func (i *Iter) SeekGE(key []byte) bool {
	i.index = sort.Search(len(i.tombstones), func(j int) bool {
		return i.cmp(i.tombstones[j].Start.UserKey, key) >= 0
	})
	return i.Valid()
}

// SeekLT positions the iterator at the last tombstone whose start key is
// less than the specified user key and reports whether such a tombstone
// exists.
func (i *Iter) SeekLT(key []byte) bool {
	i.index = sort.Search(len(i.tombstones), func(j int) bool {
		return i.cmp(i.tombstones[j].Start.UserKey, key) >= 0
	}) - 1
	return i.Valid()
}

// First implements base.InternalIterator.
func (i *Iter) First() bool {
	i.index = 0
	return i.Valid()
}

// Next implements base.InternalIterator.
func (i *Iter) Next() bool {
	if i.index >= len(i.tombstones) {
		return false
	}
	i.index++
	return i.Valid()
}

// Key implements base.InternalIterator.
func (i *Iter) Key() []byte {
	if !i.Valid() {
		return nil
	}
	return i.keys[i.index]
}

// Value implements base.InternalIterator.
func (i *Iter) Value() []byte {
	if !i.Valid() {
		return nil
	}
	return i.tombstones[i.index].End
}

// Valid implements base.InternalIterator.
func (i *Iter) Valid() bool {
	return i.index >= 0 && i.index < len(i.tombstones)
}

// Error implements base.InternalIterator.
func (i *Iter) Error() error {
	return nil
}

// Close implements base.InternalIterator.
func (i *Iter) Close() error {
	return nil
}
