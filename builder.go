// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import "github.com/petermattis/rangedel/internal/base"

// Builder is the sink that receives range tombstones during a rewrite. It is
// implemented by the surrounding engine's sstable writer. Add must be called
// with keys in ascending internal key order, interleaved correctly relative
// to any point records already written; failures are reported by the builder
// and propagated by the aggregator verbatim.
type Builder interface {
	Add(key base.InternalKey, value []byte) error
}

// TableMeta records the key bounds of an output table. Readers use the
// bounds to decide which tables to consult, so the aggregator widens them
// when it emits a tombstone reaching beyond them. An unset bound has a nil
// user key.
type TableMeta struct {
	Smallest base.InternalKey
	Largest  base.InternalKey
}

// ExtendSmallest updates the smallest bound if key sorts before it.
func (m *TableMeta) ExtendSmallest(cmp base.Compare, key base.InternalKey) {
	if m.Smallest.UserKey == nil || base.InternalCompare(cmp, key, m.Smallest) < 0 {
		m.Smallest = key
	}
}

// ExtendLargest updates the largest bound if key sorts after it.
func (m *TableMeta) ExtendLargest(cmp base.Compare, key base.InternalKey) {
	if m.Largest.UserKey == nil || base.InternalCompare(cmp, key, m.Largest) > 0 {
		m.Largest = key
	}
}
