// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

// InternalIterator iterates over a sequence of encoded internal key/value
// records in ascending key order. It is the contract between a tombstone
// producer (a memtable or sstable reader in the surrounding engine) and the
// aggregation machinery that consumes it.
//
// The slices returned by Key and Value point into storage owned by the
// iterator and remain valid until the iterator is closed; they are not
// invalidated by Next. A consumer that retains references past the
// iterator's lifetime must either copy the bytes or keep the iterator open.
//
// An iterator is not goroutine-safe.
type InternalIterator interface {
	// First moves the iterator to the first key/value pair and reports
	// whether it is pointing at a valid pair.
	First() bool

	// Next moves the iterator to the next key/value pair and reports whether
	// it is pointing at a valid pair.
	Next() bool

	// Key returns the encoded internal key of the current key/value pair, or
	// nil if done. The caller should not modify the contents of the returned
	// slice.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if done.
	// The caller should not modify the contents of the returned slice.
	Value() []byte

	// Valid returns true if the iterator is positioned at a valid key/value
	// pair and false otherwise.
	Valid() bool

	// Error returns any accumulated error. Exhausting all the key/value
	// pairs is not an error.
	Error() error

	// Close closes the iterator, releasing the storage backing the keys and
	// values it returned, and returns any accumulated error. It is valid to
	// call Close multiple times.
	Close() error
}
