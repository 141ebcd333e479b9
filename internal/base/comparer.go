// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"bytes"

	"github.com/cockroachdb/redact"
)

// Compare returns -1, 0, or +1 depending on whether a is 'less than', 'equal
// to' or 'greater than' b. The two arguments can only be 'equal' if their
// contents are exactly equal. Furthermore, the empty slice must be 'less
// than' any non-empty slice.
type Compare func(a, b []byte) int

// Equal returns true if a and b are equivalent. For a given comparer,
// Equal(a,b) must return the same result as Compare(a,b)==0. For most
// comparers, Equal can be set to bytes.Equal.
type Equal func(a, b []byte) bool

// Comparer defines a total ordering over the space of []byte keys: a 'less
// than' relationship.
type Comparer struct {
	Compare Compare
	Equal   Equal

	// Name is the name of the comparer. The engine embedding this library
	// persists the comparer name, and a tombstone stream must be interpreted
	// with the comparer it was written with.
	Name string
}

// DefaultComparer is the default implementation of the Comparer interface.
// It uses the natural ordering, consistent with bytes.Compare.
var DefaultComparer = &Comparer{
	Compare: bytes.Compare,
	Equal:   bytes.Equal,
	Name:    "leveldb.BytewiseComparator",
}

const lowerhex = "0123456789abcdef"

// FormatBytes formats a byte slice using hexadecimal escapes for non-ASCII
// data.
type FormatBytes []byte

// SafeFormat implements redact.SafeFormatter.
func (b FormatBytes) SafeFormat(w redact.SafePrinter, _ rune) {
	var buf []byte
	for _, c := range b {
		if c < 0x20 || c >= 0x7f {
			buf = append(buf, '\\', 'x', lowerhex[c>>4], lowerhex[c&0xf])
			continue
		}
		buf = append(buf, c)
	}
	w.SafeString(redact.SafeString(buf))
}

func (b FormatBytes) String() string {
	return redact.StringWithoutMarkers(b)
}
