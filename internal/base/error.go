// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "github.com/cockroachdb/errors"

// ErrCorruption is a marker error for any error encountered while decoding a
// tombstone record during ingestion. Callers classify errors using
// errors.Is(err, ErrCorruption), never by inspecting the message.
var ErrCorruption = errors.New("rangedel: corruption")

// CorruptionErrorf formats an error and marks it as an ErrCorruption.
func CorruptionErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruption)
}

// ErrMalformedKey is a marker error for an encoded internal key that cannot
// be decomposed into a user key and a sequence number.
var ErrMalformedKey = errors.New("rangedel: malformed key")

// MalformedKeyErrorf formats an error and marks it as an ErrMalformedKey.
func MalformedKeyErrorf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedKey)
}
