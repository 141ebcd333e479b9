// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/redact"
)

// SeqNum is a sequence number defining precedence among identical keys. A key
// with a higher sequence number takes precedence over a key with an equal
// user key and a lower sequence number.
type SeqNum uint64

const (
	// SeqNumZero is the zero sequence number. No key written by the engine
	// carries it; it sorts after every real key for the same user key.
	SeqNumZero SeqNum = 0
	// SeqNumMax is the largest valid sequence number.
	SeqNumMax SeqNum = 1<<56 - 1
)

// String implements fmt.Stringer.
func (s SeqNum) String() string {
	if s == SeqNumMax {
		return "inf"
	}
	return fmt.Sprintf("%d", s)
}

// InternalKeyKind enumerates the kind of key: a deletion tombstone, a set
// value, a merged value, or a range deletion tombstone.
type InternalKeyKind uint8

// These constants are part of the file format of the surrounding engine, and
// should not be changed.
const (
	InternalKeyKindDelete      InternalKeyKind = 0
	InternalKeyKindSet         InternalKeyKind = 1
	InternalKeyKindMerge       InternalKeyKind = 2
	InternalKeyKindRangeDelete InternalKeyKind = 15

	// InternalKeyKindMax is the largest valid kind. It isn't part of the file
	// format; future extensions may increase it.
	InternalKeyKindMax InternalKeyKind = 15

	// InternalKeyKindInvalid marks a key which failed to decode.
	InternalKeyKindInvalid InternalKeyKind = 255
)

// String implements fmt.Stringer.
func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	case InternalKeyKindMerge:
		return "MERGE"
	case InternalKeyKindRangeDelete:
		return "RANGEDEL"
	default:
		return fmt.Sprintf("INVALID(%d)", uint8(k))
	}
}

// InternalTrailerLen is the number of bytes of metadata trailing the user key
// in an encoded internal key.
const InternalTrailerLen = 8

// InternalKey is a key used for the in-memory and on-disk partial DBs that
// make up a storage engine.
//
// It consists of the user key followed by 8-bytes of metadata:
//   - 1 byte for the kind of internal key: delete or set,
//   - 7 bytes for a uint56 sequence number, in little-endian format.
type InternalKey struct {
	UserKey []byte
	Trailer uint64
}

// MakeTrailer constructs an internal key trailer from the specified sequence
// number and kind.
func MakeTrailer(seqNum SeqNum, kind InternalKeyKind) uint64 {
	return (uint64(seqNum) << 8) | uint64(kind)
}

// MakeInternalKey constructs an internal key from a specified user key,
// sequence number and kind.
func MakeInternalKey(userKey []byte, seqNum SeqNum, kind InternalKeyKind) InternalKey {
	return InternalKey{
		UserKey: userKey,
		Trailer: MakeTrailer(seqNum, kind),
	}
}

// MakeRangeDeleteSentinelKey constructs an internal key that is a range
// deletion sentinel key, used as the largest key for a table whose largest
// key is the exclusive end of a range deletion tombstone. The sentinel sorts
// before every real key with the same user key.
func MakeRangeDeleteSentinelKey(userKey []byte) InternalKey {
	return InternalKey{
		UserKey: userKey,
		Trailer: MakeTrailer(SeqNumMax, InternalKeyKindRangeDelete),
	}
}

// DecodeInternalKey decodes an encoded internal key. If the key is malformed,
// the decoded key will have kind InternalKeyKindInvalid. Use ParseInternalKey
// when the input is untrusted.
func DecodeInternalKey(encodedKey []byte) InternalKey {
	n := len(encodedKey) - InternalTrailerLen
	var trailer uint64
	if n >= 0 {
		trailer = binary.LittleEndian.Uint64(encodedKey[n:])
		encodedKey = encodedKey[:n:n]
	} else {
		trailer = uint64(InternalKeyKindInvalid)
		encodedKey = nil
	}
	return InternalKey{
		UserKey: encodedKey,
		Trailer: trailer,
	}
}

// ParseInternalKey decodes an encoded internal key, verifying that it carries
// a complete trailer holding a valid kind.
func ParseInternalKey(encodedKey []byte) (InternalKey, error) {
	if len(encodedKey) < InternalTrailerLen {
		return InternalKey{}, MalformedKeyErrorf(
			"invalid internal key %s: missing trailer", FormatBytes(encodedKey))
	}
	k := DecodeInternalKey(encodedKey)
	if k.Kind() > InternalKeyKindMax {
		return InternalKey{}, MalformedKeyErrorf(
			"invalid internal key %s: unknown kind %d", FormatBytes(k.UserKey), uint8(k.Kind()))
	}
	return k, nil
}

// InternalCompare compares two internal keys using the specified comparison
// function. For equal user keys, internal keys compare in descending sequence
// number order. For equal user keys and sequence numbers, internal keys
// compare in descending kind order.
func InternalCompare(userCmp Compare, a, b InternalKey) int {
	if x := userCmp(a.UserKey, b.UserKey); x != 0 {
		return x
	}
	switch {
	case a.Trailer > b.Trailer:
		return -1
	case a.Trailer < b.Trailer:
		return 1
	default:
		return 0
	}
}

// SeqNum returns the sequence number component of the key.
func (k InternalKey) SeqNum() SeqNum {
	return SeqNum(k.Trailer >> 8)
}

// Kind returns the kind component of the key.
func (k InternalKey) Kind() InternalKeyKind {
	return InternalKeyKind(k.Trailer & 0xff)
}

// Valid returns true if the key has a valid kind.
func (k InternalKey) Valid() bool {
	return k.Kind() <= InternalKeyKindMax
}

// Size returns the size of the key in bytes when encoded.
func (k InternalKey) Size() int {
	return len(k.UserKey) + InternalTrailerLen
}

// Encode encodes the receiver into the buffer. The buffer must be large
// enough to hold the encoded data: Size() bytes.
func (k InternalKey) Encode(buf []byte) {
	i := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[i:], k.Trailer)
}

// Clone clones the storage for the user key of the key, guaranteeing that the
// result shares no bytes with the receiver.
func (k InternalKey) Clone() InternalKey {
	if len(k.UserKey) == 0 {
		return InternalKey{Trailer: k.Trailer}
	}
	return InternalKey{
		UserKey: append([]byte(nil), k.UserKey...),
		Trailer: k.Trailer,
	}
}

// String implements fmt.Stringer.
func (k InternalKey) String() string {
	return fmt.Sprintf("%s#%s,%s", FormatBytes(k.UserKey), k.SeqNum(), k.Kind())
}

// SafeFormat implements redact.SafeFormatter.
func (k InternalKey) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%s#%s,%s", FormatBytes(k.UserKey), redact.Safe(k.SeqNum()), redact.Safe(k.Kind()))
}
