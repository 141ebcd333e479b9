// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"bytes"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/petermattis/rangedel/internal/base"
)

var tombstoneRe = regexp.MustCompile(`(\w+)-(\w+)#(\d+)`)

func parseTombstone(t *testing.T, s string) Tombstone {
	t.Helper()
	m := tombstoneRe.FindStringSubmatch(s)
	if len(m) != 4 {
		t.Fatalf("expected 4 components, but found %d: %s", len(m), s)
	}
	seqNum, err := strconv.ParseUint(m[3], 10, 64)
	require.NoError(t, err)
	return Tombstone{
		Start: base.MakeInternalKey([]byte(m[1]), base.SeqNum(seqNum), base.InternalKeyKindRangeDelete),
		End:   []byte(m[2]),
	}
}

var keyRe = regexp.MustCompile(`(\w+)#(\d+)`)

func parseKey(t *testing.T, s string, kind base.InternalKeyKind) base.InternalKey {
	t.Helper()
	m := keyRe.FindStringSubmatch(s)
	if len(m) != 3 {
		t.Fatalf("expected 3 components, but found %d: %s", len(m), s)
	}
	seqNum, err := strconv.ParseUint(m[2], 10, 64)
	require.NoError(t, err)
	return base.MakeInternalKey([]byte(m[1]), base.SeqNum(seqNum), kind)
}

func formatTombstone(t Tombstone) string {
	return fmt.Sprintf("%s-%s#%d", t.Start.UserKey, t.End, t.SeqNum())
}

// buildTombstones parses one tombstone per line, keeping the input order for
// tombstones sharing a start key so that ingestion order is predictable.
func buildTombstones(t *testing.T, s string) []Tombstone {
	t.Helper()
	var tombstones []Tombstone
	for _, line := range crstrings.Lines(s) {
		tombstones = append(tombstones, parseTombstone(t, line))
	}
	slices.SortStableFunc(tombstones, func(a, b Tombstone) int {
		return bytes.Compare(a.Start.UserKey, b.Start.UserKey)
	})
	return tombstones
}

// recordingBuilder is a Builder that records the tombstones added to it and
// can be primed to fail.
type recordingBuilder struct {
	adds []Tombstone
	err  error
}

func (b *recordingBuilder) Add(key base.InternalKey, value []byte) error {
	if b.err != nil {
		return b.err
	}
	b.adds = append(b.adds, Tombstone{Start: key.Clone(), End: slices.Clone(value)})
	return nil
}

// testIter is an InternalIterator over raw records, allowing tests to inject
// malformed keys and to observe Close calls.
type testIter struct {
	keys     [][]byte
	values   [][]byte
	index    int
	closes   int
	closeErr error
}

func (i *testIter) First() bool { i.index = 0; return i.Valid() }
func (i *testIter) Next() bool {
	if i.index < len(i.keys) {
		i.index++
	}
	return i.Valid()
}
func (i *testIter) Key() []byte {
	if !i.Valid() {
		return nil
	}
	return i.keys[i.index]
}
func (i *testIter) Value() []byte {
	if !i.Valid() {
		return nil
	}
	return i.values[i.index]
}
func (i *testIter) Valid() bool  { return i.index >= 0 && i.index < len(i.keys) }
func (i *testIter) Error() error { return nil }
func (i *testIter) Close() error { i.closes++; return i.closeErr }

func newTestIter(tombstones ...Tombstone) *testIter {
	iter := &testIter{index: -1}
	for _, t := range tombstones {
		buf := make([]byte, t.Start.Size())
		t.Start.Encode(buf)
		iter.keys = append(iter.keys, buf)
		iter.values = append(iter.values, t.End)
	}
	return iter
}

func runAggregatorTest(t *testing.T, path string) {
	var agg *Aggregator
	t.Cleanup(func() {
		if agg != nil {
			require.NoError(t, agg.Close())
		}
	})

	datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "build":
			if agg != nil {
				require.NoError(t, agg.Close())
			}
			agg = nil
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "snapshots":
					var snapshots []base.SeqNum
					for _, v := range arg.Vals {
						seq, err := strconv.ParseUint(v, 10, 64)
						require.NoError(t, err)
						snapshots = append(snapshots, base.SeqNum(seq))
					}
					agg = NewAggregator(DefaultComparer, snapshots)
				case "upper-bound":
					seq, err := strconv.ParseUint(arg.Vals[0], 10, 64)
					require.NoError(t, err)
					agg = NewReadAggregator(DefaultComparer, base.SeqNum(seq))
				default:
					return fmt.Sprintf("unknown arg: %s", arg.Key)
				}
			}
			if agg == nil {
				agg = NewAggregator(DefaultComparer, nil)
			}
			if err := agg.AddTombstones(NewIter(DefaultComparer.Compare, buildTombstones(t, d.Input))); err != nil {
				return err.Error()
			}
			return fmt.Sprintf("%d", agg.NumTombstones())

		case "covered":
			var buf bytes.Buffer
			for _, line := range crstrings.Lines(d.Input) {
				key := parseKey(t, line, base.InternalKeyKindSet)
				fmt.Fprintf(&buf, "%s: %t\n", strings.TrimSpace(line), agg.ShouldDelete(key))
			}
			return buf.String()

		case "is-empty":
			return fmt.Sprintf("%t", agg.IsEmpty())

		case "should-add-tombstones":
			return fmt.Sprintf("%t", agg.ShouldAddTombstones(d.HasArg("bottommost")))

		case "emit":
			var lower, upper []byte
			var meta TableMeta
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "lower":
					lower = []byte(arg.Vals[0])
				case "upper":
					upper = []byte(arg.Vals[0])
				case "smallest":
					meta.Smallest = parseKey(t, arg.Vals[0], base.InternalKeyKindSet)
				case "largest":
					meta.Largest = parseKey(t, arg.Vals[0], base.InternalKeyKindSet)
				case "bottommost", "extend-before-min":
				default:
					return fmt.Sprintf("unknown arg: %s", arg.Key)
				}
			}
			b := &recordingBuilder{}
			err := agg.AddToBuilder(b, lower, upper, &meta,
				d.HasArg("bottommost"), d.HasArg("extend-before-min"))
			if err != nil {
				return err.Error()
			}
			var buf bytes.Buffer
			for _, tomb := range b.adds {
				fmt.Fprintf(&buf, "%s\n", formatTombstone(tomb))
			}
			fmt.Fprintf(&buf, "smallest: %s\n", meta.Smallest)
			fmt.Fprintf(&buf, "largest: %s\n", meta.Largest)
			return buf.String()

		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
}

func TestAggregatorShouldDelete(t *testing.T) {
	runAggregatorTest(t, "testdata/should_delete")
}

func TestAggregatorAddToBuilder(t *testing.T) {
	runAggregatorTest(t, "testdata/add_to_builder")
}

func TestAggregatorLazyInit(t *testing.T) {
	a := NewReadAggregator(DefaultComparer, 72)
	require.True(t, a.IsEmpty())
	require.False(t, a.ShouldDelete(base.MakeInternalKey([]byte("a"), 1, base.InternalKeyKindSet)))
	require.False(t, a.ShouldAddTombstones(false))

	// An emission before anything was ingested must not touch the builder or
	// the bounds.
	b := &recordingBuilder{err: errors.New("boom")}
	var meta TableMeta
	require.NoError(t, a.AddToBuilder(b, nil, nil, &meta, false, false))
	require.Nil(t, meta.Smallest.UserKey)

	// An input holding no tombstones is closed immediately rather than
	// pinned, and leaves the aggregator unmaterialized.
	empty := newTestIter()
	require.NoError(t, a.AddTombstones(empty))
	require.Equal(t, 1, empty.closes)
	require.True(t, a.IsEmpty())
	require.Nil(t, a.rep)

	// The first real tombstone materializes the stripe table and pins its
	// iterator.
	iter := newTestIter(parseTombstone(t, "a-c#50"))
	require.NoError(t, a.AddTombstones(iter))
	require.False(t, a.IsEmpty())
	require.NotNil(t, a.rep)
	require.Len(t, a.rep.stripes, 2)
	require.Equal(t, 0, iter.closes)

	require.NoError(t, a.Close())
	require.Equal(t, 1, iter.closes)

	// Close is idempotent: the pinned iterator is released exactly once.
	require.NoError(t, a.Close())
	require.Equal(t, 1, iter.closes)
}

func TestAggregatorCorruption(t *testing.T) {
	a := NewAggregator(DefaultComparer, []base.SeqNum{100})
	iter := newTestIter(parseTombstone(t, "a-c#50"), parseTombstone(t, "d-f#60"))
	// Inject a record whose key is too short to carry a trailer, between the
	// two well-formed ones.
	iter.keys = slices.Insert(iter.keys, 1, []byte("x"))
	iter.values = slices.Insert(iter.values, 1, []byte("z"))

	err := a.AddTombstones(iter)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCorruption))

	// Ingestion halted at the malformed record: the tombstone before it
	// remains, the one after it was never seen.
	require.Equal(t, 1, a.NumTombstones())

	// The partially-consumed iterator was still pinned, and is released by
	// Close.
	require.Equal(t, 0, iter.closes)
	require.NoError(t, a.Close())
	require.Equal(t, 1, iter.closes)
}

func TestAggregatorCloseError(t *testing.T) {
	a := NewAggregator(DefaultComparer, nil)
	iter := newTestIter(parseTombstone(t, "a-c#50"))
	iter.closeErr = errors.New("injected close failure")
	require.NoError(t, a.AddTombstones(iter))

	err := a.Close()
	require.Error(t, err)
	require.Equal(t, 1, iter.closes)
	// A second Close does not re-close or re-report.
	require.NoError(t, a.Close())
	require.Equal(t, 1, iter.closes)
}

func TestAggregatorSinkFailure(t *testing.T) {
	a := NewAggregator(DefaultComparer, nil)
	require.NoError(t, a.AddTombstones(NewIter(DefaultComparer.Compare, buildTombstones(t, "a-c#50"))))
	defer a.Close()

	injected := errors.New("injected sink failure")
	b := &recordingBuilder{err: injected}
	var meta TableMeta
	err := a.AddToBuilder(b, nil, nil, &meta, false, false)
	require.True(t, errors.Is(err, injected))
	// The failed emission must not have widened the bounds.
	require.Nil(t, meta.Smallest.UserKey)
	require.Nil(t, meta.Largest.UserKey)
}

func TestShouldDeleteEncoded(t *testing.T) {
	a := NewAggregator(DefaultComparer, []base.SeqNum{100, 200})
	require.NoError(t, a.AddTombstones(NewIter(DefaultComparer.Compare, buildTombstones(t, "a-m#50\nm-z#150"))))
	defer a.Close()

	encode := func(k base.InternalKey) []byte {
		buf := make([]byte, k.Size())
		k.Encode(buf)
		return buf
	}

	// Same stripe, tombstone strictly newer: covered.
	covered, err := a.ShouldDeleteEncoded(encode(
		base.MakeInternalKey([]byte("c"), 40, base.InternalKeyKindSet)))
	require.NoError(t, err)
	require.True(t, covered)

	// Same stripe, tombstone not strictly newer: not covered.
	covered, err = a.ShouldDeleteEncoded(encode(
		base.MakeInternalKey([]byte("n"), 150, base.InternalKeyKindSet)))
	require.NoError(t, err)
	require.False(t, covered)

	_, err = a.ShouldDeleteEncoded([]byte("junk"))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformedKey))
}

// TestAggregatorStripeConfinement exercises the snapshot-safety invariant:
// a tombstone in a different stripe never covers a key, even when its bounds
// and sequence number otherwise would.
func TestAggregatorStripeConfinement(t *testing.T) {
	a := NewAggregator(DefaultComparer, []base.SeqNum{100, 200})
	require.NoError(t, a.AddTombstones(NewIter(DefaultComparer.Compare, buildTombstones(t, "a-m#50\nm-z#150"))))
	defer a.Close()

	key := func(k string, seq base.SeqNum) base.InternalKey {
		return base.MakeInternalKey([]byte(k), seq, base.InternalKeyKindSet)
	}

	// c#40 is in stripe (0,100] together with [a,m)#50: covered.
	require.True(t, a.ShouldDelete(key("c", 40)))
	// c#60 is in the same stripe but the tombstone at seq 50 is not
	// strictly newer: not covered.
	require.False(t, a.ShouldDelete(key("c", 60)))
	// n#40 is covered in bounds by [m,z)#150, but they are separated by the
	// snapshot at 100: not covered.
	require.False(t, a.ShouldDelete(key("n", 40)))
	// n#140 shares the stripe (100,200] with [m,z)#150: covered.
	require.True(t, a.ShouldDelete(key("n", 140)))
	// n#160 is newer than the tombstone: not covered.
	require.False(t, a.ShouldDelete(key("n", 160)))
}

func TestAggregatorMultipleInputs(t *testing.T) {
	// Each input stream is pinned independently and all are released by the
	// one Close.
	a := NewAggregator(DefaultComparer, nil)
	first := newTestIter(parseTombstone(t, "a-c#10"))
	second := newTestIter(parseTombstone(t, "d-f#20"))
	require.NoError(t, a.AddTombstones(first))
	require.NoError(t, a.AddTombstones(second))
	require.Equal(t, 2, a.NumTombstones())

	require.NoError(t, a.Close())
	require.Equal(t, 1, first.closes)
	require.Equal(t, 1, second.closes)
}
