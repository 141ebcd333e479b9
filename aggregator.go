// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"slices"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/rangedel/internal/base"
)

// Aggregator aggregates the range deletion tombstones encountered during a
// read or a compaction/flush. It answers whether a point key is deleted by a
// tombstone visible to it, and re-emits tombstones into the output table when
// the inputs holding them are rewritten.
//
// An Aggregator is a single-use object: it is constructed fresh for each
// operation, owned exclusively by that operation, and must be closed when the
// operation completes. Ingestion via AddTombstones must finish before any
// coverage or emission call.
type Aggregator struct {
	cmp       base.Compare
	equal     base.Equal
	snapshots Snapshots

	// rep holds the stripe table and the pinned readers. It is allocated
	// lazily, by the first ingested tombstone: an aggregator is constructed
	// on every read and most reads encounter no range tombstones, so the
	// common path should not allocate.
	rep *aggregatorRep
}

type aggregatorRep struct {
	stripes []stripe
	pinned  pinnedReaders
}

// stripe is the tombstone index for a single snapshot stripe: the interval
// of sequence numbers (prev, upperBound], where prev is the next smaller
// snapshot. Tombstones are sorted by start user key, with at most one
// tombstone per distinct start key.
type stripe struct {
	upperBound base.SeqNum
	tombstones []Tombstone
}

// NewAggregator constructs an aggregator for a flush or compaction. The
// snapshots list must hold the sequence number of every registered snapshot,
// in any order; it defines the stripe boundaries, which guarantee that no
// key still observable by a snapshot is deleted. The stripe table is
// materialized eagerly.
func NewAggregator(cmp *base.Comparer, snapshots []base.SeqNum) *Aggregator {
	a := newAggregator(cmp, makeSnapshots(snapshots))
	a.initRep()
	return a
}

// NewReadAggregator constructs an aggregator for a single read performed at
// upperBound. The sequence number space is split into just two stripes
// around upperBound, so that only tombstones observable by the read are
// considered by ShouldDelete. Materialization of the stripe table is
// deferred until the first tombstone is ingested.
func NewReadAggregator(cmp *base.Comparer, upperBound base.SeqNum) *Aggregator {
	return newAggregator(cmp, Snapshots{upperBound})
}

func newAggregator(cmp *base.Comparer, snapshots Snapshots) *Aggregator {
	if cmp == nil {
		cmp = base.DefaultComparer
	}
	return &Aggregator{
		cmp:       cmp.Compare,
		equal:     cmp.Equal,
		snapshots: snapshots,
	}
}

// initRep materializes the stripe table. The transition happens at most
// once, either eagerly at construction or triggered by the first ingested
// tombstone, and is never observable half-done.
func (a *Aggregator) initRep() {
	if a.rep != nil {
		return
	}
	rep := &aggregatorRep{stripes: make([]stripe, len(a.snapshots)+1)}
	for i, seq := range a.snapshots {
		rep.stripes[i].upperBound = seq
	}
	rep.stripes[len(a.snapshots)].upperBound = base.SeqNumMax
	a.rep = rep
}

// resolveStripe returns the stripe whose sequence number interval contains
// seq, materializing the stripe table on first use. A stripe's upper bound
// is inclusive: a sequence number equal to a snapshot resolves to the stripe
// that snapshot bounds.
func (a *Aggregator) resolveStripe(seq base.SeqNum) *stripe {
	a.initRep()
	return &a.rep.stripes[a.snapshots.Index(seq)]
}

// ShouldDelete returns true if the specified key is deleted by a range
// tombstone residing in the same snapshot stripe: the key lies within the
// tombstone's bounds and the tombstone was written strictly after the key.
// Tombstones in other stripes never cover the key, even when their bounds
// and sequence numbers otherwise would: they are separated from it by a
// registered snapshot.
func (a *Aggregator) ShouldDelete(key base.InternalKey) bool {
	if a.rep == nil {
		return false
	}
	s := &a.rep.stripes[a.snapshots.Index(key.SeqNum())]
	return s.covers(a.cmp, key)
}

// ShouldDeleteEncoded is a variant of ShouldDelete for a combined internal
// key that has not yet been decomposed into a user key and sequence number.
// It fails with an ErrMalformedKey error if the key cannot be decoded.
func (a *Aggregator) ShouldDeleteEncoded(encodedKey []byte) (bool, error) {
	key, err := base.ParseInternalKey(encodedKey)
	if err != nil {
		return false, err
	}
	return a.ShouldDelete(key), nil
}

// covers performs the in-stripe coverage test: a predecessor search on the
// start key, then a backward scan over the candidate tombstones. The
// tombstones are not assumed to be fragmented, so a tombstone indexed at an
// earlier start key may still reach past the search key.
func (s *stripe) covers(cmp base.Compare, key base.InternalKey) bool {
	i := sort.Search(len(s.tombstones), func(j int) bool {
		return cmp(s.tombstones[j].Start.UserKey, key.UserKey) > 0
	})
	for i--; i >= 0; i-- {
		t := s.tombstones[i]
		if t.SeqNum() > key.SeqNum() && cmp(key.UserKey, t.End) < 0 {
			return true
		}
	}
	return false
}

// AddTombstones ingests a stream of raw tombstone records, in ascending key
// order. The whole stream is consumed eagerly: subsequent coverage and
// emission calls need full visibility of every tombstone.
//
// The iterator is pinned rather than closed: the aggregator retains
// references into its backing storage, which must stay live until Close. An
// input that contributes no tombstones is closed immediately instead.
//
// Ingestion halts at the first undecodable record, surfacing an
// ErrCorruption error. Tombstones ingested before the error remain in place;
// the caller must treat the whole operation as failed rather than query the
// partial state.
func (a *Aggregator) AddTombstones(iter base.InternalIterator) error {
	count := 0
	err := func() error {
		for valid := iter.First(); valid; valid = iter.Next() {
			t, err := Decode(iter.Key(), iter.Value())
			if err != nil {
				return err
			}
			a.resolveStripe(t.SeqNum()).add(a.cmp, a.equal, t)
			count++
		}
		return iter.Error()
	}()
	if count == 0 {
		// Nothing was retained from the iterator's backing storage.
		return errors.CombineErrors(err, iter.Close())
	}
	a.rep.pinned.pin(iter)
	return err
}

// add inserts a tombstone into the stripe's index, keeping the index sorted
// by start user key. At most one tombstone is kept per distinct start key
// within a stripe; on an exact collision the incumbent wins, so the policy
// is deterministically first-ingested-wins.
func (s *stripe) add(cmp base.Compare, equal base.Equal, t Tombstone) {
	i := sort.Search(len(s.tombstones), func(j int) bool {
		return cmp(s.tombstones[j].Start.UserKey, t.Start.UserKey) >= 0
	})
	if i < len(s.tombstones) && equal(s.tombstones[i].Start.UserKey, t.Start.UserKey) {
		return
	}
	s.tombstones = slices.Insert(s.tombstones, i, t)
}

// ShouldAddTombstones returns true if any stripe holds tombstones that are
// candidates for emission into an output table. At the bottommost level of
// the storage hierarchy the oldest stripe is excluded: any key one of its
// tombstones could cover has already been dropped by earlier compactions, so
// re-emitting the tombstone would only waste space.
func (a *Aggregator) ShouldAddTombstones(bottommostLevel bool) bool {
	if a.rep == nil {
		return false
	}
	stripes := a.rep.stripes
	if bottommostLevel {
		stripes = stripes[1:]
	}
	for i := range stripes {
		if len(stripes[i].tombstones) > 0 {
			return true
		}
	}
	return false
}

// AddToBuilder writes the tombstones overlapping the target range
// [lowerBound,upperBound) to the builder, clipped to the target range, and
// widens meta's bounds to cover the emitted intervals. A nil lowerBound or
// upperBound leaves the target range unbounded in that direction.
//
// Bound widening exists for the benefit of the read path: readers use a
// table's bounds to decide whether to consult it, and a tombstone covering a
// gap before, after or between tables must force this table's bounds to
// advertise the gap, or the deletion would be silently skipped.
//
// When extendBeforeMinKey is false, the smallest bound is not moved below
// meta's current smallest user key; when true, it may extend down to the
// clipped tombstone start. When bottommostLevel is true, tombstones in the
// oldest stripe are dropped, for the reason given on ShouldAddTombstones.
//
// Builder failures abort the emission and are propagated verbatim.
func (a *Aggregator) AddToBuilder(
	builder Builder,
	lowerBound, upperBound []byte,
	meta *TableMeta,
	bottommostLevel bool,
	extendBeforeMinKey bool,
) error {
	if a.rep == nil {
		return nil
	}
	stripes := a.rep.stripes
	if bottommostLevel {
		stripes = stripes[1:]
	}

	// Gather the clipped tombstones from every eligible stripe, then emit
	// them in ascending internal key order: the builder requires its input
	// sorted, and the per-stripe indexes are only sorted individually.
	var pending []Tombstone
	for i := range stripes {
		for _, t := range stripes[i].tombstones {
			if upperBound != nil && a.cmp(upperBound, t.Start.UserKey) <= 0 {
				// The stripe's index is sorted by start key: no later
				// tombstone can re-enter the target range.
				break
			}
			if !t.Overlaps(a.cmp, lowerBound, upperBound) {
				continue
			}
			pending = append(pending, t.Clip(a.cmp, lowerBound, upperBound))
		}
	}
	slices.SortFunc(pending, func(x, y Tombstone) int {
		return base.InternalCompare(a.cmp, x.Start, y.Start)
	})

	for _, t := range pending {
		if err := builder.Add(t.Start, t.End); err != nil {
			return err
		}
		smallest := t.Start
		if !extendBeforeMinKey && meta.Smallest.UserKey != nil &&
			a.cmp(t.Start.UserKey, meta.Smallest.UserKey) < 0 {
			// Hold the smallest bound at its current user key: without
			// extendBeforeMinKey the tombstone may not advertise coverage
			// below the keys already in the table.
			smallest = base.MakeInternalKey(meta.Smallest.UserKey, t.SeqNum(), t.Start.Kind())
		}
		meta.ExtendSmallest(a.cmp, smallest)
		meta.ExtendLargest(a.cmp, base.MakeRangeDeleteSentinelKey(t.End))
	}
	return nil
}

// IsEmpty returns true if the aggregator holds no tombstones.
func (a *Aggregator) IsEmpty() bool {
	return a.NumTombstones() == 0
}

// NumTombstones returns the number of tombstones held across all stripes.
func (a *Aggregator) NumTombstones() int {
	if a.rep == nil {
		return 0
	}
	n := 0
	for i := range a.rep.stripes {
		n += len(a.rep.stripes[i].tombstones)
	}
	return n
}

// Close releases the iterators pinned by the aggregator, invalidating any
// zero-copy bytes obtained from them. It must be called once the owning
// operation completes, on every exit path, and is idempotent.
func (a *Aggregator) Close() error {
	if a.rep == nil {
		return nil
	}
	return a.rep.pinned.release()
}
