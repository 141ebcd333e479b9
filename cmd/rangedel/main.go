// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command rangedel inspects textual range tombstone fixtures: it answers
// point key coverage queries, previews the tombstones a compaction would
// write to an output table, and fragments overlapping tombstones.
//
// A fixture holds one tombstone per line in the form start-end#seqnum, e.g.
//
//	a-m#50
//	m-z#150
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/petermattis/rangedel"
	"github.com/petermattis/rangedel/internal/base"
)

var (
	snapshots       string
	lower           string
	upper           string
	bottommost      bool
	extendBeforeMin bool
)

var rootCmd = &cobra.Command{
	Use:   "rangedel [command] (flags)",
	Short: "range tombstone fixture introspection tool",
	Long:  ``,
}

var coveredCmd = &cobra.Command{
	Use:   "covered <fixture> <key#seqnum> ...",
	Short: "report which of the keys are deleted by a tombstone",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAggregator(args[0])
		if err != nil {
			return err
		}
		defer a.Close()
		for _, arg := range args[1:] {
			key, err := parseKey(arg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %t\n", arg, a.ShouldDelete(key))
		}
		return nil
	},
}

var emitCmd = &cobra.Command{
	Use:   "emit <fixture>",
	Short: "print the tombstones a compaction would write to an output table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAggregator(args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		var lowerBound, upperBound []byte
		if lower != "" {
			lowerBound = []byte(lower)
		}
		if upper != "" {
			upperBound = []byte(upper)
		}
		if !a.ShouldAddTombstones(bottommost) {
			fmt.Fprintf(cmd.OutOrStdout(), "no tombstones to add\n")
			return nil
		}
		var meta rangedel.TableMeta
		b := &printBuilder{out: cmd.OutOrStdout()}
		err = a.AddToBuilder(b, lowerBound, upperBound, &meta, bottommost, extendBeforeMin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "smallest: %s\nlargest: %s\n", meta.Smallest, meta.Largest)
		return nil
	},
}

var fragmentCmd = &cobra.Command{
	Use:   "fragment <fixture>",
	Short: "fragment the tombstones so that no two overlap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tombstones, err := loadTombstones(args[0])
		if err != nil {
			return err
		}
		f := &rangedel.Fragmenter{
			Cmp: rangedel.DefaultComparer.Compare,
			Emit: func(fragmented []rangedel.Tombstone) {
				for _, t := range fragmented {
					fmt.Fprintf(cmd.OutOrStdout(), "%s-%s#%d\n", t.Start.UserKey, t.End, t.SeqNum())
				}
			},
		}
		for _, t := range tombstones {
			f.Add(t.Start, t.End)
		}
		f.Finish()
		return nil
	},
}

// printBuilder is a Builder that prints each added tombstone.
type printBuilder struct {
	out io.Writer
}

func (b *printBuilder) Add(key base.InternalKey, value []byte) error {
	_, err := fmt.Fprintf(b.out, "%s-%s#%d\n", key.UserKey, value, key.SeqNum())
	return err
}

var tombstoneRe = regexp.MustCompile(`^(\w+)-(\w+)#(\d+)$`)

func loadTombstones(path string) ([]rangedel.Tombstone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tombstones []rangedel.Tombstone
	for _, line := range crstrings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := tombstoneRe.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Newf("%s: cannot parse tombstone %q", path, line)
		}
		seqNum, err := strconv.ParseUint(m[3], 10, 64)
		if err != nil {
			return nil, err
		}
		tombstones = append(tombstones, rangedel.Tombstone{
			Start: base.MakeInternalKey(
				[]byte(m[1]), base.SeqNum(seqNum), base.InternalKeyKindRangeDelete),
			End: []byte(m[2]),
		})
	}
	// Fixture order is not trusted; ingestion wants the tombstones sorted by
	// start key.
	slices.SortStableFunc(tombstones, func(a, b rangedel.Tombstone) int {
		return bytes.Compare(a.Start.UserKey, b.Start.UserKey)
	})
	return tombstones, nil
}

func loadAggregator(path string) (*rangedel.Aggregator, error) {
	tombstones, err := loadTombstones(path)
	if err != nil {
		return nil, err
	}
	seqNums, err := parseSnapshots(snapshots)
	if err != nil {
		return nil, err
	}
	a := rangedel.NewAggregator(rangedel.DefaultComparer, seqNums)
	if err := a.AddTombstones(rangedel.NewIter(rangedel.DefaultComparer.Compare, tombstones)); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func parseSnapshots(s string) ([]base.SeqNum, error) {
	if s == "" {
		return nil, nil
	}
	var seqNums []base.SeqNum
	for _, part := range strings.Split(s, ",") {
		seq, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot parse snapshot %q", part)
		}
		seqNums = append(seqNums, base.SeqNum(seq))
	}
	return seqNums, nil
}

var keyRe = regexp.MustCompile(`^(\w+)#(\d+)$`)

func parseKey(s string) (base.InternalKey, error) {
	m := keyRe.FindStringSubmatch(s)
	if m == nil {
		return base.InternalKey{}, errors.Newf("cannot parse key %q", s)
	}
	seqNum, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return base.InternalKey{}, err
	}
	return base.MakeInternalKey([]byte(m[1]), base.SeqNum(seqNum), base.InternalKeyKindSet), nil
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		coveredCmd,
		emitCmd,
		fragmentCmd,
	)

	for _, cmd := range []*cobra.Command{coveredCmd, emitCmd} {
		cmd.Flags().StringVar(
			&snapshots, "snapshots", "", "comma-separated snapshot sequence numbers")
	}
	emitCmd.Flags().StringVar(
		&lower, "lower", "", "lower bound of the output table (inclusive)")
	emitCmd.Flags().StringVar(
		&upper, "upper", "", "upper bound of the output table (exclusive)")
	emitCmd.Flags().BoolVar(
		&bottommost, "bottommost", false, "drop the tombstones in the oldest snapshot stripe")
	emitCmd.Flags().BoolVar(
		&extendBeforeMin, "extend-before-min", false,
		"allow the smallest table bound to extend below the existing keys")

	if err := rootCmd.Execute(); err != nil {
		base.DefaultLogger{}.Fatalf("%s", err)
	}
}
