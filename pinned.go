// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rangedel

import (
	"io"

	"github.com/cockroachdb/errors"
)

// pinnedReaders keeps the storage backing zero-copy keys and values alive for
// the lifetime of an aggregator. An ingested iterator is pinned rather than
// closed, since the aggregator retains references into its backing storage.
// The pins are released exactly once, when the aggregator is closed.
type pinnedReaders struct {
	closers []io.Closer
	closed  bool
}

func (p *pinnedReaders) pin(c io.Closer) {
	p.closers = append(p.closers, c)
}

// release closes every pinned reader, combining their errors. Subsequent
// calls are no-ops.
func (p *pinnedReaders) release() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var err error
	for _, c := range p.closers {
		err = errors.CombineErrors(err, c.Close())
	}
	p.closers = nil
	return err
}
