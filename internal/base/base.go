// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package base defines the fundamental types shared by the rangedel
// aggregation machinery: user key comparison, internal keys and sequence
// numbers, the iterator contract for tombstone ingestion, and the error and
// logging surfaces.
package base
