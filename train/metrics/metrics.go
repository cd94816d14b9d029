// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package metrics implements the metric computations used by the training
// loop: sequence exact-match counting, running mean loss and perplexity.
package metrics

import (
	"math"

	"github.com/gomlx/seqtrain/vocab"
)

// ExactMatch counts the rows of pred whose decoded token sequence equals the
// decoded reference row. Each row is decoded through the vocabulary and
// truncated at the first <eos> token; anything after it is ignored, on both
// sides. A single differing token anywhere fails the whole row.
func ExactMatch(pred, ref [][]int32, voc *vocab.Vocab) int {
	tally := 0
	for jj := range pred {
		predStr := voc.DecodeUntil(pred[jj], vocab.EOSToken)
		refStr := voc.DecodeUntil(ref[jj], vocab.EOSToken)
		if predStr == refStr {
			tally++
		}
	}
	return tally
}

// Mean accumulates a stream of values and reports their running average.
// The zero value is ready to use.
type Mean struct {
	sum   float64
	count int
}

// Add one observation.
func (m *Mean) Add(value float64) {
	m.sum += value
	m.count++
}

// Count of observations added so far.
func (m *Mean) Count() int { return m.count }

// Mean of the observations added so far, or 0 if none were added.
func (m *Mean) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Perplexity of a mean cross-entropy loss.
func Perplexity(meanLoss float64) float64 {
	return math.Exp(meanLoss)
}
