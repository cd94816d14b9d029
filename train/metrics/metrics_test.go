// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"math"
	"testing"

	"github.com/gomlx/seqtrain/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestVocab(t *testing.T) *vocab.Vocab {
	v := vocab.Build([][]string{{"a", "b", "c", "d"}})
	require.Equal(t, 8, v.Size()) // 4 special tokens + 4.
	return v
}

func TestExactMatch(t *testing.T) {
	v := buildTestVocab(t)
	a, b := v.TokenID("a"), v.TokenID("b")
	c, d := v.TokenID("c"), v.TokenID("d")

	// Trailing content after <eos> is ignored on both sides.
	pred := [][]int32{{a, b, vocab.EOSID, c}}
	ref := [][]int32{{a, b, vocab.EOSID, d}}
	assert.Equal(t, 1, ExactMatch(pred, ref, v))

	// One differing token before <eos> fails the whole row.
	pred = [][]int32{{a, c, vocab.EOSID}}
	ref = [][]int32{{a, b, vocab.EOSID}}
	assert.Equal(t, 0, ExactMatch(pred, ref, v))

	// Mixed batch counts only the matching rows.
	pred = [][]int32{
		{a, b, vocab.EOSID},
		{c, vocab.EOSID, a},
		{d, d, vocab.EOSID},
	}
	ref = [][]int32{
		{a, b, vocab.EOSID},
		{c, vocab.EOSID, b},
		{d, c, vocab.EOSID},
	}
	assert.Equal(t, 2, ExactMatch(pred, ref, v))
}

func TestMean(t *testing.T) {
	var m Mean
	assert.Equal(t, 0.0, m.Mean())
	m.Add(1)
	m.Add(2)
	m.Add(6)
	assert.Equal(t, 3, m.Count())
	assert.InDelta(t, 3.0, m.Mean(), 1e-12)
}

func TestPerplexity(t *testing.T) {
	assert.InDelta(t, 1.0, Perplexity(0), 1e-12)
	assert.InDelta(t, math.E, Perplexity(1), 1e-12)
}
