// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/seqtrain/vocab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoresArgmax(t *testing.T) {
	scores := Scores{
		{{0.1, 0.7, 0.2}, {0.9, 0.05, 0.05}},
		{{0.2, 0.3, 0.5}, {0.1, 0.1, 0.8}},
	}
	assert.Equal(t, [][]int32{{1, 0}, {2, 2}}, scores.Argmax())
}

func TestStripLead(t *testing.T) {
	field := Field{
		Rows:    [][]int32{{2, 5, 6, 3}, {2, 7, 3, 1}},
		Lengths: []int{4, 3},
	}
	stripped := field.StripLead()
	assert.Equal(t, [][]int32{{5, 6, 3}, {7, 3, 1}}, stripped.Rows)
	assert.Equal(t, []int{3, 2}, stripped.Lengths)
	// Original field untouched.
	assert.Equal(t, []int{4, 3}, field.Lengths)

	scores := Scores{
		{{1, 0}, {0, 1}, {1, 0}},
		{{0, 1}, {1, 0}, {0, 1}},
	}
	assert.Len(t, scores.StripLead()[0], 2)
}

func testExamples() []Example {
	return []Example{
		{Source: []string{"a", "b"}, Target: []string{"x", "y"}, Auxiliary: []string{"p"}},
		{Source: []string{"c"}, Target: []string{"z"}, Auxiliary: []string{"q", "r"}},
		{Source: []string{"a", "c", "b"}, Target: []string{"y"}, Auxiliary: []string{"p"}},
	}
}

func TestInMemoryDataset(t *testing.T) {
	examples := testExamples()
	vocabs := BuildVocabs(examples)
	require.NotNil(t, vocabs.Auxiliary)
	ds := NewInMemoryDataset("train", examples, vocabs, 2)
	assert.Equal(t, 3, ds.NumExamples())
	assert.Equal(t, 2, ds.NumBatches())

	batch, err := ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, 2, batch.BatchSize())
	require.NotNil(t, batch.Auxiliary)

	// Row 0: <sos> a b <eos>; row 1: <sos> c <eos> <pad> -- padded to the
	// longest row of the batch.
	src := batch.Source
	assert.Equal(t, []int{4, 3}, src.Lengths)
	assert.Equal(t, vocab.SOSID, src.Rows[0][0])
	assert.Equal(t, vocab.EOSID, src.Rows[0][3])
	assert.Equal(t, vocab.EOSID, src.Rows[1][2])
	assert.Equal(t, vocab.PadID, src.Rows[1][3])
	assert.Len(t, src.Rows[1], 4)

	// Second (last, smaller) batch, then EOF.
	batch, err = ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, 1, batch.BatchSize())
	_, err = ds.Yield()
	assert.Equal(t, io.EOF, err)

	// Reset rewinds to a full epoch.
	require.NoError(t, ds.Reset())
	batch, err = ds.Yield()
	require.NoError(t, err)
	assert.Equal(t, 2, batch.BatchSize())
}

func TestInMemoryDatasetEncoding(t *testing.T) {
	examples := testExamples()
	vocabs := BuildVocabs(examples)
	ds := NewInMemoryDataset("valid", examples, vocabs, 3)
	batch, err := ds.Yield()
	require.NoError(t, err)

	// Decoding a target row up to <eos> recovers the original tokens.
	decoded := vocabs.Target.DecodeUntil(batch.Target.Rows[0][1:], vocab.EOSToken)
	assert.Equal(t, "xy", decoded)
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.tsv")
	contents := "src\ttrg\tpinyin\na b\tx y\tp1 p2\nc\tz\tp3\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	examples, err := LoadTSV(path, TableSpec{
		SourceColumn:    "src",
		TargetColumn:    "trg",
		AuxiliaryColumn: "pinyin",
	})
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, []string{"a", "b"}, examples[0].Source)
	assert.Equal(t, []string{"x", "y"}, examples[0].Target)
	assert.Equal(t, []string{"p1", "p2"}, examples[0].Auxiliary)
	assert.Equal(t, []string{"z"}, examples[1].Target)

	// Missing column reports the available ones.
	_, err = LoadTSV(path, TableSpec{SourceColumn: "nope", TargetColumn: "trg"})
	require.Error(t, err)
}
