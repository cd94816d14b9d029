// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

import (
	"io"
	"math/rand"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/seqtrain/vocab"
)

// Example is one tokenized corpus entry. Auxiliary is empty for single-task
// corpora.
type Example struct {
	Source    []string
	Target    []string
	Auxiliary []string
}

// Vocabs bundles the vocabularies of the corpus fields. Auxiliary may be nil.
type Vocabs struct {
	Source    *vocab.Vocab
	Target    *vocab.Vocab
	Auxiliary *vocab.Vocab
}

// InMemoryDataset yields batches built from examples held in memory: token
// rows are encoded through the vocabularies, wrapped in <sos>/<eos> and
// padded to the longest row of each batch.
//
// Yield returns io.EOF at the end of an epoch; Reset rewinds it, reshuffling
// first when Shuffle was set.
type InMemoryDataset struct {
	name      string
	examples  []Example
	vocabs    Vocabs
	batchSize int

	shuffle bool
	rng     *rand.Rand
	order   []int
	next    int
}

// NewInMemoryDataset creates a dataset over the given examples.
//
// The auxiliary vocabulary must be set iff the examples carry auxiliary
// tokens, otherwise it panics: that is a construction-time mistake, not a
// runtime condition.
func NewInMemoryDataset(name string, examples []Example, vocabs Vocabs, batchSize int) *InMemoryDataset {
	if batchSize <= 0 {
		exceptions.Panicf("data.NewInMemoryDataset(%q): batchSize must be > 0, got %d", name, batchSize)
	}
	if vocabs.Source == nil || vocabs.Target == nil {
		exceptions.Panicf("data.NewInMemoryDataset(%q): source and target vocabularies are required", name)
	}
	hasAux := len(examples) > 0 && len(examples[0].Auxiliary) > 0
	if hasAux && vocabs.Auxiliary == nil {
		exceptions.Panicf("data.NewInMemoryDataset(%q): examples have auxiliary tokens but no auxiliary vocabulary was given", name)
	}
	ds := &InMemoryDataset{
		name:      name,
		examples:  examples,
		vocabs:    vocabs,
		batchSize: batchSize,
		order:     make([]int, len(examples)),
	}
	for ii := range ds.order {
		ds.order[ii] = ii
	}
	return ds
}

// Shuffle configures the dataset to reshuffle the example order on every
// Reset. It returns the dataset, so calls can be cascaded.
func (ds *InMemoryDataset) Shuffle() *InMemoryDataset {
	ds.shuffle = true
	ds.rng = rand.New(rand.NewSource(42))
	ds.rng.Shuffle(len(ds.order), func(i, j int) { ds.order[i], ds.order[j] = ds.order[j], ds.order[i] })
	return ds
}

// WithRand sets the random number generator used for shuffling. It implies
// Shuffle.
func (ds *InMemoryDataset) WithRand(rng *rand.Rand) *InMemoryDataset {
	ds.shuffle = true
	ds.rng = rng
	ds.rng.Shuffle(len(ds.order), func(i, j int) { ds.order[i], ds.order[j] = ds.order[j], ds.order[i] })
	return ds
}

// Name implements train.Dataset.
func (ds *InMemoryDataset) Name() string { return ds.name }

// NumExamples returns the total number of examples in the dataset.
func (ds *InMemoryDataset) NumExamples() int { return len(ds.examples) }

// NumBatches returns the number of batches per epoch, the last one possibly
// smaller than the batch size.
func (ds *InMemoryDataset) NumBatches() int {
	return (len(ds.examples) + ds.batchSize - 1) / ds.batchSize
}

// Reset restarts the dataset for a new epoch.
func (ds *InMemoryDataset) Reset() error {
	ds.next = 0
	if ds.shuffle {
		ds.rng.Shuffle(len(ds.order), func(i, j int) { ds.order[i], ds.order[j] = ds.order[j], ds.order[i] })
	}
	return nil
}

// Yield returns the next batch, or io.EOF at the end of the epoch.
func (ds *InMemoryDataset) Yield() (*Batch, error) {
	if ds.next >= len(ds.examples) {
		return nil, io.EOF
	}
	end := ds.next + ds.batchSize
	if end > len(ds.examples) {
		end = len(ds.examples)
	}
	indices := ds.order[ds.next:end]
	ds.next = end

	batch := &Batch{
		Source: encodeField(ds.examples, indices, ds.vocabs.Source, func(e Example) []string { return e.Source }),
		Target: encodeField(ds.examples, indices, ds.vocabs.Target, func(e Example) []string { return e.Target }),
	}
	if ds.vocabs.Auxiliary != nil {
		aux := encodeField(ds.examples, indices, ds.vocabs.Auxiliary, func(e Example) []string { return e.Auxiliary })
		batch.Auxiliary = &aux
	}
	return batch, nil
}

// encodeField builds one padded field from the selected examples.
func encodeField(examples []Example, indices []int, voc *vocab.Vocab, fieldOf func(e Example) []string) Field {
	maxLen := 0
	for _, idx := range indices {
		if n := len(fieldOf(examples[idx])); n > maxLen {
			maxLen = n
		}
	}
	paddedLen := maxLen + 2 // <sos> and <eos>.
	field := Field{
		Rows:    make([][]int32, len(indices)),
		Lengths: make([]int, len(indices)),
	}
	for ii, idx := range indices {
		tokens := fieldOf(examples[idx])
		row := make([]int32, paddedLen)
		row[0] = vocab.SOSID
		copy(row[1:], voc.Encode(tokens))
		row[len(tokens)+1] = vocab.EOSID
		for jj := len(tokens) + 2; jj < paddedLen; jj++ {
			row[jj] = vocab.PadID
		}
		field.Rows[ii] = row
		field.Lengths[ii] = len(tokens) + 2
	}
	return field
}
