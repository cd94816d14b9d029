// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package vocab maps tokens to contiguous int32 ids and back, for encoding
// corpora and decoding model predictions.
//
// Every vocabulary reserves the first four ids for the special tokens
// UnknownToken, PadToken, SOSToken and EOSToken, in this order.
package vocab

import (
	"sort"
	"strings"
)

// Special tokens, always registered at fixed positions.
const (
	UnknownToken = "<unk>"
	PadToken     = "<pad>"
	SOSToken     = "<sos>"
	EOSToken     = "<eos>"
)

// Fixed ids of the special tokens.
const (
	UnknownID int32 = iota
	PadID
	SOSID
	EOSID
	numSpecialTokens
)

// Entry holds a token and the number of times it was registered.
type Entry struct {
	Token string
	Count int
}

// Vocab stores the vocabulary of one corpus field (source, target or
// auxiliary language).
type Vocab struct {
	// ListEntries indexed by token id ("itos").
	ListEntries []Entry

	// MapTokens from token to its id ("stoi").
	MapTokens map[string]int32

	// TotalCount of tokens registered, counting repetitions.
	TotalCount int
}

// New creates a vocabulary seeded with the special tokens.
func New() *Vocab {
	v := &Vocab{
		ListEntries: []Entry{{UnknownToken, 0}, {PadToken, 0}, {SOSToken, 0}, {EOSToken, 0}},
		MapTokens:   make(map[string]int32),
	}
	for ii, entry := range v.ListEntries {
		v.MapTokens[entry.Token] = int32(ii)
	}
	return v
}

// Build creates a vocabulary from tokenized sequences, sorted by frequency
// after the special tokens.
func Build(sequences [][]string) *Vocab {
	v := New()
	for _, seq := range sequences {
		for _, token := range seq {
			v.RegisterToken(token)
		}
	}
	v.SortByFrequency()
	return v
}

// RegisterToken adds one occurrence of token and returns its id, allocating
// a new id for first-seen tokens.
func (v *Vocab) RegisterToken(token string) int32 {
	v.TotalCount++
	idx, found := v.MapTokens[token]
	if !found {
		idx = int32(len(v.ListEntries))
		v.MapTokens[token] = idx
		v.ListEntries = append(v.ListEntries, Entry{token, 1})
	} else {
		v.ListEntries[idx].Count++
	}
	return idx
}

// SortByFrequency reorders the non-special entries by decreasing count and
// returns a map from old ids to new ids. Special tokens keep their ids.
func (v *Vocab) SortByFrequency() map[int32]int32 {
	subSlice := v.ListEntries[numSpecialTokens:]
	sort.SliceStable(subSlice, func(i, j int) bool {
		return subSlice[i].Count > subSlice[j].Count
	})
	remap := make(map[int32]int32, len(v.ListEntries))
	for ii := int32(0); ii < numSpecialTokens; ii++ {
		remap[ii] = ii
	}
	for ii, entry := range v.ListEntries {
		oldID := v.MapTokens[entry.Token]
		v.MapTokens[entry.Token] = int32(ii)
		remap[oldID] = int32(ii)
	}
	return remap
}

// Size returns the number of distinct tokens, special tokens included.
func (v *Vocab) Size() int {
	return len(v.ListEntries)
}

// TokenID returns the id of token, or UnknownID if it was never registered.
func (v *Vocab) TokenID(token string) int32 {
	idx, found := v.MapTokens[token]
	if !found {
		return UnknownID
	}
	return idx
}

// Token returns the token with the given id.
func (v *Vocab) Token(id int32) string {
	return v.ListEntries[id].Token
}

// Encode maps tokens to ids, unknown tokens to UnknownID.
func (v *Vocab) Encode(tokens []string) []int32 {
	ids := make([]int32, len(tokens))
	for ii, token := range tokens {
		ids[ii] = v.TokenID(token)
	}
	return ids
}

// DecodeUntil maps ids back to tokens and concatenates them, with no
// separator, stopping at the first occurrence of the stop token. The stop
// token itself and anything after it are discarded.
func (v *Vocab) DecodeUntil(ids []int32, stop string) string {
	var b strings.Builder
	for _, id := range ids {
		token := v.Token(id)
		if token == stop {
			break
		}
		b.WriteString(token)
	}
	return b.String()
}
