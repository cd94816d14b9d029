// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservesSpecialTokens(t *testing.T) {
	v := New()
	assert.Equal(t, 4, v.Size())
	assert.Equal(t, UnknownID, v.TokenID(UnknownToken))
	assert.Equal(t, PadID, v.TokenID(PadToken))
	assert.Equal(t, SOSID, v.TokenID(SOSToken))
	assert.Equal(t, EOSID, v.TokenID(EOSToken))
	assert.Equal(t, EOSToken, v.Token(EOSID))
}

func TestRegisterToken(t *testing.T) {
	v := New()
	id := v.RegisterToken("hello")
	assert.Equal(t, int32(4), id)
	assert.Equal(t, id, v.RegisterToken("hello"), "repeated registrations keep the id")
	assert.Equal(t, int32(5), v.RegisterToken("world"))
	assert.Equal(t, 3, v.TotalCount)
	assert.Equal(t, 2, v.ListEntries[4].Count)
}

func TestSortByFrequency(t *testing.T) {
	v := New()
	v.RegisterToken("rare")
	for ii := 0; ii < 3; ii++ {
		v.RegisterToken("common")
	}
	remap := v.SortByFrequency()

	assert.Equal(t, "common", v.Token(4))
	assert.Equal(t, "rare", v.Token(5))
	assert.Equal(t, int32(4), v.TokenID("common"))
	// The remap translates pre-sort ids, special tokens fixed.
	assert.Equal(t, int32(5), remap[4])
	assert.Equal(t, int32(4), remap[5])
	assert.Equal(t, PadID, remap[PadID])
}

func TestEncodeDecode(t *testing.T) {
	v := Build([][]string{{"the", "cat", "sat"}, {"the", "dog"}})
	require.Equal(t, 4+4, v.Size())

	// "the" appears twice, so frequency sorting gives it the first free id.
	assert.Equal(t, int32(4), v.TokenID("the"))

	ids := v.Encode([]string{"the", "cat", "never-seen"})
	assert.Equal(t, UnknownID, ids[2])
	assert.Equal(t, v.TokenID("cat"), ids[1])

	decoded := v.DecodeUntil(v.Encode([]string{"the", "cat", EOSToken, "dog"}), EOSToken)
	assert.Equal(t, "thecat", decoded, "decoding stops at the stop token")

	assert.Equal(t, "thecatsat", v.DecodeUntil(v.Encode([]string{"the", "cat", "sat"}), EOSToken))
}
