// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCriterion(t *testing.T) {
	assert.Equal(t, CriterionLoss, ParseCriterion("LOSS"))
	assert.Equal(t, CriterionAcc, ParseCriterion("ACC"))
	assert.Panics(t, func() { ParseCriterion("loss") })
	assert.Equal(t, "LOSS", CriterionLoss.String())
	assert.Equal(t, "ACC", CriterionAcc.String())
}

func TestNewPolicy(t *testing.T) {
	assert.Panics(t, func() { NewPolicy(CriterionLoss, 0) })

	p := NewPolicy(CriterionLoss, 5)
	record := p.Record()
	assert.True(t, math.IsInf(record.BestValidLoss, 1))
	assert.Equal(t, 0.0, record.BestValidAcc)
	assert.True(t, math.IsInf(record.LossAtBestAcc, 1))
	assert.Equal(t, -1, record.BestAccEpoch)
	assert.Equal(t, -1, record.BestAccStep)
	assert.Equal(t, 5, record.Patience)
	assert.Equal(t, -1.0, record.BestValidAccAux)
	assert.False(t, p.Exhausted())
}

func TestPolicyLossCriterion(t *testing.T) {
	p := NewPolicy(CriterionLoss, 2)

	// First evaluation always improves both branches.
	decision := p.Update(1.0, 0.5, Progress{Epoch: 0, Step: 10})
	assert.True(t, decision.LossImproved)
	assert.True(t, decision.SaveByLoss)
	assert.True(t, decision.AccImproved)
	assert.False(t, decision.SaveByAcc, "accuracy improvements must not save under the LOSS criterion")
	record := p.Record()
	assert.Equal(t, 1.0, record.BestValidLoss)
	assert.Equal(t, 0.5, record.BestValidAcc)
	assert.Equal(t, 1.0, record.LossAtBestAcc)
	assert.Equal(t, 0, record.BestAccEpoch)
	assert.Equal(t, 10, record.BestAccStep)
	assert.Equal(t, 2, record.Patience)

	// Worse loss burns patience; worse accuracy leaves the record alone.
	decision = p.Update(1.5, 0.4, Progress{Epoch: 1, Step: 20})
	assert.False(t, decision.LossImproved)
	assert.False(t, decision.SaveByLoss)
	assert.False(t, decision.AccImproved)
	assert.Equal(t, 1, p.Patience())
	assert.Equal(t, 0.5, p.Record().BestValidAcc)

	// A loss tie counts as improvement and restores full patience.
	decision = p.Update(1.0, 0.3, Progress{Epoch: 2, Step: 30})
	assert.True(t, decision.LossImproved)
	assert.True(t, decision.SaveByLoss)
	assert.Equal(t, 2, p.Patience())
}

func TestPolicyAccCriterion(t *testing.T) {
	p := NewPolicy(CriterionAcc, 3)

	decision := p.Update(2.0, 0.1, Progress{Epoch: 0, Step: 5})
	assert.True(t, decision.AccImproved)
	assert.True(t, decision.SaveByAcc)
	assert.True(t, decision.LossImproved)
	assert.False(t, decision.SaveByLoss, "loss improvements must not save under the ACC criterion")

	// An accuracy tie counts as improvement and refreshes the bookkeeping.
	decision = p.Update(2.5, 0.1, Progress{Epoch: 1, Step: 15})
	assert.True(t, decision.AccImproved)
	assert.True(t, decision.SaveByAcc)
	record := p.Record()
	assert.Equal(t, 2.5, record.LossAtBestAcc)
	assert.Equal(t, 1, record.BestAccEpoch)
	assert.Equal(t, 15, record.BestAccStep)
}

func TestPolicyBranchesAreIndependent(t *testing.T) {
	p := NewPolicy(CriterionLoss, 3)
	p.Update(1.0, 0.5, Progress{})

	// Loss got worse but accuracy improved: patience still drops.
	decision := p.Update(2.0, 0.6, Progress{Epoch: 1, Step: 100})
	assert.False(t, decision.LossImproved)
	assert.True(t, decision.AccImproved)
	assert.Equal(t, 2, p.Patience())
	assert.Equal(t, 0.6, p.Record().BestValidAcc)

	// Loss improved but accuracy got worse: patience restored, accuracy
	// record untouched.
	decision = p.Update(0.5, 0.1, Progress{Epoch: 2, Step: 200})
	assert.True(t, decision.LossImproved)
	assert.False(t, decision.AccImproved)
	assert.Equal(t, 3, p.Patience())
	assert.Equal(t, 0.6, p.Record().BestValidAcc)
	assert.Equal(t, 1, p.Record().BestAccEpoch)
}

func TestPolicyPatienceExhaustionAndClamp(t *testing.T) {
	p := NewPolicy(CriterionLoss, 2)
	p.Update(1.0, 0.5, Progress{})
	require.False(t, p.Exhausted())

	p.Update(2.0, 0.5, Progress{})
	assert.Equal(t, 1, p.Patience())
	p.Update(2.0, 0.5, Progress{})
	assert.Equal(t, 0, p.Patience())
	assert.True(t, p.Exhausted())

	// Patience never goes negative.
	p.Update(2.0, 0.5, Progress{})
	assert.Equal(t, 0, p.Patience())

	// And an improvement after exhaustion restores it in full.
	p.Update(0.5, 0.5, Progress{})
	assert.Equal(t, 2, p.Patience())
	assert.False(t, p.Exhausted())
}

func TestPolicyResetRecord(t *testing.T) {
	p := NewPolicy(CriterionLoss, 4)
	p.Update(1.0, 0.9, Progress{Epoch: 3, Step: 300})
	p.Update(2.0, 0.1, Progress{Epoch: 4, Step: 400})
	p.UpdateAux(0.7)
	require.Equal(t, 3, p.Patience())

	p.ResetRecord()
	record := p.Record()
	assert.True(t, math.IsInf(record.BestValidLoss, 1))
	assert.Equal(t, 0.0, record.BestValidAcc)
	assert.Equal(t, -1, record.BestAccEpoch)
	assert.Equal(t, 4, record.Patience)
	assert.Equal(t, -1.0, record.BestValidAccAux)
}

func TestPolicyUpdateAux(t *testing.T) {
	p := NewPolicy(CriterionLoss, 2)
	p.Update(1.0, 0.5, Progress{})

	assert.True(t, p.UpdateAux(0.0), "first auxiliary accuracy always improves over -1")
	assert.True(t, p.UpdateAux(0.0), "ties count as improvement")
	assert.False(t, p.UpdateAux(-0.5))
	assert.True(t, p.UpdateAux(0.3))
	assert.Equal(t, 0.3, p.Record().BestValidAccAux)

	// Advisory only: patience and checkpoint metrics untouched.
	assert.Equal(t, 2, p.Patience())
	assert.Equal(t, 1.0, p.Record().BestValidLoss)
}
