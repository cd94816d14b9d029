// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"math"

	"github.com/gomlx/exceptions"
)

// Criterion is the primary validation criterion of a run: it selects which
// of the two best-model checkpoints is written.
type Criterion int

const (
	// CriterionLoss persists the model when the validation loss improves.
	CriterionLoss Criterion = iota

	// CriterionAcc persists the model when the validation accuracy improves.
	CriterionAcc
)

// ParseCriterion parses "LOSS" or "ACC". It panics on any other value: the
// criterion comes from configuration validated at startup.
func ParseCriterion(name string) Criterion {
	switch name {
	case "LOSS":
		return CriterionLoss
	case "ACC":
		return CriterionAcc
	}
	exceptions.Panicf("invalid validation criterion %q, must be LOSS or ACC", name)
	return CriterionLoss
}

// String implements Stringer.
func (c Criterion) String() string {
	if c == CriterionAcc {
		return "ACC"
	}
	return "LOSS"
}

// EvaluationRecord is the memory of the evaluation policy: the best
// validation metrics seen so far and the remaining early-stopping patience.
//
// It is exclusively owned and mutated by the Session's Policy; hooks and
// logs observe copies. Patience is always within [0, configured max];
// reaching 0 is the early-stopping signal.
type EvaluationRecord struct {
	// BestValidLoss seen so far, +Inf until the first evaluation.
	BestValidLoss float64

	// BestValidAcc seen so far, -1 until the first evaluation.
	BestValidAcc float64

	// LossAtBestAcc, BestAccEpoch and BestAccStep record the validation loss
	// and the progress counters at the moment BestValidAcc was set.
	LossAtBestAcc float64
	BestAccEpoch  int
	BestAccStep   int

	// Patience evaluations remain before early stopping.
	Patience int

	// BestValidAccAux is the best auxiliary-task validation accuracy seen,
	// -1 until the first improvement. Advisory only: it never affects
	// patience or checkpointing.
	BestValidAccAux float64
}

// Decision is the outcome of one policy update: which checkpoints to write
// and which metrics improved.
type Decision struct {
	// SaveByLoss / SaveByAcc request the corresponding best-model
	// checkpoint write. At most one can be set per call, depending on the
	// configured criterion, but both improvement flags are always reported.
	SaveByLoss bool
	SaveByAcc  bool

	LossImproved bool
	AccImproved  bool
}

// Policy implements the evaluation/checkpoint state machine: it tracks the
// best validation metrics, decides when the model state should be persisted
// and counts down the early-stopping patience.
type Policy struct {
	record      EvaluationRecord
	criterion   Criterion
	maxPatience int
}

// NewPolicy creates a Policy with full patience and no evaluation history.
func NewPolicy(criterion Criterion, maxPatience int) *Policy {
	if maxPatience < 1 {
		exceptions.Panicf("early-stopping patience must be >= 1, got %d", maxPatience)
	}
	p := &Policy{criterion: criterion, maxPatience: maxPatience}
	p.ResetRecord()
	return p
}

// ResetRecord discards the evaluation history: best loss back to +Inf, best
// accuracy to 0 and patience to its maximum. Called during the burn-in
// phase, so checkpoint signals collected before the model stabilizes are
// abandoned.
func (p *Policy) ResetRecord() {
	p.record = EvaluationRecord{
		BestValidLoss:   math.Inf(1),
		BestValidAcc:    0,
		LossAtBestAcc:   math.Inf(1),
		BestAccEpoch:    -1,
		BestAccStep:     -1,
		Patience:        p.maxPatience,
		BestValidAccAux: -1,
	}
}

// Record returns a copy of the current evaluation record.
func (p *Policy) Record() EvaluationRecord { return p.record }

// Criterion returns the configured primary validation criterion.
func (p *Policy) Criterion() Criterion { return p.criterion }

// MaxPatience returns the configured early-stopping patience.
func (p *Policy) MaxPatience() int { return p.maxPatience }

// Patience returns the remaining early-stopping patience.
func (p *Policy) Patience() int { return p.record.Patience }

// Exhausted reports whether the early-stopping patience has run out.
func (p *Policy) Exhausted() bool { return p.record.Patience == 0 }

// Update applies one validation result. The loss and the accuracy branches
// are independent and both evaluated on every call, so zero, one or two
// checkpoint writes can be requested:
//
//   - validLoss <= best (ties count as improvement): best loss updated,
//     patience restored to its maximum, and the "best-by-loss" checkpoint
//     requested iff the criterion is LOSS. Otherwise patience drops by 1,
//     floored at 0.
//   - validAcc >= best (ties count as improvement): best accuracy updated
//     together with the loss/epoch/step at this point, and the
//     "best-by-accuracy" checkpoint requested iff the criterion is ACC.
func (p *Policy) Update(validLoss, validAcc float64, progress Progress) Decision {
	var decision Decision

	if validLoss <= p.record.BestValidLoss {
		decision.LossImproved = true
		decision.SaveByLoss = p.criterion == CriterionLoss
		p.record.BestValidLoss = validLoss
		p.record.Patience = p.maxPatience
	} else {
		p.record.Patience = max(p.record.Patience-1, 0)
	}

	if validAcc >= p.record.BestValidAcc {
		decision.AccImproved = true
		decision.SaveByAcc = p.criterion == CriterionAcc
		p.record.BestValidAcc = validAcc
		p.record.LossAtBestAcc = validLoss
		p.record.BestAccEpoch = progress.Epoch
		p.record.BestAccStep = progress.Step
	}
	return decision
}

// UpdateAux applies one auxiliary-task validation accuracy and reports
// whether it improved (ties count as improvement). It never affects patience
// or checkpointing: the auxiliary task is advisory only.
func (p *Policy) UpdateAux(validAccAux float64) (improved bool) {
	improved = validAccAux >= p.record.BestValidAccAux
	if improved {
		p.record.BestValidAccAux = validAccAux
	}
	return
}
