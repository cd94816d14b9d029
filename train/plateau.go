// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import "k8s.io/klog/v2"

// PlateauMode selects the direction in which the monitored metric improves.
type PlateauMode int

const (
	// PlateauMin decays the learning rate when the metric stops decreasing
	// (e.g. a loss).
	PlateauMin PlateauMode = iota

	// PlateauMax decays the learning rate when the metric stops increasing
	// (e.g. an accuracy).
	PlateauMax
)

// PlateauScheduler multiplies the optimizer's learning rate by a decay
// factor once the monitored metric has failed to improve for a configured
// number of consecutive steps.
//
// The mode is derived from the validation criterion: ACC monitors a metric
// to maximize, LOSS one to minimize. Improvements smaller than the relative
// Threshold do not count.
type PlateauScheduler struct {
	// Factor the learning rate is multiplied by on each decay, in (0, 1).
	Factor float64

	// Patience is the number of consecutive non-improving steps tolerated
	// before decaying.
	Patience int

	// Threshold is the minimum relative improvement over the best metric,
	// defaults to 1e-4.
	Threshold float64

	// MinLR is an optional floor for the learning rate.
	MinLR float64

	// Mode of the monitored metric.
	Mode PlateauMode

	optimizer   Optimizer
	best        float64
	badSteps    int
	initialized bool
}

// NewPlateauScheduler creates a scheduler driving the given optimizer's
// learning rate.
func NewPlateauScheduler(optimizer Optimizer, mode PlateauMode, factor float64, patience int) *PlateauScheduler {
	return &PlateauScheduler{
		Factor:    factor,
		Patience:  patience,
		Threshold: 1e-4,
		Mode:      mode,
		optimizer: optimizer,
	}
}

// improved reports whether metric is a real improvement over the best seen,
// respecting the relative threshold.
func (s *PlateauScheduler) improved(metric float64) bool {
	if s.Mode == PlateauMax {
		return metric > s.best*(1+s.Threshold)
	}
	return metric < s.best*(1-s.Threshold)
}

// Step feeds one measurement of the monitored metric to the scheduler. When
// the metric plateaus past the patience, the optimizer's learning rate is
// decayed and the bad-step counter restarts.
func (s *PlateauScheduler) Step(metric float64) {
	if !s.initialized {
		s.best = metric
		s.initialized = true
		return
	}
	if s.improved(metric) {
		s.best = metric
		s.badSteps = 0
		return
	}
	s.badSteps++
	if s.badSteps < s.Patience {
		return
	}
	s.badSteps = 0
	lr := s.optimizer.LearningRate() * s.Factor
	if s.MinLR > 0 && lr < s.MinLR {
		lr = s.MinLR
	}
	klog.V(1).Infof("plateau scheduler: decaying learning rate to %.3e", lr)
	s.optimizer.SetLearningRate(lr)
}
