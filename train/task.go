// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import "github.com/gomlx/exceptions"

// TaskMode selects which objectives a training run optimizes. It is derived
// once from the configured multi-task mixing ratio and never changes during
// a run.
type TaskMode int

const (
	// TaskSingleMain trains only the main target field (ratio == 1).
	TaskSingleMain TaskMode = iota

	// TaskSingleAuxiliary trains only the auxiliary field (ratio == 0). The
	// corpus supplies the auxiliary column as the target, so the training
	// path is the same as TaskSingleMain.
	TaskSingleAuxiliary

	// TaskMulti jointly trains main and auxiliary objectives, with losses
	// mixed by the configured ratio (0 < ratio < 1).
	TaskMulti
)

// TaskModeFromRatio derives the task mode from the multi-task mixing ratio.
// It panics for ratios outside [0, 1].
func TaskModeFromRatio(ratio float64) TaskMode {
	switch {
	case ratio == 1:
		return TaskSingleMain
	case ratio == 0:
		return TaskSingleAuxiliary
	case ratio > 0 && ratio < 1:
		return TaskMulti
	}
	exceptions.Panicf("multi-task ratio must be in [0, 1], got %g", ratio)
	return TaskSingleMain
}

// String implements Stringer.
func (t TaskMode) String() string {
	switch t {
	case TaskSingleMain:
		return "Single-Main"
	case TaskSingleAuxiliary:
		return "Single-Auxiliary"
	case TaskMulti:
		return "Multi"
	}
	return "InvalidTaskMode"
}
