// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTeacherForcingRatio(t *testing.T) {
	assert.InDelta(t, 0.8, TeacherForcingRatio(0), 1e-9)
	assert.InDelta(t, InitialTeacherForcingRatio, TeacherForcingRatio(0), 1e-9)
	assert.InDelta(t, 0.5, TeacherForcingRatio(10), 1e-9)
	assert.InDelta(t, 0.2, TeacherForcingRatio(20), 1e-9)

	// Floored at 0.2 from there on.
	assert.Equal(t, 0.2, TeacherForcingRatio(21))
	assert.Equal(t, 0.2, TeacherForcingRatio(1000))

	// Monotonically non-increasing.
	previous := TeacherForcingRatio(0)
	for epoch := 1; epoch < 50; epoch++ {
		ratio := TeacherForcingRatio(epoch)
		assert.LessOrEqual(t, ratio, previous, "epoch %d", epoch)
		previous = ratio
	}
}

func TestTaskModeFromRatio(t *testing.T) {
	assert.Equal(t, TaskSingleMain, TaskModeFromRatio(1))
	assert.Equal(t, TaskSingleAuxiliary, TaskModeFromRatio(0))
	assert.Equal(t, TaskMulti, TaskModeFromRatio(0.5))
	assert.Equal(t, TaskMulti, TaskModeFromRatio(0.01))
	assert.Panics(t, func() { TaskModeFromRatio(1.5) })
	assert.Panics(t, func() { TaskModeFromRatio(-0.1) })

	assert.Equal(t, "Single-Main", TaskSingleMain.String())
	assert.Equal(t, "Multi", TaskMulti.String())
}
