// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

// InitialTeacherForcingRatio is the ratio a Session starts with, before the
// first epoch applies the schedule.
const InitialTeacherForcingRatio = 0.8

// TeacherForcingRatio returns the teacher-forcing ratio to use for the given
// epoch: a linear decay `1 - (10 + 1.5*epoch)/50`, floored at 0.2. It is
// monotonically non-increasing in the epoch.
func TeacherForcingRatio(epoch int) float64 {
	ratio := 1 - (10+1.5*float64(epoch))/50
	if ratio < 0.2 {
		return 0.2
	}
	return ratio
}
