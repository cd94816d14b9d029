package fyneui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterruptStopsAttachedSessions(t *testing.T) {
	defer func() {
		muStopFns.Lock()
		stopFns = nil
		muStopFns.Unlock()
	}()

	var stopped []string
	registerStop(func() { stopped = append(stopped, "first") })
	registerStop(func() { stopped = append(stopped, "second") })

	// The interrupt handler asks every attached session to stop, then waits
	// for the runs to drain instead of quitting immediately.
	stopAttachedSessions()
	assert.Equal(t, []string{"first", "second"}, stopped)

	// Calling again is harmless: the latches are idempotent.
	stopAttachedSessions()
	assert.Len(t, stopped, 4)
}
