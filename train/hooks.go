// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Priority for hooks, the lowest values are run first. Defaults to 0, but
// negative values are ok.
type Priority int

// OnStartFn is the type of OnStart hooks, called once before the first
// epoch.
type OnStartFn func(sess *Session) error

// OnStepFn is the type of OnStep hooks, called after every optimizer step
// with the loss of the batch just trained.
type OnStepFn func(sess *Session, batchLoss float64) error

// OnEndFn is the type of OnEnd hooks, called once when the run finishes,
// normally or through early stopping / interruption.
type OnEndFn func(sess *Session) error

// hookWithName stores a hook name and function.
type hookWithName[F any] struct {
	name string
	fn   F
}

// priorityHooks organizes hooks for type F per priority.
type priorityHooks[H any] struct {
	hooks map[Priority][]H
}

func newPriorityHooks[H any]() *priorityHooks[H] {
	return &priorityHooks[H]{hooks: make(map[Priority][]H)}
}

// Add hook at the given priority.
func (h *priorityHooks[H]) Add(priority Priority, hook H) {
	h.hooks[priority] = append(h.hooks[priority], hook)
}

// Enumerate calls fn for all registered hooks in priority order.
func (h *priorityHooks[H]) Enumerate(fn func(hook H)) {
	keys := make([]Priority, 0, len(h.hooks))
	for key := range h.hooks {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		for _, hook := range h.hooks[key] {
			fn(hook)
		}
	}
}

// OnStart adds a hook with given priority and name (for error reporting) to
// the start of the run.
func (s *Session) OnStart(name string, priority Priority, fn OnStartFn) {
	s.onStart.Add(priority, &hookWithName[OnStartFn]{name: name, fn: fn})
}

// OnStep adds a hook with given priority and name (for error reporting) to
// each training step.
func (s *Session) OnStep(name string, priority Priority, fn OnStepFn) {
	s.onStep.Add(priority, &hookWithName[OnStepFn]{name: name, fn: fn})
}

// OnEnd adds a hook with given priority and name (for error reporting) to
// the end of the run.
func (s *Session) OnEnd(name string, priority Priority, fn OnEndFn) {
	s.onEnd.Add(priority, &hookWithName[OnEndFn]{name: name, fn: fn})
}

func (s *Session) callOnStart() (err error) {
	s.onStart.Enumerate(func(hook *hookWithName[OnStartFn]) {
		if err != nil {
			// After the first error stop.
			return
		}
		err = hook.fn(s)
		if err != nil {
			err = errors.WithMessagef(err, "OnStart(hook %q)", hook.name)
		}
	})
	return
}

func (s *Session) callOnStep(batchLoss float64) (err error) {
	s.onStep.Enumerate(func(hook *hookWithName[OnStepFn]) {
		if err != nil {
			return
		}
		err = hook.fn(s, batchLoss)
		if err != nil {
			err = errors.WithMessagef(err, "OnStep(hook %q)", hook.name)
		}
	})
	return
}

func (s *Session) callOnEnd() (err error) {
	s.onEnd.Enumerate(func(hook *hookWithName[OnEndFn]) {
		if err != nil {
			return
		}
		err = hook.fn(s)
		if err != nil {
			err = errors.WithMessagef(err, "OnEnd(hook %q)", hook.name)
		}
	})
	return
}

// everyNSteps implements EveryNSteps.
type everyNSteps struct {
	n, count int
	fn       OnStepFn
}

func (eN *everyNSteps) onStep(sess *Session, batchLoss float64) error {
	eN.count++
	if eN.count%eN.n != 0 {
		return nil
	}
	return eN.fn(sess, batchLoss)
}

// EveryNSteps registers an OnStep hook on the session that is called every N
// training steps.
func EveryNSteps(sess *Session, n int, name string, priority Priority, fn OnStepFn) {
	eN := &everyNSteps{n: n, fn: fn}
	fullName := fmt.Sprintf("EveryNSteps(%d): %s", n, name)
	sess.OnStep(fullName, priority, eN.onStep)
}

// periodicCallback implements PeriodicCallback.
type periodicCallback struct {
	last    time.Time
	period  time.Duration
	started bool
	fn      OnStepFn
}

func (p *periodicCallback) onStep(sess *Session, batchLoss float64) error {
	if !p.started {
		// Start the clock.
		p.started = true
		p.last = time.Now()
		return nil
	}
	if time.Since(p.last) < p.period {
		return nil
	}
	err := p.fn(sess, batchLoss)
	p.last = time.Now()
	return err
}

// PeriodicCallback registers an OnStep hook on the session that is called at
// most once per period. The period counts after the execution of the hook,
// discounting the time the hook itself takes.
//
// If callOnEnd is set, it also calls fn at the end of the run.
func PeriodicCallback(sess *Session, period time.Duration, callOnEnd bool, name string, priority Priority, fn OnStepFn) {
	p := &periodicCallback{period: period, fn: fn}
	fullName := fmt.Sprintf("PeriodicCallback(%s): %s", period, name)
	sess.OnStep(fullName, priority, p.onStep)
	if callOnEnd {
		sess.OnEnd(fullName, priority, func(sess *Session) error { return p.fn(sess, 0) })
	}
}
