// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"github.com/gomlx/exceptions"
	"golang.org/x/exp/maps"
)

// OptimizerBuilder constructs an Optimizer with the given initial learning
// rate.
type OptimizerBuilder func(learningRate float64) Optimizer

// KnownOptimizers maps optimizer names (as used in the configuration) to
// their builders. Framework adapter packages register their optimizers here,
// typically from an init function.
var KnownOptimizers = map[string]OptimizerBuilder{}

// RegisterOptimizer makes an optimizer selectable by name in the
// configuration. Registering a name twice panics.
func RegisterOptimizer(name string, builder OptimizerBuilder) {
	if _, found := KnownOptimizers[name]; found {
		exceptions.Panicf("optimizer %q registered twice", name)
	}
	KnownOptimizers[name] = builder
}

// NewOptimizer builds the optimizer selected by name in the configuration.
// It panics on an unknown name -- use KnownOptimizers directly in case one
// wants to better handle invalid values.
func NewOptimizer(name string, learningRate float64) Optimizer {
	builder, found := KnownOptimizers[name]
	if !found {
		exceptions.Panicf("unknown optimizer %q, valid values are %v", name, maps.Keys(KnownOptimizers))
	}
	return builder(learningRate)
}
