// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provides the small generic slice and map helpers shared
// across the module.
package xslices

import (
	"cmp"
	"sort"

	"golang.org/x/exp/constraints"
)

// Keys returns the keys of a map as a slice, in undefined order.
func Keys[K comparable, V any](m map[K]V) []K {
	s := make([]K, 0, len(m))
	for k := range m {
		s = append(s, k)
	}
	return s
}

// SortedKeys returns the keys of a map sorted in increasing order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	s := Keys(m)
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	return s
}

// Copy returns a new shallow copy of the slice, or nil for an empty one.
func Copy[T any](slice []T) []T {
	if len(slice) == 0 {
		return nil
	}
	s2 := make([]T, len(slice))
	copy(s2, slice)
	return s2
}

// Iota returns a slice of length len with incremental values starting at
// start: Iota(3.0, 2) -> []float64{3.0, 4.0}.
func Iota[T interface {
	constraints.Integer | constraints.Float
}](start T, len int) []T {
	slice := make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return slice
}

// Map applies fn to every element of in and returns the mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) []Out {
	out := make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return out
}
