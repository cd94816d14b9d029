// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"path/filepath"
	"slices"
	"strings"
)

// MinimalUniquePaths takes a list of file paths and returns a list of minimal unique identifiers
// that distinguish each path from others using the minimum necessary path parts.
func MinimalUniquePaths(paths ...string) []string {
	if len(paths) <= 1 {
		return paths
	}

	// Split all paths into components
	splitPaths := make([][]string, len(paths))
	for i, path := range paths {
		splitPaths[i] = strings.Split(filepath.Clean(path), string(filepath.Separator))
	}

	// Find minimal unique representations
	result := make([]string, len(paths))
	for i, components := range splitPaths {
		var diffIndexes []int

		// Compare with all other paths
		for j, otherComponents := range splitPaths {
			if i == j {
				continue
			}

			// Find components differing from the other path.
			minLen := min(len(components), len(otherComponents))
			for k := 0; k < minLen; k++ {
				if components[k] != otherComponents[k] && !slices.Contains(diffIndexes, k) {
					diffIndexes = append(diffIndexes, k)
				}
			}
		}

		// Create minimal representation
		switch len(diffIndexes) {
		case 0:
			result[i] = components[len(components)-1]
		case 1:
			result[i] = components[diffIndexes[0]]
		default:
			// Multiple differences - use ellipsis
			first := components[diffIndexes[0]]
			last := components[diffIndexes[len(diffIndexes)-1]]
			result[i] = first + "..." + last
		}
	}

	return result
}
