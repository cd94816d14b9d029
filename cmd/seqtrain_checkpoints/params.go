package main

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/seqtrain/checkpoints"
	"github.com/gomlx/seqtrain/support/sets"
	"golang.org/x/exp/maps"
)

// tensorStats summarizes the values of one parameter tensor: mean absolute
// value, root-mean-square and max absolute value.
func tensorStats(data []float32) (mav, rms, maxAV float64) {
	if len(data) == 0 {
		return
	}
	var sumAbs, sumSquares float64
	for _, v := range data {
		abs := math.Abs(float64(v))
		sumAbs += abs
		sumSquares += float64(v) * float64(v)
		if abs > maxAV {
			maxAV = abs
		}
	}
	n := float64(len(data))
	return sumAbs / n, math.Sqrt(sumSquares / n), maxAV
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for ii, dim := range shape {
		parts[ii] = fmt.Sprintf("%d", dim)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// firstPresent returns the parameter with the given name from the first
// checkpoint that carries it. A checkpoint may be missing a parameter that a
// later one has, so this may not be byName[0][name].
func firstPresent(byName []map[string]checkpoints.Parameter, name string) checkpoints.Parameter {
	for _, params := range byName {
		if param, found := params[name]; found {
			return param
		}
	}
	return checkpoints.Parameter{}
}

// Params lists the parameter tensors of the checkpoints: shape, size and
// value statistics, one RMS column per checkpoint when comparing several.
// Rows where the shapes disagree between checkpoints are highlighted.
func Params(cps []*checkpoints.Checkpoint, names []string) {
	numCheckpoints := len(cps)
	fmt.Println(titleStyle.Render("Parameters"))
	table := newComparisonTable()

	headers := []string{"Name", "Shape", "Size", "Bytes"}
	if numCheckpoints == 1 {
		headers = append(headers, "MAV", "RMS", "MaxAV")
	} else {
		for _, name := range names {
			headers = append(headers, name+" RMS")
		}
	}
	table.Headers(headers...)

	// Union of parameter names over all checkpoints.
	byName := make([]map[string]checkpoints.Parameter, numCheckpoints)
	nameSet := sets.Make[string]()
	for ii, cp := range cps {
		byName[ii] = make(map[string]checkpoints.Parameter, len(cp.Parameters))
		for _, param := range cp.Parameters {
			byName[ii][param.Name] = param
			nameSet.Insert(param.Name)
		}
	}
	paramNames := maps.Keys(nameSet)
	slices.Sort(paramNames)

	for _, name := range paramNames {
		shapes := make([]string, 0, numCheckpoints)
		for ii := range cps {
			param, found := byName[ii][name]
			if !found {
				shapes = append(shapes, "<missing>")
				continue
			}
			shapes = append(shapes, shapeString(param.Shape))
		}
		first := firstPresent(byName, name)
		row := []string{
			name, shapeString(first.Shape),
			humanize.Comma(int64(first.Size())),
			humanize.Bytes(uint64(4 * first.Size())),
		}
		if numCheckpoints == 1 {
			mav, rms, maxAV := tensorStats(first.Data)
			row = append(row,
				fmt.Sprintf("%.3g", mav), fmt.Sprintf("%.3g", rms), fmt.Sprintf("%.3g", maxAV))
		} else {
			for ii := range cps {
				param, found := byName[ii][name]
				if !found {
					row = append(row, "-")
					continue
				}
				_, rms, _ := tensorStats(param.Data)
				row = append(row, fmt.Sprintf("%.3g", rms))
			}
		}
		table.Row(!isAllEqual(shapes), row...)
	}
	fmt.Println(table.Render())
}
