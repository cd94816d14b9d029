package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gomlx/seqtrain/history"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSVG = flag.Bool("svg", false,
		"Renders the training metrics to static SVG charts, one file per experiment, one chart per metric type. "+
			"You can control which metrics to include with -metrics_names and -metrics_types.")
	flagSVGSize = flag.String("svg_size", "800x400", "Size of the generated SVG charts, as <width>x<height>.")
)

// BuildSVGs renders one SVG file per experiment, concatenating one chart per
// metric type.
func BuildSVGs(experimentPaths, modelNames []string, points [][]history.Point) {
	var width, height int
	if _, err := fmt.Sscanf(*flagSVGSize, "%dx%d", &width, &height); err != nil || width <= 0 || height <= 0 {
		klog.Fatalf("Invalid -svg_size=%q, expected <width>x<height>.", *flagSVGSize)
	}

	for ii, modelPoints := range points {
		if len(modelPoints) == 0 {
			continue
		}
		var rendered []string
		for _, chart := range history.Charts(modelPoints) {
			rendered = append(rendered, must.M1(chart.RenderSVG(width, height)))
		}

		tmpFile := must.M1(os.CreateTemp("", fmt.Sprintf("seqtrain-%s-*.svg", sanitizeName(modelNames[ii]))))
		must.M1(tmpFile.WriteString(strings.Join(rendered, "\n")))
		must.M(tmpFile.Close())
		fmt.Printf("Charts for %s written to:\t%s\n", modelNames[ii], tmpFile.Name())
	}
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?':
			return '-'
		}
		return r
	}, name)
}
