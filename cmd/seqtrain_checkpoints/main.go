// Command seqtrain_checkpoints inspects the checkpoints and metric history of
// one or more experiment directories: model summaries, parameter tables,
// metric tables and plots (Plotly HTML or SVG).
//
// Usage:
//
//	seqtrain_checkpoints -summary experiments/exp1
//	seqtrain_checkpoints -metrics -metrics_types=loss experiments/exp1 experiments/exp2
//	seqtrain_checkpoints -plot experiments/exp1
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/gomlx/seqtrain/checkpoints"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagCriterion = flag.String("criterion", "loss",
		"Which of the two best-model checkpoints to inspect: \"loss\" for the best-by-validation-loss "+
			"model, \"acc\" for the best-by-validation-accuracy one.")

	flagSummary = flag.Bool("summary", false,
		"Display a summary of each checkpoint: run id, progress at save time, validation metrics and model size.")
	flagParams = flag.Bool("params", false, "Lists the model parameter tensors with their shapes and sizes.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		klog.Errorf("Missing experiment directories to read from. See 'seqtrain_checkpoints -help'")
		os.Exit(1)
	}
	names := MinimalUniquePaths(paths...)

	if *flagSummary || *flagParams || *flagPerturb != 0 {
		fileName := checkpointFileName()
		cps := make([]*checkpoints.Checkpoint, len(paths))
		for ii, dir := range paths {
			cps[ii] = must.M1(checkpoints.Load(filepath.Join(dir, fileName)))
		}
		if *flagSummary {
			Summary(cps, names)
		}
		if *flagParams {
			Params(cps, names)
		}
		if *flagPerturb != 0 {
			if len(paths) > 1 {
				klog.Errorf("-perturb works on a single experiment directory, got %d", len(paths))
				os.Exit(1)
			}
			PerturbParams(filepath.Join(paths[0], fileName), cps[0], *flagPerturb)
		}
	}

	if *flagMetrics || *flagMetricsLabels || *flagPlot || *flagSVG {
		metrics(paths, names)
	}
}

// checkpointFileName resolves the -criterion flag to a checkpoint file name.
func checkpointFileName() string {
	switch *flagCriterion {
	case "loss":
		return checkpoints.LossModelFileName
	case "acc":
		return checkpoints.AccModelFileName
	}
	klog.Errorf("Invalid -criterion=%q, must be \"loss\" or \"acc\".", *flagCriterion)
	os.Exit(1)
	return ""
}
