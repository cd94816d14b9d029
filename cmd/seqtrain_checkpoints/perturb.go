package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/gomlx/seqtrain/checkpoints"
	"github.com/janpfeifer/must"
)

var flagPerturb = flag.Float64("perturb", 0,
	"Perturbs the model parameters by <x>: it multiplies the weights by 1.0+(Uniform(-1, 1)*x) and "+
		"saves the checkpoint back, keeping the unperturbed model as a backup copy.")

// paramSource adapts a loaded parameter list to checkpoints.StateProvider.
type paramSource []checkpoints.Parameter

func (p paramSource) StateDict() []checkpoints.Parameter { return p }

// PerturbParams multiplies every parameter value by a random factor in
// [1-x, 1+x] and saves the checkpoint back under the same file name. The
// previous checkpoint is kept as the ".1" backup.
func PerturbParams(filePath string, cp *checkpoints.Checkpoint, x float64) {
	for _, param := range cp.Parameters {
		for ii, v := range param.Data {
			factor := 1 + (rand.Float64()*2-1)*x
			param.Data[ii] = v * float32(factor)
		}
	}

	handler := must.M1(checkpoints.Build().
		Dir(filepath.Dir(filePath)).
		Keep(2). // Keep the unperturbed model around.
		Done())
	must.M(handler.Save(filepath.Base(filePath), cp.Metadata, paramSource(cp.Parameters)))
	fmt.Printf("%d parameter tensors perturbed by up to %.1f%%, new checkpoint saved.\n",
		len(cp.Parameters), 100*x)
}
