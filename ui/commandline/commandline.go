// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for training on the
// command line: a rich progress bar for train.Session and evaluation
// reports.
package commandline

import (
	"fmt"
	"io"

	"github.com/gomlx/seqtrain/train"
	"github.com/gomlx/seqtrain/train/metrics"
)

// ReportEval evaluates the given datasets with the session and writes a
// per-dataset summary of loss, perplexity and exact-match accuracy to w.
func ReportEval(w io.Writer, sess *train.Session, datasets ...train.Dataset) error {
	for _, ds := range datasets {
		fmt.Fprintf(w, "Results on %s:\n", ds.Name())
		eval, err := sess.Evaluate(ds)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\tLoss: %.3f\n", eval.Loss)
		fmt.Fprintf(w, "\tPerplexity: %.3f\n", metrics.Perplexity(eval.Loss))
		fmt.Fprintf(w, "\tExact-match accuracy: %.2f%%\n", 100*eval.Accuracy)
		if sess.Task() == train.TaskMulti {
			fmt.Fprintf(w, "\tAuxiliary exact-match accuracy: %.2f%%\n", 100*eval.AuxAccuracy)
		}
	}
	return nil
}
