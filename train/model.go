// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"github.com/gomlx/seqtrain/data"
	"github.com/gomlx/seqtrain/vocab"
)

// Model is the sequence-to-sequence predictor driven by the training loop.
// The numeric framework behind it (forward pass, gradients) is opaque to
// this package: calls are blocking and synchronized on return.
type Model interface {
	// Forward runs the teacher-forced forward pass for one batch and keeps
	// the gradients of the resulting loss available for the optimizer.
	Forward(source, target data.Field) (data.Scores, error)

	// SetTraining toggles between training and evaluation behavior
	// (dropout, batch statistics, gradient tracking).
	SetTraining(training bool)

	// TeacherForcing returns the current teacher-forcing ratio.
	TeacherForcing() float64

	// SetTeacherForcing sets the probability of feeding the ground-truth
	// previous token (rather than the model's own prediction) at each
	// decoding step.
	SetTeacherForcing(ratio float64)
}

// MultiTaskModel additionally predicts an auxiliary target jointly with the
// main one. Required when the session runs in TaskMulti mode.
type MultiTaskModel interface {
	Model

	// ForwardJoint runs the forward pass producing scores for both the main
	// and the auxiliary targets.
	ForwardJoint(source, target, auxiliary data.Field) (main, aux data.Scores, err error)
}

// Loss is the result of one loss computation, still attached to the
// framework's autodiff graph.
type Loss interface {
	// Item returns the scalar loss value.
	Item() float64

	// Backward accumulates the gradients of scale*loss into the model
	// parameters. Calling it on two losses after a single ZeroGrad sums
	// their (scaled) gradients.
	Backward(scale float64) error
}

// LossFunction computes the loss of model scores against a target field.
// The usual implementation is the framework's cross-entropy ignoring the
// configured padding index.
type LossFunction interface {
	Forward(scores data.Scores, target data.Field) (Loss, error)
}

// Optimizer updates the model parameters from the gradients accumulated by
// Loss.Backward.
type Optimizer interface {
	// ZeroGrad clears the accumulated gradients.
	ZeroGrad()

	// ClipGradNorm rescales the gradients so their global norm is at most
	// maxNorm.
	ClipGradNorm(maxNorm float64) error

	// Step applies one parameter update.
	Step() error

	// LearningRate returns the current learning rate.
	LearningRate() float64

	// SetLearningRate changes the learning rate, used by the plateau
	// scheduler.
	SetLearningRate(lr float64)
}

// Dataset provides batches, one epoch at a time: Yield returns io.EOF at the
// end of the epoch, after which Reset rewinds it.
type Dataset interface {
	// Name identifies the dataset, used in logs and metric names.
	Name() string

	// Yield the next batch, or io.EOF at the end of the epoch. Any other
	// error interrupts the run.
	Yield() (*data.Batch, error)

	// Reset restarts the dataset from the beginning.
	Reset() error

	// NumExamples in one full epoch; the accuracy denominator.
	NumExamples() int
}

// Corpus bundles the three dataset splits with the vocabularies needed for
// accuracy matching.
type Corpus struct {
	Train, Valid, Test Dataset

	// TargetVocab decodes main-task predictions for exact matching.
	TargetVocab *vocab.Vocab

	// AuxiliaryVocab decodes auxiliary predictions, required in TaskMulti
	// mode.
	AuxiliaryVocab *vocab.Vocab
}
