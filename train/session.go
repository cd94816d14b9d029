// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package train implements the training/evaluation control loop for
// sequence-to-sequence models with optional multi-task auxiliary objectives:
// epoch iteration, teacher-forcing scheduling, checkpointing on improved
// validation metrics, early stopping and learning-rate decay on plateau.
//
// The numerically heavy work (forward/backward passes, parameter updates)
// lives behind the Model, LossFunction and Optimizer interfaces; this
// package only orchestrates them.
package train

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/seqtrain/checkpoints"
	"github.com/gomlx/seqtrain/data"
	"github.com/gomlx/seqtrain/history"
	"github.com/gomlx/seqtrain/support/xslices"
	"github.com/gomlx/seqtrain/support/xsync"
	"github.com/gomlx/seqtrain/train/metrics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Progress holds the monotonically increasing counters of a run. Reset only
// at process start.
type Progress struct {
	// Epoch currently running, from 0.
	Epoch int

	// Step counts optimizer steps across all epochs.
	Step int
}

// Evaluation is the result of one evaluation pass over a dataset.
type Evaluation struct {
	// Loss is the mean per-batch loss.
	Loss float64

	// Accuracy is the sequence exact-match accuracy of the main task.
	Accuracy float64

	// AuxAccuracy is the auxiliary-task exact-match accuracy, 0 unless
	// running in TaskMulti mode.
	AuxAccuracy float64
}

// Session drives a whole training run: it owns the optimizer, the plateau
// scheduler, the evaluation policy and the progress counters, and borrows
// the model and the corpus.
//
// The exported fields are meant for reading only (by hooks and UIs);
// changing them leads to undefined behavior.
type Session struct {
	// StartStep and EndStep delimit the run in global steps. EndStep is -1
	// until the first epoch reveals how many batches an epoch has, after
	// which it holds the extrapolated total.
	StartStep, EndStep int

	config     Config
	model      Model
	multiModel MultiTaskModel // Non-nil iff task == TaskMulti.
	lossFn     LossFunction
	optimizer  Optimizer
	scheduler  *PlateauScheduler
	corpus     *Corpus
	task       TaskMode
	policy     *Policy
	tfr        float64

	progress      Progress
	stepDurations []time.Duration

	checkpoint    *checkpoints.Handler
	stateProvider checkpoints.StateProvider
	historyWriter chan<- history.Point
	historyErr    <-chan error

	writer io.Writer
	stop   *xsync.Latch

	onStart *priorityHooks[*hookWithName[OnStartFn]]
	onStep  *priorityHooks[*hookWithName[OnStepFn]]
	onEnd   *priorityHooks[*hookWithName[OnEndFn]]
}

// NewSession creates a training session. It panics on invalid combinations
// (nil collaborators, a multi-task configuration with a model that cannot
// predict jointly): those are programming errors, not runtime conditions.
//
// Use NewSessionFromConfig to also build the optimizer from the
// configuration's optimizer name.
func NewSession(config Config, model Model, optimizer Optimizer, lossFn LossFunction, corpus *Corpus) *Session {
	if model == nil || optimizer == nil || lossFn == nil {
		exceptions.Panicf("train.NewSession: model, optimizer and loss function are all required")
	}
	if corpus == nil || corpus.Train == nil || corpus.Valid == nil || corpus.Test == nil || corpus.TargetVocab == nil {
		exceptions.Panicf("train.NewSession: corpus must have train/valid/test datasets and a target vocabulary")
	}
	if err := config.Validate(); err != nil {
		exceptions.Panicf("train.NewSession: %v", err)
	}
	task := TaskModeFromRatio(config.MultiTaskRatio)
	s := &Session{
		StartStep: 0,
		EndStep:   -1,
		config:    config,
		model:     model,
		lossFn:    lossFn,
		optimizer: optimizer,
		corpus:    corpus,
		task:      task,
		policy:    NewPolicy(config.Criterion(), config.EarlyStoppingPatience),
		tfr:       InitialTeacherForcingRatio,
		writer:    os.Stdout,
		stop:      xsync.NewLatch(),
		onStart:   newPriorityHooks[*hookWithName[OnStartFn]](),
		onStep:    newPriorityHooks[*hookWithName[OnStepFn]](),
		onEnd:     newPriorityHooks[*hookWithName[OnEndFn]](),
	}
	s.scheduler = NewPlateauScheduler(optimizer, config.PlateauMode(), config.LRDecayFactor, config.DecayPatience)
	if task == TaskMulti {
		multi, ok := model.(MultiTaskModel)
		if !ok {
			exceptions.Panicf("train.NewSession: multi_task_ratio=%g requires a model implementing train.MultiTaskModel, got %T",
				config.MultiTaskRatio, model)
		}
		if corpus.AuxiliaryVocab == nil {
			exceptions.Panicf("train.NewSession: multi-task training requires corpus.AuxiliaryVocab")
		}
		s.multiModel = multi
	}
	return s
}

// NewSessionFromConfig is like NewSession, building the optimizer from the
// configuration's optimizer name through KnownOptimizers.
func NewSessionFromConfig(config Config, model Model, lossFn LossFunction, corpus *Corpus) *Session {
	return NewSession(config, model, NewOptimizer(config.Optimizer, config.LearningRate), lossFn, corpus)
}

// WithCheckpoints attaches a checkpoint handler: the evaluation policy's
// decisions will persist the model state through it. The model must
// implement checkpoints.StateProvider.
// It returns the session, so calls can be cascaded.
func (s *Session) WithCheckpoints(handler *checkpoints.Handler) *Session {
	provider, ok := s.model.(checkpoints.StateProvider)
	if !ok {
		exceptions.Panicf("Session.WithCheckpoints: model of type %T does not implement checkpoints.StateProvider", s.model)
	}
	s.checkpoint = handler
	s.stateProvider = provider
	return s
}

// WithHistory appends metric points to the history file inside dir
// (history.TrainingPlotFileName) for the whole run. The writer is flushed
// and closed when Run returns.
func (s *Session) WithHistory(dir string) *Session {
	s.historyWriter, s.historyErr = history.CreatePointsWriter(path.Join(dir, history.TrainingPlotFileName))
	return s
}

// WithWriter redirects the user-facing training output, os.Stdout by
// default.
func (s *Session) WithWriter(w io.Writer) *Session {
	s.writer = w
	return s
}

// Config of the run.
func (s *Session) Config() Config { return s.config }

// Task mode of the run.
func (s *Session) Task() TaskMode { return s.task }

// Progress returns a copy of the current progress counters.
func (s *Session) Progress() Progress { return s.progress }

// Policy returns the evaluation/checkpoint policy.
func (s *Session) Policy() *Policy { return s.policy }

// Optimizer of the run.
func (s *Session) Optimizer() Optimizer { return s.optimizer }

// TeacherForcing returns the teacher-forcing ratio of the current epoch.
func (s *Session) TeacherForcing() float64 { return s.tfr }

// Stop requests a cooperative termination of the run: the loop exits
// cleanly at the next batch or epoch boundary. Safe to call from any
// goroutine, more than once.
func (s *Session) Stop() { s.stop.Trigger() }

// Stopped reports whether Stop was called.
func (s *Session) Stopped() bool { return s.stop.Test() }

// StopChan returns a channel closed when the session is stopped, for use in
// select statements.
func (s *Session) StopChan() <-chan struct{} { return s.stop.WaitChan() }

// HandleInterrupt wires SIGINT to Stop, so a ctrl+C during training exits
// the loop cleanly after the in-flight step.
func (s *Session) HandleInterrupt() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-c:
			fmt.Fprintln(s.writer, "Interrupt received, finishing current step...")
			s.Stop()
		case <-s.stop.WaitChan():
		}
		signal.Stop(c)
	}()
}

// MedianStepDuration returns the median duration of the training steps run
// so far. It returns 1ms if no step was recorded, to avoid divisions by 0.
func (s *Session) MedianStepDuration() time.Duration {
	if len(s.stepDurations) == 0 {
		return time.Millisecond
	}
	durations := xslices.Copy(s.stepDurations)
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	return durations[len(durations)/2]
}

// Run drives the whole training: for each epoch it resets the evaluation
// records while within the burn-in phase, halts if the early-stopping
// patience ran out, applies the teacher-forcing schedule, runs one training
// pass and one validation pass, and feeds the result to the evaluation
// policy.
//
// Epochs 0..burnInEpoch (inclusive) form the burn-in phase: their
// evaluation history is discarded, so no early model anchors the best-metric
// records.
//
// A Stop (or SIGINT via HandleInterrupt) exits the loop cleanly with a nil
// error; early stopping is also a normal termination.
func (s *Session) Run(burnInEpoch int) error {
	switch s.task {
	case TaskSingleMain:
		fmt.Fprintln(s.writer, "Running single-main-task experiment...")
	case TaskSingleAuxiliary:
		fmt.Fprintln(s.writer, "Running single-auxiliary-task experiment...")
	case TaskMulti:
		fmt.Fprintln(s.writer, "Running multi-task experiment...")
	}
	if err := s.callOnStart(); err != nil {
		return err
	}
	var runErr error
	for epoch := 0; epoch < s.config.TotalEpochs; epoch++ {
		s.progress.Epoch = epoch
		if epoch <= burnInEpoch {
			fmt.Fprintln(s.writer, "Renewing evaluation records in the burn-in phase...")
			s.policy.ResetRecord()
		}
		if s.policy.Exhausted() {
			fmt.Fprintln(s.writer, "Early stopping!")
			break
		}
		if s.stop.Test() {
			fmt.Fprintln(s.writer, "Exiting loop")
			break
		}

		startTime := time.Now()
		s.tfr = TeacherForcingRatio(epoch)

		trainLoss, err := s.trainPass()
		if err != nil {
			runErr = errors.WithMessagef(err, "epoch %d training pass", epoch)
			break
		}
		if s.stop.Test() {
			fmt.Fprintln(s.writer, "Exiting loop")
			break
		}
		eval, err := s.Evaluate(s.corpus.Valid)
		if err != nil {
			runErr = errors.WithMessagef(err, "epoch %d validation pass", epoch)
			break
		}
		if err = s.applyUpdate(eval); err != nil {
			runErr = err
			break
		}
		s.recordEvaluation(s.corpus.Valid.Name(), eval)

		if s.EndStep < 0 && s.progress.Step > 0 {
			// One epoch is done: extrapolate the total number of steps.
			s.EndStep = s.progress.Step * s.config.TotalEpochs
		}

		elapsed := time.Since(startTime)
		mins := int(elapsed.Minutes())
		secs := int(elapsed.Seconds()) - mins*60
		fmt.Fprintf(s.writer, "Epoch: %02d | Time: %dm %ds\n", epoch+1, mins, secs)
		fmt.Fprintf(s.writer, "\tTrain Loss: %.3f | Train PPL: %7.3f\n", trainLoss, metrics.Perplexity(trainLoss))
		fmt.Fprintf(s.writer, "\t Val. Loss: %.3f | Val. Acc: %.3f | Val. PPL: %7.3f\n",
			eval.Loss, eval.Accuracy, metrics.Perplexity(eval.Loss))
	}

	if s.historyWriter != nil {
		close(s.historyWriter)
		if err := <-s.historyErr; err != nil {
			klog.Errorf("failed writing metric history: %+v", err)
		}
		s.historyWriter = nil
	}
	if err := s.callOnEnd(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// trainPass runs one epoch over the training dataset and returns the mean
// per-batch loss.
func (s *Session) trainPass() (float64, error) {
	s.model.SetTraining(true)
	s.model.SetTeacherForcing(s.tfr)
	fmt.Fprintf(s.writer, "[Train]: Current Teacher Forcing Ratio: %.3f\n", s.tfr)

	ds := s.corpus.Train
	interval := s.config.ReportInterval
	epochLoss := 0.0
	numBatches := 0
	for i := 0; ; i++ {
		if s.stop.Test() {
			break
		}
		batch, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.WithMessagef(err, "failed reading from dataset %q", ds.Name())
		}

		stepStart := time.Now()
		s.optimizer.ZeroGrad()
		scores, auxScores, err := s.forwardBatch(batch)
		if err != nil {
			return 0, err
		}
		batchLoss, err := s.batchLoss(scores, auxScores, batch, true)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(batchLoss) {
			return 0, errors.Errorf("batch loss is NaN, training interrupted")
		}
		if math.IsInf(batchLoss, 0) {
			return 0, errors.Errorf("batch loss is infinity (%f), training interrupted", batchLoss)
		}
		if err = s.optimizer.ClipGradNorm(1.0); err != nil {
			return 0, errors.WithMessagef(err, "failed to clip gradient norm at step %d", s.progress.Step)
		}
		if err = s.optimizer.Step(); err != nil {
			return 0, errors.WithMessagef(err, "optimizer step %d failed", s.progress.Step)
		}
		s.stepDurations = append(s.stepDurations, time.Since(stepStart))

		epochLoss += batchLoss
		numBatches++
		s.progress.Step++
		if err = s.callOnStep(batchLoss); err != nil {
			return 0, err
		}

		if i%interval == interval-1 {
			runningLoss := epochLoss / float64(i+1)
			lr := s.optimizer.LearningRate()
			fmt.Fprintf(s.writer, "[Epoch: %d][#examples: %d/%d][#steps: %d]\n",
				s.progress.Epoch, (i+1)*s.config.BatchSize, ds.NumExamples(), s.progress.Step)
			fmt.Fprintf(s.writer, "\tTrain Loss: %.3f | Train PPL: %7.3f | lr: %.3e\n",
				runningLoss, metrics.Perplexity(runningLoss), lr)
			s.recordPoint("Train: loss", "T/loss", "loss", runningLoss)
			s.recordPoint("Train: perplexity", "T/ppl", "perplexity", metrics.Perplexity(runningLoss))
			s.recordPoint("learning rate", "lr", "learning rate", lr)

			// A full evaluation round every 10 report intervals.
			if s.progress.Step%(10*interval) == 0 {
				if err = s.midTrainingEvaluation(); err != nil {
					return 0, err
				}
			}
		}
	}
	if err := ds.Reset(); err != nil {
		return 0, errors.WithMessagef(err, "failed to reset dataset %q", ds.Name())
	}
	if numBatches == 0 {
		return 0, nil
	}
	return epochLoss / float64(numBatches), nil
}

// midTrainingEvaluation runs the validation and test passes scheduled inside
// a training pass, applies the checkpoint policy and steps the plateau
// scheduler on the validation accuracy. The test metrics are logged and
// recorded but otherwise discarded.
func (s *Session) midTrainingEvaluation() error {
	fmt.Fprintln(s.writer, "-----Val------")
	valid, err := s.Evaluate(s.corpus.Valid)
	if err != nil {
		return errors.WithMessagef(err, "mid-training validation pass")
	}
	fmt.Fprintln(s.writer, "-----Tst------")
	test, err := s.Evaluate(s.corpus.Test)
	if err != nil {
		return errors.WithMessagef(err, "mid-training test pass")
	}
	s.recordEvaluation(s.corpus.Test.Name(), test)

	if err = s.applyUpdate(valid); err != nil {
		return err
	}
	s.recordEvaluation(s.corpus.Valid.Name(), valid)
	s.scheduler.Step(valid.Accuracy) // Scheduled on validation accuracy.

	// Back to training behavior for the rest of the pass.
	s.model.SetTraining(true)
	s.model.SetTeacherForcing(s.tfr)
	return nil
}

// Evaluate runs one pass over the given dataset with teacher forcing
// disabled, restoring the session's ratio on exit. It accumulates the loss
// exactly like the training pass (without gradients) and counts sequence
// exact matches (see metrics.ExactMatch).
//
// The auxiliary accuracy reuses the main-task example count as denominator,
// which assumes every example carries an auxiliary label.
func (s *Session) Evaluate(ds Dataset) (Evaluation, error) {
	s.model.SetTraining(false)
	s.model.SetTeacherForcing(0) // Turn off teacher forcing.
	fmt.Fprintf(s.writer, "[Eval Start]: Current Teacher Forcing Ratio: %.3f\n", s.model.TeacherForcing())
	defer func() {
		s.model.SetTeacherForcing(s.tfr) // Restore teacher-forcing ratio.
		fmt.Fprintf(s.writer, "[Eval End]: Current Teacher Forcing Ratio: %.3f\n", s.model.TeacherForcing())
	}()

	var lossMean metrics.Mean
	correct, correctAux := 0, 0
	for {
		batch, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Evaluation{}, errors.WithMessagef(err, "failed reading from dataset %q", ds.Name())
		}
		scores, auxScores, err := s.forwardBatch(batch)
		if err != nil {
			return Evaluation{}, err
		}

		pred := scores.StripLead().Argmax()
		ref := batch.Target.StripLead().Rows
		correct += metrics.ExactMatch(pred, ref, s.corpus.TargetVocab)
		if s.task == TaskMulti {
			predAux := auxScores.StripLead().Argmax()
			refAux := batch.Auxiliary.StripLead().Rows
			correctAux += metrics.ExactMatch(predAux, refAux, s.corpus.AuxiliaryVocab)
		}

		batchLoss, err := s.batchLoss(scores, auxScores, batch, false)
		if err != nil {
			return Evaluation{}, err
		}
		lossMean.Add(batchLoss)
	}
	if err := ds.Reset(); err != nil {
		return Evaluation{}, errors.WithMessagef(err, "failed to reset dataset %q", ds.Name())
	}

	fmt.Fprintf(s.writer, "The number of correct predictions (main-task): %d\n", correct)
	if s.task == TaskMulti {
		fmt.Fprintf(s.writer, "The number of correct predictions (auxiliary-task): %d\n", correctAux)
	}
	numExamples := float64(ds.NumExamples())
	return Evaluation{
		Loss:        lossMean.Mean(),
		Accuracy:    float64(correct) / numExamples,
		AuxAccuracy: float64(correctAux) / numExamples,
	}, nil
}

// forwardBatch runs the model forward for one batch; auxScores is nil
// unless in TaskMulti mode.
func (s *Session) forwardBatch(batch *data.Batch) (scores, auxScores data.Scores, err error) {
	switch s.task {
	case TaskMulti:
		if batch.Auxiliary == nil {
			return nil, nil, errors.Errorf("multi-task run but the batch has no auxiliary field")
		}
		scores, auxScores, err = s.multiModel.ForwardJoint(batch.Source, batch.Target, *batch.Auxiliary)
	case TaskSingleMain, TaskSingleAuxiliary:
		scores, err = s.model.Forward(batch.Source, batch.Target)
	}
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "model forward pass failed at step %d", s.progress.Step)
	}
	return
}

// batchLoss computes the batch loss, stripping the leading start-of-sequence
// position from scores and targets -- uniformly for the main and auxiliary
// pairs. With backward set it also accumulates gradients: in TaskMulti mode
// main and auxiliary gradients are scaled by the mixing ratio, realizing the
// convex combination `ratio*main + (1-ratio)*aux`.
func (s *Session) batchLoss(scores, auxScores data.Scores, batch *data.Batch, backward bool) (float64, error) {
	mainLoss, err := s.lossFn.Forward(scores.StripLead(), batch.Target.StripLead())
	if err != nil {
		return 0, errors.WithMessagef(err, "loss computation failed at step %d", s.progress.Step)
	}
	switch s.task {
	case TaskMulti:
		auxLoss, err := s.lossFn.Forward(auxScores.StripLead(), batch.Auxiliary.StripLead())
		if err != nil {
			return 0, errors.WithMessagef(err, "auxiliary loss computation failed at step %d", s.progress.Step)
		}
		ratio := s.config.MultiTaskRatio
		if backward {
			if err = mainLoss.Backward(ratio); err != nil {
				return 0, errors.WithMessagef(err, "backward pass failed at step %d", s.progress.Step)
			}
			if err = auxLoss.Backward(1 - ratio); err != nil {
				return 0, errors.WithMessagef(err, "auxiliary backward pass failed at step %d", s.progress.Step)
			}
		}
		return ratio*mainLoss.Item() + (1-ratio)*auxLoss.Item(), nil
	case TaskSingleMain, TaskSingleAuxiliary:
		if backward {
			if err = mainLoss.Backward(1); err != nil {
				return 0, errors.WithMessagef(err, "backward pass failed at step %d", s.progress.Step)
			}
		}
		return mainLoss.Item(), nil
	}
	return 0, errors.Errorf("invalid task mode %v", s.task)
}

// applyUpdate feeds one validation result to the evaluation policy, writes
// the checkpoints it decides on and logs the policy state.
func (s *Session) applyUpdate(eval Evaluation) error {
	decision := s.policy.Update(eval.Loss, eval.Accuracy, s.progress)

	fmt.Fprintln(s.writer, "\n---------------------------------------")
	fmt.Fprintf(s.writer, "[Epoch: %d][Validating...]\n", s.progress.Epoch)
	if decision.LossImproved {
		fmt.Fprintln(s.writer, "\t\t Better Valid Loss! (at least equal)")
	}
	if decision.SaveByLoss {
		if err := s.saveCheckpoint(checkpoints.LossModelFileName, eval); err != nil {
			return err
		}
	}
	if decision.AccImproved {
		fmt.Fprintln(s.writer, "\t\t Better Valid Acc! (at least equal)")
	}
	if decision.SaveByAcc {
		if err := s.saveCheckpoint(checkpoints.AccModelFileName, eval); err != nil {
			return err
		}
	}

	record := s.policy.Record()
	fmt.Fprintf(s.writer, "\t Early Stopping Patience: %d/%d\n", record.Patience, s.policy.MaxPatience())
	fmt.Fprintf(s.writer, "\t Val. Loss: %.3f | Val. Acc: %.3f | Val. PPL: %7.3f\n",
		eval.Loss, eval.Accuracy, metrics.Perplexity(eval.Loss))
	fmt.Fprintf(s.writer, "\t BEST. Val. Loss: %.3f | BEST. Val. Acc: %.3f | Val. Loss: %.3f | "+
		"BEST. Val. Epoch: %d | BEST. Val. Step: %d\n",
		record.BestValidLoss, record.BestValidAcc, record.LossAtBestAcc,
		record.BestAccEpoch, record.BestAccStep)
	fmt.Fprint(s.writer, "---------------------------------------\n\n")

	if s.task == TaskMulti {
		if s.policy.UpdateAux(eval.AuxAccuracy) {
			fmt.Fprintln(s.writer, "\t\t Better Valid Acc on Auxiliary Task! (at least equal)")
		}
		fmt.Fprintf(s.writer, "\tBEST. Val. Acc Aux: %.3f\n", s.policy.Record().BestValidAccAux)
	}
	return nil
}

// saveCheckpoint persists the model state under fileName, stamped with the
// current progress and validation metrics. A no-op without a checkpoint
// handler.
func (s *Session) saveCheckpoint(fileName string, eval Evaluation) error {
	if s.checkpoint == nil {
		return nil
	}
	meta := checkpoints.Metadata{
		Epoch:         s.progress.Epoch,
		GlobalStep:    s.progress.Step,
		ValidLoss:     eval.Loss,
		ValidAccuracy: eval.Accuracy,
		Criterion:     s.policy.Criterion().String(),
	}
	return s.checkpoint.Save(fileName, meta, s.stateProvider)
}

// recordPoint appends one metric point to the history file, if configured.
func (s *Session) recordPoint(name, short, metricType string, value float64) {
	if s.historyWriter == nil {
		return
	}
	s.historyWriter <- history.Point{
		MetricName: name,
		Short:      short,
		MetricType: metricType,
		Epoch:      s.progress.Epoch,
		Step:       float64(s.progress.Step),
		Value:      value,
	}
}

// recordEvaluation appends the metric points of one evaluation pass.
func (s *Session) recordEvaluation(dsName string, eval Evaluation) {
	if s.historyWriter == nil {
		return
	}
	short := "?"
	if len(dsName) > 0 {
		short = strings.ToUpper(dsName[:1])
	}
	s.recordPoint(dsName+": loss", short+"/loss", "loss", eval.Loss)
	s.recordPoint(dsName+": accuracy", short+"/acc", "accuracy", eval.Accuracy)
	s.recordPoint(dsName+": perplexity", short+"/ppl", "perplexity", metrics.Perplexity(eval.Loss))
	if s.task == TaskMulti {
		s.recordPoint(dsName+": aux accuracy", short+"/acc_aux", "accuracy", eval.AuxAccuracy)
	}
}
