// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"bytes"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/gomlx/seqtrain/checkpoints"
	"github.com/gomlx/seqtrain/data"
	"github.com/gomlx/seqtrain/vocab"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVocabSize = 16

// fakeModel scores every step as a one-hot of the ground-truth target token,
// so predictions are exact matches -- unless wrongToken is set, in which case
// it predicts <pad> everywhere.
type fakeModel struct {
	training    bool
	tfr         float64
	tfrHistory  []float64
	forwards    int
	wrongToken  bool
	failForward bool
}

func (m *fakeModel) Forward(source, target data.Field) (data.Scores, error) {
	m.forwards++
	if m.failForward {
		return nil, errors.New("device lost")
	}
	scores := make(data.Scores, len(target.Rows))
	for ii, row := range target.Rows {
		scores[ii] = make([][]float32, len(row))
		for jj, tokenID := range row {
			stepScores := make([]float32, testVocabSize)
			if m.wrongToken {
				stepScores[1] = 1 // <pad>
			} else {
				stepScores[tokenID] = 1
			}
			scores[ii][jj] = stepScores
		}
	}
	return scores, nil
}

func (m *fakeModel) SetTraining(training bool) { m.training = training }
func (m *fakeModel) TeacherForcing() float64   { return m.tfr }
func (m *fakeModel) SetTeacherForcing(ratio float64) {
	m.tfr = ratio
	m.tfrHistory = append(m.tfrHistory, ratio)
}

// fakeCheckpointableModel additionally provides a state dict.
type fakeCheckpointableModel struct {
	fakeModel
}

func (m *fakeCheckpointableModel) StateDict() []checkpoints.Parameter {
	return []checkpoints.Parameter{
		{Name: "w", Shape: []int{2}, Data: []float32{0.5, -0.5}},
	}
}

type fakeOptimizer struct {
	lr              float64
	zeroed, stepped int
	clipped         []float64
}

func (o *fakeOptimizer) ZeroGrad() { o.zeroed++ }
func (o *fakeOptimizer) ClipGradNorm(maxNorm float64) error {
	o.clipped = append(o.clipped, maxNorm)
	return nil
}
func (o *fakeOptimizer) Step() error              { o.stepped++; return nil }
func (o *fakeOptimizer) LearningRate() float64    { return o.lr }
func (o *fakeOptimizer) SetLearningRate(lr float64) { o.lr = lr }

type fakeLoss struct {
	value  float64
	scales *[]float64
}

func (l fakeLoss) Item() float64 { return l.value }
func (l fakeLoss) Backward(scale float64) error {
	if l.scales != nil {
		*l.scales = append(*l.scales, scale)
	}
	return nil
}

// fakeLossFn returns trainLoss while the model is in training mode and the
// scripted evalLosses (sticking at the last one) otherwise.
type fakeLossFn struct {
	model      *fakeModel
	trainLoss  float64
	evalLosses []float64
	evalPos    int
	scales     []float64
}

func (f *fakeLossFn) Forward(scores data.Scores, target data.Field) (Loss, error) {
	if f.model.training {
		return fakeLoss{value: f.trainLoss, scales: &f.scales}, nil
	}
	value := f.evalLosses[len(f.evalLosses)-1]
	if f.evalPos < len(f.evalLosses) {
		value = f.evalLosses[f.evalPos]
		f.evalPos++
	}
	return fakeLoss{value: value, scales: &f.scales}, nil
}

type fakeDataset struct {
	name     string
	batches  []*data.Batch
	pos      int
	resets   int
	examples int
}

func (ds *fakeDataset) Name() string { return ds.name }
func (ds *fakeDataset) Yield() (*data.Batch, error) {
	if ds.pos >= len(ds.batches) {
		return nil, io.EOF
	}
	batch := ds.batches[ds.pos]
	ds.pos++
	return batch, nil
}
func (ds *fakeDataset) Reset() error    { ds.pos = 0; ds.resets++; return nil }
func (ds *fakeDataset) NumExamples() int { return ds.examples }

// testVocabAndBatch builds a small vocabulary and a one-example batch whose
// target is `<sos> a b <eos>`.
func testVocabAndBatch(t *testing.T) (*vocab.Vocab, *data.Batch) {
	voc := vocab.Build([][]string{{"a", "b", "c"}})
	row := voc.Encode([]string{vocab.SOSToken, "a", "b", vocab.EOSToken})
	field := data.Field{Rows: [][]int32{row}, Lengths: []int{len(row)}}
	require.Less(t, voc.Size(), testVocabSize)
	return voc, &data.Batch{Source: field, Target: field}
}

func testSession(t *testing.T, model *fakeModel, lossFn *fakeLossFn, numTrainBatches int, cfg Config) (*Session, *fakeOptimizer, *fakeDataset, *bytes.Buffer) {
	voc, batch := testVocabAndBatch(t)
	trainBatches := make([]*data.Batch, numTrainBatches)
	for ii := range trainBatches {
		trainBatches[ii] = batch
	}
	corpus := &Corpus{
		Train:       &fakeDataset{name: "train", batches: trainBatches, examples: numTrainBatches},
		Valid:       &fakeDataset{name: "valid", batches: []*data.Batch{batch}, examples: 1},
		Test:        &fakeDataset{name: "test", batches: []*data.Batch{batch}, examples: 1},
		TargetVocab: voc,
	}
	optimizer := &fakeOptimizer{lr: cfg.LearningRate}
	var output bytes.Buffer
	sess := NewSession(cfg, model, optimizer, lossFn, corpus).WithWriter(&output)
	return sess, optimizer, corpus.Train.(*fakeDataset), &output
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TotalEpochs = 3
	cfg.ReportInterval = 1000 // No mid-training reports in the small tests.
	cfg.EarlyStoppingPatience = 2
	cfg.BatchSize = 1
	return cfg
}

func TestSessionTrainsAndTracksProgress(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	sess, optimizer, trainDS, output := testSession(t, model, lossFn, 4, cfg)

	require.NoError(t, sess.Run(-1))

	// 3 epochs x 4 batches of training.
	assert.Equal(t, 12, optimizer.stepped)
	assert.Equal(t, 12, optimizer.zeroed)
	assert.Equal(t, 12, sess.Progress().Step)
	assert.Equal(t, 3, trainDS.resets)
	for _, norm := range optimizer.clipped {
		assert.Equal(t, 1.0, norm)
	}
	// EndStep extrapolated from the first epoch.
	assert.Equal(t, 4*cfg.TotalEpochs, sess.EndStep)
	assert.Contains(t, output.String(), "Epoch: 01 |")
	assert.Greater(t, sess.MedianStepDuration().Nanoseconds(), int64(0))
}

func TestSessionBurnInResetsRecords(t *testing.T) {
	model := &fakeModel{}
	// Validation loss degrades sharply after the first epoch; without the
	// burn-in reset, epochs 1 and 2 would burn patience.
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{1.0, 5.0, 4.0}}
	sess, _, _, output := testSession(t, model, lossFn, 1, testConfig())

	require.NoError(t, sess.Run(1))

	record := sess.Policy().Record()
	assert.Equal(t, 4.0, record.BestValidLoss, "epoch 1's record must have been discarded by the burn-in reset")
	assert.Equal(t, sess.Policy().MaxPatience(), record.Patience)
	assert.Equal(t, 2, bytes.Count(output.Bytes(), []byte("Renewing evaluation records")))
}

func TestSessionEarlyStopping(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{1.0, 2.0, 2.0, 2.0}}
	cfg := testConfig()
	cfg.TotalEpochs = 10
	sess, _, trainDS, output := testSession(t, model, lossFn, 2, cfg)

	require.NoError(t, sess.Run(-1))

	// Patience 2 is consumed by epochs 1 and 2; epoch 3 must not train.
	assert.Equal(t, 3, trainDS.resets)
	assert.True(t, sess.Policy().Exhausted())
	assert.Contains(t, output.String(), "Early stopping!")
}

func TestSessionStopExitsCleanly(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	sess, _, trainDS, output := testSession(t, model, lossFn, 2, testConfig())

	sess.Stop()
	require.NoError(t, sess.Run(-1))

	assert.Equal(t, 0, model.forwards)
	assert.Equal(t, 0, trainDS.resets)
	assert.Contains(t, output.String(), "Exiting loop")
	assert.True(t, sess.Stopped())
}

func TestSessionNaNLossAborts(t *testing.T) {
	model := &fakeModel{}
	nan := math.NaN()
	lossFn := &fakeLossFn{model: model, trainLoss: nan, evalLosses: []float64{0.5}}
	sess, _, _, _ := testSession(t, model, lossFn, 2, testConfig())

	err := sess.Run(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NaN")
}

func TestSessionForwardErrorPropagates(t *testing.T) {
	model := &fakeModel{failForward: true}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	sess, _, _, _ := testSession(t, model, lossFn, 2, testConfig())

	err := sess.Run(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
}

func TestSessionTeacherForcingSchedule(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	cfg.TotalEpochs = 1
	sess, _, _, _ := testSession(t, model, lossFn, 1, cfg)

	require.NoError(t, sess.Run(-1))

	// Epoch 0 trains at 0.8, evaluation turns it off and restores it.
	assert.Contains(t, model.tfrHistory, 0.8)
	assert.Contains(t, model.tfrHistory, 0.0)
	assert.Equal(t, 0.8, model.tfr, "teacher forcing must be restored after evaluation")
	assert.InDelta(t, 0.8, sess.TeacherForcing(), 1e-9)
}

func TestSessionMidTrainingEvaluation(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	cfg.TotalEpochs = 1
	cfg.ReportInterval = 1
	sess, _, _, output := testSession(t, model, lossFn, 10, cfg)
	validDS := sess.corpus.Valid.(*fakeDataset)
	testDS := sess.corpus.Test.(*fakeDataset)

	require.NoError(t, sess.Run(-1))

	// Step 10 == 10*interval triggers one mid-training round (valid+test),
	// plus the end-of-epoch validation pass.
	assert.Equal(t, 2, validDS.resets)
	assert.Equal(t, 1, testDS.resets)
	assert.Contains(t, output.String(), "-----Val------")
	assert.Contains(t, output.String(), "-----Tst------")
	assert.True(t, model.training, "training mode must be restored after a mid-training evaluation")
}

func TestEvaluateAccuracy(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	sess, _, _, _ := testSession(t, model, lossFn, 1, testConfig())

	eval, err := sess.Evaluate(sess.corpus.Valid)
	require.NoError(t, err)
	assert.Equal(t, 1.0, eval.Accuracy, "one-hot ground-truth scores decode to exact matches")
	assert.Equal(t, 0.5, eval.Loss)

	// A model predicting <pad> everywhere matches nothing.
	model.wrongToken = true
	eval, err = sess.Evaluate(sess.corpus.Valid)
	require.NoError(t, err)
	assert.Equal(t, 0.0, eval.Accuracy)
}

func TestSessionHooks(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	cfg.TotalEpochs = 2
	sess, _, _, _ := testSession(t, model, lossFn, 3, cfg)

	var starts, steps, ends int
	var order []string
	sess.OnStart("count", 0, func(sess *Session) error { starts++; return nil })
	sess.OnStep("later", 10, func(sess *Session, batchLoss float64) error {
		order = append(order, "later")
		steps++
		return nil
	})
	sess.OnStep("earlier", -10, func(sess *Session, batchLoss float64) error {
		order = append(order, "earlier")
		return nil
	})
	sess.OnEnd("count", 0, func(sess *Session) error { ends++; return nil })

	var everyN int
	EveryNSteps(sess, 2, "everyN", 0, func(sess *Session, batchLoss float64) error {
		everyN++
		return nil
	})

	require.NoError(t, sess.Run(-1))
	assert.Equal(t, 1, starts)
	assert.Equal(t, 6, steps)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 3, everyN)
	assert.Equal(t, "earlier", order[0], "lower priorities run first")
}

func TestSessionHookErrorStopsRun(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	sess, _, _, _ := testSession(t, model, lossFn, 2, testConfig())
	sess.OnStep("boom", 0, func(sess *Session, batchLoss float64) error {
		return errors.New("hook failed")
	})

	err := sess.Run(-1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `OnStep(hook "boom")`)
}

func TestSessionCheckpointOnImprovement(t *testing.T) {
	model := &fakeCheckpointableModel{}
	lossFn := &fakeLossFn{model: &model.fakeModel, trainLoss: 1.0, evalLosses: []float64{3.0, 2.0, 1.0}}
	cfg := testConfig()
	cfg.EarlyStoppingPatience = 5
	voc, batch := testVocabAndBatch(t)
	corpus := &Corpus{
		Train:       &fakeDataset{name: "train", batches: []*data.Batch{batch}, examples: 1},
		Valid:       &fakeDataset{name: "valid", batches: []*data.Batch{batch}, examples: 1},
		Test:        &fakeDataset{name: "test", batches: []*data.Batch{batch}, examples: 1},
		TargetVocab: voc,
	}
	dir := t.TempDir()
	handler := checkpoints.Build().Dir(dir).MustDone()
	var output bytes.Buffer
	sess := NewSession(cfg, model, &fakeOptimizer{lr: cfg.LearningRate}, lossFn, corpus).
		WithCheckpoints(handler).
		WithWriter(&output)

	require.NoError(t, sess.Run(-1))

	// Criterion LOSS: only the best-by-loss model is persisted.
	cp, err := checkpoints.Load(filepath.Join(dir, checkpoints.LossModelFileName))
	require.NoError(t, err)
	assert.Equal(t, 1.0, cp.Metadata.ValidLoss)
	assert.Equal(t, 2, cp.Metadata.Epoch)
	assert.Equal(t, "LOSS", cp.Metadata.Criterion)
	require.Len(t, cp.Parameters, 1)
	assert.Equal(t, []float32{0.5, -0.5}, cp.Parameters[0].Data)

	assert.NoFileExists(t, filepath.Join(dir, checkpoints.AccModelFileName))
}

func TestSessionMultiTaskRequiresMultiModel(t *testing.T) {
	model := &fakeModel{}
	lossFn := &fakeLossFn{model: model, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	cfg.MultiTaskRatio = 0.5
	voc, batch := testVocabAndBatch(t)
	corpus := &Corpus{
		Train:          &fakeDataset{name: "train", batches: []*data.Batch{batch}, examples: 1},
		Valid:          &fakeDataset{name: "valid", batches: []*data.Batch{batch}, examples: 1},
		Test:           &fakeDataset{name: "test", batches: []*data.Batch{batch}, examples: 1},
		TargetVocab:    voc,
		AuxiliaryVocab: voc,
	}
	assert.Panics(t, func() {
		NewSession(cfg, model, &fakeOptimizer{lr: cfg.LearningRate}, lossFn, corpus)
	})
}

// fakeMultiModel predicts both fields perfectly and records the joint calls.
type fakeMultiModel struct {
	fakeModel
	jointCalls int
}

func (m *fakeMultiModel) ForwardJoint(source, target, auxiliary data.Field) (main, aux data.Scores, err error) {
	m.jointCalls++
	main, err = m.Forward(source, target)
	if err != nil {
		return nil, nil, err
	}
	aux, err = m.Forward(source, auxiliary)
	return
}

func TestSessionMultiTaskMixesLosses(t *testing.T) {
	model := &fakeMultiModel{}
	lossFn := &fakeLossFn{model: &model.fakeModel, trainLoss: 1.0, evalLosses: []float64{0.5}}
	cfg := testConfig()
	cfg.TotalEpochs = 1
	cfg.MultiTaskRatio = 0.75
	voc, batch := testVocabAndBatch(t)
	aux := batch.Target
	multiBatch := &data.Batch{Source: batch.Source, Target: batch.Target, Auxiliary: &aux}
	corpus := &Corpus{
		Train:          &fakeDataset{name: "train", batches: []*data.Batch{multiBatch}, examples: 1},
		Valid:          &fakeDataset{name: "valid", batches: []*data.Batch{multiBatch}, examples: 1},
		Test:           &fakeDataset{name: "test", batches: []*data.Batch{multiBatch}, examples: 1},
		TargetVocab:    voc,
		AuxiliaryVocab: voc,
	}
	var output bytes.Buffer
	sess := NewSession(cfg, model, &fakeOptimizer{lr: cfg.LearningRate}, lossFn, corpus).
		WithWriter(&output)

	require.NoError(t, sess.Run(-1))

	assert.Equal(t, TaskMulti, sess.Task())
	assert.Greater(t, model.jointCalls, 0)
	// One training batch: gradients scaled by ratio and 1-ratio.
	require.GreaterOrEqual(t, len(lossFn.scales), 2)
	assert.Equal(t, 0.75, lossFn.scales[0])
	assert.Equal(t, 0.25, lossFn.scales[1])
	assert.Contains(t, output.String(), "auxiliary-task")
	assert.GreaterOrEqual(t, sess.Policy().Record().BestValidAccAux, 0.0)
}
