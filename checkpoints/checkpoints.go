// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package checkpoints implements saving and loading of model parameter
// checkpoints for the training loop.
//
// The main object is the Handler, created by calling Build, followed by the
// various options setting and finally calling Config.Done:
//
//	handler, err := checkpoints.Build().
//		Dir(config.ExperimentDir()).
//		Keep(3).
//		Done()
//
// A checkpoint is a single gzip-compressed file: one JSON-encoded Metadata
// header (which includes the descriptors of every parameter) followed by the
// raw little-endian parameter data. The file is written to a temporary name
// and renamed into place, so a partially written checkpoint is never visible
// under its final name.
package checkpoints

import (
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// File names used by the evaluation policy for its two best-model
// checkpoints.
const (
	LossModelFileName = "loss-model-seq2seq.pt"
	AccModelFileName  = "acc-model-seq2seq.pt"
)

// DirPermMode is the default directory creation permission (before umask) used.
var DirPermMode = os.FileMode(0770)

// Parameter is one named model parameter: its shape and the flattened
// row-major values.
type Parameter struct {
	Name  string
	Shape []int
	Data  []float32
}

// Size returns the number of values in the parameter.
func (p Parameter) Size() int {
	size := 1
	for _, dim := range p.Shape {
		size *= dim
	}
	return size
}

// StateProvider is implemented by models that can enumerate their parameter
// state for checkpointing.
type StateProvider interface {
	// StateDict returns all model parameters. The checkpoint handler only
	// reads them.
	StateDict() []Parameter
}

// StateRestorer is implemented by models that can restore their parameter
// state from a loaded checkpoint.
type StateRestorer interface {
	LoadStateDict(params []Parameter) error
}

// ParamDescriptor describes one serialized parameter in the metadata header.
// Pos and Length are in bytes within the (uncompressed) data section.
type ParamDescriptor struct {
	Name        string
	Dimensions  []int
	Pos, Length int
}

// Metadata is the JSON header of a checkpoint file.
type Metadata struct {
	// RunID identifies the training run that wrote the checkpoint.
	RunID string

	// Epoch and GlobalStep at save time.
	Epoch      int
	GlobalStep int

	// Validation metrics that triggered the save.
	ValidLoss     float64
	ValidAccuracy float64

	// Criterion is the primary validation criterion of the run, "LOSS" or "ACC".
	Criterion string

	SavedAt time.Time

	// HalfPrecision is set when the parameter data is stored as IEEE 754
	// binary16 instead of float32.
	HalfPrecision bool

	Params []ParamDescriptor
}

// NumParameters returns the total parameter count described by the metadata.
func (m *Metadata) NumParameters() int {
	total := 0
	for _, desc := range m.Params {
		size := 1
		for _, dim := range desc.Dimensions {
			size *= dim
		}
		total += size
	}
	return total
}

// NumBytes returns the (uncompressed) size in bytes of the parameter data.
func (m *Metadata) NumBytes() int {
	total := 0
	for _, desc := range m.Params {
		total += desc.Length
	}
	return total
}

// Config for the checkpoints Handler to be created. This is created with
// Build and configured with the various methods. Once finished, call Done.
type Config struct {
	err  error
	dir  string
	keep int
	half bool
}

// Build a configuration for a checkpoints.Handler. After configuring the
// returned Config, call Done to get the Handler.
func Build() *Config {
	return &Config{keep: 1}
}

func (c *Config) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Dir sets the directory where to save / load the checkpoints, creating it
// if needed.
//
// One of Dir, DirFromBase or TempDir must be set before calling Done.
func (c *Config) Dir(dir string) *Config {
	fi, err := os.Stat(dir)
	if err != nil && !os.IsNotExist(err) {
		c.setError(errors.Wrapf(err, "failed to os.Stat(%q)", dir))
		return c
	}
	if err == nil && !fi.IsDir() {
		c.setError(errors.Errorf("checkpoint directory %q exists but is a normal file", dir))
		return c
	}
	c.dir = dir
	if err == nil {
		return c
	}
	if err = os.MkdirAll(dir, DirPermMode); err != nil {
		c.setError(errors.Wrapf(err, "trying to create dir %q", dir))
	}
	return c
}

// DirFromBase sets the directory where to save / load the checkpoints.
// If dir is not an absolute path, it is taken as a subdirectory of baseDir.
func (c *Config) DirFromBase(dir, baseDir string) *Config {
	if !path.IsAbs(dir) {
		dir = path.Join(baseDir, dir)
	}
	return c.Dir(dir)
}

// TempDir creates a temporary directory under dir with the given pattern and
// uses it to save checkpoints. A convenience wrapper around os.MkdirTemp,
// mostly used in tests.
func (c *Config) TempDir(dir, pattern string) *Config {
	newDir, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		c.setError(errors.Wrapf(err, "failed os.MkdirTemp(%q, %q)", dir, pattern))
		return c
	}
	c.dir = newDir
	return c
}

// Keep configures the number of copies to keep per checkpoint name: the
// current file plus `n-1` numbered backups (`<name>.1` is the most recent
// backup). The default is 1, meaning each improvement overwrites the last.
func (c *Config) Keep(n int) *Config {
	if n < 1 {
		c.setError(errors.Errorf("Keep(%d): must keep at least 1 checkpoint", n))
		return c
	}
	c.keep = n
	return c
}

// HalfPrecision stores parameter values as IEEE 754 binary16, halving the
// checkpoint size at the cost of precision.
func (c *Config) HalfPrecision() *Config {
	c.half = true
	return c
}

// Done creates a Handler with the current configuration. It returns an error
// if the configuration is invalid or incomplete.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.dir == "" {
		return nil, errors.Errorf("directory for checkpoints not configured or empty")
	}
	return &Handler{config: c, runID: uuid.NewString()}, nil
}

// MustDone constructs the Handler, panicking on error.
func (c *Config) MustDone() *Handler {
	h, err := c.Done()
	if err != nil {
		panic(errors.Wrap(err, "failed to create checkpoints.Handler"))
	}
	return h
}

// Handler saves and loads checkpoints in its configured directory. See the
// package documentation for an example.
type Handler struct {
	config *Config
	runID  string
}

// String implements Stringer.
func (h *Handler) String() string {
	return fmt.Sprintf("checkpoints.Handler(%q)", h.config.dir)
}

// Dir returns the directory the Handler is configured to.
// It returns "" if the Handler is nil.
func (h *Handler) Dir() string {
	if h == nil {
		return ""
	}
	return h.config.dir
}

// RunID identifies the training run, stamped on every checkpoint saved.
func (h *Handler) RunID() string { return h.runID }

// Save writes the model state under the given file name (relative to the
// handler directory), rotating older copies per the Keep configuration.
// The fields RunID, SavedAt, HalfPrecision and Params of meta are filled in
// by Save.
func (h *Handler) Save(fileName string, meta Metadata, state StateProvider) error {
	meta.RunID = h.runID
	meta.SavedAt = time.Now()
	meta.HalfPrecision = h.config.half

	params := state.StateDict()
	meta.Params = make([]ParamDescriptor, len(params))
	bytesPerValue := 4
	if h.config.half {
		bytesPerValue = 2
	}
	pos := 0
	for ii, p := range params {
		length := p.Size() * bytesPerValue
		meta.Params[ii] = ParamDescriptor{
			Name:       p.Name,
			Dimensions: p.Shape,
			Pos:        pos,
			Length:     length,
		}
		pos += length
	}

	// Write to a temporary file first, then rotate and rename.
	tmpFile, err := os.CreateTemp(h.config.dir, fileName+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "%s: failed to create temporary checkpoint file", h)
	}
	tmpName := tmpFile.Name()
	if err = h.write(tmpFile, &meta, params); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "%s: failed to close checkpoint file %q", h, tmpName)
	}

	filePath := filepath.Join(h.config.dir, fileName)
	if err = h.rotate(fileName); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err = os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "%s: failed to rename checkpoint into %q", h, filePath)
	}
	klog.V(1).Infof("%s: saved %q (epoch=%d, step=%d)", h, fileName, meta.Epoch, meta.GlobalStep)
	return nil
}

// write serializes the metadata header and parameter data to w, gzipped.
func (h *Handler) write(w *os.File, meta *Metadata, params []Parameter) error {
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(meta); err != nil {
		return errors.Wrapf(err, "%s: failed to encode checkpoint metadata", h)
	}
	for _, p := range params {
		var raw []byte
		if h.config.half {
			raw = make([]byte, 2*len(p.Data))
			for ii, v := range p.Data {
				binary.LittleEndian.PutUint16(raw[2*ii:], float16.Fromfloat32(v).Bits())
			}
		} else {
			raw = make([]byte, 4*len(p.Data))
			for ii, v := range p.Data {
				binary.LittleEndian.PutUint32(raw[4*ii:], math.Float32bits(v))
			}
		}
		if _, err := zw.Write(raw); err != nil {
			return errors.Wrapf(err, "%s: failed to write parameter %q", h, p.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "%s: failed to flush checkpoint", h)
	}
	return nil
}

// rotate shifts the numbered backup copies of fileName, making room for a
// new current file: <name>.k -> <name>.k+1, <name> -> <name>.1, dropping the
// oldest. With Keep(1) it is a no-op, the rename overwrites the old file.
func (h *Handler) rotate(fileName string) error {
	if h.config.keep == 1 {
		return nil
	}
	oldest := filepath.Join(h.config.dir, fmt.Sprintf("%s.%d", fileName, h.config.keep-1))
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "%s: failed to remove oldest backup %q", h, oldest)
	}
	for k := h.config.keep - 2; k >= 1; k-- {
		from := filepath.Join(h.config.dir, fmt.Sprintf("%s.%d", fileName, k))
		to := filepath.Join(h.config.dir, fmt.Sprintf("%s.%d", fileName, k+1))
		if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "%s: failed to rotate backup %q", h, from)
		}
	}
	current := filepath.Join(h.config.dir, fileName)
	backup := current + ".1"
	if err := os.Rename(current, backup); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "%s: failed to back up checkpoint %q", h, current)
	}
	return nil
}

// Checkpoint is a fully loaded checkpoint file.
type Checkpoint struct {
	Metadata
	Parameters []Parameter
}

// RestoreInto loads the checkpoint parameters into the model, which must
// implement StateRestorer.
func (cp *Checkpoint) RestoreInto(model any) error {
	restorer, ok := model.(StateRestorer)
	if !ok {
		return errors.Errorf("model of type %T does not implement checkpoints.StateRestorer", model)
	}
	return restorer.LoadStateDict(cp.Parameters)
}

// Load reads a checkpoint file, metadata and parameters, converting the data
// back to float32 if the checkpoint was saved with HalfPrecision.
func Load(filePath string) (*Checkpoint, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open checkpoint file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint file %q is not gzip-compressed", filePath)
	}

	cp := &Checkpoint{}
	dec := json.NewDecoder(zr)
	if err = dec.Decode(&cp.Metadata); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata of checkpoint %q", filePath)
	}

	// The decoder may have buffered part of the data section; read everything
	// that follows the header and keep the trailing NumBytes -- whatever
	// precedes it is the newline the JSON encoder appended.
	buffered, err := io.ReadAll(io.MultiReader(dec.Buffered(), zr))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parameter data of checkpoint %q", filePath)
	}
	if len(buffered) < cp.NumBytes() {
		return nil, errors.Errorf("checkpoint %q is truncated: %d data bytes present, %d described",
			filePath, len(buffered), cp.NumBytes())
	}
	buffered = buffered[len(buffered)-cp.NumBytes():]

	cp.Parameters = make([]Parameter, len(cp.Params))
	for ii, desc := range cp.Params {
		raw := buffered[desc.Pos : desc.Pos+desc.Length]
		var values []float32
		if cp.HalfPrecision {
			values = make([]float32, desc.Length/2)
			for jj := range values {
				values[jj] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*jj:])).Float32()
			}
		} else {
			values = make([]float32, desc.Length/4)
			for jj := range values {
				values[jj] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*jj:]))
			}
		}
		cp.Parameters[ii] = Parameter{Name: desc.Name, Shape: desc.Dimensions, Data: values}
	}
	return cp, nil
}
