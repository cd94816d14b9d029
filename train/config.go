// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the configuration surface of a training run. It is consumed by
// the Session but owned by the caller: typically parsed from a YAML file
// with LoadConfig.
type Config struct {
	// Optimizer name, resolved through KnownOptimizers, and its initial
	// learning rate.
	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`

	// ValidCriterion is "LOSS" or "ACC": which improved validation metric
	// persists a checkpoint, and which direction the plateau scheduler
	// monitors.
	ValidCriterion string `yaml:"valid_criterion"`

	// LRDecayFactor and DecayPatience configure the plateau scheduler.
	LRDecayFactor float64 `yaml:"lr_decay_factor"`
	DecayPatience int     `yaml:"decay_patience"`

	// EarlyStoppingPatience is the number of non-improving evaluations
	// tolerated before training halts.
	EarlyStoppingPatience int `yaml:"early_stopping_patience"`

	// ExpNum numbers the experiment directory under ExperimentsRoot.
	ExpNum int `yaml:"exp_num"`

	TotalEpochs    int `yaml:"total_epochs"`
	ReportInterval int `yaml:"report_interval"`
	BatchSize      int `yaml:"batch_size"`

	// MultiTaskRatio in [0, 1] mixes main and auxiliary losses; 1 and 0
	// select the single-task modes.
	MultiTaskRatio float64 `yaml:"multi_task_ratio"`

	// Corpus field names.
	SourceLang    string `yaml:"src_lang"`
	TargetLang    string `yaml:"trg_lang"`
	AuxiliaryName string `yaml:"auxiliary_name"`

	// PadIndex is the token id ignored by the loss function.
	PadIndex int32 `yaml:"pad_index"`

	// ExperimentsRoot defaults to "experiments".
	ExperimentsRoot string `yaml:"experiments_root"`
}

// DefaultConfig returns a Config with the defaults applied. Fields without a
// sensible default (languages, epochs) are left zero and caught by Validate.
func DefaultConfig() Config {
	return Config{
		Optimizer:             "adam",
		LearningRate:          1e-3,
		ValidCriterion:        "LOSS",
		LRDecayFactor:         0.9,
		DecayPatience:         2,
		EarlyStoppingPatience: 5,
		ReportInterval:        10,
		BatchSize:             64,
		MultiTaskRatio:        1,
		PadIndex:              1,
		ExperimentsRoot:       "experiments",
	}
}

// LoadConfig parses a YAML configuration file on top of the defaults and
// validates the result.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "failed to read configuration file %q", path)
	}
	if err = yaml.Unmarshal(contents, &config); err != nil {
		return config, errors.Wrapf(err, "failed to parse configuration file %q", path)
	}
	if err = config.Validate(); err != nil {
		return config, errors.WithMessagef(err, "invalid configuration in %q", path)
	}
	return config, nil
}

// Validate checks the configuration for values the Session cannot work with.
func (c *Config) Validate() error {
	if c.ValidCriterion != "LOSS" && c.ValidCriterion != "ACC" {
		return errors.Errorf("valid_criterion must be LOSS or ACC, got %q", c.ValidCriterion)
	}
	if c.MultiTaskRatio < 0 || c.MultiTaskRatio > 1 {
		return errors.Errorf("multi_task_ratio must be in [0, 1], got %g", c.MultiTaskRatio)
	}
	if c.TotalEpochs <= 0 {
		return errors.Errorf("total_epochs must be > 0, got %d", c.TotalEpochs)
	}
	if c.ReportInterval <= 0 {
		return errors.Errorf("report_interval must be > 0, got %d", c.ReportInterval)
	}
	if c.EarlyStoppingPatience < 1 {
		return errors.Errorf("early_stopping_patience must be >= 1, got %d", c.EarlyStoppingPatience)
	}
	if c.LRDecayFactor <= 0 || c.LRDecayFactor >= 1 {
		return errors.Errorf("lr_decay_factor must be in (0, 1), got %g", c.LRDecayFactor)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning_rate must be > 0, got %g", c.LearningRate)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch_size must be > 0, got %d", c.BatchSize)
	}
	return nil
}

// ExperimentDir returns the directory checkpoints and metric history of this
// run are written to: `<experiments_root>/exp<N>`.
func (c *Config) ExperimentDir() string {
	return filepath.Join(c.ExperimentsRoot, fmt.Sprintf("exp%d", c.ExpNum))
}

// Criterion returns the parsed validation criterion. Call Validate first.
func (c *Config) Criterion() Criterion {
	return ParseCriterion(c.ValidCriterion)
}

// PlateauMode returns the plateau-scheduler direction matching the
// validation criterion: maximize for ACC, minimize for LOSS.
func (c *Config) PlateauMode() PlateauMode {
	if c.Criterion() == CriterionAcc {
		return PlateauMax
	}
	return PlateauMin
}
