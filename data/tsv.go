// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package data

import (
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/gomlx/seqtrain/vocab"
	"github.com/pkg/errors"
)

// TableSpec names the corpus columns to read from a delimited file.
// AuxiliaryColumn is optional; leave it empty for single-task corpora.
type TableSpec struct {
	SourceColumn    string
	TargetColumn    string
	AuxiliaryColumn string

	// Tokenize splits a cell into tokens. Defaults to strings.Fields.
	Tokenize func(string) []string

	// Comma is the field delimiter. Defaults to '\t'.
	Comma rune
}

// LoadTSV reads a delimited corpus file into tokenized examples.
// The first line must name the columns.
func LoadTSV(path string, spec TableSpec) ([]Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open corpus file %q", path)
	}
	defer func() { _ = f.Close() }()

	comma := spec.Comma
	if comma == 0 {
		comma = '\t'
	}
	df := dataframe.ReadCSV(f,
		dataframe.WithDelimiter(comma),
		dataframe.HasHeader(true),
		dataframe.DefaultType(series.String))
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "failed to parse corpus file %q", path)
	}
	return ExamplesFromDataFrame(df, spec)
}

// ExamplesFromDataFrame converts the named columns of a dataframe into
// tokenized examples.
func ExamplesFromDataFrame(df dataframe.DataFrame, spec TableSpec) ([]Example, error) {
	tokenize := spec.Tokenize
	if tokenize == nil {
		tokenize = strings.Fields
	}
	column := func(name string) ([]string, error) {
		col := df.Col(name)
		if col.Err != nil {
			return nil, errors.Wrapf(col.Err, "column %q not found, available columns are %v", name, df.Names())
		}
		return col.Records(), nil
	}

	source, err := column(spec.SourceColumn)
	if err != nil {
		return nil, err
	}
	target, err := column(spec.TargetColumn)
	if err != nil {
		return nil, err
	}
	var auxiliary []string
	if spec.AuxiliaryColumn != "" {
		auxiliary, err = column(spec.AuxiliaryColumn)
		if err != nil {
			return nil, err
		}
	}

	examples := make([]Example, len(source))
	for ii := range examples {
		examples[ii].Source = tokenize(source[ii])
		examples[ii].Target = tokenize(target[ii])
		if auxiliary != nil {
			examples[ii].Auxiliary = tokenize(auxiliary[ii])
		}
	}
	return examples, nil
}

// BuildVocabs builds the vocabularies for each field of the examples.
// The auxiliary vocabulary is nil if the examples have no auxiliary tokens.
func BuildVocabs(examples []Example) Vocabs {
	sources := make([][]string, len(examples))
	targets := make([][]string, len(examples))
	var auxiliaries [][]string
	for ii, e := range examples {
		sources[ii] = e.Source
		targets[ii] = e.Target
		if len(e.Auxiliary) > 0 {
			auxiliaries = append(auxiliaries, e.Auxiliary)
		}
	}
	vocabs := Vocabs{
		Source: vocab.Build(sources),
		Target: vocab.Build(targets),
	}
	if len(auxiliaries) > 0 {
		vocabs.Auxiliary = vocab.Build(auxiliaries)
	}
	return vocabs
}
