// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package data defines the batch types exchanged between datasets, models and
// the training loop, plus dataset implementations to produce them.
//
// A Batch is a fixed-key record: a Source and a Target field, and an optional
// Auxiliary field for multi-task training. Each Field holds padded token-id
// rows plus the unpadded length of every row.
package data

// Field is one named column of a batch: padded token-id rows, batch-major,
// each row shaped `<sos> token... <eos> <pad>...`, plus per-row lengths
// (counting <sos> and <eos> but not padding).
type Field struct {
	Rows    [][]int32
	Lengths []int
}

// BatchSize returns the number of rows in the field.
func (f Field) BatchSize() int { return len(f.Rows) }

// StripLead returns a view of the field with the leading position of every
// row removed. Rows share the backing arrays with the original field.
func (f Field) StripLead() Field {
	stripped := Field{
		Rows:    make([][]int32, len(f.Rows)),
		Lengths: make([]int, len(f.Lengths)),
	}
	for ii, row := range f.Rows {
		stripped.Rows[ii] = row[1:]
	}
	for ii, l := range f.Lengths {
		stripped.Lengths[ii] = l - 1
	}
	return stripped
}

// Scores are model outputs, indexed [row][step][vocab id].
type Scores [][][]float32

// StripLead returns the scores with the leading step of every row removed.
// It shares the backing arrays with the original scores.
func (s Scores) StripLead() Scores {
	stripped := make(Scores, len(s))
	for ii, row := range s {
		stripped[ii] = row[1:]
	}
	return stripped
}

// Argmax decodes each row to the token ids with the highest score per step.
func (s Scores) Argmax() [][]int32 {
	pred := make([][]int32, len(s))
	for ii, row := range s {
		predRow := make([]int32, len(row))
		for jj, stepScores := range row {
			best := int32(0)
			for kk := 1; kk < len(stepScores); kk++ {
				if stepScores[kk] > stepScores[best] {
					best = int32(kk)
				}
			}
			predRow[jj] = best
		}
		pred[ii] = predRow
	}
	return pred
}

// Batch is the unit of data yielded by datasets. Auxiliary is nil unless the
// dataset carries an auxiliary task column.
type Batch struct {
	Source    Field
	Target    Field
	Auxiliary *Field
}

// BatchSize returns the number of examples in the batch.
func (b *Batch) BatchSize() int { return b.Source.BatchSize() }
