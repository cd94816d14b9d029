package main

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/seqtrain/support/sets"
)

// The inspector renders two kinds of tables: plain striped tables for the
// metrics listings, and comparison tables (Summary, Params) that paint a row
// red when the compared checkpoints disagree on it.

var (
	tableHeaderStyle = lipgloss.NewStyle().Reverse(true).
				Align(lipgloss.Center).Padding(0, 2)
	tableRowStyles = [2]lipgloss.Style{
		lipgloss.NewStyle().Padding(0, 1),
		lipgloss.NewStyle().Faint(true).Padding(0, 1),
	}
	tableDiffStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("9")).Padding(0, 1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4)
)

// comparisonTable stripes its rows like a plain table, except for the rows
// flagged at Row() time, which are rendered red.
type comparisonTable struct {
	*lgtable.Table
	numRows int
	diff    sets.Set[int]
}

// newComparisonTable creates an empty comparisonTable. Columns take the
// alignments given; columns beyond them reuse the last one.
func newComparisonTable(alignments ...lipgloss.Position) *comparisonTable {
	ct := &comparisonTable{diff: sets.Make[int]()}
	ct.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row < 0 {
				return tableHeaderStyle
			}
			align := lipgloss.Left
			switch {
			case col < len(alignments):
				align = alignments[col]
			case len(alignments) > 0:
				align = alignments[len(alignments)-1]
			}
			if ct.diff.Has(row) {
				return tableDiffStyle.Align(align)
			}
			return tableRowStyles[row%2].Align(align)
		})
	return ct
}

// Row appends a row to the table, rendered red when highlight is set.
func (ct *comparisonTable) Row(highlight bool, cells ...string) {
	if highlight {
		ct.diff.Insert(ct.numRows)
	}
	ct.Table.Row(cells...)
	ct.numRows++
}

func newPlainTable(alignments ...lipgloss.Position) *lgtable.Table {
	return newComparisonTable(alignments...).Table
}

func isAllEqual[E comparable](s []E) bool {
	for ii := 1; ii < len(s); ii++ {
		if s[ii] != s[0] {
			return false
		}
	}
	return true
}
