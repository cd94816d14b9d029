package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/seqtrain/checkpoints"
)

// Summary prints one column per checkpoint with the metadata stamped at save
// time and the model sizes. Rows whose values differ between checkpoints are
// highlighted.
func Summary(cps []*checkpoints.Checkpoint, names []string) {
	fmt.Println(titleStyle.Render("Summary"))
	table := newComparisonTable(lipgloss.Right, lipgloss.Left)
	table.Row(false, append([]string{"checkpoint"}, names...)...)

	row := func(label string, valueFn func(cp *checkpoints.Checkpoint) string) {
		values := make([]string, len(cps))
		for ii, cp := range cps {
			values[ii] = valueFn(cp)
		}
		table.Row(len(cps) > 1 && !isAllEqual(values), append([]string{label}, values...)...)
	}

	row("run id", func(cp *checkpoints.Checkpoint) string { return cp.Metadata.RunID })
	row("saved", func(cp *checkpoints.Checkpoint) string { return humanize.Time(cp.Metadata.SavedAt) })
	row("criterion", func(cp *checkpoints.Checkpoint) string { return cp.Metadata.Criterion })
	row("epoch", func(cp *checkpoints.Checkpoint) string { return strconv.Itoa(cp.Metadata.Epoch) })
	row("global step", func(cp *checkpoints.Checkpoint) string {
		return humanize.Comma(int64(cp.Metadata.GlobalStep))
	})
	row("valid loss", func(cp *checkpoints.Checkpoint) string {
		return fmt.Sprintf("%.3f", cp.Metadata.ValidLoss)
	})
	row("valid accuracy", func(cp *checkpoints.Checkpoint) string {
		return fmt.Sprintf("%.2f%%", 100*cp.Metadata.ValidAccuracy)
	})
	row("half precision", func(cp *checkpoints.Checkpoint) string {
		return strconv.FormatBool(cp.Metadata.HalfPrecision)
	})
	row("# tensors", func(cp *checkpoints.Checkpoint) string {
		return humanize.Comma(int64(len(cp.Parameters)))
	})
	row("# parameters", func(cp *checkpoints.Checkpoint) string {
		return humanize.Comma(int64(cp.Metadata.NumParameters()))
	})
	row("# bytes", func(cp *checkpoints.Checkpoint) string {
		return humanize.Bytes(uint64(cp.Metadata.NumBytes()))
	})
	fmt.Println(table.Render())
}
