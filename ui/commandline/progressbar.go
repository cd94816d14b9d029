// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/seqtrain/train"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ExtraMetricFn is any function that will give extra values to display along the progress bar.
// It is called at each time the progress bar is updated, and it should return a name and the current value when it is called.
type ExtraMetricFn func() (name, value string)

// RefreshPeriod is the time between terminal updates.
var RefreshPeriod = time.Second * 3

// progressBar holds a progressbar being displayed.
type progressBar struct {
	numSteps         int
	lastStepReported int
	bar              *progressbar.ProgressBar
	suffix           string
	inNotebook       bool
	totalAmount      int

	// lipgloss-based rich and asynchronous display for the command-line.
	termenv          *termenv.Output
	statsStyle       lipgloss.Style
	statsTable       *lgtable.Table
	isFirstOutput    bool
	updates          chan progressBarUpdate
	asyncUpdatesDone sync.WaitGroup

	extraMetricFns []ExtraMetricFn
}

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// Write implements io.Writer, and appends the current suffix with metrics to each
// line. It is meant to be used as the default writer for the enclosed progressbar.ProgressBar.
// This ensures that the progress bar and its suffix are written in the same write operation;
// otherwise Jupyter Notebook may display things in different lines.
func (pBar *progressBar) Write(data []byte) (n int, err error) {
	n, err = os.Stdout.Write(data)
	if err != nil {
		return n, err
	}
	_, err = os.Stdout.Write([]byte(pBar.suffix))
	if err != nil {
		return 0, err
	}
	return
}

func (pBar *progressBar) onStart(sess *train.Session) error {
	pBar.lastStepReported = sess.Progress().Step
	if sess.EndStep < 0 {
		pBar.numSteps = 1000 // Guess until the first epoch reveals the size.
	} else {
		pBar.numSteps = sess.EndStep - sess.StartStep
	}
	pBar.bar = progressbar.NewOptions(pBar.numSteps,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar), // Required to work with Jupyter notebook.
	)
	return nil
}

// metricRows returns the name/value pairs displayed below the bar.
func (pBar *progressBar) metricRows(sess *train.Session, batchLoss float64) [][2]string {
	record := sess.Policy().Record()
	return [][2]string{
		{"Batch loss", fmt.Sprintf("%.3f", batchLoss)},
		{"Teacher forcing", fmt.Sprintf("%.3f", sess.TeacherForcing())},
		{"Learning rate", fmt.Sprintf("%.3e", sess.Optimizer().LearningRate())},
		{"Best valid loss", fmt.Sprintf("%.3f", record.BestValidLoss)},
		{"Patience", fmt.Sprintf("%d/%d", record.Patience, sess.Policy().MaxPatience())},
	}
}

func (pBar *progressBar) onStep(sess *train.Session, batchLoss float64) error {
	// Check whether it is finished.
	if pBar.bar.IsFinished() {
		return nil
	}

	// Check whether there is something to update.
	step := sess.Progress().Step
	amount := step - pBar.lastStepReported
	if amount <= 0 {
		return nil
	}

	rows := pBar.metricRows(sess, batchLoss)
	if pBar.inNotebook {
		// For notebooks set a suffix that will be written along with the progressbar in [progressBar.Write].
		parts := make([]string, 0, len(rows)+1)
		parts = append(parts, fmt.Sprintf(" [step=%d]", step))
		for _, row := range rows {
			parts = append(parts, fmt.Sprintf(" [%s=%s]", row[0], row[1]))
		}
		// Erase to an end-of-line escape sequence ("\033[J") not supported in Jupyter notebooks:
		parts = append(parts, "        ")
		pBar.suffix = strings.Join(parts, "")
		_ = pBar.bar.Add(amount) // Triggers print, see [pBar.Write] method.

	} else {
		// Suffix to erase spurious characters from previous prints.
		pBar.suffix = "\033[J" // Using "\033[J" to erase to the end of the line causes flickering on terminals (gnome-terminal and alacritty).

		// For the command-line instead we create and enqueue an update to be asynchronously printed.
		update := progressBarUpdate{
			amount:   amount,
			progress: fmt.Sprintf("%s of %s", humanize.Comma(int64(step)), humanize.Comma(int64(sess.EndStep))),
			rows:     rows,
		}
		pBar.updates <- update
	}

	// Add the number of steps run since last time.
	pBar.totalAmount += amount
	pBar.lastStepReported = step
	return nil
}

func (pBar *progressBar) onEnd(_ *train.Session) error {
	if pBar.updates != nil {
		close(pBar.updates)
	}
	pBar.asyncUpdatesDone.Wait()
	if pBar.termenv != nil {
		pBar.termenv.ShowCursor()
	}
	fmt.Println()
	return nil
}

const ProgressBarName = "seqtrain.ui.commandline.progressBar"

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

type progressBarUpdate struct {
	amount   int
	progress string
	rows     [][2]string
}

// maxUpdateFrequency is the time between updates to the commandline display of stats.
const maxUpdateFrequency = time.Millisecond * 200

// inNotebook reports whether running inside a Jupyter notebook, either with a
// GoNB or a bash_kernel kernel.
func inNotebook() bool {
	_, bashKernel := os.LookupEnv("NOTEBOOK_BASH_KERNEL_CAPABILITIES")
	return bashKernel || gonbui.IsNotebook
}

// AttachProgressBar creates a commandline progress bar and attaches it to the
// session, so that when the session runs, it displays a progress bar with
// progression and training metrics.
//
// The associated data is attached to the train.Session, so nothing is
// returned.
//
// Optionally, one can provide extraMetrics: functions that are called at every update of
// the progress bar and should return a name (title) and a value to be included in the
// updated print-out.
func AttachProgressBar(sess *train.Session, extraMetrics ...ExtraMetricFn) {
	pBar := &progressBar{
		inNotebook:     inNotebook(),
		extraMetricFns: extraMetrics,
	}
	if !pBar.inNotebook {
		pBar.isFirstOutput = true
		pBar.termenv = termenv.NewOutput(os.Stdout)
		pBar.statsStyle = lipgloss.NewStyle().PaddingLeft(8)
		pBar.statsTable = lgtable.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if col == 0 {
					return rightAlignedStyle
				}
				return normalStyle
			})
		pBar.updates = make(chan progressBarUpdate, 100) // Large buffer so things are not blocked.
		pBar.asyncUpdatesDone.Add(1)
		go func() {
			// Asynchronously draw updates: this is handy if the training is faster than the terminal, in particular
			// if running on cloud, with a relatively slow network connection.
			for update := range pBar.updates {
				// Exhaust the updates in the buffer:
				amount := update.amount
			exhaust:
				for {
					select {
					case newUpdate, ok := <-pBar.updates:
						if !ok {
							break exhaust
						}
						amount += newUpdate.amount
						update = newUpdate
					default:
						break exhaust
					}

				}

				// Create the table to be printed.
				pBar.statsTable.Data(lgtable.NewStringData())
				pBar.statsTable.Row("Global Step", update.progress)
				pBar.statsTable.Row("Median train step duration", FormatDuration(sess.MedianStepDuration()))
				for _, row := range update.rows {
					pBar.statsTable.Row(row[0], row[1])
				}
				for _, extraMetric := range pBar.extraMetricFns {
					name, value := extraMetric()
					pBar.statsTable.Row(name, value)
				}

				// For command-line, we clear the previous lines that will be overwritten.
				pBar.termenv.HideCursor()
				if !pBar.isFirstOutput {
					numLinesToBackup := len(update.rows) + 2 + 2 + 2 + len(pBar.extraMetricFns)
					pBar.termenv.CursorPrevLine(numLinesToBackup)
				}
				pBar.isFirstOutput = false

				// Print update.
				fmt.Println(pBar.statsStyle.Render(pBar.statsTable.String()))
				_ = pBar.bar.Add(amount) // Prints progress bar line.
				fmt.Println()
				pBar.termenv.ShowCursor()
				time.Sleep(maxUpdateFrequency)
			}
			pBar.asyncUpdatesDone.Done()
		}()
	}
	sess.OnStart(ProgressBarName, 0, pBar.onStart)
	// Update every 10 training steps, and at least once every RefreshPeriod.
	train.EveryNSteps(sess, 10, ProgressBarName, 0, pBar.onStep)
	train.PeriodicCallback(sess, RefreshPeriod, false, ProgressBarName, 0, pBar.onStep)
	sess.OnEnd(ProgressBarName, 0, pBar.onEnd)
}

// FormatDuration renders a duration with two decimals and a single unit, as
// used in the step-duration row of the stats table: 1500ms becomes "1.50s",
// 90m becomes "1.00h". Falls back to time.Duration.String() on anything it
// cannot shorten.
func FormatDuration(d time.Duration) string {
	s := d.String()
	// Split the leading number from its unit.
	numEnd := len(s)
	for ii, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			numEnd = ii
			break
		}
	}
	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return s
	}
	unitEnd := numEnd
	for unitEnd < len(s) && (s[unitEnd] < '0' || s[unitEnd] > '9') {
		unitEnd++
	}
	return fmt.Sprintf("%.2f%s", num, s[numEnd:unitEnd])
}
