package fyneui

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"github.com/gomlx/seqtrain/train"
	"github.com/gomlx/seqtrain/train/metrics"
)

// Window holds the Fyne window with the progress bar for a training session. It can be created with NewWindow().
//
// The library assumes there can be multiple Window objects live at any time.
//
// It is here for someone who may want to customize the app. But otherwise consider using AttachGUI or AttachGUIOrProgressBar.
type Window struct {
	Name    string
	Session *train.Session

	Win          fyne.Window
	ProgressBar  *widget.ProgressBar
	CancelButton *widget.Button
	NumStepsText *widget.Label
	SpeedText    *widget.Label
	TrainingForm *widget.Form

	firstUpdate                bool
	LastUpdate                 time.Time
	UpdateFrequency            time.Duration
	numSteps, lastStepReported int

	startTime     time.Time
	speed         float64
	speedFromTime time.Time
	speedFromStep int
}

// NewWindow creates and returns a new Window
//
// It is here for someone who may want to customize the app. But otherwise consider using AttachGUI or AttachGUIOrProgressBar.
func NewWindow(name string, sess *train.Session) *Window {
	muNumWindowsOpened.Lock()
	defer muNumWindowsOpened.Unlock()

	win := &Window{
		Name:            name,
		Session:         sess,
		UpdateFrequency: time.Second / 5,
		firstUpdate:     true,

		ProgressBar:  widget.NewProgressBar(),
		NumStepsText: widget.NewLabel("Training"),
		SpeedText:    widget.NewLabel("(starting)"),
	}
	win.CancelButton = widget.NewButton("Cancel", func() {
		if win.Session.Stopped() {
			// Second click, or training already over: close the window.
			win.Close()
			return
		}
		win.CancelButton.SetText("Stopping...")
		win.Session.Stop()
	})
	win.newTrainingForm()

	// bottomBar with progressBar.
	bottomBar := container.NewBorder(nil, nil, nil, win.SpeedText, win.ProgressBar)

	win.NumStepsText.Alignment = fyne.TextAlignCenter
	win.NumStepsText.TextStyle = fyne.TextStyle{Bold: true}
	win.NumStepsText.Importance = widget.HighImportance

	// Action button(s).
	buttonStrip := container.NewHBox(layout.NewSpacer(), win.CancelButton)

	// Top part with training metrics.
	mainVBox := container.NewVBox(win.NumStepsText, win.TrainingForm, bottomBar, buttonStrip)

	w := App.NewWindow(win.Name)
	w.SetContent(mainVBox)
	w.Resize(fyne.NewSize(480, 20))
	w.Show()
	win.Win = w
	numWindowsOpened++
	return win
}

// Close closes the window, and if the last window is closed, it will wake up all goroutines waiting on WaitForWindows().
func (win *Window) Close() {
	condNumWindowsOpen.L.Lock()
	win.Win.Close()
	numWindowsOpened--
	if numWindowsOpened <= 0 {
		condNumWindowsOpen.Broadcast()
	}
	condNumWindowsOpen.L.Unlock()
}

// OnStart is called when the training session starts.
// It is called before the first OnStep() call.
func (win *Window) OnStart(sess *train.Session) error {
	win.lastStepReported = sess.Progress().Step
	win.startTime = time.Now()
	if sess.EndStep < 0 {
		win.numSteps = 1000 // Guess until the first epoch reveals the size.
	} else {
		win.numSteps = sess.EndStep - sess.StartStep
	}
	win.NumStepsText.SetText(fmt.Sprintf("Training (%d steps)", win.numSteps))
	return nil
}

// OnStep is called after every optimizer step, throttled to the window's
// UpdateFrequency.
func (win *Window) OnStep(sess *train.Session, batchLoss float64) error {
	// Throttle updates.
	if time.Since(win.LastUpdate) < win.UpdateFrequency {
		return nil
	}
	win.LastUpdate = time.Now()

	step := sess.Progress().Step
	if step <= win.lastStepReported {
		return nil
	}
	win.lastStepReported = step
	if sess.EndStep > 0 {
		// EndStep only becomes known after the first epoch.
		win.numSteps = sess.EndStep - sess.StartStep
		win.NumStepsText.SetText(fmt.Sprintf("Training (%d steps)", win.numSteps))
	}
	win.ProgressBar.SetValue(float64(step) / float64(win.numSteps))
	win.updateSpeed(step)
	win.updateTrainingForm(sess, batchLoss)
	return nil
}

// updateSpeed refreshes the steps/s label, re-measuring every 100 steps or
// 10 seconds.
func (win *Window) updateSpeed(step int) {
	if win.firstUpdate {
		win.SpeedText.SetText("(? steps/s)")
		win.firstUpdate = false
		win.speedFromTime = time.Now()
		win.speedFromStep = step
		return
	}
	elapsed := time.Since(win.speedFromTime)
	amount := step - win.speedFromStep
	if elapsed <= time.Second*10 && amount < 100 {
		return
	}
	win.speed = float64(amount) / elapsed.Seconds()
	if win.speed > 10 {
		win.SpeedText.SetText(fmt.Sprintf("%.0f steps/s", win.speed))
	} else if win.speed > 1 {
		win.SpeedText.SetText(fmt.Sprintf("%.1f steps/s", win.speed))
	} else {
		win.SpeedText.SetText(fmt.Sprintf("%.1f steps/min", win.speed*60))
	}
	win.speedFromTime = time.Now()
	win.speedFromStep = step
}

// OnEnd is called when the training session ends: the window stays open,
// displaying the final state, until the user closes it.
func (win *Window) OnEnd(sess *train.Session) error {
	win.ProgressBar.SetValue(1.0)
	win.LastUpdate = time.Now()
	win.updateTrainingForm(sess, 0)
	win.CancelButton.SetText("Done")
	win.Win.Show()
	return nil
}

// Form row indices, in the order created by newTrainingForm.
const (
	rowGlobalStep = iota
	rowElapsed
	rowETA
	rowEpoch
	rowTeacherForcing
	rowBatchLoss
	rowBestValidLoss
	rowBestValidAcc
	rowPatience
)

func (win *Window) newTrainingForm() {
	win.TrainingForm = widget.NewForm(
		widget.NewFormItem("Global Step", widget.NewRichTextWithText("- / -")),
		widget.NewFormItem("Elapsed Time", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("ETA", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Epoch", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Teacher Forcing", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Batch Loss", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Best Valid Loss", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Best Valid Acc", widget.NewRichTextWithText(" - ")),
		widget.NewFormItem("Patience", widget.NewRichTextWithText(" - ")),
	)
}

func (win *Window) updateTrainingForm(sess *train.Session, batchLoss float64) {
	// Convenience method to access a specific row.
	rowAt := func(idx int) *widget.RichText {
		return win.TrainingForm.Items[idx].Widget.(*widget.RichText)
	}

	progress := sess.Progress()
	if sess.EndStep <= 0 {
		rowAt(rowGlobalStep).ParseMarkdown(fmt.Sprintf("%d", progress.Step))
	} else {
		rowAt(rowGlobalStep).ParseMarkdown(fmt.Sprintf("%d / %d", progress.Step, sess.EndStep))
	}

	elapsed := time.Since(win.startTime).Round(time.Second)
	rowAt(rowElapsed).ParseMarkdown(elapsed.String())
	var etaDesc string
	if win.speed == 0 || sess.EndStep <= 0 {
		etaDesc = "-"
	} else {
		etaSecs := float64(sess.EndStep-win.speedFromStep) / win.speed
		etaDur := time.Duration(float64(time.Second) * etaSecs)
		etaDesc = etaDur.Round(time.Second).String()
	}
	rowAt(rowETA).ParseMarkdown(etaDesc)

	record := sess.Policy().Record()
	rowAt(rowEpoch).ParseMarkdown(fmt.Sprintf("%d / %d", progress.Epoch+1, sess.Config().TotalEpochs))
	rowAt(rowTeacherForcing).ParseMarkdown(fmt.Sprintf("%.3f", sess.TeacherForcing()))
	rowAt(rowBatchLoss).ParseMarkdown(
		fmt.Sprintf("%.3f (ppl %.2f)", batchLoss, metrics.Perplexity(batchLoss)))
	rowAt(rowBestValidLoss).ParseMarkdown(fmt.Sprintf("%.3f", record.BestValidLoss))
	rowAt(rowBestValidAcc).ParseMarkdown(fmt.Sprintf("%.3f", record.BestValidAcc))
	rowAt(rowPatience).ParseMarkdown(
		fmt.Sprintf("%d / %d", record.Patience, sess.Policy().MaxPatience()))
}
