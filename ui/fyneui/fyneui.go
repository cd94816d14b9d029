// Package fyneui implements a simple GUI app that displays how training
// progresses: global step, epoch, teacher-forcing ratio, loss metrics and
// early-stopping patience, plus a Cancel button to stop the run cleanly.
//
// How to use this:
//
// 1. Write the following main function:
//
//	func main() {
//		fyneui.RunMain(mainContinue)
//	}
//
//	func mainContinue() {
//		// usual main() code.
//	}
//
// 2. After creating the `sess` object, do:
//
//	fyneui.AttachGUI(sess, "my experiment")
//
// Or, if you don't want both a command-line and a GUI app, but dynamically decide based on the availability
// of a window system:
//
//	fyneui.AttachGUIOrProgressBar(sess, "my experiment")
package fyneui

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/seqtrain/support/xsync"
	"github.com/gomlx/seqtrain/train"
	"github.com/gomlx/seqtrain/ui/commandline"
	"k8s.io/klog/v2"
)

var (
	// App holds the current Fyne App singleton, created when the first NewWindow is called.
	//
	// It is here for someone who may want to customize the app. But otherwise consider using AttachGUI or AttachGUIOrProgressBar.
	App fyne.App

	numWindowsOpened   int
	muNumWindowsOpened sync.Mutex
	condNumWindowsOpen = sync.NewCond(&muNumWindowsOpened)

	// Stop functions of the attached sessions, called on interrupt so the
	// runs can finish their current step instead of being killed mid-step.
	muStopFns sync.Mutex
	stopFns   []func()
)

func registerStop(stop func()) {
	muStopFns.Lock()
	defer muStopFns.Unlock()
	stopFns = append(stopFns, stop)
}

func stopAttachedSessions() {
	muStopFns.Lock()
	stops := make([]func(), len(stopFns))
	copy(stops, stopFns)
	muStopFns.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// RunMain is a wrapper that will execute your main function on a separate Goroutine, while reserving the current
// (presumably the main goroutine) to run Fyne loop.
//
// It should be called once at the beginning of your main function.
//
// Example:
//
//	func main() {
//		flag.Parse()
//		fyneui.RunMain(mainContinue)
//	}
//
//	func mainContinue() {
//			...
//	}
//
// It is here for someone who may want to customize the app. But otherwise consider using AttachGUI or AttachGUIOrProgressBar.
func RunMain(main func()) {
	var exception any
	if !HasWindows() {
		// No windows will be created, just run the main function.
		// This is the common case.
		exception = exceptions.Try(main)

	} else {
		// Coordinate with the new goroutine to run main() with fyne.App.Run().
		done := xsync.NewLatch()
		onInterrupt := make(chan os.Signal, 2)
		go func() {
			<-onInterrupt
			fmt.Println("Interrupt (control+C) received, finishing current step...")
			stopAttachedSessions()
			// Quit the app only once main() drains, so the run exits its
			// loop cleanly and saves whatever it has pending. A second
			// interrupt forces the quit.
			go func() {
				<-onInterrupt
				App.Quit()
			}()
			done.Wait()
			App.Quit()
		}()

		go func() {
			// Override the behavior installed by Fyne.
			signal.Reset(os.Interrupt)
			signal.Notify(onInterrupt, os.Interrupt)
			exception = exceptions.Try(main)
			done.Trigger()
			if exception == nil {
				// Normal end, wait for all windows to close.
				muNumWindowsOpened.Lock()
				if numWindowsOpened > 0 {
					fmt.Println("Waiting for windows to close...")
				}
				muNumWindowsOpened.Unlock()
				WaitForWindows()
			} else {
				// An exception was thrown, force immediate quit.
				App.Quit()
			}
		}()
		App = app.New()
		App.Run()

		// Once App is returned, all windows are definitely closed.
		// We make sure we reset the counter to 0, in case the user calls WaitForWindows(), in case some window was not
		// cleanly closed.
		condNumWindowsOpen.L.Lock()
		numWindowsOpened = 0
		condNumWindowsOpen.Broadcast()
		condNumWindowsOpen.L.Unlock()

		// Wait for the main goroutine to finish and any exceptions to be reported.
		done.Wait()
	}

	if exception != nil {
		klog.Fatalf("Panic:\n%+v", exception)
	}
}

// WaitForWindows waits for all GUI windows to be closed by the user.
//
// Usually RunMain will automatically call this function at the end of the program.
// But it's available if the user want to have some sync point.
func WaitForWindows() {
	condNumWindowsOpen.L.Lock()
	defer condNumWindowsOpen.L.Unlock()
	for numWindowsOpened > 0 {
		condNumWindowsOpen.Wait()
	}
}

// AttachGUI attaches a GUI app to the given session.
//
// - sess: training session to attach to.
// - name: is used for the window name.
//
// The Cancel button stops the session cooperatively, like a SIGINT. When the
// run ends, the GUI is kept alive until the user closes it. Call
// WaitForWindows() to wait for all GUI apps to be closed by the user.
func AttachGUI(sess *train.Session, name string) {
	win := NewWindow(name, sess)
	sess.OnStart(name, 100, win.OnStart)
	sess.OnStep(name, 100, win.OnStep)
	sess.OnEnd(name, 100, win.OnEnd)
	registerStop(sess.Stop)
}

// AttachGUIOrProgressBar attaches a GUI or a progress bar to a training session based on the availability of a graphical display.
// If a DISPLAY environment variable is present, it attaches a graphical user interface.
// Otherwise, it attaches a command-line progress bar.
func AttachGUIOrProgressBar(sess *train.Session, name string) {
	if HasWindows() {
		AttachGUI(sess, name)
	} else {
		commandline.AttachProgressBar(sess)
	}
}

// HasWindows checks if the environment has a graphical display available by verifying the DISPLAY environment variable.
func HasWindows() bool {
	return os.Getenv("DISPLAY") != ""
}
