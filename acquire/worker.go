/*Package acquire runs the acquisition lifecycle of an EMCCD camera.

A Worker owns the camera's start/stop state and is the only goroutine
that commands acquisition.  It boots paused and moves between three
states: Paused, where it blocks on its command channel and burns no
cycles; Streaming, where it captures the newest frame over and over and
fans each one out through a Hub; and CapturingSingle, a transient state
for one-shot captures with a trigger override.

Everything else in the process talks to the worker through commands.
Because the worker handles one command at a time, a single capture's
stop/retrigger/restore sequence can never interleave with another
command.  Configuration changes that the device refuses while acquiring
go through Apply, which pauses, retries the change while the
acquisition winds down, and resumes.
*/
package acquire

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

// ErrNotPaused is generated when a single capture is requested while
// the worker is not paused
var ErrNotPaused = errors.New("single capture requires a paused worker")

// ErrWorkerStopped is generated when a command is sent to a worker
// whose loop has exited
var ErrWorkerStopped = errors.New("worker is stopped")

// State is the worker's lifecycle state
type State int

// the worker boots Paused
const (
	Paused State = iota
	Streaming
	CapturingSingle
)

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Streaming:
		return "streaming"
	case CapturingSingle:
		return "capturing-single"
	default:
		return "unknown"
	}
}

// Controller is the slice of the camera the worker drives
type Controller interface {
	StartAcquisition() error
	StopAcquisition() error
	CaptureLatestFrame() (ixon.Frame, error)
	CaptureSingleFrame(trigger string) (ixon.Frame, error)
}

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdSingle
	cmdStop
)

type result struct {
	frame ixon.Frame
	err   error
}

type command struct {
	kind    commandKind
	trigger string
	reply   chan result
}

// Worker drives the camera's acquisition lifecycle.  Create one with
// NewWorker, launch it with Start, and command it through Pause,
// Resume, Single, and Stop.
type Worker struct {
	cam  Controller
	hub  *Hub
	cmds chan command
	done chan struct{}

	mu    sync.Mutex
	state State
	err   error
}

// NewWorker returns a worker that publishes frames from cam to hub.
// The worker does nothing until Start is called.
func NewWorker(cam Controller, hub *Hub) *Worker {
	return &Worker{
		cam:  cam,
		hub:  hub,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
}

// Start launches the worker's loop.  The worker begins paused.
func (w *Worker) Start() {
	go w.run()
}

// State returns the worker's current lifecycle state
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the device fault that last forced the worker out of
// streaming, or nil.  Resume clears it.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) setErr(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

// Pause stops streaming and parks the worker.  Pausing a paused worker
// is a no-op.  Pause returns once the acquisition has been stopped.
func (w *Worker) Pause() error {
	return w.send(command{kind: cmdPause}).err
}

// Resume starts streaming.  Resuming a streaming worker is a no-op.
// Any fault parked by a previous streaming failure is cleared.
func (w *Worker) Resume() error {
	return w.send(command{kind: cmdResume}).err
}

// Single takes one frame with the given trigger mode and restores the
// previous trigger afterward.  The frame is returned and also published
// through the hub.  The worker must be paused.
func (w *Worker) Single(trigger string) (ixon.Frame, error) {
	r := w.send(command{kind: cmdSingle, trigger: trigger})
	return r.frame, r.err
}

// Stop halts streaming if running and ends the worker's loop.  Stop is
// idempotent; commands other than Stop sent after it fail with
// ErrWorkerStopped.
func (w *Worker) Stop() error {
	r := w.send(command{kind: cmdStop})
	if errors.Is(r.err, ErrWorkerStopped) {
		return nil
	}
	return r.err
}

func (w *Worker) send(cmd command) result {
	cmd.reply = make(chan result, 1)
	select {
	case w.cmds <- cmd:
		return <-cmd.reply
	case <-w.done:
		return result{err: ErrWorkerStopped}
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		if w.State() == Paused {
			// nothing to do but wait; the receive blocks
			if quit := w.handle(<-w.cmds); quit {
				return
			}
			continue
		}
		// streaming: drain any pending command between captures
		select {
		case cmd := <-w.cmds:
			if quit := w.handle(cmd); quit {
				return
			}
			continue
		default:
		}
		frame, err := w.cam.CaptureLatestFrame()
		if err != nil {
			// a device fault ends the stream; quiesce the camera and
			// park the fault for Err
			w.cam.StopAcquisition()
			w.setErr(err)
			w.setState(Paused)
			log.Printf("acquire: streaming stopped, %v", err)
			continue
		}
		w.hub.Publish(&frame)
	}
}

func (w *Worker) handle(cmd command) (quit bool) {
	switch cmd.kind {
	case cmdPause:
		var err error
		if w.State() != Paused {
			err = w.cam.StopAcquisition()
			w.setState(Paused)
		}
		cmd.reply <- result{err: err}
	case cmdResume:
		var err error
		if w.State() != Streaming {
			w.setErr(nil)
			err = w.cam.StartAcquisition()
			if err == nil {
				w.setState(Streaming)
			}
		}
		cmd.reply <- result{err: err}
	case cmdSingle:
		if w.State() != Paused {
			cmd.reply <- result{err: ErrNotPaused}
			break
		}
		w.setState(CapturingSingle)
		frame, err := w.cam.CaptureSingleFrame(cmd.trigger)
		w.setState(Paused)
		if err == nil {
			w.hub.Publish(&frame)
		}
		cmd.reply <- result{frame: frame, err: err}
	case cmdStop:
		var err error
		if w.State() == Streaming {
			err = w.cam.StopAcquisition()
		}
		w.setState(Paused)
		cmd.reply <- result{err: err}
		return true
	}
	return false
}

// Apply pauses the worker, applies op, and resumes streaming if the
// worker was streaming before.  While the acquisition winds down the
// device may still report busy, so a busy answer from op is retried
// with exponential backoff; any other failure is returned at once.
func (w *Worker) Apply(op func() error) error {
	wasStreaming := w.State() == Streaming
	if err := w.Pause(); err != nil {
		return err
	}
	retriable := func() error {
		err := op()
		if err == nil || errors.Is(err, drv.ErrAcquisitionInProgress) {
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(retriable, &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         500 * time.Millisecond,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
	if wasStreaming {
		rerr := w.Resume()
		if err == nil {
			err = rerr
		}
	}
	return err
}
