package acquire_test

import (
	"errors"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

// newRig stands up a simulated camera with a 1ms exposure and an 8x8
// window, plus a started worker
func newRig(t *testing.T) (*acquire.Worker, *acquire.Hub, *ixon.Camera, *drv.Sim) {
	t.Helper()
	sim := drv.NewSim()
	caps := ixon.DefaultCapabilities()
	caps.InitExposureMS = 1
	caps.WaitForTemp = false
	cam := ixon.New(sim, caps)
	if err := cam.Initialize(""); err != nil {
		t.Fatalf("Initialize, expected nil error, got %v", err)
	}
	if err := cam.SetCrop(ixon.Crop{HStart: 1, HEnd: 8, VStart: 1, VEnd: 8}); err != nil {
		t.Fatalf("SetCrop, expected nil error, got %v", err)
	}
	hub := acquire.NewHub()
	w := acquire.NewWorker(cam, hub)
	w.Start()
	t.Cleanup(func() { w.Stop() })
	return w, hub, cam, sim
}

// waitForState polls until the worker reaches s or the deadline passes
func waitForState(t *testing.T, w *acquire.Worker, s acquire.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.State() == s {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("worker did not reach state %v, stuck in %v", s, w.State())
}

func TestWorkerBootsPaused(t *testing.T) {
	w, _, _, _ := newRig(t)
	if s := w.State(); s != acquire.Paused {
		t.Errorf("expected a new worker to be paused, got %v", s)
	}
}

func TestWorkerStreamsFrames(t *testing.T) {
	w, hub, _, _ := newRig(t)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	if s := w.State(); s != acquire.Streaming {
		t.Fatalf("expected streaming state, got %v", s)
	}
	fr := sub.Next()
	if fr == nil {
		t.Fatal("expected a frame from the stream, got nil")
	}
	if fr.Width != 8 || fr.Height != 8 {
		t.Errorf("expected 8x8 frame, got %dx%d", fr.Width, fr.Height)
	}
	if err := w.Pause(); err != nil {
		t.Fatalf("Pause, expected nil error, got %v", err)
	}
	if s := w.State(); s != acquire.Paused {
		t.Errorf("expected paused state, got %v", s)
	}
}

func TestWorkerSingleRoundTrip(t *testing.T) {
	w, hub, cam, _ := newRig(t)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)
	fr, err := w.Single("external")
	if err != nil {
		t.Fatalf("Single, expected nil error, got %v", err)
	}
	if fr.Trigger != "external" {
		t.Errorf("expected frame tagged with the override trigger, got %q", fr.Trigger)
	}
	if tm := cam.GetTriggerMode(); tm != "internal" {
		t.Errorf("expected trigger mode restored to internal, got %q", tm)
	}
	if s := w.State(); s != acquire.Paused {
		t.Errorf("expected worker paused after single, got %v", s)
	}
	published := sub.Next()
	if published == nil || published.Trigger != "external" {
		t.Errorf("expected the single frame on the hub, got %+v", published)
	}
	if d := sub.Drops(); d != 0 {
		t.Errorf("expected exactly one published frame, %d were dropped", d)
	}
}

func TestWorkerSingleWhileStreamingRefused(t *testing.T) {
	w, _, _, _ := newRig(t)
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	_, err := w.Single("external")
	if !errors.Is(err, acquire.ErrNotPaused) {
		t.Errorf("expected ErrNotPaused, got %v", err)
	}
	if err := w.Pause(); err != nil {
		t.Fatalf("Pause, expected nil error, got %v", err)
	}
}

func TestWorkerFaultPausesStreaming(t *testing.T) {
	w, _, _, sim := newRig(t)
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	sim.InjectFault("WaitForAcquisition", drv.CodeGeneralErrors)
	waitForState(t, w, acquire.Paused)
	err := w.Err()
	var derr drv.DRVError
	if !errors.As(err, &derr) {
		t.Fatalf("expected the fault parked on the worker, got %v", err)
	}
	if drv.Code(derr) != drv.CodeGeneralErrors {
		t.Errorf("expected code %d, got %d", drv.CodeGeneralErrors, drv.Code(derr))
	}
	// the fault clears on resume and streaming works again
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume after fault, expected nil error, got %v", err)
	}
	if err := w.Err(); err != nil {
		t.Errorf("expected fault cleared on resume, got %v", err)
	}
	if err := w.Pause(); err != nil {
		t.Fatalf("Pause, expected nil error, got %v", err)
	}
}

func TestWorkerApplyPausesAndResumes(t *testing.T) {
	w, _, cam, _ := newRig(t)
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	err := w.Apply(func() error { return cam.SetBins(2) })
	if err != nil {
		t.Fatalf("Apply, expected nil error, got %v", err)
	}
	if b := cam.GetBins(); b != 2 {
		t.Errorf("expected bin factor 2, got %d", b)
	}
	if s := w.State(); s != acquire.Streaming {
		t.Errorf("expected streaming resumed after Apply, got %v", s)
	}
	if err := w.Pause(); err != nil {
		t.Fatalf("Pause, expected nil error, got %v", err)
	}
}

func TestWorkerApplyStaysPausedIfItWasPaused(t *testing.T) {
	w, _, cam, _ := newRig(t)
	err := w.Apply(func() error { return cam.SetGain(5) })
	if err != nil {
		t.Fatalf("Apply, expected nil error, got %v", err)
	}
	if s := w.State(); s != acquire.Paused {
		t.Errorf("expected worker to remain paused, got %v", s)
	}
}

func TestWorkerApplySurfacesPermanentErrors(t *testing.T) {
	w, _, cam, _ := newRig(t)
	err := w.Apply(func() error { return cam.SetGain(9999) })
	var ce ixon.ConfigurationError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigurationError through Apply, got %v", err)
	}
}

func TestWorkerStopIdempotent(t *testing.T) {
	w, _, _, _ := newRig(t)
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop, expected nil error, got %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop, expected nil error, got %v", err)
	}
	if err := w.Pause(); !errors.Is(err, acquire.ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped after Stop, got %v", err)
	}
	if _, err := w.Single("external"); !errors.Is(err, acquire.ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped after Stop, got %v", err)
	}
}

func TestWorkerPauseIdempotent(t *testing.T) {
	w, _, _, _ := newRig(t)
	if err := w.Pause(); err != nil {
		t.Errorf("Pause on a paused worker, expected nil error, got %v", err)
	}
	if err := w.Pause(); err != nil {
		t.Errorf("second Pause, expected nil error, got %v", err)
	}
}
