package liveview_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"goji.io"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
	"github.jpl.nasa.gov/bdube/goixon/liveview"
	"github.jpl.nasa.gov/bdube/goixon/server"
)

// newServer stands up a simulated camera with a fast exposure and a
// small window behind the full HTTP surface
func newServer(t *testing.T) (*goji.Mux, *acquire.Worker, *acquire.Hub) {
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
	lv := liveview.New(cam, w, hub, nil)
	mux := goji.NewMux()
	lv.RT().Bind(mux)
	return mux, w, hub
}

func get(t *testing.T, mux *goji.Mux, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func post(t *testing.T, mux *goji.Mux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body)))
	return w
}

func TestStateReflectsBootConfig(t *testing.T) {
	mux, _, _ := newServer(t)
	w := get(t, mux, "/state")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d", w.Code, http.StatusOK)
	}
	var resp struct {
		TriggerMode string `json:"trigger_mode"`
		Worker      string `json:"worker"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding state, expected nil error, got %v", err)
	}
	if resp.TriggerMode != "internal" {
		t.Errorf("got trigger mode %q, expected internal", resp.TriggerMode)
	}
	if resp.Worker != "paused" {
		t.Errorf("got worker state %q, expected paused", resp.Worker)
	}
}

func TestFrameBeforeAnyPublish404s(t *testing.T) {
	mux, _, _ := newServer(t)
	w := get(t, mux, "/frame")
	if w.Code != http.StatusNotFound {
		t.Errorf("got status %d, expected %d", w.Code, http.StatusNotFound)
	}
}

func TestSinglePublishesAndReturnsFITS(t *testing.T) {
	mux, _, hub := newServer(t)
	w := post(t, mux, "/single", `{"str": "software"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/fits" {
		t.Errorf("got content type %q, expected image/fits", ct)
	}
	fr := hub.Latest()
	if fr == nil {
		t.Fatal("expected the single capture to be published, got nil")
	}
	if fr.Trigger != "software" {
		t.Errorf("got frame trigger %q, expected software", fr.Trigger)
	}

	// latest frame is now servable as png
	w = get(t, mux, "/frame?fmt=png")
	if w.Code != http.StatusOK {
		t.Errorf("frame after publish, got status %d, expected %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("got content type %q, expected image/png", ct)
	}
}

func TestSingleWhileStreamingConflicts(t *testing.T) {
	mux, worker, _ := newServer(t)
	if err := worker.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	w := post(t, mux, "/single", `{"str": "software"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("got status %d, expected %d", w.Code, http.StatusConflict)
	}
}

// countingPulser records how many TTL pulses were requested
type countingPulser struct {
	mu    sync.Mutex
	fired int
}

func (p *countingPulser) Pulse(width time.Duration) error {
	p.mu.Lock()
	p.fired++
	p.mu.Unlock()
	return nil
}

func (p *countingPulser) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired
}

func TestSingleRefusedFiresNoPulse(t *testing.T) {
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
	worker := acquire.NewWorker(cam, hub)
	worker.Start()
	t.Cleanup(func() { worker.Stop() })
	lv := liveview.New(cam, worker, hub, nil)
	p := &countingPulser{}
	lv.Pulser = p
	mux := goji.NewMux()
	lv.RT().Bind(mux)

	// refused while streaming; the trigger line must stay quiet
	if err := worker.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	w := post(t, mux, "/single", `{"str": "external"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("got status %d, expected %d", w.Code, http.StatusConflict)
	}
	time.Sleep(20 * time.Millisecond)
	if n := p.count(); n != 0 {
		t.Errorf("refused capture fired %d pulses, expected 0", n)
	}

	// accepted while paused; exactly one pulse
	if err := worker.Pause(); err != nil {
		t.Fatalf("Pause, expected nil error, got %v", err)
	}
	w = post(t, mux, "/single", `{"str": "external"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	deadline := time.Now().Add(time.Second)
	for p.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := p.count(); n != 1 {
		t.Errorf("accepted capture fired %d pulses, expected 1", n)
	}
}

func TestSetGainRoundTrip(t *testing.T) {
	mux, _, _ := newServer(t)
	w := post(t, mux, "/gain", `{"int": 17}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	w = get(t, mux, "/gain")
	var i server.IntT
	if err := json.NewDecoder(w.Body).Decode(&i); err != nil {
		t.Fatalf("decoding gain, expected nil error, got %v", err)
	}
	if i.Int != 17 {
		t.Errorf("got gain %d, expected 17", i.Int)
	}
}

func TestSetBinsWhileStreamingPausesAndResumes(t *testing.T) {
	mux, worker, _ := newServer(t)
	if err := worker.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	w := post(t, mux, "/bins", `{"int": 2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d, body %s", w.Code, http.StatusOK, w.Body.String())
	}
	if s := worker.State(); s != acquire.Streaming {
		t.Errorf("expected the worker back to streaming, got %v", s)
	}
	w = get(t, mux, "/bins")
	var i server.IntT
	if err := json.NewDecoder(w.Body).Decode(&i); err != nil {
		t.Fatalf("decoding bins, expected nil error, got %v", err)
	}
	if i.Int != 2 {
		t.Errorf("got bins %d, expected 2", i.Int)
	}
}

func TestSetCropInvalidRejected(t *testing.T) {
	mux, _, _ := newServer(t)
	w := post(t, mux, "/crop", `{"hstart": 10, "hend": 5, "vstart": 1, "vend": 8}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, expected %d", w.Code, http.StatusBadRequest)
	}
}

func TestPlaybackRangeScenario(t *testing.T) {
	mux, _, _ := newServer(t)
	// load the circular buffer with a few frames
	for i := 0; i < 3; i++ {
		w := post(t, mux, "/single", `{"str": "software"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("single %d, got status %d, body %s", i, w.Code, w.Body.String())
		}
	}
	w := get(t, mux, "/buffer/range")
	if w.Code != http.StatusOK {
		t.Fatalf("buffer range, got status %d, body %s", w.Code, w.Body.String())
	}
	var rng struct {
		First int `json:"first"`
		Last  int `json:"last"`
	}
	if err := json.NewDecoder(w.Body).Decode(&rng); err != nil {
		t.Fatalf("decoding range, expected nil error, got %v", err)
	}
	if rng.Last < rng.First {
		t.Fatalf("got inverted range [%d, %d]", rng.First, rng.Last)
	}

	w = get(t, mux, fmt.Sprintf("/buffer/playback?first=%d&last=%d", rng.First, rng.Last))
	if w.Code != http.StatusOK {
		t.Errorf("playback, got status %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/fits" {
		t.Errorf("got content type %q, expected image/fits", ct)
	}

	// beyond the retained window
	w = get(t, mux, fmt.Sprintf("/buffer/playback?first=%d&last=%d", rng.Last+10, rng.Last+20))
	if w.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("out of window, got status %d, expected %d", w.Code, http.StatusRequestedRangeNotSatisfiable)
	}
}

func TestPauseResumeEndpoints(t *testing.T) {
	mux, worker, _ := newServer(t)
	w := post(t, mux, "/resume", "")
	if w.Code != http.StatusOK {
		t.Fatalf("resume, got status %d", w.Code)
	}
	if s := worker.State(); s != acquire.Streaming {
		t.Errorf("expected streaming, got %v", s)
	}
	w = post(t, mux, "/pause", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pause, got status %d", w.Code)
	}
	if s := worker.State(); s != acquire.Paused {
		t.Errorf("expected paused, got %v", s)
	}
}

func TestExposureTimeQueryParameter(t *testing.T) {
	mux, _, _ := newServer(t)
	w := post(t, mux, "/exposure-time?exposureTime=2ms", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", w.Code, w.Body.String())
	}
	w = get(t, mux, "/exposure-time")
	var f server.FloatT
	if err := json.NewDecoder(w.Body).Decode(&f); err != nil {
		t.Fatalf("decoding exposure, expected nil error, got %v", err)
	}
	if f.F64 != 0.002 {
		t.Errorf("got exposure %g s, expected 0.002", f.F64)
	}
}
