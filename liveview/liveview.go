/*Package liveview is the HTTP face of the acquisition server.

It exposes the camera's configuration, the worker's pause/resume/single
controls, the latest frame in png, jpg, or fits form, an MJPEG video
stream, and playback out of the hardware's circular buffer.  Handlers
follow a simple discipline: reads go straight to the camera or hub,
writes that reconfigure the device go through Worker.Apply so a running
acquisition is paused, the change retried while the device winds down,
and streaming resumed.
*/
package liveview

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"goji.io/pat"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/imgrec"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
	"github.jpl.nasa.gov/bdube/goixon/server"
	"github.jpl.nasa.gov/bdube/goixon/trigger"
)

// LiveView serves one camera over HTTP.  Zero-value optional fields
// (Rec, Pulser) disable their features.
type LiveView struct {
	cam     *ixon.Camera
	worker  *acquire.Worker
	hub     *acquire.Hub
	buffer  *ixon.BufferReader
	thermal *ixon.ThermalMonitor

	// Rec, when enabled, receives a copy of every fits download
	Rec *imgrec.Recorder

	// Pulser, when not nil, fires a TTL pulse to trigger externally
	// triggered single captures
	Pulser trigger.Pulser

	// PulseDelay is how long after arming a single capture the pulse
	// fires; it must exceed the camera's arm time
	PulseDelay time.Duration

	// MaxFPS caps the frame rate of the MJPEG stream, 0 for no cap
	MaxFPS float64

	rt server.RouteTable
}

// New returns a LiveView over the given collaborators and populates
// its route table
func New(cam *ixon.Camera, w *acquire.Worker, hub *acquire.Hub, tm *ixon.ThermalMonitor) *LiveView {
	lv := &LiveView{
		cam:        cam,
		worker:     w,
		hub:        hub,
		buffer:     ixon.NewBufferReader(cam),
		thermal:    tm,
		PulseDelay: 50 * time.Millisecond,
	}
	rt := server.RouteTable{
		pat.Get("/state"): lv.GetState,

		pat.Get("/frame"):   lv.GetFrame,
		pat.Get("/video"):   lv.Video,
		pat.Post("/pause"):  lv.Pause,
		pat.Post("/resume"): lv.Resume,
		pat.Post("/single"): lv.Single,

		pat.Get("/trigger-mode"):  server.GetString(stringGetter(cam.GetTriggerMode)),
		pat.Post("/trigger-mode"): server.SetString(lv.applyString(cam.SetTriggerMode)),

		pat.Get("/acquisition-mode"):  server.GetString(stringGetter(cam.GetAcquisitionMode)),
		pat.Post("/acquisition-mode"): server.SetString(lv.applyString(cam.SetAcquisitionMode)),

		pat.Get("/crop"):  lv.GetCrop,
		pat.Post("/crop"): lv.SetCrop,

		pat.Get("/bins"):  server.GetInt(intGetter(cam.GetBins)),
		pat.Post("/bins"): server.SetInt(lv.applyInt(cam.SetBins)),

		pat.Get("/gain"):  server.GetInt(intGetter(cam.GetGain)),
		pat.Post("/gain"): server.SetInt(lv.applyInt(cam.SetGain)),

		pat.Get("/exposure-time"):  server.GetFloat(func() (float64, error) { return cam.GetExposureTime().Seconds(), nil }),
		pat.Post("/exposure-time"): lv.SetExposureTime,

		pat.Get("/temperature"):           server.GetInt(cam.GetTemperature),
		pat.Get("/temperature-setpoint"):  server.GetInt(intGetter(cam.GetTemperatureSetpoint)),
		pat.Post("/temperature-setpoint"): server.SetInt(lv.applyInt(cam.SetTemperatureSetpoint)),

		pat.Get("/cooler"):  server.GetBool(boolGetter(cam.GetCooling)),
		pat.Post("/cooler"): server.SetBool(lv.applyBool(cam.SetCooling)),

		pat.Get("/shutter"):  server.GetBool(boolGetter(cam.GetShutter)),
		pat.Post("/shutter"): server.SetBool(lv.applyBool(cam.SetShutter)),

		pat.Get("/buffer/range"):    lv.BufferRange,
		pat.Get("/buffer/playback"): lv.Playback,
	}
	if tm != nil {
		rt[pat.Get("/temperature-history")] = tm.HTTPYield
	}
	lv.rt = rt
	return lv
}

// RT yields the route table for binding to a mux
func (lv *LiveView) RT() server.RouteTable {
	return lv.rt
}

// httpError maps the acquisition layer's error taxonomy to status
// codes: validation failures are the client's fault, busy means try
// again later, bad buffer ranges are unsatisfiable, everything else is
// a device fault.
func httpError(w http.ResponseWriter, err error) {
	var (
		confErr  ixon.ConfigurationError
		rangeErr ixon.RangeError
	)
	switch {
	case errors.As(err, &confErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, drv.ErrAcquisitionInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &rangeErr):
		http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
	case errors.Is(err, acquire.ErrNotPaused):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func stringGetter(f func() string) func() (string, error) {
	return func() (string, error) { return f(), nil }
}

func intGetter(f func() int) func() (int, error) {
	return func() (int, error) { return f(), nil }
}

func boolGetter(f func() bool) func() (bool, error) {
	return func() (bool, error) { return f(), nil }
}

// applyString routes a setter through the worker's pause/retry/resume
// orchestration
func (lv *LiveView) applyString(set func(string) error) func(string) error {
	return func(s string) error {
		return lv.worker.Apply(func() error { return set(s) })
	}
}

func (lv *LiveView) applyInt(set func(int) error) func(int) error {
	return func(i int) error {
		return lv.worker.Apply(func() error { return set(i) })
	}
}

func (lv *LiveView) applyBool(set func(bool) error) func(bool) error {
	return func(b bool) error {
		return lv.worker.Apply(func() error { return set(b) })
	}
}

// stateResponse is the device state plus the worker's view of the world
type stateResponse struct {
	ixon.DeviceState

	// Worker is the worker's lifecycle state
	Worker string `json:"worker"`

	// WorkerErr is the fault that last stopped streaming, empty if none
	WorkerErr string `json:"worker_err,omitempty"`
}

// GetState returns the commanded configuration and worker state as JSON
func (lv *LiveView) GetState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		DeviceState: lv.cam.Snapshot(),
		Worker:      lv.worker.State().String(),
	}
	if err := lv.worker.Err(); err != nil {
		resp.WorkerErr = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("liveview: encoding state, %v", err)
	}
}

// Pause parks the worker, stopping the stream
func (lv *LiveView) Pause(w http.ResponseWriter, r *http.Request) {
	if err := lv.worker.Pause(); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Resume restarts the stream
func (lv *LiveView) Resume(w http.ResponseWriter, r *http.Request) {
	if err := lv.worker.Resume(); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Single takes one frame with a trigger override, json {"str": mode}.
// The worker must be paused.  When a pulser is wired and the override
// is an external mode, a TTL pulse fires after the camera arms.  The
// frame comes back as a fits file and is teed through the recorder
// when one is enabled.
func (lv *LiveView) Single(w http.ResponseWriter, r *http.Request) {
	s := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&s)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	trig := s.Str
	if trig == "" {
		trig = lv.cam.GetTriggerMode()
	}
	// refuse before arming the pulse timer; a refused capture must not
	// put a TTL edge on the trigger line
	if lv.worker.State() != acquire.Paused {
		httpError(w, acquire.ErrNotPaused)
		return
	}
	if lv.Pulser != nil && isExternal(trig) {
		width := time.Duration(0)
		if trig == "external exposure" {
			width = lv.cam.GetExposureTime()
		}
		go func() {
			time.Sleep(lv.PulseDelay)
			if err := lv.Pulser.Pulse(width); err != nil {
				log.Printf("liveview: trigger pulse failed, %v", err)
			}
		}()
	}
	frame, err := lv.worker.Single(trig)
	if err != nil {
		httpError(w, err)
		return
	}
	lv.respondFITS(w, []ixon.Frame{frame}, true)
}

func isExternal(trigger string) bool {
	switch trigger {
	case "external", "external start", "external exposure":
		return true
	}
	return false
}

// GetFrame returns the latest published frame.  The format comes from
// the fmt query parameter, one of png, jpg, or fits; jpg is the default.
func (lv *LiveView) GetFrame(w http.ResponseWriter, r *http.Request) {
	fr := lv.hub.Latest()
	if fr == nil {
		http.Error(w, "no frame has been published; resume streaming or take a single capture", http.StatusNotFound)
		return
	}
	format := r.URL.Query().Get("fmt")
	if format == "" {
		format = "jpg"
	}
	switch format {
	case "jpg":
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		jpeg.Encode(w, fr.Gray16(), nil)
	case "png":
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		png.Encode(w, fr.Gray16())
	case "fits":
		lv.respondFITS(w, []ixon.Frame{*fr}, true)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q, expected png, jpg, or fits", format), http.StatusBadRequest)
	}
}

// respondFITS streams frames to the client as a fits file, teeing a
// copy through the recorder when record is true and one is enabled
func (lv *LiveView) respondFITS(w http.ResponseWriter, frames []ixon.Frame, record bool) {
	var w2 io.Writer = w
	if record && lv.Rec != nil && lv.Rec.Enabled && lv.Rec.Root != "" {
		w2 = io.MultiWriter(w, lv.Rec)
		defer lv.Rec.Incr()
	}
	hdr := w.Header()
	hdr.Set("Content-Type", "image/fits")
	hdr.Set("Content-Disposition", "attachment; filename=image.fits")
	w.WriteHeader(http.StatusOK)
	cards := lv.cam.CollectHeaderMetadata()
	if err := ixon.WriteFITS(w2, cards, frames); err != nil {
		log.Printf("liveview: writing fits, %v", err)
	}
}

// GetCrop returns the active readout window as JSON
func (lv *LiveView) GetCrop(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(lv.cam.GetCrop()); err != nil {
		log.Printf("liveview: encoding crop, %v", err)
	}
}

// SetCrop assigns the readout window from a JSON body matching
// ixon.Crop
func (lv *LiveView) SetCrop(w http.ResponseWriter, r *http.Request) {
	cr := ixon.Crop{}
	err := json.NewDecoder(r.Body).Decode(&cr)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := lv.worker.Apply(func() error { return lv.cam.SetCrop(cr) }); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SetExposureTime accepts either a query parameter exposureTime
// parseable by time.ParseDuration, or a json body {"f64": seconds}
func (lv *LiveView) SetExposureTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	texp := q.Get("exposureTime")
	var d time.Duration
	var err error
	if texp == "" {
		f := server.FloatT{}
		err = json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		d = time.Duration(f.F64 * float64(time.Second))
	} else {
		d, err = time.ParseDuration(texp)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := lv.worker.Apply(func() error { return lv.cam.SetExposureTime(d) }); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// rangeResponse describes the window of frames retained in the
// hardware's circular buffer
type rangeResponse struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// BufferRange returns the inclusive index range of frames currently
// retained in the circular buffer
func (lv *LiveView) BufferRange(w http.ResponseWriter, r *http.Request) {
	first, last, err := lv.buffer.AvailableRange()
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(rangeResponse{First: first, Last: last}); err != nil {
		log.Printf("liveview: encoding buffer range, %v", err)
	}
}

// Playback retrieves frames first..last (inclusive, query parameters)
// out of the circular buffer and returns them as a fits cube.  The
// window can slide under a live acquisition; on a range failure the
// client should re-query /buffer/range and retry.
func (lv *LiveView) Playback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, err := strconv.Atoi(q.Get("first"))
	if err != nil {
		http.Error(w, fmt.Sprintf("first: %v", err), http.StatusBadRequest)
		return
	}
	last, err := strconv.Atoi(q.Get("last"))
	if err != nil {
		http.Error(w, fmt.Sprintf("last: %v", err), http.StatusBadRequest)
		return
	}
	frames, err := lv.buffer.Retrieve(first, last)
	if err != nil {
		httpError(w, err)
		return
	}
	lv.respondFITS(w, frames, false)
}
