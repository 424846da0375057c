package ixon

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/brandondube/ringo"

	"github.jpl.nasa.gov/bdube/goixon/drv"
)

// ThermalMonitor samples the camera temperature every <duration> and
// stores up to N of them to return over HTTP.  The device cannot answer
// temperature queries while it is acquiring, so samples that land
// during an acquisition are skipped rather than surfaced as errors.
// The mutex covers the rings; the sampler appends while HTTP reads.
type ThermalMonitor struct {
	sync.Mutex
	T      ringo.CircleF64
	Time   ringo.CircleTime
	cam    *Camera
	ticker *time.Ticker
	stop   chan struct{}
}

type thermaldata struct {
	T          *[]float64   `json:"temp"`
	Time       *[]time.Time `json:"timestamp"`
	SetPoint   int          `json:"set_point"`
	Stabilized bool         `json:"stabilized"`
	Cooler     bool         `json:"cooler"`
}

// NewThermalMonitor creates a new ThermalMonitor and initializes the
// internal machinery
func NewThermalMonitor(cam *Camera, tick time.Duration, capacity int) *ThermalMonitor {
	T := ringo.CircleF64{}
	T.Init(capacity)
	Time := ringo.CircleTime{}
	Time.Init(capacity)
	return &ThermalMonitor{
		T:      T,
		Time:   Time,
		cam:    cam,
		ticker: time.NewTicker(tick),
		stop:   make(chan struct{})}
}

// Start triggers operation of the monitor
func (tm *ThermalMonitor) Start() {
	go tm.runner()
}

// Stop kills the monitor.  It may be restarted.
func (tm *ThermalMonitor) Stop() {
	tm.stop <- struct{}{}
}

func (tm *ThermalMonitor) runner() {
	for {
		select {
		case t := <-tm.ticker.C:
			temp, err := tm.cam.GetTemperature()
			if err != nil {
				if errors.Is(err, drv.ErrAcquisitionInProgress) {
					continue
				}
				log.Printf("error reading camera temperature, %q\n", err)
				continue
			}
			tm.Lock()
			tm.Time.Append(t)
			tm.T.Append(float64(temp))
			tm.Unlock()
		case <-tm.stop:
			return
		}
	}
}

// HTTPYield returns an object over HTTP which contains arrays of
// temperature and timestamps, plus the current set point and status
func (tm *ThermalMonitor) HTTPYield(w http.ResponseWriter, r *http.Request) {
	tm.Lock()
	bufT := tm.T.Contiguous()
	bufTime := tm.Time.Contiguous()
	tm.Unlock()
	state := tm.cam.Snapshot()
	s := thermaldata{
		T:          &bufT,
		Time:       &bufTime,
		SetPoint:   state.TemperatureSetPoint,
		Stabilized: state.TemperatureStabilized,
		Cooler:     state.CoolerActive}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
