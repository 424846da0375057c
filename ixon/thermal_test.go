package ixon_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

// exercises the monitor's sampler and HTTP reader together; run with
// the race detector, the rings are shared between the two
func TestThermalMonitorConcurrentYield(t *testing.T) {
	cam, _ := newCamera(t)
	tm := ixon.NewThermalMonitor(cam, time.Millisecond, 64)
	tm.Start()
	defer tm.Stop()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				w := httptest.NewRecorder()
				r := httptest.NewRequest(http.MethodGet, "/temperature-history", nil)
				tm.HTTPYield(w, r)
				if w.Code != http.StatusOK {
					t.Errorf("got status %d, expected %d", w.Code, http.StatusOK)
				}
			}
		}()
	}
	wg.Wait()
	w := httptest.NewRecorder()
	tm.HTTPYield(w, httptest.NewRequest(http.MethodGet, "/temperature-history", nil))
	var payload struct {
		T    []float64   `json:"temp"`
		Time []time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatalf("decoding history, expected nil error, got %v", err)
	}
	if len(payload.T) != len(payload.Time) {
		t.Errorf("temperature and timestamp lengths differ, %d vs %d", len(payload.T), len(payload.Time))
	}
}
