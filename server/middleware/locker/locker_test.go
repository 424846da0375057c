package locker_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.jpl.nasa.gov/bdube/goixon/server/middleware/locker"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestCheckBouncesProtectedRoutesWhenLocked(t *testing.T) {
	l := locker.New()
	h := l.Check(http.HandlerFunc(okHandler))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bins", nil))
	if w.Code != http.StatusOK {
		t.Errorf("unlocked, got status %d, expected %d", w.Code, http.StatusOK)
	}

	l.Lock()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bins", nil))
	if w.Code != http.StatusLocked {
		t.Errorf("locked, got status %d, expected %d", w.Code, http.StatusLocked)
	}

	// read-only surfaces stay open under the lock
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/frame", nil))
	if w.Code != http.StatusOK {
		t.Errorf("exempt route, got status %d, expected %d", w.Code, http.StatusOK)
	}

	l.Unlock()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bins", nil))
	if w.Code != http.StatusOK {
		t.Errorf("after unlock, got status %d, expected %d", w.Code, http.StatusOK)
	}
}
