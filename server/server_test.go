package server_test

import (
	"bytes"
	"encoding/json"
	"go/types"
	"net/http"
	"net/http/httptest"
	"testing"

	"goji.io"
	"goji.io/pat"

	"github.jpl.nasa.gov/bdube/goixon/server"
)

func TestHumanPayloadEncodesByKind(t *testing.T) {
	cases := []struct {
		hp       server.HumanPayload
		expected string
	}{
		{server.HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{server.HumanPayload{T: types.Int, Int: 42}, `{"int":42}`},
		{server.HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{server.HumanPayload{T: types.String, String: "internal"}, `{"str":"internal"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		tc.hp.EncodeAndRespond(w, r)
		got := bytes.TrimSpace(w.Body.Bytes())
		if string(got) != tc.expected {
			t.Errorf("got %s, expected %s", got, tc.expected)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("got content type %q, expected application/json", ct)
		}
	}
}

func TestSetIntDecodesAndCalls(t *testing.T) {
	var got int
	h := server.SetInt(func(i int) error {
		got = i
		return nil
	})
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"int": 7}`))
	h(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("got status %d, expected %d", w.Code, http.StatusOK)
	}
	if got != 7 {
		t.Errorf("got %d, expected 7", got)
	}
}

func TestSetIntRejectsBadJSON(t *testing.T) {
	h := server.SetInt(func(int) error { return nil })
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"int": `))
	h(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got status %d, expected %d", w.Code, http.StatusBadRequest)
	}
}

func TestBindServesRoutesAndEndpointList(t *testing.T) {
	rt := server.RouteTable{
		pat.Get("/gain"): server.GetInt(func() (int, error) { return 3, nil }),
	}
	mux := goji.NewMux()
	rt.Bind(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gain", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, expected %d", w.Code, http.StatusOK)
	}
	var i server.IntT
	if err := json.NewDecoder(w.Body).Decode(&i); err != nil {
		t.Fatalf("decoding response, expected nil error, got %v", err)
	}
	if i.Int != 3 {
		t.Errorf("got %d, expected 3", i.Int)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/endpoints", nil))
	var eps []string
	if err := json.NewDecoder(w.Body).Decode(&eps); err != nil {
		t.Fatalf("decoding endpoint list, expected nil error, got %v", err)
	}
	if len(eps) != 1 {
		t.Errorf("got %d endpoints, expected 1", len(eps))
	}
}

func TestSubMuxSanitize(t *testing.T) {
	cases := []struct{ in, expected string }{
		{"camera", "/camera/*"},
		{"/camera", "/camera/*"},
		{"/camera/", "/camera/*"},
		{"/camera/*", "/camera/*"},
	}
	for _, tc := range cases {
		if got := server.SubMuxSanitize(tc.in); got != tc.expected {
			t.Errorf("SubMuxSanitize(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
