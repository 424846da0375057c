// Package server contains the HTTP plumbing shared by the live view:
// a route table bound to a goji mux, the tagged-union JSON responder,
// and the input types handlers decode request bodies into.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"strings"

	"goji.io"
	"goji.io/pat"
)

// RouteTable maps goji patterns to the handlers that serve them
type RouteTable map[*pat.Pattern]http.HandlerFunc

// Endpoints lists the patterns in the table
func (rt RouteTable) Endpoints() []string {
	routes := make([]string, 0, len(rt))
	for p := range rt {
		routes = append(routes, p.String())
	}
	return routes
}

// Bind attaches every route in the table to mux, plus an endpoints
// route that lists them
func (rt RouteTable) Bind(mux *goji.Mux) {
	for p, hndl := range rt {
		mux.Handle(p, hndl)
	}
	mux.Handle(pat.Get("/endpoints"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(rt.Endpoints())
		if err != nil {
			fstr := fmt.Sprintf("error encoding endpoint list to json %q", err)
			log.Println(fstr)
			http.Error(w, fstr, http.StatusInternalServerError)
		}
	}))
}

// HTTPer is a type which can yield a route table to bind to a mux
type HTTPer interface {
	RT() RouteTable
}

// SubMuxSanitize ensures the string is a valid goji submux mount
// point, "/prefix/*"
func SubMuxSanitize(str string) string {
	if !strings.HasPrefix(str, "/") {
		str = "/" + str
	}
	if !strings.HasSuffix(str, "/*") {
		if strings.HasSuffix(str, "/") {
			str = str + "*"
		} else {
			str = str + "/*"
		}
	}
	return str
}

// HumanPayload is a struct containing the basic types handlers reply
// with.  The T field tags which variant is populated.
type HumanPayload struct {
	// Bool holds a binary value
	Bool bool

	// Float holds a floating point value
	Float float64

	// Int holds an integer value
	Int int

	// String holds a string value
	String string

	// T is the type of the payload
	T types.BasicKind
}

// EncodeAndRespond converts the payload to a single-key JSON object
// keyed by variant and writes it to w
func (hp *HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var obj interface{}
	switch hp.T {
	case types.Bool:
		obj = BoolT{Bool: hp.Bool}
	case types.Float64:
		obj = FloatT{F64: hp.Float}
	case types.Int:
		obj = IntT{Int: hp.Int}
	case types.String:
		obj = StrT{Str: hp.String}
	default:
		http.Error(w, fmt.Sprintf("unknown payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(obj)
	if err != nil {
		fstr := fmt.Sprintf("error encoding payload to json %q", err)
		log.Println(fstr)
		http.Error(w, fstr, http.StatusInternalServerError)
	}
}

// FloatT is a struct with a single float64 field, used for json requests
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a struct with a single int field, used for json requests
type IntT struct {
	Int int `json:"int"`
}

// BoolT is a struct with a single bool field, used for json requests
type BoolT struct {
	Bool bool `json:"bool"`
}

// StrT is a struct with a single string field, used for json requests
type StrT struct {
	Str string `json:"str"`
}

// GetFloat wraps a float-getting function in a handler that answers
// with json {"f64": value}
func GetFloat(fcn func() (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Float64, Float: f}
		hp.EncodeAndRespond(w, r)
	}
}

// SetFloat parses a json input of {"f64": value} and calls fcn with it
func SetFloat(fcn func(float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := FloatT{}
		err := json.NewDecoder(r.Body).Decode(&f)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(f.F64); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetInt wraps an int-getting function in a handler that answers with
// json {"int": value}
func GetInt(fcn func() (int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Int, Int: i}
		hp.EncodeAndRespond(w, r)
	}
}

// SetInt parses a json input of {"int": value} and calls fcn with it
func SetInt(fcn func(int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := IntT{}
		err := json.NewDecoder(r.Body).Decode(&i)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(i.Int); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetString wraps a string-getting function in a handler that answers
// with json {"str": value}
func GetString(fcn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.String, String: s}
		hp.EncodeAndRespond(w, r)
	}
}

// SetString parses a json input of {"str": value} and calls fcn with it
func SetString(fcn func(string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := StrT{}
		err := json.NewDecoder(r.Body).Decode(&s)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(s.Str); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// GetBool wraps a bool-getting function in a handler that answers with
// json {"bool": value}
func GetBool(fcn func() (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := fcn()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hp := HumanPayload{T: types.Bool, Bool: b}
		hp.EncodeAndRespond(w, r)
	}
}

// SetBool parses a json input of {"bool": value} and calls fcn with it
func SetBool(fcn func(bool) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := BoolT{}
		err := json.NewDecoder(r.Body).Decode(&b)
		defer r.Body.Close()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := fcn(b.Bool); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
