// Package imgrec contains a frame recorder that saves FITS files to
// disk with incrementing filenames in yyyy-mm-dd subfolders.  The
// live view tees single-shot captures and downloads through it when
// it is enabled.
package imgrec

import (
	"encoding/json"
	"fmt"
	"go/types"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"goji.io/pat"

	"github.jpl.nasa.gov/bdube/goixon/server"
)

// Recorder writes FITS byte streams to prefix-numbered files in dated
// subfolders of Root.  A disabled recorder is left wired in place;
// consumers check Enabled before teeing writes through it.
type Recorder struct {
	mu sync.Mutex

	// counter is the number stamped into the next filename
	counter int

	// Root is the folder dated subfolders are made under
	Root string

	// Prefix is the filename prefix
	Prefix string

	// Enabled gates use of the recorder by its consumers
	Enabled bool
}

// New returns a recorder writing prefix-named files under root.  The
// counter resumes from the largest number already on disk, so restarts
// do not overwrite earlier frames.
func New(root, prefix string, enabled bool) *Recorder {
	r := &Recorder{Root: root, Prefix: prefix, Enabled: enabled}
	r.Incr()
	return r
}

// dateFolder is the yyyy-mm-dd subfolder for the current day
func dateFolder() string {
	now := time.Now()
	return fmt.Sprintf("%04d-%02d-%02d", now.Year(), now.Month(), now.Day())
}

// mkDir makes today's folder and returns it
func (r *Recorder) mkDir() (string, error) {
	fldr := path.Join(r.Root, dateFolder())
	err := os.MkdirAll(fldr, 0777)
	return fldr, err
}

// Write implements io.Writer, appending p to the current numbered
// file.  A whole FITS file may arrive over several writes; the file is
// not advanced until Incr is called.
func (r *Recorder) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fldr, err := r.mkDir()
	if err != nil {
		return 0, err
	}
	fn := path.Join(fldr, fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
	fid, err := os.OpenFile(fn, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return 0, err
	}
	defer fid.Close()
	return fid.Write(p)
}

// Incr advances the filename counter past the largest number already
// in today's folder.  On error the counter is left alone.
func (r *Recorder) Incr() {
	r.mu.Lock()
	defer r.mu.Unlock()
	dn, err := r.mkDir()
	if err != nil {
		return
	}
	entries, err := os.ReadDir(dn)
	if err != nil {
		return
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fn := entry.Name()
		if !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimPrefix(fn, r.Prefix)
		bit = strings.TrimSuffix(bit, ".fits")
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if count < n {
			count = n
		}
	}
	r.counter = count + 1
}

// setRoot moves the recorder and restarts the counter under the new root
func (r *Recorder) setRoot(root string) error {
	r.mu.Lock()
	r.Root = root
	r.mu.Unlock()
	_, err := r.mkDir()
	r.Incr()
	return err
}

// HTTPWrapper allows the recorder's folder, prefix, and enable flag to
// be changed on the fly.  It does not implement server.HTTPer; Inject
// merges its routes into another HTTPer's table.
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

// SetRoot updates the root folder of the recorder
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.Recorder.setRoot(str.Str); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetRoot returns the recorder's root folder as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Root}
	hp.EncodeAndRespond(w, r)
}

// SetPrefix updates the filename prefix and restarts the counter
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := server.StrT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.mu.Lock()
	h.Recorder.Prefix = str.Str
	h.Recorder.mu.Unlock()
	h.Recorder.Incr()
	w.WriteHeader(http.StatusOK)
}

// GetPrefix returns the recorder's prefix as JSON
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.Recorder.Prefix}
	hp.EncodeAndRespond(w, r)
}

// SetEnabled sets the recorder's Enabled field
func (h HTTPWrapper) SetEnabled(w http.ResponseWriter, r *http.Request) {
	b := server.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.mu.Lock()
	h.Recorder.Enabled = b.Bool
	h.Recorder.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// GetEnabled returns the recorder's Enabled field as JSON
func (h HTTPWrapper) GetEnabled(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Bool, Bool: h.Recorder.Enabled}
	hp.EncodeAndRespond(w, r)
}

// Inject adds GET and POST routes under /autowrite which manipulate
// this wrapper's recorder
func (h HTTPWrapper) Inject(other server.HTTPer) {
	rt := other.RT()
	rt[pat.Post("/autowrite/root")] = h.SetRoot
	rt[pat.Get("/autowrite/root")] = h.GetRoot
	rt[pat.Post("/autowrite/prefix")] = h.SetPrefix
	rt[pat.Get("/autowrite/prefix")] = h.GetPrefix
	rt[pat.Post("/autowrite/enabled")] = h.SetEnabled
	rt[pat.Get("/autowrite/enabled")] = h.GetEnabled
}
