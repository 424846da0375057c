package ixon

import (
	"time"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

// BufferReader pulls frames out of the device's circular acquisition
// buffer.  Frame indices are 1-based and count up monotonically from
// the start of the acquisition; once the buffer fills, the window of
// retained frames slides forward as new frames displace the oldest.
type BufferReader struct {
	cam *Camera
}

// NewBufferReader returns a reader over cam's acquisition buffer
func NewBufferReader(cam *Camera) *BufferReader {
	return &BufferReader{cam: cam}
}

// AvailableRange reports the first and last frame indices currently
// retained.  An empty buffer is an error; the device has no new data
// to offer.
func (b *BufferReader) AvailableRange() (int, int, error) {
	b.cam.Lock()
	defer b.cam.Unlock()
	return b.availableRange()
}

func (b *BufferReader) availableRange() (int, int, error) {
	first, last, code := b.cam.dev.GetNumberAvailableImages()
	return first, last, b.cam.check(code)
}

// Retrieve copies frames first through last, inclusive, out of the
// buffer.  A request outside the retained window fails with a
// RangeError carrying both the request and the window.  Retrieval is
// best effort: on hardware the window can slide between the
// availability check and the copy, so the returned frames are tagged
// with the indices the device actually delivered.
func (b *BufferReader) Retrieve(first, last int) ([]Frame, error) {
	b.cam.Lock()
	defer b.cam.Unlock()
	aFirst, aLast, err := b.availableRange()
	if err != nil {
		return nil, err
	}
	if first > last || first < aFirst || last > aLast {
		return nil, RangeError{First: first, Last: last, AvailFirst: aFirst, AvailLast: aLast}
	}
	st := b.cam.state
	w := st.Crop.Width() / st.Bins
	h := st.Crop.Height() / st.Bins
	px := w * h
	n := last - first + 1
	buf := make([]int32, n*px)
	vFirst, vLast, code := b.cam.dev.GetImages(first, last, buf)
	if err := b.cam.check(code); err != nil {
		return nil, err
	}
	texp := util.SecsToDuration(st.ExposureSec)
	now := time.Now()
	frames := make([]Frame, 0, vLast-vFirst+1)
	for i := 0; i <= vLast-vFirst; i++ {
		frames = append(frames, Frame{
			Width:    w,
			Height:   h,
			Bin:      st.Bins,
			Trigger:  st.TriggerMode,
			Exposure: texp,
			Taken:    now,
			Index:    vFirst + i,
			Pix:      buf[i*px : (i+1)*px],
		})
	}
	return frames, nil
}
