package ixon

import (
	"errors"
	"image"
	"io"
	"time"

	"github.com/astrogo/fitsio"
)

// Frame is a single image read out of the camera, tagged with the
// acquisition parameters in effect when it was taken.  Pix is stored
// flat, row-major, Width*Height long.
type Frame struct {
	// Width and Height are the frame dimensions after cropping and binning
	Width  int `json:"width"`
	Height int `json:"height"`

	// Bin is the bin factor the frame was taken with
	Bin int `json:"bin"`

	// Trigger is the name of the trigger mode the frame was taken with
	Trigger string `json:"trigger"`

	// Exposure is the exposure time the frame was taken with
	Exposure time.Duration `json:"exposure"`

	// Taken is when the frame was read out of the buffer
	Taken time.Time `json:"taken"`

	// Index is the hardware circular buffer index for frames pulled out
	// of the buffer by range, zero for live captures
	Index int `json:"index"`

	// Pix is the raw pixel data
	Pix []int32 `json:"-"`
}

// Gray16 converts the frame to an image for the live view.  Pixel
// values are clamped to the uint16 range.
func (f Frame) Gray16() *image.Gray16 {
	im := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for i, px := range f.Pix {
		v := clampUint16(px)
		im.Pix[2*i] = byte(v >> 8)
		im.Pix[2*i+1] = byte(v)
	}
	return im
}

// WriteFITS streams a FITS file to w.  Multiple frames are written as
// a cube on the third axis.  All frames must share the dimensions of
// the first.
func WriteFITS(w io.Writer, metadata []fitsio.Card, frames []Frame) error {
	if len(frames) == 0 {
		return errors.New("fits: no frames to write")
	}
	metadata = append(metadata, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	nframes := len(frames)
	width, height := frames[0].Width, frames[0].Height
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	dims := []int{width, height}
	if nframes > 1 {
		dims = append(dims, nframes)
	}
	im := fitsio.NewImage(16, dims)
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	bufSize := 1
	for _, s := range dims {
		bufSize *= s
	}
	ints := make([]int16, bufSize)
	offset := 0
	for _, fr := range frames {
		for idx, px := range fr.Pix {
			ints[offset+idx] = int16(int32(clampUint16(px)) - 32768)
		}
		offset += len(fr.Pix)
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

func clampUint16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
