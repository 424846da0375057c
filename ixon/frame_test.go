package ixon_test

import (
	"bytes"
	"testing"

	"github.com/astrogo/fitsio"

	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

func TestGray16Conversion(t *testing.T) {
	fr := ixon.Frame{
		Width:  2,
		Height: 2,
		Pix:    []int32{0x0102, -5, 70000, 4095},
	}
	im := fr.Gray16()
	if b := im.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("expected 2x2 image, got %dx%d", b.Dx(), b.Dy())
	}
	// image.Gray16 stores big-endian
	expected := []byte{
		0x01, 0x02,
		0x00, 0x00, // negative clamps to 0
		0xFF, 0xFF, // overflow clamps to 65535
		0x0F, 0xFF,
	}
	if !bytes.Equal(im.Pix, expected) {
		t.Errorf("expected pixels %v, got %v", expected, im.Pix)
	}
}

func TestWriteFITSSingleFrame(t *testing.T) {
	fr := ixon.Frame{Width: 4, Height: 2, Pix: make([]int32, 8)}
	for i := range fr.Pix {
		fr.Pix[i] = int32(i)
	}
	buf := &bytes.Buffer{}
	cards := []fitsio.Card{{Name: "EXPTIME", Value: 0.1, Comment: "exposure time, seconds"}}
	if err := ixon.WriteFITS(buf, cards, []ixon.Frame{fr}); err != nil {
		t.Fatalf("WriteFITS, expected nil error, got %v", err)
	}
	out := buf.Bytes()
	if len(out) == 0 {
		t.Fatal("expected non-empty FITS output")
	}
	if !bytes.HasPrefix(out, []byte("SIMPLE")) {
		t.Errorf("expected FITS output to begin with SIMPLE, got %q", out[:6])
	}
}

func TestWriteFITSCube(t *testing.T) {
	frames := make([]ixon.Frame, 3)
	for i := range frames {
		frames[i] = ixon.Frame{Width: 4, Height: 4, Pix: make([]int32, 16)}
	}
	buf := &bytes.Buffer{}
	if err := ixon.WriteFITS(buf, nil, frames); err != nil {
		t.Fatalf("WriteFITS, expected nil error, got %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected non-empty FITS output")
	}
}

func TestWriteFITSNoFrames(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := ixon.WriteFITS(buf, nil, nil); err == nil {
		t.Error("expected an error writing zero frames")
	}
}
