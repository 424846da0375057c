package labjack

import (
	"bytes"
	"testing"
)

func TestFeedbackBitStateWrite(t *testing.T) {
	// one BitStateWrite of FIO4 high; odd body padded to even length
	got := feedback(1, typeBitStateWrite, fioTrigger|0x80)
	expected := []byte{157, 0xF8, 2, 0, 162, 0, 1, 29, 132, 0}
	if !bytes.Equal(got, expected) {
		t.Errorf("got % x, expected % x", got, expected)
	}
}

func TestFeedbackRisingEdge(t *testing.T) {
	// direction then state, the packet Pulse sends for the rising edge
	got := feedback(2,
		typeBitDirWrite, fioTrigger|0x80,
		typeBitStateWrite, fioTrigger|0x80)
	expected := []byte{49, 0xF8, 3, 0, 52, 1, 2, 13, 132, 29, 132, 0}
	if !bytes.Equal(got, expected) {
		t.Errorf("got % x, expected % x", got, expected)
	}
}

func TestChecksum8Folds(t *testing.T) {
	cases := []struct {
		b        []byte
		expected byte
	}{
		{[]byte{0xF8, 2, 0, 162, 0}, 157},
		{[]byte{255, 255}, 255},
		{[]byte{0}, 0},
	}
	for _, c := range cases {
		if got := checksum8(c.b); got != c.expected {
			t.Errorf("checksum8(% x): got %d, expected %d", c.b, got, c.expected)
		}
	}
}

func TestChecksum16(t *testing.T) {
	if got := checksum16([]byte{1, 29, 132, 0}); got != 162 {
		t.Errorf("got %d, expected 162", got)
	}
}
