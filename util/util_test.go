package util_test

import (
	"errors"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

func TestUintSliceContains(t *testing.T) {
	slice := []uint{20002, 20073}
	if !util.UintSliceContains(slice, 20002) {
		t.Errorf("expected slice %v to contain 20002", slice)
	}
	if util.UintSliceContains(slice, 20072) {
		t.Errorf("expected slice %v to not contain 20072", slice)
	}
}

func TestIntSliceContains(t *testing.T) {
	slice := []int{1, 2, 4}
	if !util.IntSliceContains(slice, 2) {
		t.Errorf("expected slice %v to contain 2", slice)
	}
	if util.IntSliceContains(slice, 3) {
		t.Errorf("expected slice %v to not contain 3", slice)
	}
}

func TestStrSliceContains(t *testing.T) {
	slice := []string{"internal", "software"}
	if !util.StrSliceContains(slice, "software") {
		t.Errorf("expected slice %v to contain software", slice)
	}
	if util.StrSliceContains(slice, "external") {
		t.Errorf("expected slice %v to not contain external", slice)
	}
}

func TestMergeErrorsAllNil(t *testing.T) {
	errs := []error{nil, nil, nil}
	if out := util.MergeErrors(errs); out != nil {
		t.Errorf("expected merge of all-nil errors to be nil, got %v", out)
	}
}

func TestMergeErrorsJoins(t *testing.T) {
	errs := []error{errors.New("a"), nil, errors.New("b")}
	out := util.MergeErrors(errs)
	if out == nil {
		t.Fatal("expected non-nil merged error")
	}
	expected := "a;b"
	if out.Error() != expected {
		t.Errorf("expected merged error %q, got %q", expected, out.Error())
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != high {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped != low {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}
