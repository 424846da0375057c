package ixon

import "fmt"

// The error taxonomy of the acquisition layer:
//
//   ConfigurationError        local validation failed, no driver call made
//   drv.ErrAcquisitionInProgress  device busy, pause the worker and retry
//   drv.DRVError              fatal vendor fault, operation aborted
//   RangeError                buffer read outside the retained window
//
// Advisory conditions are not errors; they are logged and the call
// succeeds.

// ConfigurationError means a request violated the capability record.
// It is always recoverable: correct the input and retry.
type ConfigurationError struct {
	// Field is the parameter that failed validation
	Field string

	// Reason says what was wrong with it
	Reason string
}

func (e ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// RangeError means a buffer read requested frames outside the window
// currently retained by the hardware.  Recoverable: re-query
// AvailableRange and retry.
type RangeError struct {
	// First, Last are the requested inclusive bounds
	First, Last int

	// AvailFirst, AvailLast are the bounds retained when the request ran
	AvailFirst, AvailLast int
}

func (e RangeError) Error() string {
	return fmt.Sprintf("range: requested [%d, %d] outside retained window [%d, %d]",
		e.First, e.Last, e.AvailFirst, e.AvailLast)
}
