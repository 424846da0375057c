package drv

import (
	"errors"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

// Class partitions return codes by how the caller must react.
type Class int

const (
	// Success is a normal completion
	Success Class = iota

	// Ignorable codes represent expected steady states (cooler off,
	// temperature stabilized); the call succeeded, nothing to report
	Ignorable

	// Advisory codes succeed functionally but warrant a warning from
	// the caller, carrying Message
	Advisory

	// Busy means the device refused the call because an acquisition is
	// in progress; callers surface this as ErrAcquisitionInProgress
	Busy

	// Fatal is any other non-success code; the operation must be
	// aborted and the error propagated
	Fatal
)

func (c Class) String() string {
	switch c {
	case Success:
		return "Success"
	case Ignorable:
		return "Ignorable"
	case Advisory:
		return "Advisory"
	case Busy:
		return "Busy"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// ErrAcquisitionInProgress is the distinguished error for Busy codes.
// It is recoverable: pause the acquisition worker, retry, resume.
var ErrAcquisitionInProgress = errors.New("acquisition in progress")

var (
	// BusyCodes mean the device is mid-acquisition and refused the call
	BusyCodes = []uint{
		20072, // acquiring
	}

	// IgnorableCodes are expected steady states, not problems
	IgnorableCodes = []uint{
		20034, // temperature off
		20036, // temperature stabilized
	}
)

// advisories maps advisory codes to the warning the caller should log.
var advisories = map[Code]string{
	CodeTempNotReached:    "Temperature set point not yet reached.",
	CodeTempDrift:         "Temperature is drifting.",
	CodeTempNotStabilized: "Temperature set point reached but not yet stable.",
	CodeIdle:              "call resulted in DRV_IDLE",
}

// Status is the classified form of a driver return code.
type Status struct {
	Class Class

	Code Code

	// Message is the human-readable warning for Advisory, or the code
	// name for Fatal
	Message string
}

// Classify maps a raw return code onto the class callers react to.  It
// is a pure function; logging advisories is the caller's business.
//
// The idle code classifies as Advisory because it is only consulted
// during operations that should hold the device active; callers log it
// with the stack of the triggering request.
func Classify(code Code) Status {
	switch {
	case code == CodeSuccess:
		return Status{Class: Success, Code: code}
	case util.UintSliceContains(BusyCodes, uint(code)):
		return Status{Class: Busy, Code: code}
	case util.UintSliceContains(IgnorableCodes, uint(code)):
		return Status{Class: Ignorable, Code: code}
	}
	if msg, ok := advisories[code]; ok {
		return Status{Class: Advisory, Code: code, Message: msg}
	}
	return Status{Class: Fatal, Code: code, Message: code.String()}
}

// Err converts a classified status into the error callers propagate.
// Success, Ignorable and Advisory are nil: the call succeeded.  Busy is
// ErrAcquisitionInProgress.  Fatal is a DRVError bearing the code.
func (s Status) Err() error {
	switch s.Class {
	case Busy:
		return ErrAcquisitionInProgress
	case Fatal:
		return DRVError(s.Code)
	default:
		return nil
	}
}

// Check classifies code and converts it straight to an error, for call
// sites with no advisory handling of their own.
func Check(code Code) error {
	return Classify(code).Err()
}

// IsThermal returns true if the code is one of the thermal status block
func IsThermal(code Code) bool {
	return code > 20033 && code < 20041
}
