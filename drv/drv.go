/*Package drv describes the vendor driver surface for Andor SDK2 cameras.

The package has three pieces: the Driver interface, which enumerates the
subset of the SDK call surface the acquisition layer consumes; the return
code table and classifier, which partition the SDK's DRV_* codes into the
classes callers react to; and Sim, an in-memory implementation of Driver
with the same busy/idle semantics as the hardware.

Every Driver method returns a Code.  Callers do not branch on codes
directly; they pass them through Classify and react to the class.  The
cgo binding to the real SDK lives out of tree and satisfies the same
interface, so everything above this package is testable against Sim.

*/
package drv

import "time"

// AcquisitionTimings holds various acquisition timing parameters
type AcquisitionTimings struct {
	// Exposure is the exposure time in seconds
	Exposure float64

	// Accumulation is the charge accumulation cycle time in seconds
	Accumulation float64

	// Kinetic is the kinetic cycle time in seconds
	Kinetic float64
}

// DeviceCaps mirrors the capability bitfields reported by the device.
// The fields are opaque masks; the acquisition layer records them and
// exposes the camera type in frame metadata.
type DeviceCaps struct {
	AcqModes         uint
	ReadModes        uint
	TriggerModes     uint
	CameraType       uint
	PixelModes       uint
	SetFunctions     uint
	GetFunctions     uint
	Features         uint
	PCICard          uint
	EMGainCapability uint
	FTReadModes      uint
}

// Driver is the vendor control library.  Methods mirror the SDK call
// surface one to one; out-values are returned alongside the raw code.
//
// The driver is not re-entrant.  Callers must serialize access; in this
// repository the ixon.Camera owns the only handle.
type Driver interface {
	// Initialize starts the driver, loading firmware from dir
	Initialize(dir string) Code

	// Shutdown releases the driver.  The sensor should be warmed to
	// above -20C first, see ixon.Camera.CloseSafely
	Shutdown() Code

	// GetDetector returns the detector width and height in pixels
	GetDetector() (int, int, Code)

	// SetAcquisitionMode sets the acquisition mode by SDK value
	SetAcquisitionMode(mode int) Code

	// SetTriggerMode sets the trigger mode by SDK value
	SetTriggerMode(mode int) Code

	// SetKineticCycleTime sets the kinetic cycle time in seconds
	SetKineticCycleTime(secs float64) Code

	// SetExposureTime sets the exposure time in seconds.  The device may
	// quantize it; read back with GetAcquisitionTimings
	SetExposureTime(secs float64) Code

	// GetAcquisitionTimings returns the timings the device actually uses
	GetAcquisitionTimings() (AcquisitionTimings, Code)

	// SetImage sets binning and the readout window, 1-based inclusive
	SetImage(binH, binV, hStart, hEnd, vStart, vEnd int) Code

	// StartAcquisition begins acquiring charge
	StartAcquisition() Code

	// AbortAcquisition stops acquiring.  Returns the idle code if the
	// device was not acquiring
	AbortAcquisition() Code

	// SendSoftwareTrigger triggers an exposure in software trigger mode
	SendSoftwareTrigger() Code

	// WaitForAcquisition blocks until a new frame is available or the
	// timeout passes, in which case it returns the no-new-data code
	WaitForAcquisition(timeout time.Duration) Code

	// GetMostRecentImage copies the newest frame into buf, which must
	// hold exactly one binned frame
	GetMostRecentImage(buf []int32) Code

	// GetImages copies the inclusive index range [first, last] from the
	// device's circular buffer into buf and returns the range actually
	// retrieved
	GetImages(first, last int, buf []int32) (int, int, Code)

	// GetNumberAvailableImages returns the inclusive index range of
	// frames currently retained in the circular buffer
	GetNumberAvailableImages() (int, int, Code)

	// GetTemperature returns the sensor temperature in Celsius.  The
	// code carries the thermal status, see Classify
	GetTemperature() (int, Code)

	// SetTemperature sets the cooler set point in Celsius
	SetTemperature(deg int) Code

	// GetTemperatureRange returns the valid set point range in Celsius
	GetTemperatureRange() (int, int, Code)

	// CoolerOn turns on the TEC
	CoolerOn() Code

	// CoolerOff turns off the TEC
	CoolerOff() Code

	// SetShutter sets the shutter drive polarity, mode (0 auto, 1 open,
	// 2 closed), and the closing and opening times in milliseconds
	SetShutter(ttlHigh, mode, closingMS, openingMS int) Code

	// GetEMCCDGain returns the current EM gain factor
	GetEMCCDGain() (int, Code)

	// SetEMCCDGain sets the EM gain factor
	SetEMCCDGain(fctr int) Code

	// GetEMGainRange returns the valid EM gain range for the current
	// gain mode
	GetEMGainRange() (int, int, Code)

	// PostProcessNoiseFilter runs the SDK noise filter over in, writing
	// to out.  Mode 1 is the median filter
	PostProcessNoiseFilter(in, out []int32, baseline, mode int, threshold float64, height, width int) Code

	// GetCapabilities returns the device capability bitfields
	GetCapabilities() (DeviceCaps, Code)
}
