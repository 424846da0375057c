package ixon

// Crop is the readout window, 1-based inclusive on both axes.
type Crop struct {
	HStart int `json:"hstart"`
	HEnd   int `json:"hend"`
	VStart int `json:"vstart"`
	VEnd   int `json:"vend"`
}

// Width is the number of columns read out, before binning
func (c Crop) Width() int {
	return c.HEnd - c.HStart + 1
}

// Height is the number of rows read out, before binning
func (c Crop) Height() int {
	return c.VEnd - c.VStart + 1
}

// DeviceState is the camera's commanded configuration.  It is mutated
// only by the Camera and only after the driver accepts the matching
// call; everyone else sees copies via Camera.Snapshot.
type DeviceState struct {
	// AcquisitionMode is one of the AcquisitionMode enum names
	AcquisitionMode string `json:"acquisition_mode"`

	// TriggerMode is one of the TriggerMode enum names
	TriggerMode string `json:"trigger_mode"`

	// Crop is the active readout window
	Crop Crop `json:"crop"`

	// Bins is the symmetric bin factor; it divides the crop dimensions
	Bins int `json:"bins"`

	// Gain is the EM gain factor
	Gain int `json:"gain"`

	// ExposureSec is the exposure time the device reported after the
	// last set, in seconds
	ExposureSec float64 `json:"exposure_sec"`

	// TemperatureSetPoint is the commanded cooler set point in Celsius
	TemperatureSetPoint int `json:"temperature_set_point"`

	// TemperatureStabilized is derived from the last temperature read
	TemperatureStabilized bool `json:"temperature_stabilized"`

	// ShutterOpen reflects the last commanded shutter state
	ShutterOpen bool `json:"shutter_open"`

	// CoolerActive reflects the last commanded cooler state
	CoolerActive bool `json:"cooler_active"`
}
