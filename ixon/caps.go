package ixon

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/knadh/koanf"
	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

// Capabilities is the capability record consulted to validate every
// mutating request before it reaches the driver.  It is loaded once at
// startup from a JSON file; fields the hardware reports authoritatively
// (detector size, temperature range, EM gain range) are overwritten
// during Camera.Initialize.
type Capabilities struct {
	// Pixels is the detector size, width then height
	Pixels [2]int `koanf:"pixels" json:"pixels"`

	// PixelUM is the pixel pitch in microns, 0 if not applicable
	PixelUM float64 `koanf:"pixel_um" json:"pixel_um"`

	// Depth is the bit depth per pixel
	Depth int `koanf:"depth" json:"depth"`

	// PixelMode is mono for everything this repository drives
	PixelMode string `koanf:"pixel_mode" json:"pixel_mode"`

	// TriggerModes lists the supported TriggerMode enum names
	TriggerModes []string `koanf:"trigger_modes" json:"trigger_modes"`

	// AcquisitionModes lists the supported AcquisitionMode enum names
	AcquisitionModes []string `koanf:"acquisition_modes" json:"acquisition_modes"`

	// Bins lists the valid bin factors
	Bins []int `koanf:"bins" json:"bins"`

	// TempRange is the valid cooler set point range in Celsius, min then max
	TempRange [2]int `koanf:"temp_range" json:"temp_range"`

	// GainRange is the valid EM gain range, min then max
	GainRange [2]int `koanf:"gain_range" json:"gain_range"`

	// ExposureRangeMS is the valid exposure range in milliseconds
	ExposureRangeMS [2]float64 `koanf:"exposure_range" json:"exposure_range"`

	// functionality flags
	HardwareCrop   bool `koanf:"hardware_crop" json:"hardware_crop"`
	GainAdjust     bool `koanf:"gain_adjust" json:"gain_adjust"`
	ExposureAdjust bool `koanf:"exposure_adjust" json:"exposure_adjust"`
	TempControl    bool `koanf:"temp_control" json:"temp_control"`
	Shutter        bool `koanf:"shutter" json:"shutter"`

	// AutoStart resumes streaming as soon as the server boots
	AutoStart bool `koanf:"auto_start" json:"auto_start"`

	// InitSetPoint is the cooler set point commanded at startup
	InitSetPoint int `koanf:"init_set_point" json:"init_set_point"`

	// AutoTempControl turns the cooler on at startup
	AutoTempControl bool `koanf:"auto_temp_control" json:"auto_temp_control"`

	// InitShutter opens the shutter at startup
	InitShutter bool `koanf:"init_shutter" json:"init_shutter"`

	// InitGain is the EM gain commanded at startup
	InitGain int `koanf:"init_gain" json:"init_gain"`

	// InitExposureMS is the exposure commanded at startup, milliseconds
	InitExposureMS float64 `koanf:"init_exposure" json:"init_exposure"`

	// CaptureSlackS bounds the blocking frame wait: the timeout is the
	// exposure time plus this many seconds
	CaptureSlackS float64 `koanf:"capture_slack" json:"capture_slack"`

	// NoiseFilter runs the SDK median noise filter over captured frames
	NoiseFilter bool `koanf:"noise_filter" json:"noise_filter"`

	// WaitForTemp makes shutdown wait for the sensor to warm above
	// -20C, per the SDK guide.  Turn off to iterate quickly on a bench
	WaitForTemp bool `koanf:"wait_for_temp" json:"wait_for_temp"`
}

// DefaultCapabilities returns the record for an iXon 888 based head.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Pixels:           [2]int{1024, 1024},
		PixelUM:          13,
		Depth:            14,
		PixelMode:        "mono",
		TriggerModes:     TriggerMode.Names(),
		AcquisitionModes: AcquisitionMode.Names(),
		Bins:             []int{1, 2, 4, 8},
		TempRange:        [2]int{-90, 30},
		GainRange:        [2]int{0, 255},
		ExposureRangeMS:  [2]float64{1, 2000},
		HardwareCrop:     false,
		GainAdjust:       true,
		ExposureAdjust:   true,
		TempControl:      true,
		Shutter:          true,
		AutoStart:        false,
		InitSetPoint:     -10,
		AutoTempControl:  false,
		InitShutter:      false,
		InitGain:         0,
		InitExposureMS:   100,
		CaptureSlackS:    3,
		NoiseFilter:      false,
		WaitForTemp:      true,
	}
}

// LoadCapabilities loads the capability record at path over the
// defaults.  An empty path returns the defaults.
func LoadCapabilities(path string) (Capabilities, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultCapabilities(), "koanf"), nil); err != nil {
		return Capabilities{}, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), kjson.Parser()); err != nil {
			return Capabilities{}, fmt.Errorf("loading capability record %s: %w", path, err)
		}
	}
	var c Capabilities
	if err := k.Unmarshal("", &c); err != nil {
		return Capabilities{}, err
	}
	return c, c.Validate()
}

// Save writes the record to path as indented JSON
func (c Capabilities) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	return enc.Encode(c)
}

// Validate checks the record for internal consistency
func (c Capabilities) Validate() error {
	if c.Pixels[0] < 1 || c.Pixels[1] < 1 {
		return fmt.Errorf("capabilities: pixels %v must be positive", c.Pixels)
	}
	if len(c.Bins) == 0 {
		return fmt.Errorf("capabilities: at least one bin factor is required")
	}
	for _, b := range c.Bins {
		if b < 1 {
			return fmt.Errorf("capabilities: bin factor %d must be positive", b)
		}
	}
	if c.TempRange[0] >= c.TempRange[1] {
		return fmt.Errorf("capabilities: temp_range %v must be ordered min, max", c.TempRange)
	}
	if c.GainRange[0] > c.GainRange[1] {
		return fmt.Errorf("capabilities: gain_range %v must be ordered min, max", c.GainRange)
	}
	if c.ExposureRangeMS[0] <= 0 || c.ExposureRangeMS[0] > c.ExposureRangeMS[1] {
		return fmt.Errorf("capabilities: exposure_range %v must be positive and ordered", c.ExposureRangeMS)
	}
	for _, m := range c.AcquisitionModes {
		if _, err := AcquisitionMode.Lookup(m); err != nil {
			return fmt.Errorf("capabilities: unknown acquisition mode %q", m)
		}
	}
	for _, m := range c.TriggerModes {
		if _, err := TriggerMode.Lookup(m); err != nil {
			return fmt.Errorf("capabilities: unknown trigger mode %q", m)
		}
	}
	if !c.TempInRange(c.InitSetPoint) {
		return fmt.Errorf("capabilities: init_set_point %d outside temp_range %v", c.InitSetPoint, c.TempRange)
	}
	return nil
}

// SupportsTrigger returns true if the named trigger mode is in the record
func (c Capabilities) SupportsTrigger(name string) bool {
	return util.StrSliceContains(c.TriggerModes, name)
}

// SupportsAcquisition returns true if the named acquisition mode is in the record
func (c Capabilities) SupportsAcquisition(name string) bool {
	return util.StrSliceContains(c.AcquisitionModes, name)
}

// SupportsBin returns true if b is a valid bin factor
func (c Capabilities) SupportsBin(b int) bool {
	return util.IntSliceContains(c.Bins, b)
}

// TempInRange returns true if t is a valid cooler set point
func (c Capabilities) TempInRange(t int) bool {
	return t >= c.TempRange[0] && t <= c.TempRange[1]
}

// GainInRange returns true if g is a valid EM gain
func (c Capabilities) GainInRange(g int) bool {
	return g >= c.GainRange[0] && g <= c.GainRange[1]
}

// ExposureInRange returns true if ms is a valid exposure time in milliseconds
func (c Capabilities) ExposureInRange(ms float64) bool {
	return ms >= c.ExposureRangeMS[0] && ms <= c.ExposureRangeMS[1]
}
