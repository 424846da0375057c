/*Package ixon controls an Andor iXon EMCCD through a narrow driver shim.

The package sits between HTTP or worker code and the SDK.  Every mutating
call is validated against a capability record before the driver is
touched, so invalid requests are rejected without disturbing the
hardware.  Device status codes coming back from the driver are run
through the classifier in package drv; busy reports surface as
ErrAcquisitionInProgress, advisories are logged and swallowed, and
everything else becomes a DRVError.

The SDK is not reentrant.  A single mutex on Camera serializes all
driver access; compound operations like CaptureSingleFrame hold it for
the duration of their sequence.  Blocking is confined to the capture
calls, which wait at most the exposure time plus a configurable slack.
*/
package ixon

import (
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/astrogo/fitsio"

	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/util"
)

// WRAPVER is the library code version, stamped into FITS headers
const WRAPVER = 2

const (
	// warmThreshold is the sensor temperature that must be exceeded
	// before Shutdown; raising a cold sensor through Shutdown warms it
	// faster than certified
	warmThreshold = -20

	// shutter control constants; the TTL line is driven high to open
	// and the transit times come from the iXon data sheet
	shutterTTLHigh    = 1
	shutterModeOpen   = 1
	shutterModeClosed = 2
	shutterTransitMS  = 20
)

// Camera wraps the SDK driver with validation, status classification,
// and configuration bookkeeping.  All methods are safe for concurrent
// use; driver access is serialized by the embedded mutex.
type Camera struct {
	sync.Mutex

	// WarmPoll is the interval between temperature samples in
	// WaitUntilWarm
	WarmPoll time.Duration

	dev     drv.Driver
	caps    Capabilities
	devCaps drv.DeviceCaps
	state   DeviceState
}

// New returns a Camera backed by dev, validating against caps.
// Initialize must be called before anything else.
func New(dev drv.Driver, caps Capabilities) *Camera {
	return &Camera{dev: dev, caps: caps, WarmPoll: 5 * time.Second}
}

// check classifies a device status code, logging any advisory.  Idle
// advisories include a call stack so the off-nominal caller can be
// found after the fact.
func (c *Camera) check(code drv.Code) error {
	s := drv.Classify(code)
	if s.Class == drv.Advisory {
		if s.Code == drv.CodeIdle {
			log.Printf("andor: %s\n%s", s.Message, debug.Stack())
		} else {
			log.Printf("andor: %s", s.Message)
		}
	}
	return s.Err()
}

/* this block contains functions which deal with camera startup and shutdown

 */

// Initialize starts the driver, interrogates the hardware, and programs
// the boot configuration from the capability record: continuous
// acquisition on the internal trigger, full frame, unbinned.  The
// hardware's own reports override the record's detector size,
// temperature range, and EM gain range.
func (c *Camera) Initialize(iniPath string) error {
	c.Lock()
	defer c.Unlock()
	if err := c.check(c.dev.Initialize(iniPath)); err != nil {
		return err
	}
	w, h, code := c.dev.GetDetector()
	if err := c.check(code); err != nil {
		return err
	}
	c.caps.Pixels = [2]int{w, h}
	if c.caps.TempControl {
		min, max, code := c.dev.GetTemperatureRange()
		if err := c.check(code); err != nil {
			return err
		}
		c.caps.TempRange = [2]int{min, max}
	}
	if c.caps.GainAdjust {
		lo, hi, code := c.dev.GetEMGainRange()
		if err := c.check(code); err != nil {
			return err
		}
		c.caps.GainRange = [2]int{lo, hi}
	}
	dc, code := c.dev.GetCapabilities()
	if err := c.check(code); err != nil {
		return err
	}
	c.devCaps = dc

	if err := c.setAcquisitionMode("continuous"); err != nil {
		return err
	}
	if err := c.setTriggerMode("internal"); err != nil {
		return err
	}
	if err := c.setImage(1, Crop{HStart: 1, HEnd: w, VStart: 1, VEnd: h}); err != nil {
		return err
	}
	if c.caps.ExposureAdjust {
		if err := c.setExposure(util.SecsToDuration(c.caps.InitExposureMS / 1e3)); err != nil {
			return err
		}
	}
	if c.caps.Shutter {
		if err := c.setShutter(c.caps.InitShutter); err != nil {
			return err
		}
	}
	if c.caps.TempControl {
		if err := c.setTemperatureSetpoint(c.caps.InitSetPoint); err != nil {
			return err
		}
		if c.caps.AutoTempControl {
			if err := c.setCooling(true); err != nil {
				return err
			}
		}
	}
	if c.caps.GainAdjust {
		if err := c.setGain(c.caps.InitGain); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown releases the driver.  The SDK only ever answers success, so
// we spare the caller dealing with an error.
func (c *Camera) Shutdown() {
	c.Lock()
	defer c.Unlock()
	c.dev.Shutdown()
}

// Close quiesces the camera and releases the driver: acquisition is
// stopped, the shutter closed, the cooler turned off, and when the
// capability record asks for it, the sensor is allowed to warm above
// -20C before Shutdown.
func (c *Camera) Close() error {
	var errs []error
	errs = append(errs, c.StopAcquisition())
	if c.caps.Shutter {
		errs = append(errs, c.SetShutter(false))
	}
	if c.caps.TempControl {
		errs = append(errs, c.SetCooling(false))
		if c.caps.WaitForTemp {
			errs = append(errs, c.WaitUntilWarm(nil))
		}
	}
	c.Shutdown()
	return util.MergeErrors(errs)
}

// Capabilities returns the capability record, with any hardware
// overrides applied during Initialize.
func (c *Camera) Capabilities() Capabilities {
	c.Lock()
	defer c.Unlock()
	return c.caps
}

// HardwareCapabilities returns the feature bitfields reported by the
// device itself.
func (c *Camera) HardwareCapabilities() drv.DeviceCaps {
	c.Lock()
	defer c.Unlock()
	return c.devCaps
}

// Snapshot returns a copy of the commanded configuration.
func (c *Camera) Snapshot() DeviceState {
	c.Lock()
	defer c.Unlock()
	return c.state
}

/* the above deals with lifecycle, the below deals with temperature regulation

 */

// GetTemperature reads the sensor temperature in Celsius.  The thermal
// status codes the device folds into this call update the stabilized
// flag instead of surfacing as errors.
func (c *Camera) GetTemperature() (int, error) {
	c.Lock()
	defer c.Unlock()
	return c.temperature()
}

func (c *Camera) temperature() (int, error) {
	t, code := c.dev.GetTemperature()
	s := drv.Classify(code)
	if s.Class == drv.Advisory {
		log.Printf("andor: %s", s.Message)
	}
	if err := s.Err(); err != nil {
		return t, err
	}
	c.state.TemperatureStabilized = code == drv.CodeTempStabilized
	return t, nil
}

// SetTemperatureSetpoint assigns a set point to the camera's TEC
func (c *Camera) SetTemperatureSetpoint(t int) error {
	c.Lock()
	defer c.Unlock()
	return c.setTemperatureSetpoint(t)
}

func (c *Camera) setTemperatureSetpoint(t int) error {
	if !c.caps.TempControl {
		return ConfigurationError{Field: "temperature set point", Reason: "temperature control not supported by this camera"}
	}
	if !c.caps.TempInRange(t) {
		return ConfigurationError{Field: "temperature set point", Reason: fmt.Sprintf("%d outside range [%d, %d] C", t, c.caps.TempRange[0], c.caps.TempRange[1])}
	}
	if err := c.check(c.dev.SetTemperature(t)); err != nil {
		return err
	}
	c.state.TemperatureSetPoint = t
	return nil
}

// GetTemperatureSetpoint returns the commanded set point
func (c *Camera) GetTemperatureSetpoint() int {
	c.Lock()
	defer c.Unlock()
	return c.state.TemperatureSetPoint
}

// GetTemperatureRange returns the valid set point range, min then max
func (c *Camera) GetTemperatureRange() [2]int {
	c.Lock()
	defer c.Unlock()
	return c.caps.TempRange
}

// SetCooling toggles the TEC on (true) or off (false)
func (c *Camera) SetCooling(b bool) error {
	c.Lock()
	defer c.Unlock()
	return c.setCooling(b)
}

func (c *Camera) setCooling(b bool) error {
	if !c.caps.TempControl {
		return ConfigurationError{Field: "cooling", Reason: "temperature control not supported by this camera"}
	}
	var code drv.Code
	if b {
		code = c.dev.CoolerOn()
	} else {
		code = c.dev.CoolerOff()
	}
	if err := c.check(code); err != nil {
		return err
	}
	c.state.CoolerActive = b
	return nil
}

// GetCooling returns true if the TEC is commanded on
func (c *Camera) GetCooling() bool {
	c.Lock()
	defer c.Unlock()
	return c.state.CoolerActive
}

// WaitUntilWarm blocks until the sensor temperature rises above -20C,
// after which Shutdown is safe.  progress, if not nil, is called with
// each temperature sample.
func (c *Camera) WaitUntilWarm(progress func(tempC int)) error {
	for {
		t, err := c.GetTemperature()
		if err != nil {
			return err
		}
		if progress != nil {
			progress(t)
		}
		if t > warmThreshold {
			return nil
		}
		time.Sleep(c.WarmPoll)
	}
}

/* the above deals with thermal management, the below deals with acquisition programming

 */

// SetAcquisitionMode sets the acquisition mode of the camera.  Putting
// the camera in continuous mode zeroes the kinetic cycle time so frames
// arrive as fast as the exposure allows.
func (c *Camera) SetAcquisitionMode(am string) error {
	c.Lock()
	defer c.Unlock()
	return c.setAcquisitionMode(am)
}

func (c *Camera) setAcquisitionMode(am string) error {
	i, ok := AcquisitionMode[am]
	if !ok {
		return ConfigurationError{Field: "acquisition mode", Reason: fmt.Sprintf("%q is not one of %v", am, AcquisitionMode.Names())}
	}
	if !c.caps.SupportsAcquisition(am) {
		return ConfigurationError{Field: "acquisition mode", Reason: fmt.Sprintf("%q not supported by this camera", am)}
	}
	if err := c.check(c.dev.SetAcquisitionMode(i)); err != nil {
		return err
	}
	if am == "continuous" {
		if err := c.check(c.dev.SetKineticCycleTime(0)); err != nil {
			return err
		}
	}
	c.state.AcquisitionMode = am
	return nil
}

// GetAcquisitionMode returns the commanded acquisition mode
func (c *Camera) GetAcquisitionMode() string {
	c.Lock()
	defer c.Unlock()
	return c.state.AcquisitionMode
}

// SetTriggerMode sets the trigger mode of the camera
func (c *Camera) SetTriggerMode(tm string) error {
	c.Lock()
	defer c.Unlock()
	return c.setTriggerMode(tm)
}

func (c *Camera) setTriggerMode(tm string) error {
	i, ok := TriggerMode[tm]
	if !ok {
		return ConfigurationError{Field: "trigger mode", Reason: fmt.Sprintf("%q is not one of %v", tm, TriggerMode.Names())}
	}
	if !c.caps.SupportsTrigger(tm) {
		return ConfigurationError{Field: "trigger mode", Reason: fmt.Sprintf("%q not supported by this camera", tm)}
	}
	if err := c.check(c.dev.SetTriggerMode(i)); err != nil {
		return err
	}
	c.state.TriggerMode = tm
	return nil
}

// GetTriggerMode returns the commanded trigger mode
func (c *Camera) GetTriggerMode() string {
	c.Lock()
	defer c.Unlock()
	return c.state.TriggerMode
}

// SetExposureTime sets the exposure time.  The device rounds to what
// the hardware can do; the rounded value is read back and recorded, so
// GetExposureTime returns the actual exposure rather than the request.
func (c *Camera) SetExposureTime(d time.Duration) error {
	c.Lock()
	defer c.Unlock()
	return c.setExposure(d)
}

func (c *Camera) setExposure(d time.Duration) error {
	if !c.caps.ExposureAdjust {
		return ConfigurationError{Field: "exposure time", Reason: "exposure adjustment not supported by this camera"}
	}
	ms := d.Seconds() * 1e3
	if !c.caps.ExposureInRange(ms) {
		return ConfigurationError{Field: "exposure time", Reason: fmt.Sprintf("%g ms outside range [%g, %g] ms", ms, c.caps.ExposureRangeMS[0], c.caps.ExposureRangeMS[1])}
	}
	if err := c.check(c.dev.SetExposureTime(d.Seconds())); err != nil {
		return err
	}
	t, code := c.dev.GetAcquisitionTimings()
	if err := c.check(code); err != nil {
		return err
	}
	c.state.ExposureSec = t.Exposure
	return nil
}

// GetExposureTime returns the device-reported exposure time
func (c *Camera) GetExposureTime() time.Duration {
	c.Lock()
	defer c.Unlock()
	return util.SecsToDuration(c.state.ExposureSec)
}

// SetCrop assigns the readout window, preserving the current bin factor
func (c *Camera) SetCrop(cr Crop) error {
	c.Lock()
	defer c.Unlock()
	return c.setImage(c.state.Bins, cr)
}

// GetCrop returns the active readout window
func (c *Camera) GetCrop() Crop {
	c.Lock()
	defer c.Unlock()
	return c.state.Crop
}

// SetBins assigns the symmetric bin factor, preserving the crop
func (c *Camera) SetBins(b int) error {
	c.Lock()
	defer c.Unlock()
	return c.setImage(b, c.state.Crop)
}

// GetBins returns the active bin factor
func (c *Camera) GetBins() int {
	c.Lock()
	defer c.Unlock()
	return c.state.Bins
}

func (c *Camera) setImage(bin int, cr Crop) error {
	if !c.caps.SupportsBin(bin) {
		return ConfigurationError{Field: "bins", Reason: fmt.Sprintf("%d is not one of %v", bin, c.caps.Bins)}
	}
	w, h := c.caps.Pixels[0], c.caps.Pixels[1]
	switch {
	case cr.HStart < 1 || cr.HStart > cr.HEnd:
		return ConfigurationError{Field: "crop", Reason: fmt.Sprintf("hstart %d must satisfy 1 <= hstart <= hend", cr.HStart)}
	case cr.HEnd > w:
		return ConfigurationError{Field: "crop", Reason: fmt.Sprintf("hend %d exceeds detector width %d", cr.HEnd, w)}
	case cr.VStart < 1 || cr.VStart > cr.VEnd:
		return ConfigurationError{Field: "crop", Reason: fmt.Sprintf("vstart %d must satisfy 1 <= vstart <= vend", cr.VStart)}
	case cr.VEnd > h:
		return ConfigurationError{Field: "crop", Reason: fmt.Sprintf("vend %d exceeds detector height %d", cr.VEnd, h)}
	case cr.Width()%bin != 0 || cr.Height()%bin != 0:
		return ConfigurationError{Field: "crop", Reason: fmt.Sprintf("dimensions %dx%d must be divisible by bin factor %d", cr.Width(), cr.Height(), bin)}
	}
	if err := c.check(c.dev.SetImage(bin, bin, cr.HStart, cr.HEnd, cr.VStart, cr.VEnd)); err != nil {
		return err
	}
	c.state.Bins = bin
	c.state.Crop = cr
	return nil
}

// SetGain sets the EM gain factor.  The device clamps the factor to
// what the current gain mode and temperature allow; the clamped value
// is read back and recorded.
func (c *Camera) SetGain(fctr int) error {
	c.Lock()
	defer c.Unlock()
	return c.setGain(fctr)
}

func (c *Camera) setGain(fctr int) error {
	if !c.caps.GainAdjust {
		return ConfigurationError{Field: "gain", Reason: "EM gain adjustment not supported by this camera"}
	}
	if !c.caps.GainInRange(fctr) {
		return ConfigurationError{Field: "gain", Reason: fmt.Sprintf("%d outside range [%d, %d]", fctr, c.caps.GainRange[0], c.caps.GainRange[1])}
	}
	if err := c.check(c.dev.SetEMCCDGain(fctr)); err != nil {
		return err
	}
	g, code := c.dev.GetEMCCDGain()
	if err := c.check(code); err != nil {
		return err
	}
	c.state.Gain = g
	return nil
}

// GetGain returns the EM gain factor in effect
func (c *Camera) GetGain() int {
	c.Lock()
	defer c.Unlock()
	return c.state.Gain
}

// SetShutter opens the shutter (true) or closes it (false)
func (c *Camera) SetShutter(b bool) error {
	c.Lock()
	defer c.Unlock()
	return c.setShutter(b)
}

func (c *Camera) setShutter(open bool) error {
	if !c.caps.Shutter {
		return ConfigurationError{Field: "shutter", Reason: "shutter not supported by this camera"}
	}
	mode := shutterModeClosed
	if open {
		mode = shutterModeOpen
	}
	if err := c.check(c.dev.SetShutter(shutterTTLHigh, mode, shutterTransitMS, shutterTransitMS)); err != nil {
		return err
	}
	c.state.ShutterOpen = open
	return nil
}

// GetShutter returns true if the shutter is commanded open
func (c *Camera) GetShutter() bool {
	c.Lock()
	defer c.Unlock()
	return c.state.ShutterOpen
}

/* the above deals with acquisition programming, the below deals with taking frames

 */

// StartAcquisition begins collecting frames into the device's circular
// buffer
func (c *Camera) StartAcquisition() error {
	c.Lock()
	defer c.Unlock()
	return c.start()
}

func (c *Camera) start() error {
	return c.check(c.dev.StartAcquisition())
}

// StopAcquisition halts a running acquisition.  Stopping an idle camera
// is expected success; the device's idle report is swallowed silently.
func (c *Camera) StopAcquisition() error {
	c.Lock()
	defer c.Unlock()
	return c.stop()
}

func (c *Camera) stop() error {
	code := c.dev.AbortAcquisition()
	// idle means there was nothing to stop; the idle advisory and its
	// stack log are reserved for calls that should find the device active
	if code == drv.CodeIdle {
		return nil
	}
	return c.check(code)
}

// CaptureLatestFrame produces the most recent frame from the device.
// In software trigger mode a trigger is sent first.  The call blocks
// until the device signals a new frame, or fails when the exposure time
// plus the capture slack elapses first.
func (c *Camera) CaptureLatestFrame() (Frame, error) {
	c.Lock()
	defer c.Unlock()
	return c.capture()
}

func (c *Camera) capture() (Frame, error) {
	if c.state.TriggerMode == "software" {
		if err := c.check(c.dev.SendSoftwareTrigger()); err != nil {
			return Frame{}, err
		}
	}
	texp := util.SecsToDuration(c.state.ExposureSec)
	timeout := texp + util.SecsToDuration(c.caps.CaptureSlackS)
	if err := c.check(c.dev.WaitForAcquisition(timeout)); err != nil {
		return Frame{}, err
	}
	w := c.state.Crop.Width() / c.state.Bins
	h := c.state.Crop.Height() / c.state.Bins
	buf := make([]int32, w*h)
	if err := c.check(c.dev.GetMostRecentImage(buf)); err != nil {
		return Frame{}, err
	}
	if c.caps.NoiseFilter {
		out := make([]int32, len(buf))
		if err := c.check(c.dev.PostProcessNoiseFilter(buf, out, 0, 1, 0, h, w)); err != nil {
			return Frame{}, err
		}
		buf = out
	}
	return Frame{
		Width:    w,
		Height:   h,
		Bin:      c.state.Bins,
		Trigger:  c.state.TriggerMode,
		Exposure: texp,
		Taken:    time.Now(),
		Pix:      buf,
	}, nil
}

// CaptureSingleFrame stops any running acquisition, takes one frame
// with the given trigger mode, and restores the previous trigger mode.
// The whole sequence runs under the device lock, so no other operation
// can interleave with it.  The stop and the trigger restore run even
// when the capture fails.
func (c *Camera) CaptureSingleFrame(trigger string) (Frame, error) {
	c.Lock()
	defer c.Unlock()
	if err := c.stop(); err != nil {
		return Frame{}, err
	}
	prev := c.state.TriggerMode
	if err := c.setTriggerMode(trigger); err != nil {
		return Frame{}, err
	}
	if err := c.start(); err != nil {
		return Frame{}, err
	}
	frame, err := c.capture()
	errs := []error{err, c.stop(), c.setTriggerMode(prev)}
	return frame, util.MergeErrors(errs)
}

/* the above deals with taking frames, the below deals with metadata and batch configuration

 */

// CollectHeaderMetadata makes a stack of FITS cards from the current
// configuration and a live temperature read
func (c *Camera) CollectHeaderMetadata() []fitsio.Card {
	c.Lock()
	state := c.state
	depth := c.caps.Depth
	temp, err := c.temperature()
	c.Unlock()
	var metaerr string
	if err != nil {
		metaerr = err.Error()
	}
	now := time.Now()
	ts := fmt.Sprintf("%d-%02d-%02dT%02d:%02d:%02d",
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour(),
		now.Minute(),
		now.Second())

	return []fitsio.Card{
		// header to the header
		{Name: "HDRVER", Value: "EMCCD-2", Comment: "header version"},
		{Name: "WRAPVER", Value: WRAPVER, Comment: "server library code version"},
		{Name: "METAERR", Value: metaerr, Comment: "error encountered gathering metadata"},
		{Name: "CAMMODL", Value: "Andor iXon Ultra 888", Comment: "camera model"},
		{Name: "BITDEPTH", Value: depth, Comment: "2^BITDEPTH is the maximum possible DN"},

		// timestamp is standard and does not require comment
		{Name: "DATE", Value: ts},

		// exposure parameters
		{Name: "EXPTIME", Value: state.ExposureSec, Comment: "exposure time, seconds"},
		{Name: "ACQMODE", Value: state.AcquisitionMode, Comment: "acquisition mode"},
		{Name: "TRIGGER", Value: state.TriggerMode, Comment: "trigger mode"},
		{Name: "EMGAIN", Value: state.Gain, Comment: "EM gain factor"},

		// thermal parameters
		{Name: "COOLER", Value: state.CoolerActive, Comment: "cooler on (true) or off"},
		{Name: "TEMPSETP", Value: state.TemperatureSetPoint, Comment: "temperature setpoint, Celsius"},
		{Name: "TEMPER", Value: temp, Comment: "FPA temperature (Celsius)"},
		{Name: "TEMPSTAB", Value: state.TemperatureStabilized, Comment: "temperature is stabilized at the setpoint"},

		// aoi parameters
		{Name: "AOIL", Value: state.Crop.HStart, Comment: "1-based left pixel of the AOI"},
		{Name: "AOIT", Value: state.Crop.VStart, Comment: "1-based top pixel of the AOI"},
		{Name: "AOIW", Value: state.Crop.Width(), Comment: "AOI width, px"},
		{Name: "AOIH", Value: state.Crop.Height(), Comment: "AOI height, px"},
		{Name: "AOIB", Value: fmt.Sprintf("%dx%d", state.Bins, state.Bins), Comment: "AOI Binning, HxV"},
	}
}

// asInt widens the numeric types the config layers produce; json
// decodes numbers as float64 while yaml produces int.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func badValue(k string, v interface{}) error {
	return fmt.Errorf("configuration parameter %s with value %v not understood or unavailable", k, v)
}

// Configure sets many values for the camera at once
func (c *Camera) Configure(settings map[string]interface{}) error {
	type fStrErr func(string) error
	type fBoolErr func(bool) error
	type fIntErr func(int) error
	strFuncs := map[string]fStrErr{
		"AcquisitionMode": c.SetAcquisitionMode,
		"TriggerMode":     c.SetTriggerMode}
	boolFuncs := map[string]fBoolErr{
		"ShutterOpen":   c.SetShutter,
		"SensorCooling": c.SetCooling}
	intFuncs := map[string]fIntErr{
		"Bins":                c.SetBins,
		"EMGain":              c.SetGain,
		"TemperatureSetpoint": c.SetTemperatureSetpoint}
	var errs []error
	for k, v := range settings {
		switch k {
		case "AcquisitionMode", "TriggerMode":
			str, ok := v.(string)
			if !ok {
				errs = append(errs, badValue(k, v))
				continue
			}
			f := strFuncs[k]
			errs = append(errs, f(str))
		case "ShutterOpen", "SensorCooling":
			b, ok := v.(bool)
			if !ok {
				errs = append(errs, badValue(k, v))
				continue
			}
			f := boolFuncs[k]
			errs = append(errs, f(b))
		case "Bins", "EMGain", "TemperatureSetpoint":
			i, ok := asInt(v)
			if !ok {
				errs = append(errs, badValue(k, v))
				continue
			}
			f := intFuncs[k]
			errs = append(errs, f(i))
		case "ExposureTime":
			secs, ok := asFloat(v)
			if !ok {
				errs = append(errs, badValue(k, v))
				continue
			}
			errs = append(errs, c.SetExposureTime(util.SecsToDuration(secs)))
		default:
			return badValue(k, v)
		}
	}
	return util.MergeErrors(errs)
}
