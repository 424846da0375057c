package drv

import (
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

const (
	// simBufferDepth is how many frames the simulated circular buffer
	// retains, a miniature of the hardware's 48MB store
	simBufferDepth = 16

	// simDetectorSize is the simulated sensor edge length in pixels
	simDetectorSize = 1024

	simTempMin     = -90
	simTempMax     = 30
	simTempAmbient = 20.0

	simEMGainMin = 0
	simEMGainMax = 255

	triggerModeSoftware = 10
)

// Sim is an in-memory Driver with the same busy/idle semantics as the
// hardware: configuration calls made while acquiring return the
// acquiring code, range reads on an empty buffer return no-new-data,
// and the thermal codes follow the cooler state.
//
// Frames are synthesized deterministically from their index, so a frame
// retrieved twice (newest-image then by range) has identical pixels.
// One frame is deposited per WaitForAcquisition call; external trigger
// modes behave like internal, software trigger requires a pending
// SendSoftwareTrigger or the wait times out.
type Sim struct {
	sync.Mutex

	initialized bool
	acquiring   bool
	abortc      chan struct{}

	acqMode      int
	trigMode     int
	kineticCycle float64
	exposure     float64

	binH, binV     int
	hStart, hEnd   int
	vStart, vEnd   int
	shutterOpen    bool
	shutterAuto    bool
	coolerOn       bool
	temp           float64
	tempSet        int
	gain           int
	pendingTrigger bool
	produced       int
	faults         map[string]Code
}

// NewSim returns a simulator at ambient temperature with a full-frame
// window, 1x1 binning, and internal trigger.
func NewSim() *Sim {
	return &Sim{
		acqMode:  5,
		trigMode: 0,
		binH:     1, binV: 1,
		hStart: 1, hEnd: simDetectorSize,
		vStart: 1, vEnd: simDetectorSize,
		temp:    simTempAmbient,
		tempSet: 0,
		faults:  make(map[string]Code),
	}
}

// InjectFault arranges for the next call to the named driver method to
// return code instead of running.  Used by tests.
func (s *Sim) InjectFault(method string, code Code) {
	s.Lock()
	defer s.Unlock()
	s.faults[method] = code
}

func (s *Sim) takeFault(method string) (Code, bool) {
	c, ok := s.faults[method]
	if ok {
		delete(s.faults, method)
	}
	return c, ok
}

// framePix is the pixel count of one binned frame for the current window
func (s *Sim) framePix() int {
	return ((s.hEnd - s.hStart + 1) / s.binH) * ((s.vEnd - s.vStart + 1) / s.binV)
}

// fillFrame synthesizes the pixels of frame idx
func (s *Sim) fillFrame(buf []int32, idx int) {
	w := (s.hEnd - s.hStart + 1) / s.binH
	for i := range buf {
		buf[i] = int32((i%w + i/w + idx*17) % 4096)
	}
}

func (s *Sim) windowLocked() (int, int) {
	first := s.produced - simBufferDepth + 1
	if first < 1 {
		first = 1
	}
	return first, s.produced
}

func (s *Sim) Initialize(dir string) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("Initialize"); ok {
		return c
	}
	s.initialized = true
	return CodeSuccess
}

func (s *Sim) Shutdown() Code {
	s.Lock()
	defer s.Unlock()
	s.initialized = false
	s.acquiring = false
	return CodeSuccess
}

func (s *Sim) GetDetector() (int, int, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return 0, 0, CodeNotInitialized
	}
	return simDetectorSize, simDetectorSize, CodeSuccess
}

// guard is the common precondition of every configuration call
func (s *Sim) guard() Code {
	if !s.initialized {
		return CodeNotInitialized
	}
	if s.acquiring {
		return CodeAcquiring
	}
	return CodeSuccess
}

func (s *Sim) SetAcquisitionMode(mode int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetAcquisitionMode"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if mode < 1 || mode > 5 {
		return CodeP1Invalid
	}
	s.acqMode = mode
	return CodeSuccess
}

func (s *Sim) SetTriggerMode(mode int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetTriggerMode"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if !util.IntSliceContains([]int{0, 1, 6, 7, 10}, mode) {
		return CodeP1Invalid
	}
	s.trigMode = mode
	return CodeSuccess
}

func (s *Sim) SetKineticCycleTime(secs float64) Code {
	s.Lock()
	defer s.Unlock()
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if secs < 0 {
		return CodeP1Invalid
	}
	s.kineticCycle = secs
	return CodeSuccess
}

func (s *Sim) SetExposureTime(secs float64) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetExposureTime"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if secs < 0 {
		return CodeP1Invalid
	}
	s.exposure = secs
	return CodeSuccess
}

func (s *Sim) GetAcquisitionTimings() (AcquisitionTimings, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return AcquisitionTimings{}, CodeNotInitialized
	}
	at := AcquisitionTimings{
		Exposure:     s.exposure,
		Accumulation: s.exposure,
		Kinetic:      s.kineticCycle,
	}
	return at, CodeSuccess
}

func (s *Sim) SetImage(binH, binV, hStart, hEnd, vStart, vEnd int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetImage"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	switch {
	case binH < 1:
		return CodeP1Invalid
	case binV < 1:
		return CodeP2Invalid
	case hStart < 1 || hStart > hEnd:
		return CodeP3Invalid
	case hEnd > simDetectorSize || (hEnd-hStart+1)%binH != 0:
		return CodeP4Invalid
	case vStart < 1 || vStart > vEnd:
		return CodeP5Invalid
	case vEnd > simDetectorSize || (vEnd-vStart+1)%binV != 0:
		return CodeP6Invalid
	}
	s.binH, s.binV = binH, binV
	s.hStart, s.hEnd = hStart, hEnd
	s.vStart, s.vEnd = vStart, vEnd
	return CodeSuccess
}

func (s *Sim) StartAcquisition() Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("StartAcquisition"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	s.acquiring = true
	s.produced = 0
	s.pendingTrigger = false
	s.abortc = make(chan struct{})
	return CodeSuccess
}

func (s *Sim) AbortAcquisition() Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("AbortAcquisition"); ok {
		return c
	}
	if !s.initialized {
		return CodeNotInitialized
	}
	if !s.acquiring {
		return CodeIdle
	}
	s.acquiring = false
	close(s.abortc)
	return CodeSuccess
}

func (s *Sim) SendSoftwareTrigger() Code {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return CodeNotInitialized
	}
	if !s.acquiring {
		return CodeIdle
	}
	if s.trigMode != triggerModeSoftware {
		return CodeInvalidMode
	}
	s.pendingTrigger = true
	return CodeSuccess
}

func (s *Sim) WaitForAcquisition(timeout time.Duration) Code {
	s.Lock()
	if c, ok := s.takeFault("WaitForAcquisition"); ok {
		s.Unlock()
		return c
	}
	if !s.initialized {
		s.Unlock()
		return CodeNotInitialized
	}
	if !s.acquiring {
		s.Unlock()
		return CodeIdle
	}
	if s.trigMode == triggerModeSoftware && !s.pendingTrigger {
		// no exposure was triggered; wait runs out
		abortc := s.abortc
		s.Unlock()
		if timeout > 0 {
			select {
			case <-time.After(timeout):
			case <-abortc:
			}
		}
		return CodeNoNewData
	}
	s.pendingTrigger = false
	exp := util.SecsToDuration(s.exposure)
	abortc := s.abortc
	s.Unlock()

	if timeout > 0 && exp > timeout {
		select {
		case <-time.After(timeout):
		case <-abortc:
		}
		return CodeNoNewData
	}
	if exp > 0 {
		select {
		case <-time.After(exp):
		case <-abortc:
			return CodeNoNewData
		}
	}

	s.Lock()
	defer s.Unlock()
	if !s.acquiring {
		return CodeNoNewData
	}
	s.produced++
	return CodeSuccess
}

func (s *Sim) GetMostRecentImage(buf []int32) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("GetMostRecentImage"); ok {
		return c
	}
	if !s.initialized {
		return CodeNotInitialized
	}
	if s.produced == 0 {
		return CodeNoNewData
	}
	if len(buf) != s.framePix() {
		return CodeP2Invalid
	}
	s.fillFrame(buf, s.produced)
	return CodeSuccess
}

func (s *Sim) GetImages(first, last int, buf []int32) (int, int, Code) {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("GetImages"); ok {
		return 0, 0, c
	}
	if !s.initialized {
		return 0, 0, CodeNotInitialized
	}
	if s.produced == 0 {
		return 0, 0, CodeNoNewData
	}
	lo, hi := s.windowLocked()
	if first > last || first < lo || last > hi {
		return 0, 0, CodeGeneralErrors
	}
	n := last - first + 1
	pix := s.framePix()
	if len(buf) != n*pix {
		return 0, 0, CodeP4Invalid
	}
	for i := 0; i < n; i++ {
		s.fillFrame(buf[i*pix:(i+1)*pix], first+i)
	}
	return first, last, CodeSuccess
}

func (s *Sim) GetNumberAvailableImages() (int, int, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return 0, 0, CodeNotInitialized
	}
	if s.produced == 0 {
		return 0, 0, CodeNoNewData
	}
	lo, hi := s.windowLocked()
	return lo, hi, CodeSuccess
}

// GetTemperature walks the simulated sensor toward the set point (cooler
// on) or ambient (cooler off) and reports the matching thermal code.
func (s *Sim) GetTemperature() (int, Code) {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("GetTemperature"); ok {
		return int(s.temp), c
	}
	if !s.initialized {
		return 0, CodeNotInitialized
	}
	if s.acquiring {
		return int(s.temp), CodeAcquiring
	}
	target := float64(s.tempSet)
	if !s.coolerOn {
		target = simTempAmbient
	}
	gap := target - s.temp
	step := gap * 0.25
	if step > 0 && step < 1 {
		step = 1
	} else if step < 0 && step > -1 {
		step = -1
	}
	if (step > 0 && s.temp+step > target) || (step < 0 && s.temp+step < target) {
		s.temp = target
	} else {
		s.temp += step
	}
	t := int(s.temp)
	if !s.coolerOn {
		return t, CodeTempOff
	}
	switch gap := s.temp - float64(s.tempSet); {
	case gap > 3 || gap < -3:
		return t, CodeTempNotReached
	case gap > 0.5 || gap < -0.5:
		return t, CodeTempNotStabilized
	default:
		return t, CodeTempStabilized
	}
}

func (s *Sim) SetTemperature(deg int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetTemperature"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if deg < simTempMin || deg > simTempMax {
		return CodeP1Invalid
	}
	s.tempSet = deg
	return CodeSuccess
}

func (s *Sim) GetTemperatureRange() (int, int, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return 0, 0, CodeNotInitialized
	}
	return simTempMin, simTempMax, CodeSuccess
}

func (s *Sim) CoolerOn() Code {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return CodeNotInitialized
	}
	s.coolerOn = true
	return CodeSuccess
}

func (s *Sim) CoolerOff() Code {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return CodeNotInitialized
	}
	s.coolerOn = false
	return CodeSuccess
}

func (s *Sim) SetShutter(ttlHigh, mode, closingMS, openingMS int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetShutter"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if mode < 0 || mode > 2 {
		return CodeP2Invalid
	}
	s.shutterAuto = mode == 0
	s.shutterOpen = mode == 1
	return CodeSuccess
}

func (s *Sim) GetEMCCDGain() (int, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return 0, CodeNotInitialized
	}
	return s.gain, CodeSuccess
}

func (s *Sim) SetEMCCDGain(fctr int) Code {
	s.Lock()
	defer s.Unlock()
	if c, ok := s.takeFault("SetEMCCDGain"); ok {
		return c
	}
	if c := s.guard(); c != CodeSuccess {
		return c
	}
	if fctr < simEMGainMin || fctr > simEMGainMax {
		return CodeP1Invalid
	}
	s.gain = fctr
	return CodeSuccess
}

func (s *Sim) GetEMGainRange() (int, int, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return 0, 0, CodeNotInitialized
	}
	return simEMGainMin, simEMGainMax, CodeSuccess
}

// PostProcessNoiseFilter implements the median (mode 1) filter with a
// 3x3 kernel and replicated edges.  Other modes are not supported.
func (s *Sim) PostProcessNoiseFilter(in, out []int32, baseline, mode int, threshold float64, height, width int) Code {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return CodeNotInitialized
	}
	if mode != 1 {
		return CodeNotSupported
	}
	if len(in) != height*width {
		return CodeP1Invalid
	}
	if len(out) != height*width {
		return CodeP2Invalid
	}
	var window [9]int32
	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			k := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					yy := clamp(y+dy, 0, height-1)
					xx := clamp(x+dx, 0, width-1)
					window[k] = in[yy*width+xx]
					k++
				}
			}
			// partial insertion sort; the median is window[4]
			for i := 1; i < 9; i++ {
				v := window[i]
				j := i - 1
				for j >= 0 && window[j] > v {
					window[j+1] = window[j]
					j--
				}
				window[j+1] = v
			}
			out[y*width+x] = window[4] - int32(baseline)
		}
	}
	return CodeSuccess
}

func (s *Sim) GetCapabilities() (DeviceCaps, Code) {
	s.Lock()
	defer s.Unlock()
	if !s.initialized {
		return DeviceCaps{}, CodeNotInitialized
	}
	caps := DeviceCaps{
		AcqModes:         0x1F, // single through run-till-abort
		ReadModes:        0x01, // image
		TriggerModes:     0x53, // internal, external, start, bulb, software
		CameraType:       1,    // iXon
		PixelModes:       0x01,
		EMGainCapability: 0x0F,
	}
	return caps, CodeSuccess
}
