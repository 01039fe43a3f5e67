package dai

import "sort"

// StereoDepthConfig is the runtime-tunable configuration of a stereo depth
// stage. Pushed whole to the device; there is no partial update on the wire.
type StereoDepthConfig struct {
	LeftRightCheck    bool
	Confidence        int
	BilateralSigma    int
	ExtendedDisparity bool
	Subpixel          bool
	LRCheckThreshold  int
	ThresholdMin      int
	ThresholdMax      int
}

func (*StereoDepthConfig) isData() {}

// DefaultStereoDepthConfig returns the configuration a freshly created stereo
// stage runs with.
func DefaultStereoDepthConfig() StereoDepthConfig {
	return StereoDepthConfig{
		LeftRightCheck:   true,
		Confidence:       230,
		LRCheckThreshold: 10,
		ThresholdMin:     20,
		ThresholdMax:     2000,
	}
}

// CameraCommand names one group of camera control fields that a single
// CameraControl push can carry.
type CameraCommand uint8

// The control groups a camera stage accepts.
const (
	CmdStartStream CameraCommand = iota
	CmdStopStream
	CmdAutoFocusMode
	CmdAutoFocusRegion
	CmdManualFocus
	CmdAutoExposureLock
	CmdAutoExposureRegion
	CmdAutoExposureCompensation
	CmdContrast
	CmdBrightness
	CmdSaturation
	CmdSharpness
	CmdChromaDenoise
)

func (c CameraCommand) String() string {
	switch c {
	case CmdStartStream:
		return "StartStream"
	case CmdStopStream:
		return "StopStream"
	case CmdAutoFocusMode:
		return "AutoFocusMode"
	case CmdAutoFocusRegion:
		return "AutoFocusRegion"
	case CmdManualFocus:
		return "ManualFocus"
	case CmdAutoExposureLock:
		return "AutoExposureLock"
	case CmdAutoExposureRegion:
		return "AutoExposureRegion"
	case CmdAutoExposureCompensation:
		return "AutoExposureCompensation"
	case CmdContrast:
		return "Contrast"
	case CmdBrightness:
		return "Brightness"
	case CmdSaturation:
		return "Saturation"
	case CmdSharpness:
		return "Sharpness"
	case CmdChromaDenoise:
		return "ChromaDenoise"
	}
	return "unknown"
}

// A Region is a rectangle in sensor pixel coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// CameraControl is one control push to a camera stage. Setters record which
// groups the push carries; the device applies only recorded groups.
type CameraControl struct {
	commands map[CameraCommand]struct{}

	AutoFocusMode  string
	AFRegion       Region
	AFLensMin      int
	AFLensMax      int
	ManualFocus    int
	AELock         bool
	AERegion       Region
	AECompensation int
	Contrast       int
	Brightness     int
	Saturation     int
	Sharpness      int
	ChromaDenoise  int
}

func (*CameraControl) isData() {}

// NewCameraControl returns an empty control push.
func NewCameraControl() *CameraControl {
	return &CameraControl{commands: make(map[CameraCommand]struct{})}
}

func (c *CameraControl) record(cmd CameraCommand) {
	if c.commands == nil {
		c.commands = make(map[CameraCommand]struct{})
	}
	c.commands[cmd] = struct{}{}
}

// SetStartStreaming asks the camera to begin streaming.
func (c *CameraControl) SetStartStreaming() {
	c.record(CmdStartStream)
}

// SetStopStreaming asks the camera to stop streaming.
func (c *CameraControl) SetStopStreaming() {
	c.record(CmdStopStream)
}

// SetAutoFocusMode selects the autofocus mode, e.g. "CONTINUOUS_VIDEO".
func (c *CameraControl) SetAutoFocusMode(mode string) {
	c.AutoFocusMode = mode
	c.record(CmdAutoFocusMode)
}

// SetAutoFocusRegion restricts autofocus to a region and lens travel range.
func (c *CameraControl) SetAutoFocusRegion(r Region, lensMin, lensMax int) {
	c.AFRegion = r
	c.AFLensMin = lensMin
	c.AFLensMax = lensMax
	c.record(CmdAutoFocusRegion)
}

// SetManualFocus sets an absolute lens position and disables autofocus.
func (c *CameraControl) SetManualFocus(position int) {
	c.ManualFocus = position
	c.record(CmdManualFocus)
}

// SetAutoExposureLock freezes or releases auto exposure.
func (c *CameraControl) SetAutoExposureLock(lock bool) {
	c.AELock = lock
	c.record(CmdAutoExposureLock)
}

// SetAutoExposureRegion restricts auto exposure metering to a region.
func (c *CameraControl) SetAutoExposureRegion(r Region) {
	c.AERegion = r
	c.record(CmdAutoExposureRegion)
}

// SetAutoExposureCompensation biases auto exposure, -9..9.
func (c *CameraControl) SetAutoExposureCompensation(v int) {
	c.AECompensation = v
	c.record(CmdAutoExposureCompensation)
}

// SetContrast sets image contrast, -10..10.
func (c *CameraControl) SetContrast(v int) {
	c.Contrast = v
	c.record(CmdContrast)
}

// SetBrightness sets image brightness, -10..10.
func (c *CameraControl) SetBrightness(v int) {
	c.Brightness = v
	c.record(CmdBrightness)
}

// SetSaturation sets image saturation, -10..10.
func (c *CameraControl) SetSaturation(v int) {
	c.Saturation = v
	c.record(CmdSaturation)
}

// SetSharpness sets edge enhancement strength, 0..4.
func (c *CameraControl) SetSharpness(v int) {
	c.Sharpness = v
	c.record(CmdSharpness)
}

// SetChromaDenoise sets chroma noise reduction strength, 0..4.
func (c *CameraControl) SetChromaDenoise(v int) {
	c.ChromaDenoise = v
	c.record(CmdChromaDenoise)
}

// Has reports whether the push carries the given group.
func (c *CameraControl) Has(cmd CameraCommand) bool {
	_, ok := c.commands[cmd]
	return ok
}

// Commands returns the recorded groups in a stable order.
func (c *CameraControl) Commands() []CameraCommand {
	out := make([]CameraCommand, 0, len(c.commands))
	for cmd := range c.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
