package fake

import (
	"github.com/pkg/errors"

	"github.com/oak-ros/daibridge/dai"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

// Per-socket intrinsics at the 1280x720 base resolution. The color sensor
// carries eight distortion coefficients, the mono pair five.
var baseIntrinsics = map[dai.CameraBoardSocket]dai.Intrinsics{
	dai.SocketRGB: {
		Width: baseWidth, Height: baseHeight,
		Fx: 996.28, Fy: 996.28, Ppx: 642.19, Ppy: 358.74,
		Distortion: []float64{0.191, -0.545, 0.001, -0.002, 0.466, 0.072, 0.013, 0.008},
	},
	dai.SocketLeft: {
		Width: baseWidth, Height: baseHeight,
		Fx: 871.25, Fy: 871.25, Ppx: 639.52, Ppy: 361.11,
		Distortion: []float64{-0.004, 0.012, -0.001, 0.0, -0.008},
	},
	dai.SocketRight: {
		Width: baseWidth, Height: baseHeight,
		Fx: 873.5, Fy: 873.5, Ppx: 641.03, Ppy: 359.88,
		Distortion: []float64{-0.006, 0.014, 0.0, -0.001, -0.01},
	},
}

// Calibration hands out deterministic per-socket intrinsics, linearly
// scaled from the base resolution.
type Calibration struct{}

// NewCalibration returns the fake calibration store.
func NewCalibration() *Calibration { return &Calibration{} }

// CameraIntrinsics implements dai.CalibrationHandler.
func (c *Calibration) CameraIntrinsics(socket dai.CameraBoardSocket, width, height int) (dai.Intrinsics, error) {
	base, ok := baseIntrinsics[socket]
	if !ok {
		return dai.Intrinsics{}, errors.Errorf("no calibration stored for socket %q", socket)
	}
	if width <= 0 || height <= 0 {
		return dai.Intrinsics{}, errors.Errorf("invalid resolution %dx%d", width, height)
	}
	widthRatio := float64(width) / float64(base.Width)
	heightRatio := float64(height) / float64(base.Height)
	scaled := dai.Intrinsics{
		Width:      width,
		Height:     height,
		Fx:         base.Fx * widthRatio,
		Fy:         base.Fy * heightRatio,
		Ppx:        base.Ppx * widthRatio,
		Ppy:        base.Ppy * heightRatio,
		Distortion: make([]float64, len(base.Distortion)),
	}
	copy(scaled.Distortion, base.Distortion)
	return scaled, nil
}
