package bridge

import (
	"github.com/pkg/errors"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/ros"
)

// CameraInfoFor builds the calibration record published alongside a camera
// stream: intrinsics for the given socket scaled to the stream resolution.
// The header is left empty; the publisher stamps it per frame.
func CameraInfoFor(
	calib dai.CalibrationHandler,
	socket dai.CameraBoardSocket,
	width, height int,
) (ros.CameraInfo, error) {
	intr, err := calib.CameraIntrinsics(socket, width, height)
	if err != nil {
		return ros.CameraInfo{}, errors.Wrapf(err, "cannot read calibration for %s camera", socket)
	}

	info := ros.CameraInfo{
		Width:  uint32(intr.Width),
		Height: uint32(intr.Height),
	}
	info.D = make([]float64, len(intr.Distortion))
	copy(info.D, intr.Distortion)
	if len(intr.Distortion) == 8 {
		info.DistortionModel = "rational_polynomial"
	} else {
		info.DistortionModel = "plumb_bob"
	}
	info.K = [9]float64{
		intr.Fx, 0, intr.Ppx,
		0, intr.Fy, intr.Ppy,
		0, 0, 1,
	}
	info.R = [9]float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	info.P = [12]float64{
		intr.Fx, 0, intr.Ppx, 0,
		0, intr.Fy, intr.Ppy, 0,
		0, 0, 1, 0,
	}
	return info, nil
}
