package bridge

import (
	"time"

	"github.com/pkg/errors"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/ros"
)

// imageEncoding returns the wire encoding name and row stride for a frame
// layout. Pixel data is forwarded as the device produced it.
func imageEncoding(t dai.ImgType, width int) (string, uint32, error) {
	switch t {
	case dai.ImgTypeRaw8:
		return "mono8", uint32(width), nil
	case dai.ImgTypeRaw16:
		return "16UC1", uint32(width * 2), nil
	case dai.ImgTypeBGR888i:
		return "bgr8", uint32(width * 3), nil
	case dai.ImgTypeRGB888i:
		return "rgb8", uint32(width * 3), nil
	case dai.ImgTypeNV12:
		return "nv12", uint32(width), nil
	}
	return "", 0, errors.Errorf("no wire encoding for frame type %s", t)
}

func frameHeader(frame string, seq int64, stamp time.Time) ros.Header {
	return ros.Header{
		Seq:     uint32(seq),
		Stamp:   ros.NewTime(stamp),
		FrameID: frame,
	}
}

// An ImageConverter maps device image frames onto sensor_msgs/Image under
// one fixed coordinate frame.
type ImageConverter struct {
	frame string
}

// NewImageConverter returns a converter stamping messages with the given
// coordinate frame.
func NewImageConverter(frame string) *ImageConverter {
	return &ImageConverter{frame: frame}
}

// ToRosMsgs converts one frame. A frame layout with no wire encoding is an
// error; the caller drops the frame.
func (c *ImageConverter) ToRosMsgs(frame *dai.ImgFrame) ([]ros.Image, error) {
	encoding, step, err := imageEncoding(frame.Type, frame.Width)
	if err != nil {
		return nil, err
	}
	return []ros.Image{{
		Header:   frameHeader(c.frame, frame.Sequence, frame.Timestamp),
		Height:   uint32(frame.Height),
		Width:    uint32(frame.Width),
		Encoding: encoding,
		Step:     step,
		Data:     frame.Data,
	}}, nil
}

// A DisparityConverter maps device disparity frames onto
// stereo_msgs/DisparityImage, attaching the fixed optics of the stereo
// pair: focal length in pixels, baseline in centimeters, and the usable
// depth range in the same units the device reports.
type DisparityConverter struct {
	frame    string
	focal    float64
	baseline float64
	minDepth float64
	maxDepth float64
}

// NewDisparityConverter returns a converter for a stereo pair with the
// given optics.
func NewDisparityConverter(frame string, focal, baseline, minDepth, maxDepth float64) *DisparityConverter {
	return &DisparityConverter{
		frame:    frame,
		focal:    focal,
		baseline: baseline,
		minDepth: minDepth,
		maxDepth: maxDepth,
	}
}

// ToRosMsgs converts one disparity frame.
func (c *DisparityConverter) ToRosMsgs(frame *dai.ImgFrame) ([]ros.DisparityImage, error) {
	encoding, step, err := imageEncoding(frame.Type, frame.Width)
	if err != nil {
		return nil, err
	}
	header := frameHeader(c.frame, frame.Sequence, frame.Timestamp)
	return []ros.DisparityImage{{
		Header: header,
		Image: ros.Image{
			Header:   header,
			Height:   uint32(frame.Height),
			Width:    uint32(frame.Width),
			Encoding: encoding,
			Step:     step,
			Data:     frame.Data,
		},
		F: c.focal,
		// baseline rides the wire in meters
		T:            c.baseline / 100,
		MinDisparity: c.focal * c.baseline / c.maxDepth,
		MaxDisparity: c.focal * c.baseline / c.minDepth,
		DeltaD:       1,
	}}, nil
}

// An ImuConverter maps device inertial batches onto sensor_msgs/Imu, one
// message per packet.
type ImuConverter struct {
	frame string
}

// NewImuConverter returns a converter stamping messages with the given
// coordinate frame.
func NewImuConverter(frame string) *ImuConverter {
	return &ImuConverter{frame: frame}
}

// ToRosMsgs converts one batch.
func (c *ImuConverter) ToRosMsgs(data *dai.IMUData) ([]ros.Imu, error) {
	out := make([]ros.Imu, 0, len(data.Packets))
	for _, packet := range data.Packets {
		out = append(out, ros.Imu{
			Header: ros.Header{
				Seq:     uint32(packet.Sequence),
				Stamp:   ros.NewTime(packet.Timestamp),
				FrameID: c.frame,
			},
			Orientation: ros.Quaternion{
				X: packet.Rotation.I,
				Y: packet.Rotation.J,
				Z: packet.Rotation.K,
				W: packet.Rotation.Real,
			},
			AngularVelocity: ros.Vector3{
				X: packet.Gyroscope.X,
				Y: packet.Gyroscope.Y,
				Z: packet.Gyroscope.Z,
			},
			LinearAcceleration: ros.Vector3{
				X: packet.Accelerometer.X,
				Y: packet.Accelerometer.Y,
				Z: packet.Accelerometer.Z,
			},
		})
	}
	return out, nil
}
