package bridge

import "github.com/oak-ros/daibridge/dai"

// DefaultFrameNames returns the coordinate-frame name assigned to each
// camera socket when no override is configured.
func DefaultFrameNames() map[dai.CameraBoardSocket]string {
	return map[dai.CameraBoardSocket]string{
		dai.SocketRGB:   "rgb_camera_optical_frame",
		dai.SocketLeft:  "left_camera_optical_frame",
		dai.SocketRight: "right_camera_optical_frame",
	}
}
