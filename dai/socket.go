package dai

import "github.com/pkg/errors"

// CameraBoardSocket identifies a physical camera mount on the device.
type CameraBoardSocket int

// The closed set of mounts this device generation exposes.
const (
	SocketAuto CameraBoardSocket = iota - 1
	SocketRGB
	SocketLeft
	SocketRight
)

func (s CameraBoardSocket) String() string {
	switch s {
	case SocketAuto:
		return "auto"
	case SocketRGB:
		return "rgb"
	case SocketLeft:
		return "left"
	case SocketRight:
		return "right"
	}
	return "unknown"
}

// ParseSocket maps a socket name back to its identifier.
func ParseSocket(name string) (CameraBoardSocket, error) {
	switch name {
	case "auto":
		return SocketAuto, nil
	case "rgb":
		return SocketRGB, nil
	case "left":
		return SocketLeft, nil
	case "right":
		return SocketRight, nil
	}
	return SocketAuto, errors.Errorf("unknown camera socket %q", name)
}
