package dai

// A Node is one stage of a device pipeline. The set of concrete kinds is
// closed: ColorCameraNode, MonoCameraNode, StereoDepthNode, IMUNode,
// XLinkInNode and XLinkOutNode. Consumers dispatch with a type switch.
type Node interface {
	ID() NodeID
	// Name returns the kind name, e.g. "StereoDepth".
	Name() string
	// Inputs lists the node's named input ports.
	Inputs() []string
	// Outputs lists the node's named output ports.
	Outputs() []string
}

// ColorCameraNode is the color sensor stage. The four output sizes are the
// ones the sensor was configured to produce per output port.
type ColorCameraNode struct {
	id     NodeID
	Socket CameraBoardSocket

	VideoWidth    int
	VideoHeight   int
	StillWidth    int
	StillHeight   int
	PreviewWidth  int
	PreviewHeight int
	IspWidth      int
	IspHeight     int
}

// ID implements Node.
func (n *ColorCameraNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *ColorCameraNode) Name() string { return "ColorCamera" }

// Inputs implements Node.
func (n *ColorCameraNode) Inputs() []string { return []string{"inputControl", "inputConfig"} }

// Outputs implements Node.
func (n *ColorCameraNode) Outputs() []string {
	return []string{"video", "still", "preview", "isp", "raw"}
}

// MonoCameraNode is a grayscale sensor stage.
type MonoCameraNode struct {
	id     NodeID
	Socket CameraBoardSocket

	ResolutionWidth  int
	ResolutionHeight int
}

// ID implements Node.
func (n *MonoCameraNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *MonoCameraNode) Name() string { return "MonoCamera" }

// Inputs implements Node.
func (n *MonoCameraNode) Inputs() []string { return []string{"inputControl"} }

// Outputs implements Node.
func (n *MonoCameraNode) Outputs() []string { return []string{"out", "raw"} }

// StereoDepthNode computes depth from a left/right mono pair.
type StereoDepthNode struct {
	id NodeID

	// DepthAlign is the socket depth output is aligned to. SocketAuto leaves
	// the choice to the device (which aligns to the right camera).
	DepthAlign    CameraBoardSocket
	InitialConfig StereoDepthConfig
}

// ID implements Node.
func (n *StereoDepthNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *StereoDepthNode) Name() string { return "StereoDepth" }

// Inputs implements Node.
func (n *StereoDepthNode) Inputs() []string { return []string{"left", "right", "inputConfig"} }

// Outputs implements Node.
func (n *StereoDepthNode) Outputs() []string {
	return []string{
		"depth", "disparity", "confidenceMap",
		"rectifiedLeft", "rectifiedRight", "syncedLeft", "syncedRight",
		"outConfig",
	}
}

// IMUNode streams inertial samples.
type IMUNode struct {
	id NodeID
}

// ID implements Node.
func (n *IMUNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *IMUNode) Name() string { return "IMU" }

// Inputs implements Node.
func (n *IMUNode) Inputs() []string { return nil }

// Outputs implements Node.
func (n *IMUNode) Outputs() []string { return []string{"out"} }

// XLinkOutNode carries one device stream to the host under StreamName.
type XLinkOutNode struct {
	id         NodeID
	StreamName string
}

// ID implements Node.
func (n *XLinkOutNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *XLinkOutNode) Name() string { return "XLinkOut" }

// Inputs implements Node.
func (n *XLinkOutNode) Inputs() []string { return []string{"in"} }

// Outputs implements Node.
func (n *XLinkOutNode) Outputs() []string { return nil }

// XLinkInNode carries a host stream named StreamName onto the device.
type XLinkInNode struct {
	id         NodeID
	StreamName string
}

// ID implements Node.
func (n *XLinkInNode) ID() NodeID { return n.id }

// Name implements Node.
func (n *XLinkInNode) Name() string { return "XLinkIn" }

// Inputs implements Node.
func (n *XLinkInNode) Inputs() []string { return nil }

// Outputs implements Node.
func (n *XLinkInNode) Outputs() []string { return []string{"out"} }
