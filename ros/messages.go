package ros

import "time"

// Message and service type names used on the bridge.
const (
	ImageType            = "sensor_msgs/Image"
	CameraInfoType       = "sensor_msgs/CameraInfo"
	DisparityImageType   = "stereo_msgs/DisparityImage"
	ImuType              = "sensor_msgs/Imu"
	RegionOfInterestType = "sensor_msgs/RegionOfInterest"
	ReconfigureConfig    = "dynamic_reconfigure/Config"
	ReconfigureService   = "dynamic_reconfigure/Reconfigure"
)

// Time is a ROS time value.
type Time struct {
	Secs  uint32 `json:"secs"`
	Nsecs uint32 `json:"nsecs"`
}

// NewTime converts a Go time.
func NewTime(t time.Time) Time {
	return Time{Secs: uint32(t.Unix()), Nsecs: uint32(t.Nanosecond())}
}

// Header is a std_msgs/Header.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Stamped is implemented by every message carrying a std_msgs/Header.
type Stamped interface {
	MsgHeader() Header
}

// Vector3 is a geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a geometry_msgs/Quaternion.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Image is a sensor_msgs/Image. Data rides the wire base64-encoded, which
// is how rosbridge carries byte arrays in JSON.
type Image struct {
	Header      Header `json:"header"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
	Encoding    string `json:"encoding"`
	IsBigendian uint8  `json:"is_bigendian"`
	Step        uint32 `json:"step"`
	Data        []byte `json:"data"`
}

// MsgHeader implements Stamped.
func (m Image) MsgHeader() Header { return m.Header }

// RegionOfInterest is a sensor_msgs/RegionOfInterest.
type RegionOfInterest struct {
	XOffset   uint32 `json:"x_offset"`
	YOffset   uint32 `json:"y_offset"`
	Height    uint32 `json:"height"`
	Width     uint32 `json:"width"`
	DoRectify bool   `json:"do_rectify"`
}

// CameraInfo is a sensor_msgs/CameraInfo.
type CameraInfo struct {
	Header          Header           `json:"header"`
	Height          uint32           `json:"height"`
	Width           uint32           `json:"width"`
	DistortionModel string           `json:"distortion_model"`
	D               []float64        `json:"D"`
	K               [9]float64       `json:"K"`
	R               [9]float64       `json:"R"`
	P               [12]float64      `json:"P"`
	BinningX        uint32           `json:"binning_x"`
	BinningY        uint32           `json:"binning_y"`
	ROI             RegionOfInterest `json:"roi"`
}

// MsgHeader implements Stamped.
func (m CameraInfo) MsgHeader() Header { return m.Header }

// DisparityImage is a stereo_msgs/DisparityImage.
type DisparityImage struct {
	Header       Header           `json:"header"`
	Image        Image            `json:"image"`
	F            float64          `json:"f"`
	T            float64          `json:"T"`
	ValidWindow  RegionOfInterest `json:"valid_window"`
	MinDisparity float64          `json:"min_disparity"`
	MaxDisparity float64          `json:"max_disparity"`
	DeltaD       float64          `json:"delta_d"`
}

// MsgHeader implements Stamped.
func (m DisparityImage) MsgHeader() Header { return m.Header }

// Imu is a sensor_msgs/Imu.
type Imu struct {
	Header                       Header     `json:"header"`
	Orientation                  Quaternion `json:"orientation"`
	OrientationCovariance        [9]float64 `json:"orientation_covariance"`
	AngularVelocity              Vector3    `json:"angular_velocity"`
	AngularVelocityCovariance    [9]float64 `json:"angular_velocity_covariance"`
	LinearAcceleration           Vector3    `json:"linear_acceleration"`
	LinearAccelerationCovariance [9]float64 `json:"linear_acceleration_covariance"`
}

// MsgHeader implements Stamped.
func (m Imu) MsgHeader() Header { return m.Header }
