package dai

import "time"

// Vec3 is a three-axis sample.
type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Quaternion is a rotation sample in the device's i/j/k/real layout.
type Quaternion struct {
	I    float64
	J    float64
	K    float64
	Real float64
}

// An IMUPacket is one synchronized set of inertial samples.
type IMUPacket struct {
	Accelerometer Vec3
	Gyroscope     Vec3
	Rotation      Quaternion
	Timestamp     time.Time
	Sequence      int64
}

// IMUData is one batch of inertial packets from a device stream.
type IMUData struct {
	Packets []IMUPacket
}

func (*IMUData) isData() {}
