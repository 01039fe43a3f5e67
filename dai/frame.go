package dai

import "time"

// ImgType is the pixel layout of an ImgFrame.
type ImgType uint8

// Frame layouts produced by this device generation.
const (
	ImgTypeRaw8 ImgType = iota
	ImgTypeRaw16
	ImgTypeBGR888i
	ImgTypeRGB888i
	ImgTypeNV12
)

func (t ImgType) String() string {
	switch t {
	case ImgTypeRaw8:
		return "RAW8"
	case ImgTypeRaw16:
		return "RAW16"
	case ImgTypeBGR888i:
		return "BGR888i"
	case ImgTypeRGB888i:
		return "RGB888i"
	case ImgTypeNV12:
		return "NV12"
	}
	return "unknown"
}

// An ImgFrame is one image record from a device stream.
type ImgFrame struct {
	Width     int
	Height    int
	Type      ImgType
	Data      []byte
	Timestamp time.Time
	Sequence  int64
	// Instance is the socket of the sensor the frame originated from.
	Instance CameraBoardSocket
}

func (*ImgFrame) isData() {}
