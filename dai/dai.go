// Package dai models the device side of a depth-camera deployment: the
// pipeline of processing nodes that runs on the device, the connection graph
// between those nodes, and the queue/calibration interfaces a connected
// device exposes to the host.
//
// The transport that moves frames between device and host is not implemented
// here; it belongs to the device SDK. Implementations of Device (see the fake
// package for an in-memory one) own all queue depth, blocking, and link-loss
// semantics.
package dai

import (
	"context"

	"github.com/pkg/errors"
)

// ErrQueueClosed is returned by queue operations after the queue or its
// device has been closed.
var ErrQueueClosed = errors.New("queue closed")

// NodeID identifies a node within a single pipeline.
type NodeID int64

// Data is implemented by every record type that can travel a device queue.
type Data interface {
	isData()
}

// A Device is a connected depth camera running (or about to run) a pipeline.
type Device interface {
	// OutputQueue opens the host-side end of the device stream with the given
	// name. A non-blocking queue drops the oldest record when full.
	OutputQueue(name string, maxSize int, blocking bool) (DataOutputQueue, error)

	// InputQueue opens a host→device control stream with the given name.
	InputQueue(name string) (DataInputQueue, error)

	// ReadCalibration returns the calibration stored on the device.
	ReadCalibration() (CalibrationHandler, error)

	// StartPipeline uploads and starts the given pipeline.
	StartPipeline(p *Pipeline) error

	// IsPipelineRunning reports whether a pipeline has been started.
	IsPipelineRunning() bool

	// MxID returns the device serial.
	MxID() string

	Close() error
}

// DataOutputQueue is the host-side end of a device→host stream.
type DataOutputQueue interface {
	// Next blocks until a record is available, the queue closes, or the
	// context ends.
	Next(ctx context.Context) (Data, error)
	Name() string
}

// DataInputQueue is the host-side end of a host→device control stream.
type DataInputQueue interface {
	Send(ctx context.Context, d Data) error
	Name() string
}

// Intrinsics are pinhole camera parameters scaled to a concrete resolution.
type Intrinsics struct {
	Width      int
	Height     int
	Fx         float64
	Fy         float64
	Ppx        float64
	Ppy        float64
	Distortion []float64
}

// CalibrationHandler reads per-socket calibration off a device.
type CalibrationHandler interface {
	// CameraIntrinsics returns the socket's intrinsics scaled to the given
	// resolution.
	CameraIntrinsics(socket CameraBoardSocket, width, height int) (Intrinsics, error)
}
