// Package fake implements an in-memory device for development and tests:
// output queues are fed by test code instead of a camera, and everything
// sent toward the device is recorded for inspection.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/oak-ros/daibridge/dai"
)

const defaultQueueSize = 30

// Device is an in-memory dai.Device.
type Device struct {
	mxid  string
	calib *Calibration

	mu       sync.Mutex
	outputs  map[string]*outputQueue
	inputs   map[string]*inputQueue
	pipeline *dai.Pipeline
	running  bool
	closed   bool
}

// NewDevice returns a fake device with the given serial.
func NewDevice(mxid string) *Device {
	return &Device{
		mxid:    mxid,
		calib:   NewCalibration(),
		outputs: make(map[string]*outputQueue),
		inputs:  make(map[string]*inputQueue),
	}
}

// MxID implements dai.Device.
func (d *Device) MxID() string { return d.mxid }

// ReadCalibration implements dai.Device.
func (d *Device) ReadCalibration() (dai.CalibrationHandler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("device closed")
	}
	return d.calib, nil
}

// StartPipeline implements dai.Device. Starting a second pipeline errors.
func (d *Device) StartPipeline(p *dai.Pipeline) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("device closed")
	}
	if d.running {
		return errors.New("a pipeline is already running")
	}
	d.pipeline = p
	d.running = true
	return nil
}

// IsPipelineRunning implements dai.Device.
func (d *Device) IsPipelineRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// StartedPipeline returns the pipeline passed to StartPipeline, if any.
func (d *Device) StartedPipeline() *dai.Pipeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pipeline
}

// OutputQueue implements dai.Device. The first open of a stream fixes its
// size; the fake always drops the oldest record when full (a real device
// blocks device-side instead when the queue is blocking).
func (d *Device) OutputQueue(name string, maxSize int, blocking bool) (dai.DataOutputQueue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("device closed")
	}
	if maxSize <= 0 {
		return nil, errors.Errorf("queue %q needs a positive size", name)
	}
	q, ok := d.outputs[name]
	if !ok {
		q = newOutputQueue(name, maxSize)
		d.outputs[name] = q
	}
	return q, nil
}

// InputQueue implements dai.Device.
func (d *Device) InputQueue(name string) (dai.DataInputQueue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("device closed")
	}
	q, ok := d.inputs[name]
	if !ok {
		q = &inputQueue{name: name}
		d.inputs[name] = q
	}
	return q, nil
}

// Push feeds one record into the named output stream, creating it at the
// default size if the host has not opened it yet.
func (d *Device) Push(name string, data dai.Data) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	q, ok := d.outputs[name]
	if !ok {
		q = newOutputQueue(name, defaultQueueSize)
		d.outputs[name] = q
	}
	d.mu.Unlock()
	q.push(data)
}

// Sent returns the records pushed to the named input stream so far.
func (d *Device) Sent(name string) []dai.Data {
	d.mu.Lock()
	q, ok := d.inputs[name]
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return q.sentCopy()
}

// Close implements dai.Device. All open output queues end with
// dai.ErrQueueClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.running = false
	for _, q := range d.outputs {
		q.close()
	}
	for _, q := range d.inputs {
		q.close()
	}
	return nil
}

type outputQueue struct {
	name string

	mu     sync.Mutex
	ch     chan dai.Data
	closed bool
}

func newOutputQueue(name string, maxSize int) *outputQueue {
	return &outputQueue{name: name, ch: make(chan dai.Data, maxSize)}
}

// Name implements dai.DataOutputQueue.
func (q *outputQueue) Name() string { return q.name }

// Next implements dai.DataOutputQueue.
func (q *outputQueue) Next(ctx context.Context) (dai.Data, error) {
	select {
	case d, ok := <-q.ch:
		if !ok {
			return nil, dai.ErrQueueClosed
		}
		return d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *outputQueue) push(d dai.Data) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- d:
			return
		default:
		}
		// full: drop the oldest record
		select {
		case <-q.ch:
		default:
		}
	}
}

func (q *outputQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

type inputQueue struct {
	name string

	mu     sync.Mutex
	sent   []dai.Data
	closed bool
}

// Name implements dai.DataInputQueue.
func (q *inputQueue) Name() string { return q.name }

// Send implements dai.DataInputQueue by recording the value.
func (q *inputQueue) Send(ctx context.Context, d dai.Data) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return dai.ErrQueueClosed
	}
	q.sent = append(q.sent, d)
	return nil
}

func (q *inputQueue) sentCopy() []dai.Data {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]dai.Data, len(q.sent))
	copy(out, q.sent)
	return out
}

func (q *inputQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
