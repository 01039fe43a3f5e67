package bridge

import (
	"context"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/ros"
)

// A ConvertFunc translates one device record into zero or more messages.
// It must be side-effect free; one publisher calls it from one goroutine.
type ConvertFunc[In dai.Data, Out ros.Stamped] func(In) ([]Out, error)

// A Publisher drains one device output queue through a converter onto one
// advertised topic. When a calibration record is attached, it republishes
// that record on a shared camera-info topic with each message's header.
//
// Conversion and publish failures drop the record and keep draining; only
// queue close or Close ends the drain loop.
type Publisher[In dai.Data, Out ros.Stamped] struct {
	queue   dai.DataOutputQueue
	topic   *ros.Publisher
	convert ConvertFunc[In, Out]
	logger  golog.Logger

	// infoPub is shared with other publishers in the same namespace and is
	// not closed here.
	infoPub    *ros.Publisher
	cameraInfo ros.CameraInfo

	cancelCtx               context.Context
	cancel                  func()
	started                 atomic.Bool
	activeBackgroundWorkers sync.WaitGroup
}

// NewPublisher advertises the topic and binds it to the queue. A nil
// infoPub attaches no calibration record. The drain loop does not run
// until Start.
func NewPublisher[In dai.Data, Out ros.Stamped](
	client *ros.Client,
	queue dai.DataOutputQueue,
	topic, msgType string,
	convert ConvertFunc[In, Out],
	infoPub *ros.Publisher,
	cameraInfo ros.CameraInfo,
	logger golog.Logger,
) (*Publisher[In, Out], error) {
	topicPub, err := client.Advertise(topic, msgType)
	if err != nil {
		return nil, err
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Publisher[In, Out]{
		queue:      queue,
		topic:      topicPub,
		convert:    convert,
		logger:     logger,
		infoPub:    infoPub,
		cameraInfo: cameraInfo,
		cancelCtx:  cancelCtx,
		cancel:     cancel,
	}, nil
}

// Topic returns the advertised topic name.
func (p *Publisher[In, Out]) Topic() string {
	return p.topic.Topic()
}

// Start begins draining the queue. Further calls are no-ops.
func (p *Publisher[In, Out]) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(p.drain, p.activeBackgroundWorkers.Done)
}

func (p *Publisher[In, Out]) drain() {
	for {
		data, err := p.queue.Next(p.cancelCtx)
		if err != nil {
			if p.cancelCtx.Err() == nil && !errors.Is(err, dai.ErrQueueClosed) {
				p.logger.Errorw("device stream failed", "stream", p.queue.Name(), "error", err)
			}
			return
		}
		in, ok := data.(In)
		if !ok {
			p.logger.Warnw("unexpected record type on device stream",
				"stream", p.queue.Name(), "record", data)
			continue
		}
		msgs, err := p.convert(in)
		if err != nil {
			p.logger.Warnw("dropping record",
				"stream", p.queue.Name(), "topic", p.topic.Topic(), "error", err)
			continue
		}
		for _, msg := range msgs {
			if err := p.topic.Publish(msg); err != nil {
				p.logger.Warnw("cannot publish", "topic", p.topic.Topic(), "error", err)
				continue
			}
			if p.infoPub != nil {
				info := p.cameraInfo
				info.Header = msg.MsgHeader()
				if err := p.infoPub.Publish(info); err != nil {
					p.logger.Warnw("cannot publish camera info",
						"topic", p.infoPub.Topic(), "error", err)
				}
			}
		}
	}
}

// Close stops the drain loop and unadvertises the topic.
func (p *Publisher[In, Out]) Close() error {
	p.cancel()
	p.activeBackgroundWorkers.Wait()
	return p.topic.Close()
}

// streamPublisher is what the pipeline publisher holds per mapped stream;
// the generic instantiations all satisfy it.
type streamPublisher interface {
	Start()
	Topic() string
	Close() error
}

// addStream builds a publisher for one mapped stream and registers it with
// the pipeline publisher. Failures are warned and swallowed; the stream
// simply gets no publisher.
func addStream[In dai.Data, Out ros.Stamped](
	pp *PipelinePublisher,
	queue dai.DataOutputQueue,
	topic, msgType string,
	convert ConvertFunc[In, Out],
	infoNamespace string,
	cameraInfo *ros.CameraInfo,
) {
	var infoPub *ros.Publisher
	var info ros.CameraInfo
	if cameraInfo != nil {
		var err error
		infoPub, err = pp.infoPublisher(infoNamespace)
		if err != nil {
			pp.logger.Warnw("cannot advertise camera info",
				"namespace", infoNamespace, "topic", topic, "error", err)
			return
		}
		info = *cameraInfo
	}
	pub, err := NewPublisher(pp.client, queue, topic, msgType, convert, infoPub, info, pp.logger)
	if err != nil {
		pp.logger.Warnw("cannot advertise stream",
			"stream", queue.Name(), "topic", topic, "error", err)
		return
	}
	pp.publishers = append(pp.publishers, pub)
}

// closeAll closes a set of owned resources back to front.
func closeAll[T interface{ Close() error }](items []T) error {
	var err error
	for i := len(items) - 1; i >= 0; i-- {
		err = multierr.Combine(err, items[i].Close())
	}
	return err
}
