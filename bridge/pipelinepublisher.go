// Package bridge connects a device pipeline to ROS. It walks the pipeline
// graph once: every stream leaving the device through an XLinkOut node gets
// a queue-draining publisher with the right converter and calibration
// record, and every reconfigurable node gets a parameter server pushing
// configuration back onto the device.
package bridge

import (
	"context"
	"sort"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/ros"
)

const (
	outputQueueSize = 30

	// Depth and confidence calibration is published at the stereo core's
	// working resolution, not the sensor resolution.
	depthInfoWidth  = 1280
	depthInfoHeight = 720

	// Stereo pair optics: focal length in pixels, baseline in centimeters,
	// and the usable depth range.
	disparityFocal    = 880
	disparityBaseline = 7.5
	disparityMinDepth = 20
	disparityMaxDepth = 2000

	stereoConfigStream = "stereoConfig"
)

func cameraControlStream(socket dai.CameraBoardSocket) string {
	return "control_" + socket.String()
}

// An Option configures a PipelinePublisher.
type Option func(*PipelinePublisher)

// WithFrameNames replaces the socket→frame-name table.
func WithFrameNames(names map[dai.CameraBoardSocket]string) Option {
	return func(pp *PipelinePublisher) {
		pp.frameNames = names
	}
}

// WithFramePrefix replaces the default "dai_<serial>" frame prefix.
func WithFramePrefix(prefix string) Option {
	return func(pp *PipelinePublisher) {
		pp.framePrefix = prefix
	}
}

// WithQueueSize sets the host-side depth of every opened device stream.
func WithQueueSize(n int) Option {
	return func(pp *PipelinePublisher) {
		pp.queueSize = n
	}
}

type configServer interface {
	Close() error
}

// A PipelinePublisher owns every publisher and configuration server built
// for one device pipeline.
type PipelinePublisher struct {
	client *ros.Client
	device dai.Device
	logger golog.Logger

	frameNames  map[dai.CameraBoardSocket]string
	framePrefix string
	queueSize   int

	calib dai.CalibrationHandler

	cancelCtx context.Context
	cancel    func()

	publishers []streamPublisher
	servers    []configServer
	infoPubs   map[string]*ros.Publisher
}

// NewPipelinePublisher starts the pipeline on the device and maps it onto
// ROS. If the device is already running a pipeline, configuration inputs
// and servers are skipped with a warning and only stream publishers
// attach. Unmappable streams warn and are skipped; the only hard failures
// are reading calibration and starting the pipeline.
func NewPipelinePublisher(
	client *ros.Client,
	device dai.Device,
	pipeline *dai.Pipeline,
	logger golog.Logger,
	opts ...Option,
) (*PipelinePublisher, error) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	pp := &PipelinePublisher{
		client:      client,
		device:      device,
		logger:      logger,
		frameNames:  DefaultFrameNames(),
		framePrefix: "dai_" + device.MxID(),
		queueSize:   outputQueueSize,
		cancelCtx:   cancelCtx,
		cancel:      cancel,
		infoPubs:    make(map[string]*ros.Publisher),
	}
	for _, opt := range opts {
		opt(pp)
	}

	calib, err := device.ReadCalibration()
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "cannot read device calibration")
	}
	pp.calib = calib

	if err := pp.buildFromPipeline(pipeline); err != nil {
		return nil, multierr.Combine(err, pp.Close())
	}
	for _, pub := range pp.publishers {
		pub.Start()
	}
	return pp, nil
}

func (pp *PipelinePublisher) buildFromPipeline(p *dai.Pipeline) error {
	if pp.device.IsPipelineRunning() {
		pp.logger.Warnw("pipeline already running; configuration servers will not be attached",
			"device", pp.device.MxID())
	} else {
		for _, node := range p.Nodes() {
			pp.injectConfigInput(p, node)
		}
		if err := pp.device.StartPipeline(p); err != nil {
			return errors.Wrap(err, "cannot start pipeline")
		}
		for _, node := range p.Nodes() {
			pp.attachConfigServer(node)
		}
	}

	for _, node := range p.Nodes() {
		xlinkOut, ok := node.(*dai.XLinkOutNode)
		if !ok {
			continue
		}
		for _, conn := range p.InboundTo(xlinkOut.ID()) {
			pp.mapOutputStream(p, xlinkOut, conn)
		}
	}
	return nil
}

// injectConfigInput links a host-fed configuration stream to a
// reconfigurable node, unless the pipeline already feeds that input.
func (pp *PipelinePublisher) injectConfigInput(p *dai.Pipeline, node dai.Node) {
	switch n := node.(type) {
	case *dai.StereoDepthNode:
		pp.ensureInput(p, n.ID(), "inputConfig", stereoConfigStream)
	case *dai.ColorCameraNode:
		pp.ensureInput(p, n.ID(), "inputControl", cameraControlStream(n.Socket))
	case *dai.MonoCameraNode:
		pp.ensureInput(p, n.ID(), "inputControl", cameraControlStream(n.Socket))
	}
}

func (pp *PipelinePublisher) ensureInput(p *dai.Pipeline, id dai.NodeID, input, stream string) {
	for _, conn := range p.InboundTo(id) {
		if conn.InputName == input {
			return
		}
	}
	xin := p.AddXLinkIn(stream)
	if err := p.Link(xin.ID(), "out", id, input); err != nil {
		pp.logger.Warnw("cannot inject configuration input", "stream", stream, "error", err)
	}
}

func (pp *PipelinePublisher) attachConfigServer(node dai.Node) {
	switch n := node.(type) {
	case *dai.StereoDepthNode:
		server, err := newStereoConfigServer(pp.cancelCtx, pp.client, pp.device, n, pp.logger)
		if err != nil {
			pp.logger.Warnw("cannot attach stereo configuration server", "error", err)
			return
		}
		pp.servers = append(pp.servers, server)
	case *dai.ColorCameraNode:
		pp.attachCameraServer(n.Socket)
	case *dai.MonoCameraNode:
		pp.attachCameraServer(n.Socket)
	}
}

func (pp *PipelinePublisher) attachCameraServer(socket dai.CameraBoardSocket) {
	namespace := socket.String()
	if socket == dai.SocketRGB {
		namespace = "color"
	}
	server, err := newCameraConfigServer(
		pp.cancelCtx, pp.client, pp.device, socket, namespace, pp.prefixed(socket.String()), pp.logger)
	if err != nil {
		pp.logger.Warnw("cannot attach camera configuration server", "camera", socket, "error", err)
		return
	}
	pp.servers = append(pp.servers, server)
}

// mapOutputStream attaches a publisher for one connection into an XLinkOut.
// The producer kind consumes the stream as soon as it matches: a matched
// kind that does not understand the output port warns and produces no
// publisher, and only an unrecognized kind falls through.
func (pp *PipelinePublisher) mapOutputStream(p *dai.Pipeline, xlinkOut *dai.XLinkOutNode, conn dai.Connection) {
	producer := p.Node(conn.OutputID)
	if producer == nil {
		pp.logger.Warnw("stream has no producer node", "stream", xlinkOut.StreamName)
		return
	}
	handled := false
	switch n := producer.(type) {
	case *dai.ColorCameraNode:
		handled = pp.mapColorCamera(xlinkOut, n, conn.OutputName)
	case *dai.IMUNode:
		handled = pp.mapIMU(xlinkOut)
	case *dai.StereoDepthNode:
		handled = pp.mapStereoDepth(p, xlinkOut, n, conn.OutputName)
	case *dai.MonoCameraNode:
		handled = pp.mapMonoCamera(xlinkOut, n)
	}
	if !handled {
		pp.logger.Warnw("could not generate publisher",
			"stream", xlinkOut.StreamName, "node", producer.Name(), "output", conn.OutputName)
	}
}

func (pp *PipelinePublisher) openQueue(name string) (dai.DataOutputQueue, bool) {
	queue, err := pp.device.OutputQueue(name, pp.queueSize, false)
	if err != nil {
		pp.logger.Warnw("cannot open device stream", "stream", name, "error", err)
		return nil, false
	}
	return queue, true
}

func (pp *PipelinePublisher) mapStereoDepth(
	p *dai.Pipeline,
	xlinkOut *dai.XLinkOutNode,
	stereo *dai.StereoDepthNode,
	output string,
) bool {
	queue, ok := pp.openQueue(xlinkOut.StreamName)
	if !ok {
		return true
	}
	align := stereo.DepthAlign
	if align == dai.SocketAuto {
		align = dai.SocketRight
	}

	switch output {
	case "depth", "confidenceMap":
		info, err := CameraInfoFor(pp.calib, align, depthInfoWidth, depthInfoHeight)
		if err != nil {
			pp.logger.Warnw("cannot build camera info", "camera", align, "error", err)
			return true
		}
		topic := "stereo/depth"
		if output == "confidenceMap" {
			topic = "stereo/confidenceMap"
		}
		conv := NewImageConverter(pp.frameName(align))
		addStream(pp, queue, topic, ros.ImageType, conv.ToRosMsgs, "stereo", &info)
	case "disparity":
		info, err := CameraInfoFor(pp.calib, align, depthInfoWidth, depthInfoHeight)
		if err != nil {
			pp.logger.Warnw("cannot build camera info", "camera", align, "error", err)
			return true
		}
		conv := NewDisparityConverter(pp.frameName(align),
			disparityFocal, disparityBaseline, disparityMinDepth, disparityMaxDepth)
		addStream(pp, queue, "stereo/disparity", ros.DisparityImageType, conv.ToRosMsgs, "stereo", &info)
	case "rectifiedLeft", "rectifiedRight", "syncedLeft", "syncedRight":
		side, sideSocket := "right", dai.SocketRight
		if output == "rectifiedLeft" || output == "syncedLeft" {
			side, sideSocket = "left", dai.SocketLeft
		}
		mono := monoFeeding(p, stereo, side)
		if mono == nil {
			pp.logger.Warnw("could not get input source for stereo side", "side", side)
			return true
		}
		info, err := CameraInfoFor(pp.calib, mono.Socket, mono.ResolutionWidth, mono.ResolutionHeight)
		if err != nil {
			pp.logger.Warnw("cannot build camera info", "camera", mono.Socket, "error", err)
			return true
		}
		topic := side + "/image_raw"
		if output == "rectifiedLeft" || output == "rectifiedRight" {
			topic = side + "/image_rect"
		}
		conv := NewImageConverter(pp.frameName(sideSocket))
		addStream(pp, queue, topic, ros.ImageType, conv.ToRosMsgs, side, &info)
	default:
		pp.logger.Warnw("don't understand stereo depth output", "output", output)
	}
	return true
}

// monoFeeding finds the mono camera wired into one side of a stereo node.
func monoFeeding(p *dai.Pipeline, stereo *dai.StereoDepthNode, side string) *dai.MonoCameraNode {
	var mono *dai.MonoCameraNode
	for _, conn := range p.InboundTo(stereo.ID()) {
		if conn.InputName != side {
			continue
		}
		mono, _ = p.Node(conn.OutputID).(*dai.MonoCameraNode)
	}
	return mono
}

func (pp *PipelinePublisher) mapIMU(xlinkOut *dai.XLinkOutNode) bool {
	queue, ok := pp.openQueue(xlinkOut.StreamName)
	if !ok {
		return true
	}
	conv := NewImuConverter(pp.prefixed("imu_frame"))
	addStream(pp, queue, "imu", ros.ImuType, conv.ToRosMsgs, "", nil)
	return true
}

func (pp *PipelinePublisher) mapColorCamera(xlinkOut *dai.XLinkOutNode, node *dai.ColorCameraNode, output string) bool {
	queue, ok := pp.openQueue(xlinkOut.StreamName)
	if !ok {
		return true
	}
	width, height := 1280, 720
	switch output {
	case "video":
		width, height = node.VideoWidth, node.VideoHeight
	case "still":
		width, height = node.StillWidth, node.StillHeight
	case "preview":
		width, height = node.PreviewWidth, node.PreviewHeight
	case "isp":
		width, height = node.IspWidth, node.IspHeight
	default:
		pp.logger.Warnw("don't understand color camera output; using default image size for intrinsics",
			"output", output)
	}
	info, err := CameraInfoFor(pp.calib, node.Socket, width, height)
	if err != nil {
		pp.logger.Warnw("cannot build camera info", "camera", node.Socket, "error", err)
		return true
	}
	conv := NewImageConverter(pp.frameName(node.Socket))
	addStream(pp, queue, "color/image", ros.ImageType, conv.ToRosMsgs, "color", &info)
	return true
}

func (pp *PipelinePublisher) mapMonoCamera(xlinkOut *dai.XLinkOutNode, node *dai.MonoCameraNode) bool {
	queue, ok := pp.openQueue(xlinkOut.StreamName)
	if !ok {
		return true
	}
	info, err := CameraInfoFor(pp.calib, node.Socket, node.ResolutionWidth, node.ResolutionHeight)
	if err != nil {
		pp.logger.Warnw("cannot build camera info", "camera", node.Socket, "error", err)
		return true
	}
	frame := pp.frameName(node.Socket)
	conv := NewImageConverter(frame)
	addStream(pp, queue, frame+"/image", ros.ImageType, conv.ToRosMsgs, frame, &info)
	return true
}

// infoPublisher returns the camera-info publisher for a namespace,
// advertising it on first use. Streams sharing a namespace share it.
func (pp *PipelinePublisher) infoPublisher(namespace string) (*ros.Publisher, error) {
	if pub, ok := pp.infoPubs[namespace]; ok {
		return pub, nil
	}
	pub, err := pp.client.Advertise(namespace+"/camera_info", ros.CameraInfoType)
	if err != nil {
		return nil, err
	}
	pp.infoPubs[namespace] = pub
	return pub, nil
}

// frameName returns the full coordinate-frame label of a socket. A socket
// missing from the table degrades to the bare prefix.
func (pp *PipelinePublisher) frameName(socket dai.CameraBoardSocket) string {
	return pp.prefixed(pp.frameNames[socket])
}

func (pp *PipelinePublisher) prefixed(name string) string {
	if pp.framePrefix == "" || name == "" {
		return pp.framePrefix + name
	}
	return pp.framePrefix + "_" + name
}

// Topics returns the stream topics with a publisher attached, sorted.
func (pp *PipelinePublisher) Topics() []string {
	out := make([]string, 0, len(pp.publishers))
	for _, pub := range pp.publishers {
		out = append(out, pub.Topic())
	}
	sort.Strings(out)
	return out
}

// Close stops every publisher and tears down every configuration server.
func (pp *PipelinePublisher) Close() error {
	pp.cancel()
	err := closeAll(pp.publishers)
	err = multierr.Combine(err, closeAll(pp.servers))
	for _, pub := range pp.infoPubs {
		err = multierr.Combine(err, pub.Close())
	}
	return err
}
