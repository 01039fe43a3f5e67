package bridge

import (
	"sort"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"github.com/oak-ros/daibridge/dai"
	"github.com/oak-ros/daibridge/dai/fake"
	"github.com/oak-ros/daibridge/ros"
	"github.com/oak-ros/daibridge/ros/rostest"
)

type testPipeline struct {
	p      *dai.Pipeline
	color  *dai.ColorCameraNode
	left   *dai.MonoCameraNode
	right  *dai.MonoCameraNode
	stereo *dai.StereoDepthNode
}

// fullTestPipeline wires the usual OAK-D deployment: a color camera, a
// stereo pair with five tapped outputs, and an IMU.
func fullTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	p := dai.NewPipeline()
	color := p.AddColorCamera(dai.SocketRGB)
	left := p.AddMonoCamera(dai.SocketLeft)
	right := p.AddMonoCamera(dai.SocketRight)
	stereo := p.AddStereoDepth()
	imu := p.AddIMU()

	test.That(t, p.Link(left.ID(), "out", stereo.ID(), "left"), test.ShouldBeNil)
	test.That(t, p.Link(right.ID(), "out", stereo.ID(), "right"), test.ShouldBeNil)

	for _, tap := range []struct {
		stream string
		id     dai.NodeID
		port   string
	}{
		{"color", color.ID(), "video"},
		{"depth", stereo.ID(), "depth"},
		{"disparity", stereo.ID(), "disparity"},
		{"confidence", stereo.ID(), "confidenceMap"},
		{"rectifiedLeft", stereo.ID(), "rectifiedLeft"},
		{"syncedRight", stereo.ID(), "syncedRight"},
		{"imu", imu.ID(), "out"},
	} {
		xout := p.AddXLinkOut(tap.stream)
		test.That(t, p.Link(tap.id, tap.port, xout.ID(), "in"), test.ShouldBeNil)
	}
	return &testPipeline{p: p, color: color, left: left, right: right, stereo: stereo}
}

// configInputStream returns the stream name of the XLinkIn feeding the
// given input port, or "".
func configInputStream(p *dai.Pipeline, id dai.NodeID, input string) string {
	for _, conn := range p.InboundTo(id) {
		if conn.InputName != input {
			continue
		}
		if xin, ok := p.Node(conn.OutputID).(*dai.XLinkInNode); ok {
			return xin.StreamName
		}
	}
	return ""
}

func intParams(msg ros.ConfigMsg) map[string]int {
	out := make(map[string]int, len(msg.Ints))
	for _, p := range msg.Ints {
		out[p.Name] = p.Value
	}
	return out
}

func boolParams(msg ros.ConfigMsg) map[string]bool {
	out := make(map[string]bool, len(msg.Bools))
	for _, p := range msg.Bools {
		out[p.Name] = p.Value
	}
	return out
}

func recordedSet(msgs []rostest.Message, field func(rostest.Message) string) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, field(msg))
	}
	sort.Strings(out)
	return out
}

func TestPipelinePublisherTopics(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})
	tp := fullTestPipeline(t)

	pp, err := NewPipelinePublisher(client, device, tp.p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	test.That(t, pp.Topics(), test.ShouldResemble, []string{
		"color/image",
		"imu",
		"left/image_rect",
		"right/image_raw",
		"stereo/confidenceMap",
		"stereo/depth",
		"stereo/disparity",
	})

	test.That(t, device.IsPipelineRunning(), test.ShouldBeTrue)
	test.That(t, device.StartedPipeline(), test.ShouldEqual, tp.p)

	// each reconfigurable node got a host-fed configuration input
	test.That(t, configInputStream(tp.p, tp.stereo.ID(), "inputConfig"), test.ShouldEqual, "stereoConfig")
	test.That(t, configInputStream(tp.p, tp.color.ID(), "inputControl"), test.ShouldEqual, "control_rgb")
	test.That(t, configInputStream(tp.p, tp.left.ID(), "inputControl"), test.ShouldEqual, "control_left")
	test.That(t, configInputStream(tp.p, tp.right.ID(), "inputControl"), test.ShouldEqual, "control_right")

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.ByOp("advertise")), test.ShouldEqual, 15)
		test.That(tb, len(srv.ByOp("subscribe")), test.ShouldEqual, 6)
		test.That(tb, len(srv.ByOp("advertise_service")), test.ShouldEqual, 4)
	})

	topic := func(m rostest.Message) string { return m.Topic }
	service := func(m rostest.Message) string { return m.Service }
	test.That(t, recordedSet(srv.ByOp("advertise"), topic), test.ShouldResemble, []string{
		"color/camera_info",
		"color/image",
		"color/parameter_updates",
		"imu",
		"left/camera_info",
		"left/image_rect",
		"left/parameter_updates",
		"right/camera_info",
		"right/image_raw",
		"right/parameter_updates",
		"stereo/camera_info",
		"stereo/confidenceMap",
		"stereo/depth",
		"stereo/disparity",
		"stereo/parameter_updates",
	})
	test.That(t, recordedSet(srv.ByOp("subscribe"), topic), test.ShouldResemble, []string{
		"oak_left/ae_bbox",
		"oak_left/af_bbox",
		"oak_rgb/ae_bbox",
		"oak_rgb/af_bbox",
		"oak_right/ae_bbox",
		"oak_right/af_bbox",
	})
	test.That(t, recordedSet(srv.ByOp("advertise_service"), service), test.ShouldResemble, []string{
		"color/set_parameters",
		"left/set_parameters",
		"right/set_parameters",
		"stereo/set_parameters",
	})
}

func TestPipelinePublisherStreams(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})
	tp := fullTestPipeline(t)

	pp, err := NewPipelinePublisher(client, device, tp.p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	device.Push("depth", &dai.ImgFrame{
		Width: 1280, Height: 720,
		Type:      dai.ImgTypeRaw16,
		Timestamp: time.Unix(50, 0),
		Sequence:  5,
	})
	device.Push("disparity", &dai.ImgFrame{
		Width: 1280, Height: 720,
		Type:      dai.ImgTypeRaw8,
		Timestamp: time.Unix(51, 0),
		Sequence:  4,
	})
	device.Push("color", &dai.ImgFrame{
		Width: 1920, Height: 1080,
		Type:      dai.ImgTypeNV12,
		Timestamp: time.Unix(10, 0),
		Sequence:  1,
	})
	device.Push("rectifiedLeft", &dai.ImgFrame{
		Width: 1280, Height: 720,
		Type:      dai.ImgTypeRaw8,
		Timestamp: time.Unix(52, 0),
		Sequence:  9,
	})
	device.Push("imu", &dai.IMUData{Packets: []dai.IMUPacket{{
		Rotation:  dai.Quaternion{Real: 1},
		Timestamp: time.Unix(53, 0),
		Sequence:  2,
	}}})

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("stereo/depth")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("stereo/disparity")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("color/image")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("left/image_rect")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("imu")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("stereo/camera_info")), test.ShouldEqual, 2)
		test.That(tb, len(srv.Published("color/camera_info")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("left/camera_info")), test.ShouldEqual, 1)
	})

	// depth aligns to the right camera when the node leaves it to the device
	var depth ros.Image
	test.That(t, srv.Published("stereo/depth")[0].UnmarshalMsg(&depth), test.ShouldBeNil)
	test.That(t, depth.Header, test.ShouldResemble, ros.Header{
		Seq:     5,
		Stamp:   ros.Time{Secs: 50},
		FrameID: "oak_right_camera_optical_frame",
	})
	test.That(t, depth.Encoding, test.ShouldEqual, "16UC1")
	test.That(t, depth.Step, test.ShouldEqual, 2560)

	// depth and disparity share the stereo calibration topic
	for _, msg := range srv.Published("stereo/camera_info") {
		var info ros.CameraInfo
		test.That(t, msg.UnmarshalMsg(&info), test.ShouldBeNil)
		test.That(t, info.Header.FrameID, test.ShouldEqual, "oak_right_camera_optical_frame")
		test.That(t, info.Width, test.ShouldEqual, 1280)
		test.That(t, info.Height, test.ShouldEqual, 720)
		test.That(t, info.K[0], test.ShouldAlmostEqual, 873.5)
	}

	var disp ros.DisparityImage
	test.That(t, srv.Published("stereo/disparity")[0].UnmarshalMsg(&disp), test.ShouldBeNil)
	test.That(t, disp.F, test.ShouldEqual, 880)
	test.That(t, disp.T, test.ShouldAlmostEqual, 0.075)
	test.That(t, disp.Image.Header.FrameID, test.ShouldEqual, "oak_right_camera_optical_frame")

	// color intrinsics are scaled to the video port resolution
	var color ros.Image
	test.That(t, srv.Published("color/image")[0].UnmarshalMsg(&color), test.ShouldBeNil)
	test.That(t, color.Header.FrameID, test.ShouldEqual, "oak_rgb_camera_optical_frame")
	test.That(t, color.Encoding, test.ShouldEqual, "nv12")
	var colorInfo ros.CameraInfo
	test.That(t, srv.Published("color/camera_info")[0].UnmarshalMsg(&colorInfo), test.ShouldBeNil)
	test.That(t, colorInfo.Width, test.ShouldEqual, 1920)
	test.That(t, colorInfo.Height, test.ShouldEqual, 1080)
	test.That(t, colorInfo.K[0], test.ShouldAlmostEqual, 996.28*1.5)

	var rect ros.Image
	test.That(t, srv.Published("left/image_rect")[0].UnmarshalMsg(&rect), test.ShouldBeNil)
	test.That(t, rect.Header.FrameID, test.ShouldEqual, "oak_left_camera_optical_frame")
	var leftInfo ros.CameraInfo
	test.That(t, srv.Published("left/camera_info")[0].UnmarshalMsg(&leftInfo), test.ShouldBeNil)
	test.That(t, leftInfo.K[0], test.ShouldAlmostEqual, 871.25)

	var imu ros.Imu
	test.That(t, srv.Published("imu")[0].UnmarshalMsg(&imu), test.ShouldBeNil)
	test.That(t, imu.Header.FrameID, test.ShouldEqual, "oak_imu_frame")
	test.That(t, imu.Orientation.W, test.ShouldEqual, 1)
	test.That(t, srv.Published("imu/camera_info"), test.ShouldBeEmpty)
}

func TestPipelinePublisherMonoStream(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	left := p.AddMonoCamera(dai.SocketLeft)
	xout := p.AddXLinkOut("leftOut")
	test.That(t, p.Link(left.ID(), "out", xout.ID(), "in"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// a mono camera tapped directly publishes under its own frame name
	test.That(t, pp.Topics(), test.ShouldResemble, []string{"oak_left_camera_optical_frame/image"})

	device.Push("leftOut", &dai.ImgFrame{
		Width: 1280, Height: 720,
		Type:      dai.ImgTypeRaw8,
		Timestamp: time.Unix(60, 0),
		Sequence:  6,
	})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("oak_left_camera_optical_frame/image")), test.ShouldEqual, 1)
		test.That(tb, len(srv.Published("oak_left_camera_optical_frame/camera_info")), test.ShouldEqual, 1)
	})

	var img ros.Image
	test.That(t, srv.Published("oak_left_camera_optical_frame/image")[0].UnmarshalMsg(&img), test.ShouldBeNil)
	test.That(t, img.Header, test.ShouldResemble, ros.Header{
		Seq:     6,
		Stamp:   ros.Time{Secs: 60},
		FrameID: "oak_left_camera_optical_frame",
	})
	test.That(t, img.Encoding, test.ShouldEqual, "mono8")
	test.That(t, img.Step, test.ShouldEqual, 1280)

	// calibration follows the camera's own resolution
	var info ros.CameraInfo
	test.That(t, srv.Published("oak_left_camera_optical_frame/camera_info")[0].UnmarshalMsg(&info), test.ShouldBeNil)
	test.That(t, info.Header, test.ShouldResemble, img.Header)
	test.That(t, info.Width, test.ShouldEqual, 1280)
	test.That(t, info.Height, test.ShouldEqual, 720)
	test.That(t, info.K[0], test.ShouldAlmostEqual, 871.25)
}

func TestPipelinePublisherCameraControl(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	color := p.AddColorCamera(dai.SocketRGB)
	xout := p.AddXLinkOut("color")
	test.That(t, p.Link(color.ID(), "video", xout.ID(), "in"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// an autofocus bounding box becomes one control push carrying only the
	// autofocus region group, with lens bounds from the parameter state
	test.That(t, srv.Send(map[string]any{
		"op":    "publish",
		"topic": "oak_rgb/af_bbox",
		"msg":   ros.RegionOfInterest{XOffset: 10, YOffset: 20, Width: 30, Height: 40},
	}), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(device.Sent("control_rgb")), test.ShouldEqual, 1)
	})
	ctrl, ok := device.Sent("control_rgb")[0].(*dai.CameraControl)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ctrl.Commands(), test.ShouldResemble, []dai.CameraCommand{dai.CmdAutoFocusRegion})
	test.That(t, ctrl.AFRegion, test.ShouldResemble, dai.Region{X: 10, Y: 20, Width: 30, Height: 40})
	test.That(t, ctrl.AFLensMin, test.ShouldEqual, 0)
	test.That(t, ctrl.AFLensMax, test.ShouldEqual, 255)

	// the full parameter state is republished with the region folded in
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("color/parameter_updates")), test.ShouldEqual, 2)
	})
	var cfg ros.ConfigMsg
	test.That(t, srv.Published("color/parameter_updates")[1].UnmarshalMsg(&cfg), test.ShouldBeNil)
	ints := intParams(cfg)
	test.That(t, ints["autofocus_region_x"], test.ShouldEqual, 10)
	test.That(t, ints["autofocus_region_y"], test.ShouldEqual, 20)
	test.That(t, ints["autofocus_region_w"], test.ShouldEqual, 30)
	test.That(t, ints["autofocus_region_h"], test.ShouldEqual, 40)
	test.That(t, ints["sharpness"], test.ShouldEqual, 1)
	test.That(t, boolParams(cfg)["start_stream"], test.ShouldBeFalse)

	test.That(t, srv.Send(map[string]any{
		"op":    "publish",
		"topic": "oak_rgb/ae_bbox",
		"msg":   ros.RegionOfInterest{XOffset: 1, YOffset: 2, Width: 3, Height: 4},
	}), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(device.Sent("control_rgb")), test.ShouldEqual, 2)
	})
	ctrl, ok = device.Sent("control_rgb")[1].(*dai.CameraControl)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ctrl.Commands(), test.ShouldResemble, []dai.CameraCommand{dai.CmdAutoExposureRegion})
	test.That(t, ctrl.AERegion, test.ShouldResemble, dai.Region{X: 1, Y: 2, Width: 3, Height: 4})

	// start_stream over the service: true starts the sensor, false stops it
	test.That(t, srv.Send(map[string]any{
		"op":      "call_service",
		"id":      "call-1",
		"service": "color/set_parameters",
		"args": map[string]any{
			"config": map[string]any{
				"bools": []map[string]any{{"name": "start_stream", "value": true}},
			},
		},
	}), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(device.Sent("control_rgb")), test.ShouldEqual, 3)
		test.That(tb, len(srv.ByOp("service_response")), test.ShouldEqual, 1)
	})
	ctrl, ok = device.Sent("control_rgb")[2].(*dai.CameraControl)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ctrl.Commands(), test.ShouldResemble, []dai.CameraCommand{dai.CmdStartStream})

	resp := srv.ByOp("service_response")[0]
	test.That(t, resp.Service, test.ShouldEqual, "color/set_parameters")
	test.That(t, resp.Result, test.ShouldNotBeNil)
	test.That(t, *resp.Result, test.ShouldBeTrue)
	var body struct {
		Config ros.ConfigMsg `json:"config"`
	}
	test.That(t, resp.UnmarshalValues(&body), test.ShouldBeNil)
	test.That(t, boolParams(body.Config)["start_stream"], test.ShouldBeTrue)

	test.That(t, srv.Send(map[string]any{
		"op":      "call_service",
		"id":      "call-2",
		"service": "color/set_parameters",
		"args": map[string]any{
			"config": map[string]any{
				"bools": []map[string]any{{"name": "start_stream", "value": false}},
			},
		},
	}), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(device.Sent("control_rgb")), test.ShouldEqual, 4)
	})
	ctrl, ok = device.Sent("control_rgb")[3].(*dai.CameraControl)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ctrl.Commands(), test.ShouldResemble, []dai.CameraCommand{dai.CmdStopStream})
}

func TestPipelinePublisherStereoReconfigure(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})
	tp := fullTestPipeline(t)

	pp, err := NewPipelinePublisher(client, device, tp.p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// the initial stereo state mirrors the node's configuration
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("stereo/parameter_updates")), test.ShouldEqual, 1)
	})
	var initial ros.ConfigMsg
	test.That(t, srv.Published("stereo/parameter_updates")[0].UnmarshalMsg(&initial), test.ShouldBeNil)
	test.That(t, intParams(initial)["confidence"], test.ShouldEqual, 230)
	test.That(t, intParams(initial)["threshold_max"], test.ShouldEqual, 2000)
	test.That(t, boolParams(initial)["left_right_check"], test.ShouldBeTrue)

	// one changed field pushes the whole merged record to the device
	test.That(t, srv.Send(map[string]any{
		"op":      "call_service",
		"id":      "call-1",
		"service": "stereo/set_parameters",
		"args": map[string]any{
			"config": map[string]any{
				"ints": []map[string]any{{"name": "confidence", "value": 200}},
			},
		},
	}), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.ByOp("service_response")), test.ShouldEqual, 1)
	})

	sent := device.Sent("stereoConfig")
	test.That(t, len(sent), test.ShouldEqual, 1)
	test.That(t, sent[0], test.ShouldResemble, &dai.StereoDepthConfig{
		LeftRightCheck:   true,
		Confidence:       200,
		LRCheckThreshold: 10,
		ThresholdMin:     20,
		ThresholdMax:     2000,
	})

	resp := srv.ByOp("service_response")[0]
	test.That(t, resp.Result, test.ShouldNotBeNil)
	test.That(t, *resp.Result, test.ShouldBeTrue)
	var body struct {
		Config ros.ConfigMsg `json:"config"`
	}
	test.That(t, resp.UnmarshalValues(&body), test.ShouldBeNil)
	test.That(t, intParams(body.Config)["confidence"], test.ShouldEqual, 200)
}

func TestPipelinePublisherUnmappableStreams(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	client, _ := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	stereo := p.AddStereoDepth()

	xoutCfg := p.AddXLinkOut("stereoCfgOut")
	test.That(t, p.Link(stereo.ID(), "outConfig", xoutCfg.ID(), "in"), test.ShouldBeNil)

	xin := p.AddXLinkIn("host")
	xoutLoop := p.AddXLinkOut("loop")
	test.That(t, p.Link(xin.ID(), "out", xoutLoop.ID(), "in"), test.ShouldBeNil)

	xoutRect := p.AddXLinkOut("rectifiedLeft")
	test.That(t, p.Link(stereo.ID(), "rectifiedLeft", xoutRect.ID(), "in"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	test.That(t, pp.Topics(), test.ShouldBeEmpty)

	// a recognized producer with an unhandled port is consumed with a
	// warning; only an unrecognized producer is reported as unmappable
	test.That(t, len(logs.FilterMessageSnippet("don't understand stereo depth output").All()), test.ShouldEqual, 1)
	test.That(t, len(logs.FilterMessageSnippet("could not generate publisher").All()), test.ShouldEqual, 1)
	test.That(t, len(logs.FilterMessageSnippet("could not get input source").All()), test.ShouldEqual, 1)
}

func TestPipelinePublisherColorFallback(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	color := p.AddColorCamera(dai.SocketRGB)
	xout := p.AddXLinkOut("colorRaw")
	test.That(t, p.Link(color.ID(), "raw", xout.ID(), "in"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger, WithFramePrefix("oak"))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// an unknown color port still publishes, with intrinsics at the
	// fallback resolution
	test.That(t, pp.Topics(), test.ShouldResemble, []string{"color/image"})
	test.That(t, len(logs.FilterMessageSnippet("don't understand color camera output").All()), test.ShouldEqual, 1)

	device.Push("colorRaw", &dai.ImgFrame{
		Width: 1280, Height: 720,
		Type:     dai.ImgTypeBGR888i,
		Sequence: 1,
	})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("color/camera_info")), test.ShouldEqual, 1)
	})
	var info ros.CameraInfo
	test.That(t, srv.Published("color/camera_info")[0].UnmarshalMsg(&info), test.ShouldBeNil)
	test.That(t, info.Width, test.ShouldEqual, 1280)
	test.That(t, info.Height, test.ShouldEqual, 720)
	test.That(t, info.K[0], test.ShouldAlmostEqual, 996.28)
}

func TestPipelinePublisherDuplicateTopic(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	client, _ := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	color := p.AddColorCamera(dai.SocketRGB)
	xoutHD := p.AddXLinkOut("colorHD")
	test.That(t, p.Link(color.ID(), "video", xoutHD.ID(), "in"), test.ShouldBeNil)
	xoutSD := p.AddXLinkOut("colorSD")
	test.That(t, p.Link(color.ID(), "preview", xoutSD.ID(), "in"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// two taps of the same camera want the same topic; the second one is
	// skipped with a warning
	test.That(t, pp.Topics(), test.ShouldResemble, []string{"color/image"})
	test.That(t, len(logs.FilterMessageSnippet("cannot advertise stream").All()), test.ShouldEqual, 1)
}

func TestPipelinePublisherRunningDevice(t *testing.T) {
	logger, logs := golog.NewObservedTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	color := p.AddColorCamera(dai.SocketRGB)
	xout := p.AddXLinkOut("color")
	test.That(t, p.Link(color.ID(), "video", xout.ID(), "in"), test.ShouldBeNil)
	test.That(t, device.StartPipeline(p), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// publishers attach, but the running pipeline cannot take new
	// configuration inputs
	test.That(t, pp.Topics(), test.ShouldResemble, []string{"color/image"})
	test.That(t, len(logs.FilterMessageSnippet("pipeline already running").All()), test.ShouldEqual, 1)
	test.That(t, len(p.Nodes()), test.ShouldEqual, 2)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.ByOp("advertise")), test.ShouldEqual, 2)
	})
	test.That(t, srv.ByOp("advertise_service"), test.ShouldBeEmpty)
	test.That(t, srv.ByOp("subscribe"), test.ShouldBeEmpty)

	// default frame prefix is derived from the device serial
	device.Push("color", &dai.ImgFrame{
		Width: 1920, Height: 1080,
		Type:     dai.ImgTypeNV12,
		Sequence: 3,
	})
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, len(srv.Published("color/image")), test.ShouldEqual, 1)
	})
	var img ros.Image
	test.That(t, srv.Published("color/image")[0].UnmarshalMsg(&img), test.ShouldBeNil)
	test.That(t, img.Header.FrameID, test.ShouldEqual, "dai_oakd_rgb_camera_optical_frame")
}

func TestPipelinePublisherExistingConfigInput(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, srv := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	t.Cleanup(func() {
		test.That(t, device.Close(), test.ShouldBeNil)
	})

	p := dai.NewPipeline()
	left := p.AddMonoCamera(dai.SocketLeft)
	right := p.AddMonoCamera(dai.SocketRight)
	stereo := p.AddStereoDepth()
	test.That(t, p.Link(left.ID(), "out", stereo.ID(), "left"), test.ShouldBeNil)
	test.That(t, p.Link(right.ID(), "out", stereo.ID(), "right"), test.ShouldBeNil)
	xout := p.AddXLinkOut("depth")
	test.That(t, p.Link(stereo.ID(), "depth", xout.ID(), "in"), test.ShouldBeNil)

	custom := p.AddXLinkIn("customStereoCfg")
	test.That(t, p.Link(custom.ID(), "out", stereo.ID(), "inputConfig"), test.ShouldBeNil)

	pp, err := NewPipelinePublisher(client, device, p, logger)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, pp.Close(), test.ShouldBeNil)
	})

	// an input the pipeline already feeds is left alone
	test.That(t, configInputStream(p, stereo.ID(), "inputConfig"), test.ShouldEqual, "customStereoCfg")
	for _, node := range p.Nodes() {
		if xin, ok := node.(*dai.XLinkInNode); ok {
			test.That(t, xin.StreamName, test.ShouldNotEqual, "stereoConfig")
		}
	}
	test.That(t, configInputStream(p, left.ID(), "inputControl"), test.ShouldEqual, "control_left")

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		services := recordedSet(srv.ByOp("advertise_service"), func(m rostest.Message) string { return m.Service })
		test.That(tb, services, test.ShouldResemble, []string{
			"left/set_parameters",
			"right/set_parameters",
			"stereo/set_parameters",
		})
	})
}

func TestPipelinePublisherFrameNames(t *testing.T) {
	pp := &PipelinePublisher{framePrefix: "oak", frameNames: DefaultFrameNames()}
	test.That(t, pp.frameName(dai.SocketLeft), test.ShouldEqual, "oak_left_camera_optical_frame")

	// a socket missing from the table degrades to the bare prefix
	test.That(t, pp.frameName(dai.SocketAuto), test.ShouldEqual, "oak")

	pp.framePrefix = ""
	test.That(t, pp.frameName(dai.SocketRight), test.ShouldEqual, "right_camera_optical_frame")
	test.That(t, pp.frameName(dai.SocketAuto), test.ShouldEqual, "")
}

func TestPipelinePublisherClosedDevice(t *testing.T) {
	logger := golog.NewTestLogger(t)
	client, _ := newTestBridgeClient(t, logger)
	device := fake.NewDevice("oakd")
	test.That(t, device.Close(), test.ShouldBeNil)

	p := dai.NewPipeline()
	_, err := NewPipelinePublisher(client, device, p, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot read device calibration")
}
