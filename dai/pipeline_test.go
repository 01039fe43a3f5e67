package dai

import (
	"testing"

	"go.viam.com/test"
)

func TestPipelineNodes(t *testing.T) {
	p := NewPipeline()

	color := p.AddColorCamera(SocketRGB)
	test.That(t, color.Socket, test.ShouldEqual, SocketRGB)
	test.That(t, color.VideoWidth, test.ShouldEqual, 1920)
	test.That(t, color.VideoHeight, test.ShouldEqual, 1080)
	test.That(t, color.PreviewWidth, test.ShouldEqual, 300)
	test.That(t, color.PreviewHeight, test.ShouldEqual, 300)

	mono := p.AddMonoCamera(SocketLeft)
	test.That(t, mono.ResolutionWidth, test.ShouldEqual, 1280)
	test.That(t, mono.ResolutionHeight, test.ShouldEqual, 720)

	stereo := p.AddStereoDepth()
	test.That(t, stereo.DepthAlign, test.ShouldEqual, SocketAuto)
	test.That(t, stereo.InitialConfig, test.ShouldResemble, DefaultStereoDepthConfig())

	imu := p.AddIMU()
	out := p.AddXLinkOut("video")
	test.That(t, out.StreamName, test.ShouldEqual, "video")

	ids := []NodeID{color.ID(), mono.ID(), stereo.ID(), imu.ID(), out.ID()}
	for i := 1; i < len(ids); i++ {
		test.That(t, ids[i], test.ShouldBeGreaterThan, ids[i-1])
	}

	nodes := p.Nodes()
	test.That(t, len(nodes), test.ShouldEqual, 5)
	for i, n := range nodes {
		test.That(t, n.ID(), test.ShouldEqual, ids[i])
	}
	test.That(t, p.Node(color.ID()), test.ShouldEqual, color)
	test.That(t, p.Node(NodeID(999)), test.ShouldBeNil)
}

func TestPipelineLink(t *testing.T) {
	p := NewPipeline()
	color := p.AddColorCamera(SocketRGB)
	out := p.AddXLinkOut("video")

	test.That(t, p.Link(color.ID(), "video", out.ID(), "in"), test.ShouldBeNil)

	err := p.Link(NodeID(999), "video", out.ID(), "in")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no node")

	err = p.Link(color.ID(), "nope", out.ID(), "in")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no output named")

	err = p.Link(color.ID(), "video", out.ID(), "nope")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no input named")

	err = p.Link(color.ID(), "still", out.ID(), "in")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already connected")
}

func TestPipelineConnections(t *testing.T) {
	p := NewPipeline()
	left := p.AddMonoCamera(SocketLeft)
	right := p.AddMonoCamera(SocketRight)
	stereo := p.AddStereoDepth()
	test.That(t, p.Link(left.ID(), "out", stereo.ID(), "left"), test.ShouldBeNil)
	test.That(t, p.Link(right.ID(), "out", stereo.ID(), "right"), test.ShouldBeNil)

	conns := p.InboundTo(stereo.ID())
	test.That(t, conns, test.ShouldResemble, []Connection{
		{OutputID: left.ID(), OutputName: "out", InputID: stereo.ID(), InputName: "left"},
		{OutputID: right.ID(), OutputName: "out", InputID: stereo.ID(), InputName: "right"},
	})

	// returned slices are copies
	conns[0].InputName = "mangled"
	test.That(t, p.InboundTo(stereo.ID())[0].InputName, test.ShouldEqual, "left")

	test.That(t, p.InboundTo(left.ID()), test.ShouldBeEmpty)

	cm := p.ConnectionMap()
	test.That(t, len(cm), test.ShouldEqual, 1)
	test.That(t, cm[stereo.ID()], test.ShouldResemble, p.InboundTo(stereo.ID()))
}

func TestParseSocket(t *testing.T) {
	for _, socket := range []CameraBoardSocket{SocketAuto, SocketRGB, SocketLeft, SocketRight} {
		parsed, err := ParseSocket(socket.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, socket)
	}
	_, err := ParseSocket("gopher")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown camera socket")
}
