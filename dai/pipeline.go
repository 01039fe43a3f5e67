package dai

import (
	"sort"

	"github.com/pkg/errors"
)

// A Connection is a directed edge from a producer's output port to a
// consumer's input port.
type Connection struct {
	OutputID   NodeID
	OutputName string
	InputID    NodeID
	InputName  string
}

// A Pipeline is the graph of processing nodes to run on a device.
//
// Connections are stored inbound: for every consumer node the pipeline keeps
// the list of edges feeding it, which is the shape both stream mapping (find
// what feeds an XLinkOut) and source lookup (find the mono camera feeding a
// stereo side) walk.
type Pipeline struct {
	nextID  NodeID
	nodes   map[NodeID]Node
	inbound map[NodeID][]Connection
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		nodes:   make(map[NodeID]Node),
		inbound: make(map[NodeID][]Connection),
	}
}

func (p *Pipeline) add(n Node) {
	p.nodes[n.ID()] = n
}

func (p *Pipeline) nextNodeID() NodeID {
	p.nextID++
	return p.nextID
}

// AddColorCamera adds a color sensor on the given socket with the sensor's
// default output sizes.
func (p *Pipeline) AddColorCamera(socket CameraBoardSocket) *ColorCameraNode {
	n := &ColorCameraNode{
		id:     p.nextNodeID(),
		Socket: socket,

		VideoWidth: 1920, VideoHeight: 1080,
		StillWidth: 1920, StillHeight: 1080,
		PreviewWidth: 300, PreviewHeight: 300,
		IspWidth: 1920, IspHeight: 1080,
	}
	p.add(n)
	return n
}

// AddMonoCamera adds a grayscale sensor on the given socket at the sensor's
// default resolution.
func (p *Pipeline) AddMonoCamera(socket CameraBoardSocket) *MonoCameraNode {
	n := &MonoCameraNode{
		id:     p.nextNodeID(),
		Socket: socket,

		ResolutionWidth:  1280,
		ResolutionHeight: 720,
	}
	p.add(n)
	return n
}

// AddStereoDepth adds a stereo depth stage with device-chosen alignment.
func (p *Pipeline) AddStereoDepth() *StereoDepthNode {
	n := &StereoDepthNode{
		id:            p.nextNodeID(),
		DepthAlign:    SocketAuto,
		InitialConfig: DefaultStereoDepthConfig(),
	}
	p.add(n)
	return n
}

// AddIMU adds an inertial sample stage.
func (p *Pipeline) AddIMU() *IMUNode {
	n := &IMUNode{id: p.nextNodeID()}
	p.add(n)
	return n
}

// AddXLinkOut adds a device→host link endpoint for the given stream name.
func (p *Pipeline) AddXLinkOut(streamName string) *XLinkOutNode {
	n := &XLinkOutNode{id: p.nextNodeID(), StreamName: streamName}
	p.add(n)
	return n
}

// AddXLinkIn adds a host→device link endpoint for the given stream name.
func (p *Pipeline) AddXLinkIn(streamName string) *XLinkInNode {
	n := &XLinkInNode{id: p.nextNodeID(), StreamName: streamName}
	p.add(n)
	return n
}

// Node returns the node with the given id, or nil.
func (p *Pipeline) Node(id NodeID) Node {
	return p.nodes[id]
}

// Nodes returns all nodes ordered by id.
func (p *Pipeline) Nodes() []Node {
	out := make([]Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func portListed(name string, ports []string) bool {
	for _, p := range ports {
		if p == name {
			return true
		}
	}
	return false
}

// Link connects a producer output port to a consumer input port. An input
// port accepts at most one producer.
func (p *Pipeline) Link(outID NodeID, outName string, inID NodeID, inName string) error {
	producer, ok := p.nodes[outID]
	if !ok {
		return errors.Errorf("no node %d in pipeline", outID)
	}
	consumer, ok := p.nodes[inID]
	if !ok {
		return errors.Errorf("no node %d in pipeline", inID)
	}
	if !portListed(outName, producer.Outputs()) {
		return errors.Errorf("%s has no output named %q", producer.Name(), outName)
	}
	if !portListed(inName, consumer.Inputs()) {
		return errors.Errorf("%s has no input named %q", consumer.Name(), inName)
	}
	for _, conn := range p.inbound[inID] {
		if conn.InputName == inName {
			return errors.Errorf("input %q of %s is already connected", inName, consumer.Name())
		}
	}
	p.inbound[inID] = append(p.inbound[inID], Connection{
		OutputID:   outID,
		OutputName: outName,
		InputID:    inID,
		InputName:  inName,
	})
	return nil
}

// InboundTo returns the connections feeding the given node.
func (p *Pipeline) InboundTo(id NodeID) []Connection {
	conns := p.inbound[id]
	out := make([]Connection, len(conns))
	copy(out, conns)
	return out
}

// ConnectionMap returns all connections keyed by consumer node id.
func (p *Pipeline) ConnectionMap() map[NodeID][]Connection {
	out := make(map[NodeID][]Connection, len(p.inbound))
	for id := range p.inbound {
		out[id] = p.InboundTo(id)
	}
	return out
}
