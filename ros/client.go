// Package ros is the middleware edge of the bridge: ROS1 message shapes in
// their rosbridge JSON form, a client for the rosbridge v2 protocol over a
// pluggable Conn, and a dynamic-reconfigure style parameter server built on
// top of it.
package ros

import (
	"encoding/json"
	"sync"

	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// frame is one outgoing rosbridge operation.
type frame struct {
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Type    string `json:"type,omitempty"`
	Service string `json:"service,omitempty"`
	Msg     any    `json:"msg,omitempty"`
	Values  any    `json:"values,omitempty"`
	Result  *bool  `json:"result,omitempty"`
}

// incomingFrame is one operation off the wire. Msg doubles as the payload
// object of a publish and the text of a status.
type incomingFrame struct {
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Service string          `json:"service"`
	Msg     json.RawMessage `json:"msg"`
	Args    json.RawMessage `json:"args"`
	Level   string          `json:"level"`
}

// SubscriberFunc handles one message published on a subscribed topic. It
// runs on the client's read loop and must not block.
type SubscriberFunc func(msg json.RawMessage)

// ServiceHandler answers one service call. It runs on the client's read
// loop and must not block; the returned value becomes the response body.
type ServiceHandler func(args json.RawMessage) (any, error)

// Client speaks the rosbridge v2 protocol over a Conn.
type Client struct {
	conn   Conn
	logger golog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	pubs     map[string]*Publisher
	subs     map[string][]*Subscriber
	services map[string]*Service

	closed                  atomic.Bool
	activeBackgroundWorkers sync.WaitGroup
}

// NewClient starts a client on the given transport and begins reading.
func NewClient(conn Conn, logger golog.Logger) *Client {
	c := &Client{
		conn:     conn,
		logger:   logger,
		pubs:     make(map[string]*Publisher),
		subs:     make(map[string][]*Subscriber),
		services: make(map[string]*Service),
	}
	c.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(c.readLoop, c.activeBackgroundWorkers.Done)
	return c
}

func (c *Client) readLoop() {
	for {
		data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Debugw("rosbridge read loop ended", "error", err)
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) dispatch(data []byte) {
	var in incomingFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.logger.Warnw("cannot parse rosbridge message", "error", err)
		return
	}
	switch in.Op {
	case "publish":
		c.mu.Lock()
		subs := make([]*Subscriber, len(c.subs[in.Topic]))
		copy(subs, c.subs[in.Topic])
		c.mu.Unlock()
		if len(subs) == 0 {
			c.logger.Debugw("publish for topic with no subscriber", "topic", in.Topic)
			return
		}
		for _, s := range subs {
			s.cb(in.Msg)
		}
	case "call_service":
		c.mu.Lock()
		svc := c.services[in.Service]
		c.mu.Unlock()
		if svc == nil {
			c.logger.Debugw("call for unknown service", "service", in.Service)
			return
		}
		c.answerCall(svc, in)
	case "status":
		var text string
		if err := json.Unmarshal(in.Msg, &text); err != nil {
			text = string(in.Msg)
		}
		if in.Level == "error" {
			c.logger.Warnw("rosbridge status", "level", in.Level, "msg", text)
		} else {
			c.logger.Debugw("rosbridge status", "level", in.Level, "msg", text)
		}
	default:
		c.logger.Debugw("ignoring rosbridge op", "op", in.Op)
	}
}

func (c *Client) answerCall(svc *Service, in incomingFrame) {
	values, err := svc.handler(in.Args)
	ok := err == nil
	resp := frame{Op: "service_response", Service: in.Service, ID: in.ID, Result: &ok}
	if err != nil {
		c.logger.Warnw("service handler failed", "service", in.Service, "error", err)
		resp.Values = map[string]any{"message": err.Error()}
	} else {
		resp.Values = values
	}
	if err := c.send(resp); err != nil {
		c.logger.Warnw("cannot send service response", "service", in.Service, "error", err)
	}
}

func (c *Client) send(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal rosbridge %s", f.Op)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return errors.New("rosbridge client closed")
	}
	return c.conn.WriteMessage(data)
}

// Advertise registers a topic for publishing. A topic may be advertised at
// most once per client.
func (c *Client) Advertise(topic, msgType string) (*Publisher, error) {
	p := &Publisher{client: c, id: uuid.NewString(), topic: topic, msgType: msgType}
	c.mu.Lock()
	if _, ok := c.pubs[topic]; ok {
		c.mu.Unlock()
		return nil, errors.Errorf("topic %q already advertised", topic)
	}
	c.pubs[topic] = p
	c.mu.Unlock()
	if err := c.send(frame{Op: "advertise", ID: p.id, Topic: topic, Type: msgType}); err != nil {
		c.mu.Lock()
		delete(c.pubs, topic)
		c.mu.Unlock()
		return nil, err
	}
	return p, nil
}

// Subscribe registers a callback for a topic.
func (c *Client) Subscribe(topic, msgType string, cb SubscriberFunc) (*Subscriber, error) {
	s := &Subscriber{client: c, id: uuid.NewString(), topic: topic, cb: cb}
	c.mu.Lock()
	c.subs[topic] = append(c.subs[topic], s)
	c.mu.Unlock()
	if err := c.send(frame{Op: "subscribe", ID: s.id, Topic: topic, Type: msgType}); err != nil {
		c.removeSubscriber(s)
		return nil, err
	}
	return s, nil
}

// AdvertiseService exposes a service backed by the given handler.
func (c *Client) AdvertiseService(service, srvType string, handler ServiceHandler) (*Service, error) {
	s := &Service{client: c, name: service, handler: handler}
	c.mu.Lock()
	if _, ok := c.services[service]; ok {
		c.mu.Unlock()
		return nil, errors.Errorf("service %q already advertised", service)
	}
	c.services[service] = s
	c.mu.Unlock()
	if err := c.send(frame{Op: "advertise_service", Service: service, Type: srvType}); err != nil {
		c.mu.Lock()
		delete(c.services, service)
		c.mu.Unlock()
		return nil, err
	}
	return s, nil
}

func (c *Client) removeSubscriber(s *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subs[s.topic]
	for i, other := range subs {
		if other == s {
			c.subs[s.topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(c.subs[s.topic]) == 0 {
		delete(c.subs, s.topic)
	}
}

// Close unregisters any publishers, subscribers, and services still held,
// then drops the connection and stops the read loop.
func (c *Client) Close() error {
	c.mu.Lock()
	pubs := make([]*Publisher, 0, len(c.pubs))
	for _, p := range c.pubs {
		pubs = append(pubs, p)
	}
	subs := make([]*Subscriber, 0, len(c.subs))
	for _, topicSubs := range c.subs {
		subs = append(subs, topicSubs...)
	}
	services := make([]*Service, 0, len(c.services))
	for _, svc := range c.services {
		services = append(services, svc)
	}
	c.mu.Unlock()

	var err error
	for _, p := range pubs {
		err = multierr.Combine(err, p.Close())
	}
	for _, s := range subs {
		err = multierr.Combine(err, s.Close())
	}
	for _, svc := range services {
		err = multierr.Combine(err, svc.Close())
	}
	if !c.closed.CompareAndSwap(false, true) {
		return err
	}
	err = multierr.Combine(err, c.conn.Close())
	c.activeBackgroundWorkers.Wait()
	return err
}

// A Publisher is one advertised topic.
type Publisher struct {
	client  *Client
	id      string
	topic   string
	msgType string
	closed  atomic.Bool
}

// Topic returns the advertised topic name.
func (p *Publisher) Topic() string { return p.topic }

// Publish sends one message on the topic.
func (p *Publisher) Publish(msg any) error {
	if p.closed.Load() {
		return errors.Errorf("publisher for %q closed", p.topic)
	}
	return p.client.send(frame{Op: "publish", Topic: p.topic, Msg: msg})
}

// Close unadvertises the topic.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.client.mu.Lock()
	delete(p.client.pubs, p.topic)
	p.client.mu.Unlock()
	return p.client.send(frame{Op: "unadvertise", ID: p.id, Topic: p.topic})
}

// A Subscriber is one topic subscription.
type Subscriber struct {
	client *Client
	id     string
	topic  string
	cb     SubscriberFunc
	closed atomic.Bool
}

// Topic returns the subscribed topic name.
func (s *Subscriber) Topic() string { return s.topic }

// Close unsubscribes.
func (s *Subscriber) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.client.removeSubscriber(s)
	return s.client.send(frame{Op: "unsubscribe", ID: s.id, Topic: s.topic})
}

// A Service is one advertised service.
type Service struct {
	client  *Client
	name    string
	handler ServiceHandler
	closed  atomic.Bool
}

// Name returns the service name.
func (s *Service) Name() string { return s.name }

// Close unadvertises the service.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.client.mu.Lock()
	delete(s.client.services, s.name)
	s.client.mu.Unlock()
	return s.client.send(frame{Op: "unadvertise_service", Service: s.name})
}
