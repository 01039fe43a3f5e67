// Package rostest provides an in-memory rosbridge transport for tests.
package rostest

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Conn is one side of an in-memory loopback transport.
type Conn struct {
	recv <-chan []byte
	send chan<- []byte

	done      chan struct{}
	closeOnce *sync.Once
}

// NewLoopback returns a connected pair of transports. Closing either side
// tears down both, like a socket.
func NewLoopback() (*Conn, *Conn) {
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)
	done := make(chan struct{})
	once := &sync.Once{}
	a := &Conn{recv: bToA, send: aToB, done: done, closeOnce: once}
	b := &Conn{recv: aToB, send: bToA, done: done, closeOnce: once}
	return a, b
}

// ReadMessage blocks for the next message from the peer.
func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.recv:
		return data, nil
	case <-c.done:
		// drain what was sent before the close
		select {
		case data := <-c.recv:
			return data, nil
		default:
		}
		return nil, io.EOF
	}
}

// WriteMessage delivers a message to the peer.
func (c *Conn) WriteMessage(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.New("loopback closed")
	}
}

// Close tears down both sides of the loopback.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Message is one decoded rosbridge frame as seen by the server.
type Message struct {
	Op      string          `json:"op"`
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Service string          `json:"service"`
	Msg     json.RawMessage `json:"msg"`
	Args    json.RawMessage `json:"args"`
	Values  json.RawMessage `json:"values"`
	Result  *bool           `json:"result"`
}

// UnmarshalMsg decodes the frame's msg field into v.
func (m Message) UnmarshalMsg(v any) error {
	return json.Unmarshal(m.Msg, v)
}

// UnmarshalValues decodes the frame's values field into v.
func (m Message) UnmarshalValues(v any) error {
	return json.Unmarshal(m.Values, v)
}

// Server records every frame a client writes and can send frames back.
type Server struct {
	clientConn *Conn
	serverConn *Conn

	mu       sync.Mutex
	messages []Message

	activeBackgroundWorkers sync.WaitGroup
}

// NewServer starts a recording server on a fresh loopback.
func NewServer() *Server {
	clientConn, serverConn := NewLoopback()
	s := &Server{clientConn: clientConn, serverConn: serverConn}
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(s.recordLoop, s.activeBackgroundWorkers.Done)
	return s
}

// ClientConn returns the side of the loopback a client should use.
func (s *Server) ClientConn() *Conn {
	return s.clientConn
}

func (s *Server) recordLoop() {
	for {
		data, err := s.serverConn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()
	}
}

// Send delivers a frame to the client.
func (s *Server) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.serverConn.WriteMessage(data)
}

// Messages returns a copy of every recorded frame so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ByOp returns recorded frames with the given op, oldest first.
func (s *Server) ByOp(op string) []Message {
	var out []Message
	for _, msg := range s.Messages() {
		if msg.Op == op {
			out = append(out, msg)
		}
	}
	return out
}

// ByTopic returns recorded frames addressed to the given topic, oldest first.
func (s *Server) ByTopic(topic string) []Message {
	var out []Message
	for _, msg := range s.Messages() {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// Published returns the publish frames for a topic, oldest first.
func (s *Server) Published(topic string) []Message {
	var out []Message
	for _, msg := range s.ByTopic(topic) {
		if msg.Op == "publish" {
			out = append(out, msg)
		}
	}
	return out
}

// Close tears down the loopback and waits for the recorder.
func (s *Server) Close() error {
	err := s.serverConn.Close()
	s.activeBackgroundWorkers.Wait()
	return err
}
