package ros

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// A Conn is one framed bidirectional transport to a rosbridge server.
// WriteMessage is not safe for concurrent use; the Client serializes its
// writes.
type Conn interface {
	// ReadMessage blocks for the next complete message.
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dial connects to a rosbridge server, e.g. "ws://localhost:9090".
func Dial(ctx context.Context, addr string, logger golog.Logger) (Conn, error) {
	//nolint:bodyclose
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot dial rosbridge at %q", addr)
	}
	logger.Debugw("connected to rosbridge", "addr", addr)
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *websocketConn) WriteMessage(data []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
