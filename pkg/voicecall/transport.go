package voicecall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer opens duplex connections.
type Dialer interface {
	// Dial connects to url. Failures should wrap ErrTransport.
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// Conn is a message-oriented duplex connection. ReadMessage is called from
// one goroutine and WriteMessage from another; Close may be called from any
// goroutine, more than once, and unblocks both.
type Conn interface {
	// ReadMessage blocks for the next inbound message. It returns io.EOF
	// after a normal close by the peer.
	ReadMessage() (Message, error)
	WriteMessage(m Message) error
	Close() error
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	return f(ctx, url, header)
}

// WebSocketDialer dials WebSocket connections.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. The dial context
	// applies as well.
	HandshakeTimeout time.Duration
	// CloseTimeout bounds the close handshake. Defaults to one second.
	CloseTimeout time.Duration
}

// Dial implements Dialer.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, transportErr("dial "+url, fmt.Errorf("%w (status %d)", err, resp.StatusCode))
		}
		return nil, transportErr("dial "+url, err)
	}
	closeTimeout := d.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = time.Second
	}
	return &wsConn{conn: conn, closeTimeout: closeTimeout}, nil
}

type wsConn struct {
	conn         *websocket.Conn
	closeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) ReadMessage() (Message, error) {
	typ, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return Message{}, io.EOF
		}
		return Message{}, transportErr("read", err)
	}
	switch typ {
	case websocket.TextMessage:
		return Message{Type: TextMessage, Data: data}, nil
	case websocket.BinaryMessage:
		return Message{Type: BinaryMessage, Data: data}, nil
	}
	return Message{}, transportErr("read", fmt.Errorf("unexpected message type %d", typ))
}

func (c *wsConn) WriteMessage(m Message) error {
	typ := websocket.TextMessage
	if m.Type == BinaryMessage {
		typ = websocket.BinaryMessage
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(typ, m.Data); err != nil {
		return transportErr("write", err)
	}
	return nil
}

// Close sends a close frame and closes the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		// Best effort; the peer may already be gone.
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.closeTimeout))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
