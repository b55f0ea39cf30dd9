// Package network adapts TCP and WebSocket transports to a single byte-stream
// connection. The wire format is self-delimiting, so WebSocket message
// boundaries carry no meaning: inbound binary messages are concatenated and
// every outbound frame goes out as one binary message.
package network

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrUnexpectedMessageType is returned when a WebSocket peer sends text.
var ErrUnexpectedMessageType = errors.New("network: non-binary websocket message")

type Connection interface {
	io.Reader
	// WriteFrame writes one complete encoded message. It is safe to call
	// from more than one goroutine.
	WriteFrame(frame []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// TCPConnection is a Connection over a plain stream socket.
type TCPConnection struct {
	conn      net.Conn
	sendMutex sync.Mutex
}

// NewTCPConnection wraps conn, turning Nagle off for TCP sockets.
func NewTCPConnection(conn net.Conn) *TCPConnection {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return &TCPConnection{conn: conn}
}

func (c *TCPConnection) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

func (c *TCPConnection) WriteFrame(frame []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	_, err := c.conn.Write(frame)
	return err
}

func (c *TCPConnection) Close() error {
	return c.conn.Close()
}

func (c *TCPConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// WSConnection is a Connection over a WebSocket.
type WSConnection struct {
	conn      *websocket.Conn
	sendMutex sync.Mutex
	current   io.Reader // body of the message being read, nil between messages
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// Read continues into the next binary message when the current one runs out.
func (c *WSConnection) Read(p []byte) (int, error) {
	for {
		if c.current == nil {
			kind, r, err := c.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				return 0, ErrUnexpectedMessageType
			}
			c.current = r
		}

		n, err := c.current.Read(p)
		if errors.Is(err, io.EOF) {
			c.current = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *WSConnection) WriteFrame(frame []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *WSConnection) Close() error {
	return c.conn.Close()
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Dial connects to a game server. A ws:// or wss:// address selects the
// WebSocket transport, anything else is treated as a TCP host:port.
func Dial(ctx context.Context, address string) (Connection, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, err
		}
		return NewWSConnection(conn), nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewTCPConnection(conn), nil
}
