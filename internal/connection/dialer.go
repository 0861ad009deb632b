package connection

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// maxFrameSize bounds a single inbound frame. The firmware config document
// is the largest payload and stays well below this.
const maxFrameSize = 64 * 1024

// Conn is the subset of *websocket.Conn used by the Manager.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a session to the device.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

// Dial implements Dialer.
func (d WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}
