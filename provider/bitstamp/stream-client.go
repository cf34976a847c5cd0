package bitstamp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultEndpoint   = "wss://ws.bitstamp.net"
	handshakeTimeout  = 5 * time.Second
	heartbeatInterval = 20 * time.Second
	writeWait         = 5 * time.Second
)

type WebSocketRequestModel struct {
	Event string      `json:"event"`
	Data  *RequestData `json:"data,omitempty"`
}

type RequestData struct {
	Channel string `json:"channel,omitempty"`
}

// BitstampStreamClient is one websocket session. It does not reconnect on
// its own; BitstampStreamAPI dials a new client after a failure.
type BitstampStreamClient struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
}

func Dial(ctx context.Context, endpoint string) (*BitstampStreamClient, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return &BitstampStreamClient{conn: conn}, nil
}

func (c *BitstampStreamClient) Subscribe(channel string) error {
	return c.write(WebSocketRequestModel{
		Event: "bts:subscribe",
		Data:  &RequestData{Channel: channel},
	})
}

func (c *BitstampStreamClient) Heartbeat() error {
	return c.write(WebSocketRequestModel{Event: "bts:heartbeat"})
}

func (c *BitstampStreamClient) write(req WebSocketRequestModel) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(req)
}

func (c *BitstampStreamClient) Read() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *BitstampStreamClient) Close() error {
	return c.conn.Close()
}
