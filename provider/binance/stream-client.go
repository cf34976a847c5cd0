package binance

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jzajpt/orderbook-aggregator-service/helpers"
	"github.com/recws-org/recws"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint  = "wss://stream.binance.com:9443/ws"
	handshakeTimeout = 5 * time.Second
	pingDelay        = time.Minute * 9
	notConnectedWait = 100 * time.Millisecond
)

type WebSocketRequestModel struct {
	ReqId  int      `json:"id"`
	Params []string `json:"params"`
	Method string   `json:"method"`
}

// BinanceStreamClient is a reconnecting websocket that re-sends its
// subscriptions every time the connection comes back.
type BinanceStreamClient struct {
	endpoint         string
	handshakeTimeout time.Duration
	conn             *recws.RecConn
	topics           []string
	logger           *zap.Logger
}

func NewBinanceStreamClient(endpoint string, logger *zap.Logger) *BinanceStreamClient {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &BinanceStreamClient{
		endpoint:         endpoint,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}
}

// Connect dials the endpoint and subscribes to topics. recws keeps
// reconnecting in the background if the first attempt fails.
func (c *BinanceStreamClient) Connect(topics ...string) {
	c.topics = topics

	conn := &recws.RecConn{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.handshakeTimeout,
		KeepAliveTimeout: pingDelay,
		NonVerbose:       true,
	}
	conn.SubscribeHandler = func() error {
		c.subscribe(conn)
		// recws treats a handler error as fatal, failures are logged instead
		return nil
	}

	c.conn = conn
	c.logger.Info("connecting", zap.String("endpoint", c.endpoint), zap.Strings("topics", topics))
	conn.Dial(c.endpoint, nil)
}

func (c *BinanceStreamClient) subscribe(conn *recws.RecConn) {
	req := WebSocketRequestModel{
		Method: "SUBSCRIBE",
		ReqId:  helpers.RandomReqID(),
		Params: c.topics,
	}

	if err := conn.WriteJSON(req); err != nil {
		c.logger.Error("failed to send subscribe request", zap.Error(err))
		return
	}
	c.logger.Debug("subscribe request sent", zap.String("request", helpers.ToJsonString(req)))
}

// Read returns the next message. While the connection is down it waits and
// tries again; it only fails when ctx is done.
func (c *BinanceStreamClient) Read(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, msg, err := c.conn.ReadMessage()
		if err == nil {
			return msg, nil
		}

		if !errors.Is(err, recws.ErrNotConnected) {
			c.logger.Warn("read failed, reconnecting", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(notConnectedWait):
		}
	}
}

func (c *BinanceStreamClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
