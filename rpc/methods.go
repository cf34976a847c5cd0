package rpc

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jzajpt/orderbook-aggregator-service/broadcast"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	gen "github.com/jzajpt/orderbook-aggregator-service/gen"
	promclient "github.com/jzajpt/orderbook-aggregator-service/infrastructure/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BookSummary streams every merged book to the client. A forwarding goroutine
// waits on the broadcast receiver and fills a small buffer that this handler
// drains into the stream; books published while the client is slow are
// coalesced into the newest one.
func (s *server) BookSummary(_ *gen.Empty, stream gen.OrderbookAggregator_BookSummaryServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	promclient.ActiveSubscribers.Inc()
	defer promclient.ActiveSubscribers.Dec()

	logger := s.logger.With(zap.String("subscriber", uuid.NewString()))

	summaries := make(chan *gen.Summary, s.subscriberBuffer)
	forwardErr := make(chan error, 1)
	go s.forward(ctx, s.source.Subscribe(), summaries, forwardErr)

	logger.Debug("subscriber connected")

	for summary := range summaries {
		if err := stream.Send(summary); err != nil {
			logger.Debug("subscriber send failed", zap.Error(err))
			return err
		}
	}

	err := <-forwardErr
	if errors.Is(err, broadcast.ErrClosed) {
		logger.Debug("aggregation stopped, closing subscription")
		return status.Error(codes.Unavailable, "order book aggregation stopped")
	}

	logger.Debug("subscriber disconnected", zap.Error(err))
	return status.FromContextError(err).Err()
}

func (s *server) forward(
	ctx context.Context,
	rx *broadcast.Receiver[*domain.OrderBook],
	summaries chan<- *gen.Summary,
	forwardErr chan<- error,
) {
	defer close(summaries)

	for {
		if err := rx.Changed(ctx); err != nil {
			forwardErr <- err
			return
		}

		select {
		case summaries <- ToSummary(rx.Borrow()):
		case <-ctx.Done():
			forwardErr <- ctx.Err()
			return
		}
	}
}

// BookSnapshot returns the latest merged book.
func (s *server) BookSnapshot(ctx context.Context, _ *gen.Empty) (*gen.Summary, error) {
	book, ok := s.source.Current()
	if !ok {
		return nil, status.Error(codes.Unavailable, "no merged order book yet")
	}

	return ToSummary(book), nil
}
