package kucoin

import (
	"context"
	"time"

	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"go.uber.org/zap"
)

const DefaultPollInterval = time.Second

// KucoinStreamAPI turns periodic REST snapshots into a stream of order book
// events. Every poll is a full replacement, so no diff bookkeeping is needed.
type KucoinStreamAPI struct {
	syncAPI      *KucoinSyncAPI
	symbol       *domain.MarketSymbol
	depth        int
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewKucoinStreamAPI(
	syncAPI *KucoinSyncAPI, symbol *domain.MarketSymbol, depth int, pollInterval time.Duration, logger *zap.Logger,
) *KucoinStreamAPI {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &KucoinStreamAPI{
		syncAPI:      syncAPI,
		symbol:       symbol,
		depth:        depth,
		pollInterval: pollInterval,
		logger:       logger.Named("kucoin"),
	}
}

func (ks *KucoinStreamAPI) Exchange() domain.Exchange {
	return domain.Exchange_Kucoin
}

// Run polls until ctx is done. Failed polls are logged and retried on the
// next tick.
func (ks *KucoinStreamAPI) Run(ctx context.Context, sink domain.Sink) error {
	ticker := time.NewTicker(ks.pollInterval)
	defer ticker.Stop()

	ks.logger.Info("polling order book",
		zap.String("symbol", Symbol(ks.symbol)),
		zap.Duration("interval", ks.pollInterval),
	)

	for {
		if event := ks.poll(); event != nil {
			if err := sink.Publish(ctx, event); err != nil {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (ks *KucoinStreamAPI) poll() *domain.OrderBookUpdateEvent {
	snapshot, err := ks.syncAPI.OrderBookSnapshot(ks.symbol, ks.depth)
	if err != nil {
		ks.logger.Warn("poll failed", zap.Error(err))
		return nil
	}

	orderBook, err := ToOrderBook(snapshot)
	if err != nil {
		ks.logger.Warn("dropping malformed snapshot", zap.Error(err), zap.String("sequence", snapshot.Sequence))
		return nil
	}

	return domain.NewOrderBookUpdateEvent(domain.Exchange_Kucoin, orderBook)
}
