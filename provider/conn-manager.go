package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jzajpt/orderbook-aggregator-service/config"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"github.com/jzajpt/orderbook-aggregator-service/helpers"
	promclient "github.com/jzajpt/orderbook-aggregator-service/infrastructure/prometheus"
	"github.com/jzajpt/orderbook-aggregator-service/provider/binance"
	"github.com/jzajpt/orderbook-aggregator-service/provider/bitstamp"
	"github.com/jzajpt/orderbook-aggregator-service/provider/kucoin"
	"go.uber.org/zap"
)

// stableRun is how long a feed has to stay up before its restart backoff
// starts over.
const stableRun = time.Minute

// ConnectionManager runs one goroutine per exchange feed and restarts feeds
// that stop before shutdown.
type ConnectionManager struct {
	feeds      []domain.ExchangeFeed
	newBackoff func() *helpers.Backoff
	logger     *zap.Logger
}

func NewConnectionManager(cfg *config.Config, logger *zap.Logger) (*ConnectionManager, error) {
	symbol, err := cfg.MarketSymbol()
	if err != nil {
		return nil, err
	}

	var feeds []domain.ExchangeFeed
	for _, exchange := range cfg.EnabledExchanges() {
		feed, err := NewFeed(exchange, cfg, symbol, logger)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	return newConnectionManager(feeds, logger), nil
}

func newConnectionManager(feeds []domain.ExchangeFeed, logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		feeds:      feeds,
		newBackoff: helpers.NewDefaultBackoff,
		logger:     logger.Named("conn-manager"),
	}
}

// NewFeed builds the adapter for one exchange.
func NewFeed(
	exchange domain.Exchange, cfg *config.Config, symbol *domain.MarketSymbol, logger *zap.Logger,
) (domain.ExchangeFeed, error) {
	switch exchange {
	case domain.Exchange_Binance:
		return binance.NewBinanceStreamAPI(cfg.Binance.WSURL, symbol, cfg.Depth, logger), nil
	case domain.Exchange_Bitstamp:
		return bitstamp.NewBitstampStreamAPI(cfg.Bitstamp.WSURL, symbol, logger), nil
	case domain.Exchange_Kucoin:
		syncAPI := kucoin.NewKucoinSyncAPI(cfg.Kucoin.BaseURL)
		return kucoin.NewKucoinStreamAPI(syncAPI, symbol, cfg.Depth, cfg.Kucoin.PollInterval, logger), nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExchange, exchange)
}

func (cm *ConnectionManager) Feeds() []domain.ExchangeFeed {
	return cm.feeds
}

// Run blocks until ctx is done and every feed has returned. One feed failing
// never stops the others.
func (cm *ConnectionManager) Run(ctx context.Context, sink domain.Sink) {
	wg := &sync.WaitGroup{}
	wg.Add(len(cm.feeds))

	for _, feed := range cm.feeds {
		go func(feed domain.ExchangeFeed) {
			defer wg.Done()
			cm.supervise(ctx, feed, sink)
		}(feed)
	}

	wg.Wait()
}

func (cm *ConnectionManager) supervise(ctx context.Context, feed domain.ExchangeFeed, sink domain.Sink) {
	logger := cm.logger.With(zap.Stringer("exchange", feed.Exchange()))
	backoff := cm.newBackoff()

	for {
		started := time.Now()
		err := runFeed(ctx, feed, sink)
		if ctx.Err() != nil {
			logger.Info("feed stopped")
			return
		}

		if time.Since(started) > stableRun {
			backoff.Reset()
		}
		delay := backoff.Next()

		promclient.FeedRestartsTotal.WithLabelValues(feed.Exchange().String()).Inc()
		logger.Warn("feed terminated, restarting",
			zap.Error(err),
			zap.Duration("delay", delay),
			zap.Int("attempt", backoff.Attempt()),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func runFeed(ctx context.Context, feed domain.ExchangeFeed, sink domain.Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feed panicked: %v", r)
		}
	}()

	return feed.Run(ctx, sink)
}
