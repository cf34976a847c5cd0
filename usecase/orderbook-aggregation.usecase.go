package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jzajpt/orderbook-aggregator-service/broadcast"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"github.com/jzajpt/orderbook-aggregator-service/helpers"
	promclient "github.com/jzajpt/orderbook-aggregator-service/infrastructure/prometheus"
	"go.uber.org/zap"
)

const (
	DefaultFanInCapacity = 32

	// minExchangesToPublish is how many exchanges must have reported before the
	// first merged book is published. Later books are published whatever the
	// count.
	minExchangesToPublish = 2

	rateWindow = 10 * time.Second
)

var ErrNilEvent = errors.New("nil order book event")

type Options struct {
	DepthLimit    int
	FanInCapacity int
	// StaleAfter drops an exchange's snapshot when nothing newer arrived in
	// time. Zero keeps snapshots forever.
	StaleAfter time.Duration
	// SweepInterval defaults to half of StaleAfter.
	SweepInterval time.Duration
}

// OrderBookAggregationUseCase merges the snapshots of every exchange feed into
// one book and hands the result to any number of subscribers. Feeds call
// Publish; exactly one goroutine must call Run.
type OrderBookAggregationUseCase struct {
	logger *zap.Logger

	events     chan *domain.OrderBookUpdateEvent
	book       *broadcast.Cell[*domain.OrderBook]
	aggregator *domain.Aggregator
	warmedUp   bool

	staleAfter    time.Duration
	sweepInterval time.Duration
	rates         map[domain.Exchange]*helpers.RateWindow
	now           func() time.Time
}

func NewOrderBookAggregationUseCase(opts Options, logger *zap.Logger) *OrderBookAggregationUseCase {
	if opts.FanInCapacity <= 0 {
		opts.FanInCapacity = DefaultFanInCapacity
	}
	if opts.StaleAfter < 0 {
		opts.StaleAfter = 0
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.StaleAfter / 2
	}

	return &OrderBookAggregationUseCase{
		logger:        logger.Named("aggregation"),
		events:        make(chan *domain.OrderBookUpdateEvent, opts.FanInCapacity),
		book:          broadcast.NewCell[*domain.OrderBook](),
		aggregator:    domain.NewAggregator(opts.DepthLimit),
		staleAfter:    opts.StaleAfter,
		sweepInterval: opts.SweepInterval,
		rates:         make(map[domain.Exchange]*helpers.RateWindow),
		now:           time.Now,
	}
}

// Publish queues a snapshot for aggregation. It blocks while the queue is full
// and gives up when ctx is done.
func (u *OrderBookAggregationUseCase) Publish(ctx context.Context, event *domain.OrderBookUpdateEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	select {
	case u.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a receiver for merged books. The current book, if any, is
// reported by the receiver's first Changed call.
func (u *OrderBookAggregationUseCase) Subscribe() *broadcast.Receiver[*domain.OrderBook] {
	return u.book.Subscribe()
}

// Current returns the last merged book; false until the first merge.
func (u *OrderBookAggregationUseCase) Current() (*domain.OrderBook, bool) {
	return u.book.Load()
}

// Run owns the aggregator until ctx is done. Receivers are released with
// broadcast.ErrClosed when it returns.
func (u *OrderBookAggregationUseCase) Run(ctx context.Context) error {
	defer u.book.Close()

	var sweep <-chan time.Time
	if u.staleAfter > 0 {
		ticker := time.NewTicker(u.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	u.logger.Info("aggregation started",
		zap.Int("depth", u.aggregator.DepthLimit()),
		zap.Int("fanInCapacity", cap(u.events)),
		zap.Duration("staleAfter", u.staleAfter),
	)

	for {
		select {
		case <-ctx.Done():
			u.logger.Info("aggregation stopped")
			return nil
		case event := <-u.events:
			u.handleEvent(event)
		case <-sweep:
			u.evictStale()
		}
	}
}

func (u *OrderBookAggregationUseCase) handleEvent(event *domain.OrderBookUpdateEvent) {
	receivedAt := event.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = u.now()
	}

	u.aggregator.Upsert(event.Exchange, event.OrderBook, receivedAt)
	u.observeSnapshot(event, receivedAt)

	if !u.warmedUp {
		if u.aggregator.ExchangeCount() < minExchangesToPublish {
			u.logger.Debug("waiting for more exchanges",
				zap.Stringer("exchange", event.Exchange),
				zap.Int("exchanges", u.aggregator.ExchangeCount()),
			)
			return
		}
		u.warmedUp = true
	}

	u.publishMerged()
}

func (u *OrderBookAggregationUseCase) evictStale() {
	evicted := u.aggregator.EvictStale(u.now(), u.staleAfter)
	if len(evicted) == 0 {
		return
	}

	for _, exchange := range evicted {
		promclient.EvictedSnapshotsTotal.WithLabelValues(exchange.String()).Inc()
		u.logger.Warn("evicted stale snapshot",
			zap.Stringer("exchange", exchange),
			zap.Duration("staleAfter", u.staleAfter),
		)
	}
	promclient.AggregatedExchanges.Set(float64(u.aggregator.ExchangeCount()))

	if !u.warmedUp {
		return
	}
	if u.aggregator.ExchangeCount() < minExchangesToPublish {
		u.logger.Warn("merging with fewer exchanges",
			zap.Int("exchanges", u.aggregator.ExchangeCount()),
		)
	}

	u.publishMerged()
}

func (u *OrderBookAggregationUseCase) publishMerged() {
	merged := u.aggregator.Aggregate()
	u.book.Publish(merged)

	promclient.MergedPublishedTotal.Inc()
	promclient.AggregatedExchanges.Set(float64(u.aggregator.ExchangeCount()))
	if spread, ok := merged.Spread(); ok {
		promclient.MergedSpread.Set(spread.InexactFloat64())
	}
}

func (u *OrderBookAggregationUseCase) observeSnapshot(event *domain.OrderBookUpdateEvent, receivedAt time.Time) {
	label := event.Exchange.String()

	rate, ok := u.rates[event.Exchange]
	if !ok {
		rate = helpers.NewRateWindow(rateWindow)
		u.rates[event.Exchange] = rate
	}
	rate.Add(receivedAt)

	promclient.SnapshotsTotal.WithLabelValues(label).Inc()
	promclient.SnapshotLevels.WithLabelValues(label).Set(float64(event.OrderBook.Depth()))
	promclient.SnapshotRate.WithLabelValues(label).Set(rate.PerSecond(receivedAt))
}
