package promclient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var SnapshotsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_snapshots_total",
		Help: "order book snapshots received per exchange",
	},
	[]string{"exchange"},
)

var SnapshotLevels = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "orderbook_snapshot_levels",
		Help: "bid and ask levels in the latest snapshot per exchange",
	},
	[]string{"exchange"},
)

var SnapshotRate = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "orderbook_snapshot_rate",
		Help: "snapshots per second over the last 10s per exchange",
	},
	[]string{"exchange"},
)

var EvictedSnapshotsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_evicted_snapshots_total",
		Help: "stale snapshots dropped from the aggregate per exchange",
	},
	[]string{"exchange"},
)

var FeedRestartsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderbook_feed_restarts_total",
		Help: "exchange feeds restarted after terminating",
	},
	[]string{"exchange"},
)

var MergedPublishedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderbook_merged_published_total",
		Help: "merged order books published to subscribers",
	},
)

var AggregatedExchanges = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_aggregated_exchanges",
		Help: "exchanges with a snapshot in the aggregate",
	},
)

var MergedSpread = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_merged_spread",
		Help: "spread of the latest merged order book",
	},
)

var ActiveSubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "orderbook_active_subscribers",
		Help: "open BookSummary streams",
	},
)

// NewRegistry registers every service collector plus the Go runtime collector
// in a fresh registry.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(SnapshotsTotal)
	reg.MustRegister(SnapshotLevels)
	reg.MustRegister(SnapshotRate)
	reg.MustRegister(EvictedSnapshotsTotal)
	reg.MustRegister(FeedRestartsTotal)
	reg.MustRegister(MergedPublishedTotal)
	reg.MustRegister(AggregatedExchanges)
	reg.MustRegister(MergedSpread)
	reg.MustRegister(ActiveSubscribers)
	reg.MustRegister(collectors.NewGoCollector())

	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// StartPromClientServer serves /metrics on addr until ctx is done.
func StartPromClientServer(ctx context.Context, addr string, logger *zap.Logger) error {
	logger = logger.Named("prometheus")

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(NewRegistry()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("prometheus server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
