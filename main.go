package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jzajpt/orderbook-aggregator-service/config"
	"github.com/jzajpt/orderbook-aggregator-service/infrastructure/logger"
	promclient "github.com/jzajpt/orderbook-aggregator-service/infrastructure/prometheus"
	"github.com/jzajpt/orderbook-aggregator-service/provider"
	"github.com/jzajpt/orderbook-aggregator-service/rpc"
	"github.com/jzajpt/orderbook-aggregator-service/usecase"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Debug)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	connManager, err := provider.NewConnectionManager(cfg, log)
	if err != nil {
		return err
	}

	aggregation := usecase.NewOrderBookAggregationUseCase(usecase.Options{
		DepthLimit:    cfg.Depth,
		FanInCapacity: cfg.FanInCapacity,
		StaleAfter:    cfg.StaleAfter,
	}, log)

	log.Info("starting orderbook aggregator",
		zap.String("pair", cfg.Pair),
		zap.Strings("exchanges", cfg.Exchanges),
		zap.Int("depth", cfg.Depth),
	)

	wg := &sync.WaitGroup{}

	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := promclient.StartPromClientServer(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = aggregation.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		connManager.Run(ctx, aggregation)
	}()

	srv := rpc.NewServer(aggregation, cfg.SubscriberBuffer, log)
	err = rpc.Serve(ctx, lis, srv, log)

	stop()
	wg.Wait()
	log.Info("shutdown complete")

	return err
}
