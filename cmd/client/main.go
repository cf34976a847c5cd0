package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	gen "github.com/jzajpt/orderbook-aggregator-service/gen"
	"github.com/jzajpt/orderbook-aggregator-service/infrastructure/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultURL = "http://127.0.0.1:50051"

func main() {
	_ = godotenv.Load()

	log := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("DEBUG") == "true")
	defer log.Sync()

	url := os.Getenv("CLIENT_URL")
	if url == "" {
		url = defaultURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, target(url)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("client failed", zap.Error(err))
	}
}

// target strips the scheme so that http://host:port style URLs work.
func target(url string) string {
	for _, scheme := range []string{"http://", "https://", "grpc://"} {
		url = strings.TrimPrefix(url, scheme)
	}
	return url
}

func run(ctx context.Context, addr string) error {
	conn, err := grpc.DialContext(ctx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	stream, err := gen.NewOrderbookAggregatorClient(conn).BookSummary(ctx, &gen.Empty{})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	for {
		summary, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		fmt.Println(formatSummary(summary))
	}
}

func formatSummary(summary *gen.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "spread: %.8f", summary.Spread)
	if len(summary.Bids) > 0 {
		bid := summary.Bids[0]
		fmt.Fprintf(&b, " | best bid: %.8f x %.8f (%s)", bid.Price, bid.Amount, bid.Exchange)
	}
	if len(summary.Asks) > 0 {
		ask := summary.Asks[0]
		fmt.Fprintf(&b, " | best ask: %.8f x %.8f (%s)", ask.Price, ask.Amount, ask.Exchange)
	}
	return b.String()
}
