package rpc

import (
	"context"
	"net"

	gen "github.com/jzajpt/orderbook-aggregator-service/gen"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Serve runs the gRPC server on lis until ctx is done, then stops it
// gracefully. The health service reports SERVING while it runs.
func Serve(ctx context.Context, lis net.Listener, srv gen.OrderbookAggregatorServer, logger *zap.Logger) error {
	logger = logger.Named("grpc")

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()

	gen.RegisterOrderbookAggregatorServer(grpcServer, srv)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(gen.OrderbookAggregator_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("stopping gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	}()

	logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := grpcServer.Serve(lis); err != nil {
		return err
	}

	<-stopped
	return nil
}
