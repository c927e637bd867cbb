package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/grpcx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const grpcServiceName = "clinicbook.clinic.v1"

// startGrpcServer exposes the standard gRPC health service; the reported status
// follows the database check.
func startGrpcServer(ctx context.Context, logger *slog.Logger, port string, pool *db.Pool) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLogInterceptor(logger),
		),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)

	go watchHealth(ctx, healthSrv, db.ReadyCheck(pool), 10*time.Second)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		healthSrv.Shutdown()
		srv.GracefulStop()
	}()

	return nil
}

func watchHealth(ctx context.Context, srv *health.Server, check func(context.Context) error, every time.Duration) {
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		status := healthpb.HealthCheckResponse_SERVING
		if err := check(checkCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		srv.SetServingStatus("", status)
		srv.SetServingStatus(grpcServiceName, status)
	}

	update()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
