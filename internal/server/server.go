package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/rpc"
)

// NewGRPC builds a gRPC server with the user service registered and a
// request-logging interceptor installed.
func NewGRPC(svc UserService, logger *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary(logger)))
	gs := grpc.NewServer(opts...)
	rpc.RegisterUserServiceServer(gs, NewGRPCServer(svc, logger))
	return gs
}

// Run starts a gRPC server listening on addr using the provided
// service.  It blocks until ctx is cancelled (then stops gracefully) or
// the server fails.
func Run(ctx context.Context, addr string, svc UserService, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, NewGRPC(svc, logger))
}

// RunTLS is Run with mutual TLS.  Clients must present a certificate
// signed by the CA in caFile.
func RunTLS(ctx context.Context, addr, certFile, keyFile, caFile string, svc UserService, logger *zap.Logger) error {
	cfg, err := ServerTLSConfig(certFile, keyFile, caFile)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, lis, NewGRPC(svc, logger, grpc.Creds(credentials.NewTLS(cfg))))
}

// Serve runs gs on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, gs *grpc.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.Serve(lis)
	}()
	select {
	case <-ctx.Done():
		gs.GracefulStop()
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("took", time.Since(start)))
		return resp, err
	}
}
