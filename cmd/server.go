package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/server"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/service"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the user service",
	Long:  "Commands related to running the gRPC and HTTP servers.",
}

var runServerCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gRPC and HTTP servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, closeStore, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()
		logger.Info("store ready", zap.String("backend", cfg.Store.Backend))

		svc := service.New(st, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		g, gctx := errgroup.WithContext(ctx)

		sc := cfg.Server
		g.Go(func() error {
			if sc.MTLS {
				logger.Info("starting gRPC server with mTLS", zap.String("addr", sc.GRPCAddr))
				return server.RunTLS(gctx, sc.GRPCAddr, sc.Cert, sc.Key, sc.CA, svc, logger)
			}
			logger.Info("starting insecure gRPC server", zap.String("addr", sc.GRPCAddr))
			return server.Run(gctx, sc.GRPCAddr, svc, logger)
		})

		if sc.HTTPAddr != "" {
			g.Go(func() error {
				logger.Info("starting HTTP server", zap.String("addr", sc.HTTPAddr))
				return server.NewHTTPServer(svc, logger).ListenAndServe(gctx, sc.HTTPAddr)
			})
		}

		err = g.Wait()
		logger.Info("servers stopped")
		return err
	},
}

func init() {
	fs := runServerCmd.Flags()

	fs.StringP("addr", "a", "0.0.0.0:9090", "Address for the gRPC server to listen on")

	fs.String("http-addr", "0.0.0.0:8080", "Address for the HTTP server to listen on (empty disables it)")

	fs.Bool("mtls", false, "Enable mutual TLS (requires --cert, --key, --ca)")

	fs.String("cert", "", "Path to server certificate (PEM)")

	fs.String("key", "", "Path to server private key (PEM)")

	fs.String("ca", "", "Path to CA certificate for verifying client certificates (PEM)")

	bindFlag(fs, "addr", "server.grpc_addr")
	bindFlag(fs, "http-addr", "server.http_addr")
	bindFlag(fs, "mtls", "server.mtls")
	bindFlag(fs, "cert", "server.cert")
	bindFlag(fs, "key", "server.key")
	bindFlag(fs, "ca", "server.ca")
	addStoreFlags(fs)

	serverCmd.AddCommand(runServerCmd)
	rootCmd.AddCommand(serverCmd)
}
