package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/loadtest"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/service"
)

const (
	targetLocal = "local"
	targetGRPC  = "grpc"
)

var (
	loadWorkers  int
	loadRequests int
	loadCleanup  bool
	loadTarget   string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run concurrent create load and report throughput",
	Long: "Drives --workers concurrent callers, each creating --requests unique users, " +
		"either against an in-process service (--target local) or a running server (--target grpc).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var target loadtest.Target
		switch loadTarget {
		case targetLocal:
			st, closeStore, err := openStore(cfg.Store)
			if err != nil {
				return err
			}
			defer closeStore()
			target = service.New(st, logger)
		case targetGRPC:
			c, err := getClient()
			if err != nil {
				return err
			}
			defer c.Close()
			target = c
		default:
			return fmt.Errorf("unknown target %q (want %s or %s)", loadTarget, targetLocal, targetGRPC)
		}

		h, err := loadtest.New(target, loadtest.Config{
			Workers:           loadWorkers,
			RequestsPerWorker: loadRequests,
			Cleanup:           loadCleanup,
		}, logger)
		if err != nil {
			return err
		}

		report, err := h.Run(ctx)
		fmt.Println("=== LOAD TEST RESULTS ===")
		fmt.Print(report)
		return err
	},
}

func init() {
	fs := loadCmd.Flags()

	fs.IntVarP(&loadWorkers, "workers", "w", 10, "Number of concurrent workers")

	fs.IntVarP(&loadRequests, "requests", "n", 10, "Create calls per worker")

	fs.BoolVar(&loadCleanup, "cleanup", false, "Delete created users after the run")

	fs.StringVarP(&loadTarget, "target", "t", targetLocal, "Where to send load (local or grpc)")

	addDialFlags(fs)
	addStoreFlags(fs)

	rootCmd.AddCommand(loadCmd)
}
