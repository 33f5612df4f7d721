package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/config"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/logging"
)

// configKeyAnnotation marks a flag as the CLI source of a config key.
const configKeyAnnotation = "usersvc/config-key"

var (
	cfgFile string

	v      = config.New()
	cfg    config.Config
	logger = zap.NewNop()
)

// rootCmd is the base command for the CLI.  It delegates to
// subcommands defined in client.go, server.go and load.go.  Before any
// subcommand runs, flags annotated with a config key are bound into
// viper and the merged configuration and logger are built.
var rootCmd = &cobra.Command{
	Use:          "usersvc",
	Short:        "User management service",
	Long:         "Command line interface to run the user service, interact with it as a client, and load test it.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if keys, ok := f.Annotations[configKeyAnnotation]; ok && bindErr == nil {
				bindErr = v.BindPFlag(keys[0], f)
			}
		})
		if bindErr != nil {
			return bindErr
		}

		var err error
		if cfg, err = config.Load(v, cfgFile); err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.  It should be invoked from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bindFlag ties flag name in fs to config key.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile,
		"config", "", "Path to a config file (yaml, json or toml)")

	rootCmd.PersistentFlags().String(
		"log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().String(
		"log-format", "json", "Log format (json or console)")

	bindFlag(rootCmd.PersistentFlags(), "log-level", "log.level")
	bindFlag(rootCmd.PersistentFlags(), "log-format", "log.format")
}
