package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vmforge/config"
	"vmforge/internal/app"
	"vmforge/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		dbPath     string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "vmforged",
		Short: "Machine provisioning daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			// Flags win over the file.
			if listen != "" {
				cfg.Listen = listen
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			level := cfg.LogLevel
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default "+config.Path()+")")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "Machine database path")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}
