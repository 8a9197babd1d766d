package main

import (
	"fmt"
	"os"

	"vmforge/cmd/vmforge/machinecmd"
	"vmforge/cmd/vmforge/ui"
	"vmforge/internal/logging"

	"github.com/spf13/cobra"
)

const (
	envServer = "VMFORGE_SERVER"
	envUser   = "VMFORGE_USER"
)

func main() {
	var (
		debug  bool
		server string
		user   string
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	ui.Init()

	root := &cobra.Command{
		Use:           "vmforge",
		Short:         "Virtual machine provisioning",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level)
		},
	}

	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&server, "server", defaultServer(), "Daemon base URL")
	root.PersistentFlags().StringVar(&user, "user", os.Getenv(envUser), "Tenant identity to act as")

	root.AddCommand(machinecmd.Cmd(&server, &user))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}

func defaultServer() string {
	if v := os.Getenv(envServer); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
