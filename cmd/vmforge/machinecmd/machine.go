// Package machinecmd implements the `vmforge machine` command group.
package machinecmd

import (
	"fmt"

	"vmforge/pkg/client"

	"github.com/spf13/cobra"
)

// Cmd builds the machine command group. server and user point at the
// root command's connection flags.
func Cmd(server, user *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "machine",
		Aliases: []string{"machines", "vm"},
		Short:   "Create and inspect virtual machines",
	}
	cmd.AddCommand(createCmd(server, user))
	cmd.AddCommand(listCmd(server, user))
	cmd.AddCommand(getCmd(server, user))
	return cmd
}

func newClient(server, user *string) (*client.Client, error) {
	if *user == "" {
		return nil, fmt.Errorf("tenant identity is required (--user or VMFORGE_USER)")
	}
	return client.New(*server, *user), nil
}
