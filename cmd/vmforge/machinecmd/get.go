package machinecmd

import (
	"fmt"

	"vmforge/cmd/vmforge/ui"

	"github.com/spf13/cobra"
)

func getCmd(server, user *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one machine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(server, user)
			if err != nil {
				return err
			}

			m, err := c.GetMachine(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(ui.Accent(m.Hostname) + "  " + ui.Status(m.Status))
			fmt.Printf("  id:       %s\n", m.ID)
			fmt.Printf("  size:     %d cores, %d GB memory, %d GB disk\n", m.CPUCores, m.MemorySize, m.DiskSize)
			fmt.Printf("  os:       %s\n", m.OS)
			if m.NetworkAddress != nil {
				fmt.Printf("  address:  %s\n", *m.NetworkAddress)
			}
			if m.FailureReason != nil {
				fmt.Printf("  failure:  %s\n", *m.FailureReason)
			}
			fmt.Printf("  created:  %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("  updated:  %s\n", m.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	return cmd
}
