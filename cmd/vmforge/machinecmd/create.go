package machinecmd

import (
	"fmt"

	"vmforge/cmd/vmforge/ui"
	"vmforge/pkg/client"

	"github.com/spf13/cobra"
)

func createCmd(server, user *string) *cobra.Command {
	var (
		password string
		cpuCores int
		memoryGB int
		diskGB   int
		osName   string
	)

	cmd := &cobra.Command{
		Use:   "create <hostname>",
		Short: "Request a new virtual machine",
		Long: `Request a new virtual machine.

The request returns as soon as the machine is recorded; provisioning
continues in the background. Watch progress with "vmforge machine list".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(server, user)
			if err != nil {
				return err
			}

			sum, err := c.CreateMachine(cmd.Context(), client.CreateMachineRequest{
				Hostname:   args[0],
				Password:   password,
				CPUCores:   cpuCores,
				MemorySize: memoryGB,
				DiskSize:   diskGB,
				OS:         osName,
			})
			if err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("machine %s accepted", ui.Accent(sum.Hostname)))
			fmt.Println(ui.Muted("  id:     " + sum.ID))
			fmt.Println(ui.Muted("  status: ") + ui.Status(sum.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Provisioning secret for the machine (required)")
	cmd.Flags().IntVar(&cpuCores, "cpu", 1, "CPU core count (1-64)")
	cmd.Flags().IntVar(&memoryGB, "memory", 1, "Memory in GB (1-512)")
	cmd.Flags().IntVar(&diskGB, "disk", 10, "Disk size in GB (10-10000)")
	cmd.Flags().StringVar(&osName, "os", "linux", "Operating system label")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
