package machinecmd

import (
	"fmt"
	"strconv"

	"vmforge/cmd/vmforge/ui"

	"github.com/spf13/cobra"
)

func listCmd(server, user *string) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your virtual machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(server, user)
			if err != nil {
				return err
			}

			list, err := c.ListMachines(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			if len(list.Data) == 0 {
				fmt.Println(ui.Muted("no machines"))
				return nil
			}

			rows := make([][]string, len(list.Data))
			for i, m := range list.Data {
				address := "-"
				if m.NetworkAddress != nil {
					address = *m.NetworkAddress
				}
				detail := ""
				if m.FailureReason != nil {
					detail = *m.FailureReason
				}
				rows[i] = []string{
					m.Hostname,
					ui.Status(m.Status),
					address,
					fmt.Sprintf("%dc/%dG/%dG", m.CPUCores, m.MemorySize, m.DiskSize),
					m.OS,
					m.CreatedAt.Local().Format("2006-01-02 15:04"),
					detail,
				}
			}
			fmt.Println(ui.Table(
				[]string{"Hostname", "Status", "Address", "Size", "OS", "Created", "Detail"},
				rows,
			))

			p := list.Pagination
			if p.TotalPages > 1 {
				fmt.Println(ui.Muted(
					"page " + strconv.Itoa(p.Page) + " of " + strconv.Itoa(p.TotalPages) +
						" (" + strconv.Itoa(p.Total) + " machines)"))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "Machines per page")
	return cmd
}
