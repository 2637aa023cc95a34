package main

import (
	"github.com/spf13/cobra"

	"crossref/internal/creators"
)

func newCreatorsCommand(ctx *commandContext) *cobra.Command {
	creatorsCmd := &cobra.Command{
		Use:   "creators",
		Short: "Inspect the creator registry",
	}
	creatorsCmd.AddCommand(newCreatorsListCommand(ctx))
	return creatorsCmd
}

func newCreatorsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every creator in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			list, err := eng.Creators.All()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if list == nil {
					list = []creators.Creator{}
				}
				return writeJSON(cmd, list)
			}
			rows := make([][]string, 0, len(list))
			for _, c := range list {
				rows = append(rows, []string{c.Name, c.Nebula, c.NebulaAlt, c.Channel, c.Uploads})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"Name", "Nebula", "Alternate", "Channel", "Uploads"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft})
			return nil
		},
	}
}
