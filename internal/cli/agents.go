package cli

import (
	"github.com/spf13/cobra"
)

func newAgentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List registered agent kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)

			reg, err := app.newRegistry()
			if err != nil {
				return err
			}

			infos := reg.Describe()
			rows := make([][]string, len(infos))
			for i, info := range infos {
				rows[i] = []string{info.Kind, info.Description}
			}

			out.Print([]string{"KIND", "DESCRIPTION"}, rows, infos)
			return nil
		},
	}
}
