package cli

import (
	"github.com/spf13/cobra"

	"github.com/drblury/alertflow/internal/runtime/storage"
)

func newAlertsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Query stored alerts",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored alerts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			app, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			records, err := app.Store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	list.Flags().Int("limit", storage.DefaultListLimit, "maximum number of alerts")

	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one stored alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			rec, err := app.Store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, rec)
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}
