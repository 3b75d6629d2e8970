package main

import (
	"github.com/spf13/cobra"

	"github.com/joelkehle/normanpd/internal/report"
)

func newStatusCmd(a *app) *cobra.Command {
	var total bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the per-nature breakdown of the existing database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openExistingStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			counts, err := st.AggregateByCategory(ctx)
			if err != nil {
				return err
			}
			if err := report.WriteStatus(cmd.OutOrStdout(), counts); err != nil {
				return err
			}
			if !total {
				return nil
			}
			n, err := st.Count(ctx)
			if err != nil {
				return err
			}
			return report.WriteTotal(cmd.OutOrStdout(), n)
		},
	}
	cmd.Flags().BoolVar(&total, "total", false, "also print the total number of incidents")
	return cmd
}
