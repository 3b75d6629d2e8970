package main

import (
	"github.com/spf13/cobra"

	"github.com/joelkehle/normanpd/internal/report"
	"github.com/joelkehle/normanpd/internal/store"
)

func newExportCmd(a *app) *cobra.Command {
	var xlsxPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored incidents to a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openExistingStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			records, err := st.List(ctx, store.Filter{})
			if err != nil {
				return err
			}
			counts, err := st.AggregateByCategory(ctx)
			if err != nil {
				return err
			}
			if err := report.ExportXLSX(xlsxPath, records, counts); err != nil {
				return err
			}
			a.logger.Info("export.xlsx.ok", "path", xlsxPath, "incidents", len(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "output .xlsx path")
	_ = cmd.MarkFlagRequired("xlsx")
	return cmd
}
