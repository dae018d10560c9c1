package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func exportCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export findings and the audit log to a report file",
		Long:  "Writes a csv (findings only) or xlsx (findings and logs) report, chosen by the output file extension.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := newEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer eng.close()

			switch strings.ToLower(filepath.Ext(out)) {
			case ".csv":
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := eng.exporter.FindingsCSV(ctx, f); err != nil {
					return err
				}
			case ".xlsx":
				wb, err := eng.exporter.Workbook(ctx)
				if err != nil {
					return err
				}
				defer wb.Close()
				if err := wb.SaveAs(out); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported report format %q, use .csv or .xlsx", filepath.Ext(out))
			}

			color.Green("Report written to %s", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "migration-report.xlsx", "Output file (.csv or .xlsx)")
	return cmd
}
