package commands

import (
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

func NewReportsCmd(session *Session, reporter *export.Reporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage stored compliance reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := session.Services(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := services.Reports.List(cmd.Context())
			if err != nil {
				return err
			}
			return reporter.Entries(entries)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <report-id>",
		Short: "Show a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := session.Services(cmd.Context())
			if err != nil {
				return err
			}
			report, err := services.Reports.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return reporter.Report(report)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <report-id>",
		Short: "Delete a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := session.Services(cmd.Context())
			if err != nil {
				return err
			}
			if err := services.Reports.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s deleted\n", args[0])
			return nil
		},
	})

	return cmd
}
