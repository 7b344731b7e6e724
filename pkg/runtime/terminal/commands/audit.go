package commands

import (
	"errors"
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// ErrViolationsFound is returned by the audit command when the plan breaks
// at least one rule.
var ErrViolationsFound = errors.New("violations found")

type AuditCmd struct {
	owner    string
	tags     []string
	provider string
	strict   bool
	fs       afero.Fs
	session  *Session
	reporter *export.Reporter
}

func NewAuditCmd(session *Session, reporter *export.Reporter, fs afero.Fs) *cobra.Command {
	ac := &AuditCmd{session: session, reporter: reporter, fs: fs}
	cmd := &cobra.Command{
		Use:   "audit <plan.json>",
		Short: "Audit a Terraform plan against the policy catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.owner, "owner", "", "Owner recorded in the report metadata")
	cmd.Flags().StringSliceVar(&ac.tags, "tags", nil, "Comma separated tags recorded in the report metadata")
	cmd.Flags().StringVar(&ac.provider, "provider", "", "Cloud provider of the plan (azure, aws, gcp)")
	cmd.Flags().BoolVar(&ac.strict, "strict", true, "Exit with a failure status when violations are found")

	return cmd
}

func (ac *AuditCmd) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := afero.ReadFile(ac.fs, args[0])
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	plan, err := audit.ParsePlan(data, args[0])
	if err != nil {
		return err
	}

	services, err := ac.session.Services(ctx)
	if err != nil {
		return err
	}

	opts := services.Defaults
	if ac.owner != "" {
		opts.Owner = ac.owner
	}
	if ac.tags != nil {
		opts.Tags = ac.tags
	}
	if ac.provider != "" {
		opts.Provider = ac.provider
	}

	report, err := services.Auditor.Run(ctx, plan, opts)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}

	if err := ac.reporter.Report(*report); err != nil {
		return err
	}

	if ac.strict && report.Summary.TotalViolations > 0 {
		return fmt.Errorf("%w: %d in %s", ErrViolationsFound, report.Summary.TotalViolations, report.SourceFile)
	}
	return nil
}
