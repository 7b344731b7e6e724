package commands

import (
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/export"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/spf13/cobra"
)

func NewPoliciesCmd(session *Session, reporter *export.Reporter) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "Browse the policy catalog",
	}
	cmd.AddCommand(newPoliciesListCmd(session, reporter))
	cmd.AddCommand(newPoliciesShowCmd(session, reporter))
	return cmd
}

type PoliciesListCmd struct {
	provider     string
	resourceType string
	control      string
	sort         string
	desc         bool
	page         int
	session      *Session
	reporter     *export.Reporter
}

func newPoliciesListCmd(session *Session, reporter *export.Reporter) *cobra.Command {
	pc := &PoliciesListCmd{session: session, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the policies of a provider",
		Args:  cobra.NoArgs,
		RunE:  pc.run,
	}

	cmd.Flags().StringVar(&pc.provider, "provider", "azure", "Provider to list policies for (azure, aws, gcp)")
	cmd.Flags().StringVar(&pc.resourceType, "filter", "", "Only show policies whose resource type contains this text")
	cmd.Flags().StringVar(&pc.control, "control", "", "Only show policies mapped to a matching compliance control")
	cmd.Flags().StringVar(&pc.sort, "sort", string(rules.SortByName), "Sort by name, rules or modified")
	cmd.Flags().BoolVar(&pc.desc, "desc", false, "Sort in descending order")
	cmd.Flags().IntVar(&pc.page, "page", 1, "Page to show")

	return cmd
}

func (pc *PoliciesListCmd) run(cmd *cobra.Command, _ []string) error {
	sort := rules.SortKey(pc.sort)
	switch sort {
	case rules.SortByName, rules.SortByRules, rules.SortByModified:
	default:
		return fmt.Errorf("unknown sort key %q, expected name, rules or modified", pc.sort)
	}
	if pc.page < 1 {
		return fmt.Errorf("page must be at least 1")
	}

	services, err := pc.session.Services(cmd.Context())
	if err != nil {
		return err
	}

	page, err := services.Catalog.List(cmd.Context(), pc.provider, rules.Query{
		ResourceType: pc.resourceType,
		Control:      pc.control,
		Sort:         sort,
		Desc:         pc.desc,
		Page:         pc.page,
	})
	if err != nil {
		return err
	}
	return pc.reporter.Policies(pc.provider, page)
}

type PoliciesShowCmd struct {
	provider string
	session  *Session
	reporter *export.Reporter
}

func newPoliciesShowCmd(session *Session, reporter *export.Reporter) *cobra.Command {
	pc := &PoliciesShowCmd{session: session, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a policy with its extracted metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  pc.run,
	}

	cmd.Flags().StringVar(&pc.provider, "provider", "azure", "Provider the policy belongs to")

	return cmd
}

func (pc *PoliciesShowCmd) run(cmd *cobra.Command, args []string) error {
	services, err := pc.session.Services(cmd.Context())
	if err != nil {
		return err
	}

	file, content, err := services.Catalog.Read(cmd.Context(), pc.provider, args[0])
	if err != nil {
		return err
	}
	return pc.reporter.Policy(file, content)
}
