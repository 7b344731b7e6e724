package terminal

import (
	"context"
	"io"
	"os"

	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/commands"
	"github.com/de-tools/policy-atlas/pkg/runtime/terminal/export"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// CLI represents the command-line interface
type CLI struct {
	session  *commands.Session
	reporter *export.Reporter
	fs       afero.Fs
	rootCmd  *cobra.Command
}

// Options contain configuration for the CLI
type Options struct {
	Connect commands.Connector
	Output  io.Writer
	// Fs reads plan files. Defaults to the OS filesystem.
	Fs afero.Fs
	// Plain disables colour output.
	Plain bool
}

// NewCLI creates a new CLI instance
func NewCLI(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	reporter := export.NewReporter(opts.Output)
	if opts.Plain {
		reporter.Plain()
	}

	cli := &CLI{
		session:  commands.NewSession(opts.Connect),
		reporter: reporter,
		fs:       opts.Fs,
	}

	cli.rootCmd = cli.newRootCmd()
	cli.rootCmd.SetOut(opts.Output)
	return cli
}

func (cli *CLI) Execute(ctx context.Context) error {
	defer cli.session.Close()
	return cli.rootCmd.ExecuteContext(ctx)
}

// SetArgs overrides os.Args, mainly for tests.
func (cli *CLI) SetArgs(args []string) {
	cli.rootCmd.SetArgs(args)
}

func (cli *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "policy-atlas",
		Short:         "Terraform plan compliance auditor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&cli.session.ConfigPath, "config", "c", "",
		"Path to a config file (environment variables apply either way)")

	cmd.AddCommand(commands.NewAuditCmd(cli.session, cli.reporter, cli.fs))
	cmd.AddCommand(commands.NewPoliciesCmd(cli.session, cli.reporter))
	cmd.AddCommand(commands.NewReportsCmd(cli.session, cli.reporter))

	return cmd
}
