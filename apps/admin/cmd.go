package main

import (
	"database/sql"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/ingest"
	"github.com/trezcool/stipend/core/valuation"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sql.DB
	asgSvc   assignment.ServiceInterface
	pipeline *ingest.Pipeline
	engine   *valuation.Engine
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         "Stipend administration tool",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.out)

	cmd.AddCommand(cli.migrateCmd())
	cmd.AddCommand(cli.uploadCmd())
	cmd.AddCommand(cli.templateCmd())
	cmd.AddCommand(cli.exportCmd())
	cmd.AddCommand(cli.rulesCmd())
	return cmd
}

// run executes the command line `args` (program name included).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}
