package main

import (
	"github.com/spf13/cobra"

	"github.com/trezcool/stipend/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate <command> [args]",
		Short:              "Run a goose migration command (up, up-to, down, down-to, redo, reset, status, version, create, fix)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			return gooseRunFunc(cli.db, args[0], args[1:]...)
		},
	}
}
