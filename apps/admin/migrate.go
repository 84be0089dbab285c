package main

import (
	"github.com/spf13/cobra"

	"github.com/nujoom/school/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a goose command over the embedded migrations",
		Long: `Run a goose command over the embedded migrations.

Examples:
  admin migrate up
  admin migrate up-to 2
  admin migrate status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return gooseRunFunc(args[0], cli.db, args[1:]...)
		},
	}
}
