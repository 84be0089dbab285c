package main

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

var errHelp = errors.New("help provided")

type pointsService interface {
	Reconcile(ctx context.Context, ownerID string, forceRefresh bool) (points.ReconcileResult, error)
	ReconcileAll(ctx context.Context, forceRefresh bool) (points.Report, error)
	Record(ctx context.Context, nt points.NewTransaction, locale string) (points.Transaction, points.SyncResult, error)
}

type commandLine struct {
	conf      *core.Config
	db        *sql.DB
	pointsSvc pointsService
	mailSvc   core.EmailService
	out       io.Writer
}

func (cli *commandLine) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "admin",
		Short:         cli.conf.AppName + " admin",
		Long:          "Maintenance commands for the " + cli.conf.AppName + " points system.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	cmd.SetOut(cli.out)
	cmd.SetErr(cli.out)

	cmd.AddCommand(cli.migrateCommand())
	cmd.AddCommand(cli.reconcileCommand())
	cmd.AddCommand(cli.reconcileAllCommand())
	cmd.AddCommand(cli.awardCommand())
	return cmd
}

// run executes args, program name included.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCommand()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}
