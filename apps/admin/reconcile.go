package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nujoom/school/core/points"
)

var errNoRecipients = errors.New("no report recipients configured")

func (cli *commandLine) reconcileCommand() *cobra.Command {
	var (
		ownerID string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute the points balance of one student",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			res, err := cli.pointsSvc.Reconcile(context.Background(), ownerID, force)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&ownerID, "user", "", "the student's user ID")
	cmd.Flags().BoolVar(&force, "force", false, "recompute even when the summary is trusted")
	return cmd
}

func (cli *commandLine) reconcileAllCommand() *cobra.Command {
	var force, email bool
	cmd := &cobra.Command{
		Use:   "reconcile-all",
		Short: "Recompute the points balance of every student",
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients := cli.conf.ReportRecipients()
			if email && len(recipients) == 0 {
				return errNoRecipients
			}

			report, err := cli.pointsSvc.ReconcileAll(context.Background(), force)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "owners: %d, reconciled: %d, created: %d, from cache: %d, drifted: %d, failed: %d\n",
				report.Owners, report.Reconciled, report.Created, report.Cached, len(report.Drifts), len(report.Failures))
			for _, f := range report.Failures {
				_, _ = fmt.Fprintf(out, "failed %s: %s\n", f.OwnerID, f.Error)
			}

			if email {
				msg := points.NewReportMessage(report, recipients)
				// the mailers only log render errors
				if err = msg.Render(cli.conf.AppName); err != nil {
					return errors.Wrap(err, "rendering report email")
				}
				cli.mailSvc.SendMessages(msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "recompute even when summaries are trusted")
	cmd.Flags().BoolVar(&email, "email", false, "email the report to the configured recipients")
	return cmd
}
