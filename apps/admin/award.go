package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nujoom/school/core/points"
)

func (cli *commandLine) awardCommand() *cobra.Command {
	var (
		nt       points.NewTransaction
		negative bool
	)
	cmd := &cobra.Command{
		Use:   "award",
		Short: "Record a points transaction and refresh the student's balance",
		Long: `Record a points transaction and refresh the student's balance.

Examples:
  admin award --user 42 --points 10 --category homework
  admin award --user 42 --points 5 --negative --category recharge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			nt.IsPositive = !negative
			tx, res, err := cli.pointsSvc.Record(context.Background(), nt, "en")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded %s: %+d points (%s)\n%s\n", tx.ID, tx.Signed(), tx.Category, res.Message)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nt.OwnerID, "user", "", "the student's user ID")
	cmd.Flags().Int64Var(&nt.Points, "points", 0, "the number of points")
	cmd.Flags().BoolVar(&negative, "negative", false, "deduct the points instead of adding them")
	cmd.Flags().StringVar(&nt.Category, "category", "", "the transaction category")
	return cmd
}
