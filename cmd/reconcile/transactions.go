package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type transitionFunc func(svc transitioner) func(ctx context.Context, id uuid.UUID, actor, reason string) error

type transitioner interface {
	Revert(ctx context.Context, id uuid.UUID, actor, reason string) error
	Ignore(ctx context.Context, id uuid.UUID, actor, reason string) error
	Reset(ctx context.Context, id uuid.UUID, actor, reason string) error
}

func revertCmd(root *rootOptions) *cobra.Command {
	return transitionCmd(root, "revert TXID", "Undo the allocations of a matched transaction", "reverted",
		func(svc transitioner) func(context.Context, uuid.UUID, string, string) error { return svc.Revert })
}

func ignoreCmd(root *rootOptions) *cobra.Command {
	return transitionCmd(root, "ignore TXID", "Exclude a transaction from reconciliation", "ignored",
		func(svc transitioner) func(context.Context, uuid.UUID, string, string) error { return svc.Ignore })
}

func resetCmd(root *rootOptions) *cobra.Command {
	return transitionCmd(root, "reset TXID", "Return an ignored transaction to the unmatched pool", "reset",
		func(svc transitioner) func(context.Context, uuid.UUID, string, string) error { return svc.Reset })
}

func transitionCmd(root *rootOptions, use, short, done string, pick transitionFunc) *cobra.Command {
	var actor, reason string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction ID: %w", err)
			}

			svc, closeDB, err := root.openService(cmd)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := pick(svc)(cmd.Context(), id, actor, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "transaction %s %s\n", id, done)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "who performs the change")
	cmd.Flags().StringVar(&reason, "reason", "", "free-text reason recorded in the audit log")
	return cmd
}
