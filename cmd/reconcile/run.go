package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	service "bank-reconciliation-engine/internal/services/reconciliation"
)

func runCmd(root *rootOptions) *cobra.Command {
	var (
		account string
		budget  time.Duration
		quiet   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile one account, or every account",
		Long: `Run a reconciliation pass. Without --account every account is processed,
several at a time. --budget stops the run after the given duration; the
transaction in flight is always committed first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var accountID uuid.UUID
			if account != "" {
				id, err := uuid.Parse(account)
				if err != nil {
					return fmt.Errorf("invalid --account: %w", err)
				}
				accountID = id
			}

			var extra []service.Option
			var bar *progressbar.ProgressBar
			if !quiet {
				bar = newProgressBar(cmd.ErrOrStderr())
				extra = append(extra, service.WithProgress(func(p service.Progress) {
					if p.Summary == nil && p.ProcessedCount > 0 {
						if err := bar.Add(1); err != nil {
							slog.Warn("Failed to update progress bar", "error", err)
						}
					}
				}))
			}

			svc, closeDB, err := root.openService(cmd, extra...)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx := cmd.Context()
			if budget > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, budget)
				defer cancel()
			}

			var summaries []*service.Summary
			if accountID != uuid.Nil {
				summary, err := svc.RunAccount(ctx, accountID)
				if err != nil {
					return err
				}
				summaries = append(summaries, summary)
			} else {
				summaries, err = svc.RunAll(ctx)
				if err != nil {
					return err
				}
			}
			if bar != nil {
				_ = bar.Finish()
			}

			printSummaries(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account ID to reconcile (default: all accounts)")
	cmd.Flags().DurationVar(&budget, "budget", 0, "stop the run after this long, e.g. 30s")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "hide the progress bar")
	return cmd
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Reconciling transactions..."),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func printSummaries(w io.Writer, summaries []*service.Summary) {
	for _, s := range summaries {
		state := "completed"
		if s.Cancelled {
			state = "cancelled"
		}
		fmt.Fprintf(w, "account %s (run %s) %s\n", s.AccountID, s.RunID, state)
		fmt.Fprintf(w, "  processed: %d  auto-matched: %d  review: %d  unresolved: %d  skipped: %d  not attempted: %d\n",
			s.Processed, s.AutoMatched, s.QueuedForReview, s.Unresolved, s.Skipped, s.NotAttempted)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  error %s [%s]: %s\n", e.TransactionID, e.Kind, e.Message)
		}
	}
}
