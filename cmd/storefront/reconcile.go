package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func reconcileCmd(configFile *string) *cobra.Command {
	var (
		sessionID string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile [session-id]",
		Short: "List paid orders still Pending in the ERP, or retry one session",
		Long: `Without a session id, lists payments recorded in the ledger that were never
marked Paid in the ERP. With a session id, runs the reconciler again for that
session, which must still be on the confirmation step.

Examples:
  storefront reconcile --older-than 30m
  storefront reconcile 1f0c2a9e-7d43-4c55-9a0e-2b7d8e3c6a10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				sessionID = args[0]
			}
			ctx := context.Background()
			a, err := loadApp(ctx, *configFile)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			out := cmd.OutOrStdout()
			if sessionID != "" {
				if err := printSessionRecords(ctx, a, out, sessionID); err != nil {
					return err
				}
				result, err := a.checkout.RetryReconciliation(ctx, sessionID)
				if err != nil {
					return err
				}
				if !result.Reconciled {
					msg := "reconciliation failed"
					if result.Error != nil {
						msg = result.Error.UserMessage
					}
					return fmt.Errorf("sales order %s: %s", result.SalesOrderID, msg)
				}
				fmt.Fprintf(out, "sales order %s marked Paid\n", result.SalesOrderID)
				return nil
			}

			if a.ledger == nil {
				return errors.New("ledger is disabled (LEDGER_DRIVER=none), no payment records to inspect")
			}
			payments, err := a.ledger.GetStuckPayments(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			if len(payments) == 0 {
				fmt.Fprintln(out, "no unreconciled payments")
				return nil
			}
			for _, p := range payments {
				fmt.Fprintf(out, "%s\tsession=%s\tgateway=%s\tpayment=%s\tpaid_at=%s\n",
					p.SalesOrderID, p.SessionID, p.Gateway, p.PaymentID, p.PaidAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "retry reconciliation for this session id")
	cmd.Flags().DurationVar(&olderThan, "older-than", 10*time.Minute, "only list payments older than this")
	return cmd
}

// printSessionRecords lists the ERP records the session created, one sales
// order per payment attempt.
func printSessionRecords(ctx context.Context, a *app, out io.Writer, sessionID string) error {
	if a.ledger == nil {
		return nil
	}
	records, err := a.ledger.ListExternalRecords(ctx, sessionID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s\t%s\tcreated_at=%s\n", rec.RecordType, rec.ExternalID, rec.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
