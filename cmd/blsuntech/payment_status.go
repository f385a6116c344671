package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smallbiznis/blsuntech/internal/checkout/domain"
	"github.com/smallbiznis/blsuntech/internal/reconcile"
	"github.com/spf13/cobra"
)

func paymentStatusCmd() *cobra.Command {
	var (
		apiBase     string
		maxAttempts int
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "payment-status [session_id]",
		Short: "Poll a checkout session until payment is confirmed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}

			fetcher, err := reconcile.NewHTTPFetcher(apiBase, nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			poller := reconcile.NewPoller(fetcher, sessionID, reconcile.Config{
				MaxAttempts: maxAttempts,
				Interval:    interval,
			})
			last := printSnapshots(ctx, cmd.OutOrStdout(), poller)
			if last.State == reconcile.StateError {
				return fmt.Errorf("payment status: %s", last.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiBase, "api-base", envOr("BLSUNTECH_API_BASE", "http://localhost:5050/api"), "Base URL of the intake API")
	cmd.Flags().IntVar(&maxAttempts, "attempts", reconcile.DefaultMaxAttempts, "Number of polls before giving up")
	cmd.Flags().DurationVar(&interval, "interval", reconcile.DefaultInterval, "Delay between polls")

	return cmd
}

// printSnapshots prints every state change and cancels the poller once it
// has nothing left to do automatically.
func printSnapshots(ctx context.Context, w io.Writer, poller *reconcile.Poller) reconcile.Snapshot {
	var last reconcile.Snapshot
	for snap := range poller.Start(ctx) {
		last = snap
		fmt.Fprintf(w, "[%s] %s\n", snap.State, snap.Message)
		if snap.Session != nil && snap.State == reconcile.StatePaid {
			printSession(w, *snap.Session, snap.OfferingLabel)
		}
		if snap.State == reconcile.StateUnpaid && !snap.Retrying {
			poller.Cancel()
		}
	}
	return last
}

func printSession(w io.Writer, s domain.Session, label string) {
	fmt.Fprintf(w, "  session:  %s\n", s.ID)
	if label != "" {
		fmt.Fprintf(w, "  service:  %s\n", label)
	}
	fmt.Fprintf(w, "  amount:   %s %s\n", domain.FormatAmount(s.AmountTotal), s.Currency)
	if s.Customer != nil && s.Customer.Email != "" {
		fmt.Fprintf(w, "  customer: %s <%s>\n", s.Customer.Name, s.Customer.Email)
	}
	if s.PaymentIntent != nil {
		fmt.Fprintf(w, "  intent:   %s (%s)\n", s.PaymentIntent.ID, s.PaymentIntent.Status)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
