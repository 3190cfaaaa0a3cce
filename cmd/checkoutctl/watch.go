// AngelaMos | 2026
// watch.go

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/checkout-backend/internal/poller"
)

func watchCmd() *cobra.Command {
	var (
		apiURL   string
		token    string
		interval time.Duration
		deadline time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <purchase-id>",
		Short: "Poll a purchase until it completes, fails or times out",
		Long: `Poll a purchase the way the checkout page does.

Type "paid" and press enter to ask the server to verify the payment now.
The watchdog only stops this client; the purchase stays as it is on the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("CHECKOUT_TOKEN")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			p := poller.New(
				poller.NewHTTPClient(apiURL, token, 10*time.Second),
				poller.Config{
					Interval: interval,
					Deadline: deadline,
					OnError: func(err error) {
						fmt.Fprintf(cmd.ErrOrStderr(), "poll failed, retrying: %v\n", err)
					},
					OnStatus: func(s *poller.Status) {
						fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), s.Status)
					},
				},
			)

			h := p.Start(ctx, args[0])
			go readPaid(ctx, cmd, h)

			<-h.Done()
			res := h.Result()

			fmt.Fprintf(out, "result: %s\n", res.Outcome)
			if res.Status != nil && res.Status.TransactionID != nil {
				fmt.Fprintf(out, "transaction: %s\n", *res.Status.TransactionID)
			}
			if res.Outcome == poller.OutcomeFailed {
				return fmt.Errorf("purchase %s failed", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "checkout API base URL")
	cmd.Flags().StringVar(&token, "token", "", "access token (default $CHECKOUT_TOKEN)")
	cmd.Flags().DurationVar(&interval, "interval", poller.DefaultInterval, "time between status checks")
	cmd.Flags().DurationVar(&deadline, "deadline", poller.DefaultDeadline, "client-side watchdog")

	return cmd
}

func readPaid(ctx context.Context, cmd *cobra.Command, h *poller.Handle) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if !strings.EqualFold(strings.TrimSpace(scanner.Text()), "paid") {
			continue
		}
		status, err := h.MarkAsPaid(ctx)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "verify failed: %v\n", err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "verify: %s\n", status.Status)
	}
}
