// AngelaMos | 2026
// db.go

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
	"github.com/carterperez-dev/templates/checkout-backend/internal/jobs/expiry"
	"github.com/carterperez-dev/templates/checkout-backend/internal/notify"
	"github.com/carterperez-dev/templates/checkout-backend/internal/purchase"
	"github.com/carterperez-dev/templates/checkout-backend/migrations"
)

func openDatabase(cmd *cobra.Command) (*config.Config, *core.Database, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	db, err := core.NewDatabase(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func expireCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Fail PENDING purchases whose payment window has closed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			logger := newLogger(cmd)
			if cmd.Flags().Changed("grace") {
				cfg.Checkout.ExpiryGrace = grace
			}

			svc := purchase.NewService(purchase.Dependencies{
				Store:    purchase.NewStore(db.DB),
				Receipts: notify.NewLogSender(logger),
				Logger:   logger,
				Settings: purchase.Settings{
					Currency:        cfg.Gateway.Currency,
					UnpaidTTL:       cfg.Checkout.UnpaidTTL,
					ExpiryGrace:     cfg.Checkout.ExpiryGrace,
					ExpiryBatchSize: cfg.Checkout.ExpiryBatchSize,
				},
			})

			n, err := expiry.New(svc, 0, logger).RunOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire purchases: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "expired %d purchase(s)\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 0, "override checkout.expiry_grace")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := core.Migrate(cmd.Context(), db.DB, migrations.FS, newLogger(cmd))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}
