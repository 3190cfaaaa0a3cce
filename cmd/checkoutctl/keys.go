// AngelaMos | 2026
// keys.go

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/checkout-backend/internal/auth"
	"github.com/carterperez-dev/templates/checkout-backend/internal/config"
	"github.com/carterperez-dev/templates/checkout-backend/internal/middleware"
)

func keygenCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ES256 key pair for local token signing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("create key dir: %w", err)
			}

			priv := filepath.Join(dir, "private.pem")
			pub := filepath.Join(dir, "public.pem")
			if err := auth.GenerateKeyPair(priv, pub); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", priv, pub)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "keys", "output directory")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		privateKey string
		email      string
		role       string
		issuer     string
		audience   string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := auth.NewSigner(privateKey, config.JWTConfig{
				Issuer:   issuer,
				Audience: audience,
			})
			if err != nil {
				return err
			}

			token, err := signer.CreateAccessToken(middleware.AccessTokenClaims{
				UserID: args[0],
				Email:  email,
				Role:   strings.ToUpper(role),
			}, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&privateKey, "private-key", "keys/private.pem", "signing key")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", middleware.RoleCustomer, "role claim (CUSTOMER or ADMIN)")
	cmd.Flags().StringVar(&issuer, "issuer", "identity", "iss claim, must match jwt.issuer")
	cmd.Flags().StringVar(&audience, "audience", "checkout-api", "aud claim, must match jwt.audience")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
