package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabriqs/wedding-pix/auth"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an admin token for the /admin endpoints",
		Long: `Print a signed admin token. JWT_SECRET must match the backend's.

Examples:
  weddingpix token --subject noivos
  curl -H "Authorization: Bearer $(weddingpix token)" localhost:8080/admin/events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			token, err := auth.NewTokens(cfg.Admin.JWTSecret, ttl).Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "couple", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTTL, "token lifetime")
	return cmd
}
