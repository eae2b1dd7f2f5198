package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pontopology/internal/auth"
)

func newTokenCmd(o *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API, signed with auth.secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.cfg.Auth.Secret == "" {
				return errors.New("auth.secret is not set (PONTOPO_AUTH_SECRET)")
			}
			g, err := auth.NewJWTGate(o.cfg.Auth.Secret)
			if err != nil {
				return err
			}
			tok, err := g.Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "value of the sub claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
