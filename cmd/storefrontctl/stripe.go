package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
)

func stripeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stripe",
		Short: "Payment provider configuration and checkout sessions",
	}
	cmd.AddCommand(stripeStatusCmd(), stripeConfigureCmd(), stripeSessionCmd())
	return cmd
}

func stripeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether provider credentials are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services()
			if err != nil {
				return err
			}
			ok, err := s.Payments.IsConfigured(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "configured")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not configured")
			}
			return nil
		},
	}
}

func stripeConfigureCmd() *cobra.Command {
	var cfg stripeapp.ProviderConfiguration
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Store provider credentials and allowed shipping countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services()
			if err != nil {
				return err
			}
			if err := s.Payments.SetConfiguration(cmd.Context(), identity.System, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configured")
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.SecretKey, "secret-key", "", "provider secret key")
	cmd.Flags().StringSliceVar(&cfg.AllowedCountries, "countries", nil, "ISO 3166-1 alpha-2 country codes")
	return cmd
}

func stripeSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <session-id>",
		Short: "Show the settled outcome of a checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services()
			if err != nil {
				return err
			}
			outcome, err := s.Payments.GetSessionStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			line := stripeapp.Match(outcome,
				func(c stripeapp.Completed) string {
					return fmt.Sprintf("completed buyer=%s products=%v", c.Buyer, c.PurchasedProductIDs())
				},
				func(f stripeapp.Failed) string { return "failed: " + f.Error },
			)
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}
