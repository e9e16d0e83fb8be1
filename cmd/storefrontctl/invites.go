package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

func invitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "Inspect and update invite records",
	}
	cmd.AddCommand(invitesListCmd(), invitesCreateCmd(), invitesSetStatusCmd())
	return cmd
}

func invitesListCmd() *cobra.Command {
	var buyer string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invite records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := services()
			if err != nil {
				return err
			}
			var records []inviteapp.Record
			if buyer != "" {
				p, err := identity.Parse(buyer)
				if err != nil {
					return err
				}
				records, err = s.Invites.ListMine(cmd.Context(), p)
				if err != nil {
					return err
				}
			} else {
				records, err = s.Invites.List(cmd.Context(), identity.System)
				if err != nil {
					return err
				}
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&buyer, "buyer", "", "only list records of this buyer")
	return cmd
}

func invitesCreateCmd() *cobra.Command {
	var in inviteapp.CreateInput
	var buyer string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending invite record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := identity.Parse(buyer)
			if err != nil {
				return fmt.Errorf("--buyer: %w", err)
			}
			in.Buyer = p
			s, err := services()
			if err != nil {
				return err
			}
			rec, err := s.Invites.Create(cmd.Context(), identity.System, in)
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), []inviteapp.Record{rec})
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "platform username")
	cmd.Flags().StringVar(&in.ProductID, "product", "", "product id")
	cmd.Flags().StringVar(&in.OrderID, "order", "", "order or checkout session id")
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer external id")
	return cmd
}

func invitesSetStatusCmd() *cobra.Command {
	var in inviteapp.UpdateInput
	var buyer, status string
	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Move an invite record to another status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := inviteapp.ParseStatus(status)
			if err != nil {
				return err
			}
			p, err := identity.Parse(buyer)
			if err != nil {
				return fmt.Errorf("--buyer: %w", err)
			}
			in.Status, in.Buyer = st, p
			s, err := services()
			if err != nil {
				return err
			}
			rec, err := s.Invites.Transition(cmd.Context(), identity.System, in)
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), []inviteapp.Record{rec})
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, granted, expired or usernameIncorrect")
	cmd.Flags().StringVar(&in.ProductID, "product", "", "product id")
	cmd.Flags().StringVar(&in.OrderID, "order", "", "order or checkout session id")
	cmd.Flags().StringVar(&buyer, "buyer", "", "buyer external id")
	cmd.Flags().StringVar(&in.Username, "username", "", "expected username (optional)")
	return cmd
}

func printRecords(w io.Writer, records []inviteapp.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tORDER\tBUYER\tUSERNAME\tSTATUS\tCREATED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ProductID, r.OrderID, r.Buyer, r.Username, r.Status, r.CreatedAt.UTC().Format(time.RFC3339))
	}
	tw.Flush()
}
