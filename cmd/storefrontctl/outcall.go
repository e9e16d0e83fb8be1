package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/stripe-storefront/api/services/stripe/outcall"
)

func outcallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcall",
		Short: "Debug outbound response canonicalisation",
	}
	cmd.AddCommand(outcallTransformCmd())
	return cmd
}

func outcallTransformCmd() *cobra.Command {
	var context string
	cmd := &cobra.Command{
		Use:   "transform <captured.json>",
		Short: "Print the canonical form and fingerprint of a captured response",
		Long: `Reads {"status": 200, "headers": [{"name": "...", "value": "..."}], "body": "<base64>"}
and prints what every replica would agree on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var resp outcall.RawResponse
			if err := json.Unmarshal(raw, &resp); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			canonical := outcall.Transform([]byte(context), resp)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Response    outcall.CanonicalResponse `json:"response"`
				Fingerprint string                    `json:"fingerprint"`
			}{canonical, canonical.Fingerprint()})
		},
	}
	cmd.Flags().StringVar(&context, "context", "", "extra headers to retain, comma separated")
	return cmd
}
