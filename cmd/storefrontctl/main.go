package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbeaudouin05/stripe-storefront/api/bootstrap"
	"github.com/tbeaudouin05/stripe-storefront/api/config"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Operate the storefront payment and invite ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(cmd.ErrOrStderr(), logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(invitesCmd())
	root.AddCommand(stripeCmd())
	root.AddCommand(outcallCmd())
	return root
}

// services wires the application graph from the environment. Commands act as the system
// principal, which is always an administrator.
func services() (*bootstrap.Services, error) {
	if bootstrap.Get() == nil && config.AppConfig == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, err
		}
		config.AppConfig = cfg
	}
	if err := bootstrap.Ensure(); err != nil {
		return nil, err
	}
	return bootstrap.Get(), nil
}
