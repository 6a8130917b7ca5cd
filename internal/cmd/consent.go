package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/config"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/consent"
)

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Manage consent grants in the persistent store",
}

var consentGrantCmd = &cobra.Command{
	Use:   "grant [user-id] [purpose]",
	Short: "Record a consent grant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConsentStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Grant(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Granted %s for user %s\n", args[1], args[0])
		return nil
	},
}

var consentRevokeCmd = &cobra.Command{
	Use:   "revoke [user-id] [purpose]",
	Short: "Revoke a consent grant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openConsentStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Revoke(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Revoked %s for user %s\n", args[1], args[0])
		return nil
	},
}

func openConsentStore() (*consent.StoreService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return consent.NewStoreService(cfg.ConsentDBPath())
}

func init() {
	consentCmd.AddCommand(consentGrantCmd)
	consentCmd.AddCommand(consentRevokeCmd)
	rootCmd.AddCommand(consentCmd)
}
