package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/teller/pkg/banking"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Inspect stored customer accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List account ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.seed(cmd.Context()); err != nil {
			return err
		}

		ids, err := a.manager.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var accountsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show an account with its SIN masked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.seed(cmd.Context()); err != nil {
			return err
		}

		acc, err := a.manager.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := banking.Redacted(acc)
		view.Ledger = acc.Ledger
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsShowCmd)
}
