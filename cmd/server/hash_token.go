package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/tripledger/internal/auth"
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <token>",
	Short: "Print a bcrypt hash of an admin token for ADMIN_TOKEN_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashed, err := auth.HashSecret(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hashed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashTokenCmd)
}
