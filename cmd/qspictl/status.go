package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the flash status register",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFlash()
		if err != nil {
			return err
		}
		sr, err := f.ReadStatusRegister()
		if err != nil {
			return fmt.Errorf("read flash status register failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
