package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the flash JEDEC ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openFlash()
		if err != nil {
			return err
		}
		id, name, err := f.ReadID()
		if err != nil {
			return fmt.Errorf("read flash ID failed: %w", err)
		}
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%X\t%s\t%d bytes\n", id, name, f.Size())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
