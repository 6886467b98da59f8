package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase flash memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetUint("addr")
		n, _ := cmd.Flags().GetInt("count")
		chip, _ := cmd.Flags().GetBool("chip")

		if !chip && n <= 0 {
			return errors.New("either --count or --chip is required")
		}

		f, err := openFlash()
		if err != nil {
			return err
		}
		if chip {
			err = f.EraseChip()
		} else {
			err = f.Erase(int(addr), n)
		}
		if err != nil {
			return fmt.Errorf("erase flash failed: %w", err)
		}
		return nil
	},
}

func init() {
	fs := eraseCmd.Flags()
	fs.UintP("addr", "a", 0, "start address, rounded down to 4KB")
	fs.IntP("count", "n", 0, "number of bytes to erase")
	fs.Bool("chip", false, "erase the whole chip")
	rootCmd.AddCommand(eraseCmd)
}
