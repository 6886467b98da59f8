package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const subsectorSize = 4 << 10

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write a file to flash memory",
	Long: `write programs a file at the given address. With -e the covered ` +
		`4KB subsectors are erased first; -e without a file erases the whole chip.`,
	Args: cobra.NoArgs,
	RunE: runWrite,
}

func init() {
	fs := writeCmd.Flags()
	fs.StringP("file", "f", "", "input file")
	fs.UintP("addr", "a", 0, "start address")
	fs.BoolP("erase", "e", false, "erase before writing")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	addr, _ := cmd.Flags().GetUint("addr")
	erase, _ := cmd.Flags().GetBool("erase")

	if filename == "" && !erase {
		return errors.New("input file is required")
	}

	var input *os.File
	if filename != "" {
		var err error
		if input, err = os.Open(filename); err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer input.Close()
	}

	f, err := openFlash()
	if err != nil {
		return err
	}

	if erase {
		if input == nil {
			if err := f.EraseChip(); err != nil {
				return fmt.Errorf("bulk erase flash failed: %w", err)
			}
			return nil
		}
		st, err := input.Stat()
		if err != nil {
			return err
		}
		start := int(addr) &^ (subsectorSize - 1)
		if err := f.Erase(start, int(addr)+int(st.Size())-start); err != nil {
			return fmt.Errorf("erase flash failed: %w", err)
		}
	}

	if err := f.Write(int(addr), input); err != nil {
		return fmt.Errorf("write flash failed: %w", err)
	}
	return nil
}
