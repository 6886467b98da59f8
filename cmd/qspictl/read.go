package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read flash memory",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

func init() {
	fs := readCmd.Flags()
	fs.UintP("addr", "a", 0, "start address")
	fs.IntP("count", "n", 256, "number of bytes to read")
	fs.StringP("output", "o", "", "output file (default: hexdump)")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetUint("addr")
	n, _ := cmd.Flags().GetInt("count")
	outFile, _ := cmd.Flags().GetString("output")

	f, err := openFlash()
	if err != nil {
		return err
	}
	if id, name, err := f.ReadID(); err == nil && name == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown flash ID (%X)\n", id)
	}

	data, err := f.Read(int(addr), n)
	if err != nil {
		return fmt.Errorf("read flash failed: %w", err)
	}
	if outFile == "" {
		fmt.Fprint(cmd.OutOrStdout(), hex.Dump(data))
		return nil
	}
	return os.WriteFile(outFile, data, 0644)
}
