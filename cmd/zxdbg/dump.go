package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unrealng/z80core/pkg/hexdump"
)

var (
	dumpWidth     int
	dumpDelimiter string
	dumpPrefix    string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "hex-dump a flat binary file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().IntVar(&dumpWidth, "width", hexdump.DefaultWidth, "bytes per line (clamped to [1,64])")
	dumpCmd.Flags().StringVar(&dumpDelimiter, "delimiter", hexdump.DefaultDelimiter, "separator between byte groups")
	dumpCmd.Flags().StringVar(&dumpPrefix, "prefix", "", "prefix printed before each byte's hex digits")
}

func runDump(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("zxdbg: %w", err)
	}

	opts := hexdump.Options{Width: dumpWidth, Delimiter: dumpDelimiter, Prefix: dumpPrefix}
	for _, line := range hexdump.Lines(data, opts) {
		fmt.Println(line)
	}
	return nil
}
