// Command zxdbg is a headless debugger shell over the core engine
// (pkg/z80, pkg/memory, pkg/breakpoint, pkg/eventbus, pkg/analyzer,
// pkg/trace): a CLI surrogate for the Qt GUI this core is normally
// embedded in, built with github.com/spf13/cobra subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unrealng/z80core/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "zxdbg",
	Short: "Z80 debug-capable execution core shell " + version.GetVersion(),
	Long: `zxdbg - headless ZX Spectrum Z80 execution core

A standalone shell over the memory/banking, disassembler, breakpoint,
event bus, analyzer and interpreter packages that make up the core,
used as the CLI surrogate for the Qt debugger UI this core is normally
embedded in.

COMMANDS:
  repl     interactive stepping shell (registers, memory, breakpoints, trace)
  disasm   disassemble a flat binary file from a given address
  dump     hex-dump a flat binary file
  version  print version information`,
}

func main() {
	rootCmd.AddCommand(replCmd, disasmCmd, dumpCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetFullVersion())
	},
}
