package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unrealng/z80core/pkg/analyzer"
	"github.com/unrealng/z80core/pkg/breakpoint"
	"github.com/unrealng/z80core/pkg/debugger"
	"github.com/unrealng/z80core/pkg/eventbus"
	"github.com/unrealng/z80core/pkg/memory"
	"github.com/unrealng/z80core/pkg/trace"
	"github.com/unrealng/z80core/pkg/z80"
)

var (
	replROMFile     string
	replLoadFile    string
	replLoadAddr    uint16
	replPC          uint16
	replEnableTrace bool
	replROMPrint   bool
	replTRDOS      bool
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "start the interactive stepping shell",
	Long: `repl wires a fresh 48K-shaped memory arena, breakpoint engine,
event bus and analyzer manager into a z80.CPU, optionally loads a ROM
image and a program binary, and hands control to pkg/debugger's
interactive command shell over a raw-mode terminal (arrow-key history
recall included).`,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&replROMFile, "rom", "", "ROM image to load into bank 0 (48K layout)")
	replCmd.Flags().StringVar(&replLoadFile, "load", "", "flat binary to load into RAM before starting")
	replCmd.Flags().Uint16Var(&replLoadAddr, "addr", 0x8000, "address to load --load at")
	replCmd.Flags().Uint16Var(&replPC, "pc", 0, "initial PC (defaults to --addr if --load is given, else 0)")
	replCmd.Flags().BoolVar(&replEnableTrace, "trace", false, "activate the control-flow trace analyzer")
	replCmd.Flags().BoolVar(&replROMPrint, "romprint", false, "activate the ROM print capture analyzer")
	replCmd.Flags().BoolVar(&replTRDOS, "trdos", false, "activate the TR-DOS entry/exit analyzer")
}

func runRepl(cmd *cobra.Command, args []string) error {
	mem := memory.New(8, 0, 0, 4)
	mem.Default48K()

	if replROMFile != "" {
		data, err := os.ReadFile(replROMFile)
		if err != nil {
			return fmt.Errorf("zxdbg: reading ROM file: %w", err)
		}
		if err := mem.LoadROM(0, data); err != nil {
			return fmt.Errorf("zxdbg: loading ROM: %w", err)
		}
	}

	bp := breakpoint.New()
	bus := eventbus.New()
	bus.Start()
	defer bus.Stop()

	an := analyzer.New(bp, bus)

	var tb *trace.Buffer
	if replEnableTrace {
		tb = trace.New(trace.DefaultParams)
	}

	cpu := z80.New(mem, bp, an, bus)

	if replEnableTrace {
		an.Register("core.trace", z80.NewTraceAnalyzer(tb))
		an.Activate("core.trace")
	}
	if replROMPrint {
		an.Register("romprint", analyzer.NewROMPrintAnalyzer("romprint"))
		an.Activate("romprint")
	}
	if replTRDOS {
		an.Register("trdos", analyzer.NewTRDOSAnalyzer("trdos"))
		an.Activate("trdos")
	}

	if replLoadFile != "" {
		data, err := os.ReadFile(replLoadFile)
		if err != nil {
			return fmt.Errorf("zxdbg: reading load file: %w", err)
		}
		for i, b := range data {
			mem.WriteDebug(replLoadAddr+uint16(i), b)
		}
		if !cmd.Flags().Changed("pc") {
			cpu.SetPC(replLoadAddr)
		}
	}
	if cmd.Flags().Changed("pc") {
		cpu.SetPC(replPC)
	}

	sh, err := newShell()
	if err != nil {
		return err
	}
	defer sh.restore()

	dbg := debugger.New(cpu, mem, bp, bus, tb, &debugger.Config{
		Input:  sh.inputReader(),
		Output: os.Stdout,
	})

	return dbg.Run()
}
