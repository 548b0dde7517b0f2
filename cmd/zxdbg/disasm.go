package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unrealng/z80core/pkg/disasm"
)

var disasmAddr uint16

var disasmCmd = &cobra.Command{
	Use:   "disasm <file>",
	Short: "disassemble a flat binary file from a given address",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	disasmCmd.Flags().Uint16Var(&disasmAddr, "addr", 0, "address the file's first byte is loaded at")
}

// flatReader satisfies disasm.MemReader over a plain byte slice loaded
// at a base address; addresses outside the slice read as 0, matching the
// decoder's own tolerance for reading past a short input (spec.md §4.2:
// decode of data beyond the image still produces a structurally valid,
// if meaningless, instruction).
type flatReader struct {
	base uint16
	data []byte
}

func (f flatReader) Read(addr uint16, isExecution bool) byte {
	off := int(addr - f.base)
	if off < 0 || off >= len(f.data) {
		return 0
	}
	return f.data[off]
}

func runDisasm(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("zxdbg: %w", err)
	}

	mem := flatReader{base: disasmAddr, data: data}
	addr := disasmAddr
	end := disasmAddr + uint16(len(data))

	for addr < end {
		ins := disasm.Decode(mem, addr)
		bytes := ""
		for _, b := range ins.Bytes {
			bytes += fmt.Sprintf("%02X ", b)
		}
		fmt.Printf("%04X: %-15s %s\n", addr, bytes, ins.Mnemonic)

		length := uint16(ins.Length())
		if length == 0 {
			break
		}
		addr += length
	}
	return nil
}
