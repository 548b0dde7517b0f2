// Package debugger provides an interactive command shell over the core
// execution engine (pkg/z80, pkg/memory, pkg/breakpoint, pkg/disasm,
// pkg/trace), with a box-drawing register/memory/disassembly display and
// a step/breakpoint/memory command set.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/unrealng/z80core/pkg/breakpoint"
	"github.com/unrealng/z80core/pkg/disasm"
	"github.com/unrealng/z80core/pkg/eventbus"
	"github.com/unrealng/z80core/pkg/hexdump"
	"github.com/unrealng/z80core/pkg/memory"
	"github.com/unrealng/z80core/pkg/trace"
	"github.com/unrealng/z80core/pkg/z80"
)

// Debugger drives a CPU interactively: stepping, breakpoints, memory and
// register inspection, and control-flow trace export. "continue" runs the
// CPU on a background goroutine so the command loop stays responsive while
// an interactive breakpoint hit has the emulation thread parked inside
// CPU.Step's cooperative pause point (spec.md §5/§4.5 scenario S6) — typing
// "c" again is what calls Resume and lets that Step return.
type Debugger struct {
	cpu   *z80.CPU
	mem   *memory.Memory
	bp    *breakpoint.Manager
	bus   *eventbus.Bus
	trace *trace.Buffer

	running    atomic.Bool
	historyMu  sync.Mutex
	history    []HistoryEntry
	maxHistory int

	input  *bufio.Scanner
	output io.Writer

	memAddr    uint16
	disasmAddr uint16

	cycleCount atomic.Uint64
	instrCount atomic.Uint64

	subID eventbus.SubscriptionID
}

// HistoryEntry records a single instruction execution.
type HistoryEntry struct {
	PC          uint16
	Instruction string
}

// syncWriter serializes writes from the command loop and the background
// "continue" goroutine onto the same underlying writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Config holds debugger wiring and configuration.
type Config struct {
	MaxHistory int
	Input      io.Reader
	Output     io.Writer
}

// New creates a debugger over cpu/mem/bp/bus, and an optional trace
// buffer (nil disables the "trace" command). The debugger never
// constructs its own CPU: callers wire it the same collaborators they
// passed to z80.New, matching the dependency-injected style throughout
// the core (spec.md §9).
func New(cpu *z80.CPU, mem *memory.Memory, bp *breakpoint.Manager, bus *eventbus.Bus, tb *trace.Buffer, config *Config) *Debugger {
	if config == nil {
		config = &Config{}
	}
	if config.MaxHistory == 0 {
		config.MaxHistory = 100
	}
	if config.Input == nil {
		config.Input = os.Stdin
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	d := &Debugger{
		cpu:        cpu,
		mem:        mem,
		bp:         bp,
		bus:        bus,
		trace:      tb,
		maxHistory: config.MaxHistory,
		input:      bufio.NewScanner(config.Input),
		output:     &syncWriter{w: config.Output},
		disasmAddr: 0x8000,
	}
	if bus != nil {
		d.subID, _ = bus.AddObserver(z80.TopicExecutionBreakpoint, func(topicID int, m *eventbus.Message) {
			fmt.Fprintf(d.output, "\nbreakpoint hit: id=%v at $%04X\n", m.Payload, d.cpu.PC())
		})
	}
	return d
}

// Run starts the interactive read-evaluate-print loop. While "continue" is
// active the CPU runs on a background goroutine (see startRunning), so this
// loop keeps reading commands even if that goroutine is parked inside
// CPU.Step waiting for an interactive breakpoint to be resumed.
func (d *Debugger) Run() error {
	d.printBanner()
	d.display()

	for {
		fmt.Fprint(d.output, "dbg> ")
		if !d.input.Scan() {
			break
		}

		cmd := strings.TrimSpace(d.input.Text())
		if cmd == "" {
			cmd = "s"
		}

		if err := d.handleCommand(cmd); err != nil {
			fmt.Fprintf(d.output, "error: %v\n", err)
		}

		if !d.running.Load() {
			d.display()
		}
	}

	if d.bus != nil {
		d.bus.RemoveObserver(d.subID)
	}
	return nil
}

// startRunning launches the background stepping goroutine for "continue".
// If it is already running, a second "c" just resumes a CPU parked at an
// interactive breakpoint instead of starting a second loop.
func (d *Debugger) startRunning() {
	if d.running.Load() {
		d.cpu.Resume()
		fmt.Fprintln(d.output, "resumed")
		return
	}

	d.running.Store(true)
	d.cpu.Resume()
	fmt.Fprintln(d.output, "running...")

	go func() {
		for d.running.Load() {
			d.executeInstruction()
			if d.cpu.Halted() {
				d.running.Store(false)
				fmt.Fprintf(d.output, "\nhalted at $%04X\n", d.cpu.PC())
				d.display()
				return
			}
		}
	}()
}

// handleCommand processes a single debugger command line.
func (d *Debugger) handleCommand(cmd string) error {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "h", "help", "?":
		d.printHelp()

	case "s", "step":
		d.executeInstruction()
		fmt.Fprintf(d.output, "executed 1 instruction (T=%d)\n", d.cpu.T)

	case "n", "next":
		d.stepOver()

	case "c", "continue", "run":
		d.startRunning()

	case "b", "break", "bp":
		if len(parts) < 2 {
			d.listBreakpoints()
		} else {
			addr := d.parseAddress(parts[1])
			d.setBreakpoint(addr)
		}

	case "d", "delete":
		if len(parts) < 2 {
			fmt.Fprintln(d.output, "usage: delete <address>")
		} else {
			d.deleteBreakpoint(d.parseAddress(parts[1]))
		}

	case "r", "regs", "registers":
		d.displayRegisters()

	case "m", "mem", "memory":
		if len(parts) > 1 {
			d.memAddr = d.parseAddress(parts[1])
		}
		d.displayMemory(d.memAddr, 128)

	case "dis", "disasm", "disassemble":
		if len(parts) > 1 {
			d.disasmAddr = d.parseAddress(parts[1])
		}
		d.displayDisassembly(d.disasmAddr, 10)

	case "stack":
		d.displayStack()

	case "set":
		if len(parts) < 3 {
			fmt.Fprintln(d.output, "usage: set <register> <value>")
		} else {
			d.setRegister(parts[1], parts[2])
		}

	case "load":
		if len(parts) < 3 {
			fmt.Fprintln(d.output, "usage: load <file> <address>")
		} else {
			d.loadFile(parts[1], d.parseAddress(parts[2]))
		}

	case "save":
		if len(parts) < 4 {
			fmt.Fprintln(d.output, "usage: save <file> <start> <end>")
		} else {
			d.saveMemory(parts[1], d.parseAddress(parts[2]), d.parseAddress(parts[3]))
		}

	case "trace":
		d.saveTrace(parts[1:])

	case "history", "hist":
		d.displayHistory()

	case "stats":
		d.displayStats()

	case "reset":
		d.cpu.Reset()
		d.cycleCount.Store(0)
		d.instrCount.Store(0)
		fmt.Fprintln(d.output, "CPU reset")

	case "q", "quit", "exit":
		fmt.Fprintln(d.output, "bye")
		os.Exit(0)

	default:
		fmt.Fprintf(d.output, "unknown command: %s (type 'help' for commands)\n", parts[0])
	}

	return nil
}

func (d *Debugger) executeInstruction() {
	d.recordHistory()
	d.cpu.Step(false)
	d.cycleCount.Store(d.cpu.T)
	d.instrCount.Add(1)
}

// stepOver runs until PC reaches the address that follows the instruction
// at the entry PC (disasm.NextInstructionAddr), so a CALL, RST, block
// instruction or DJNZ there completes as one step. Other instructions are
// single-stepped.
func (d *Debugger) stepOver() {
	start := d.cpu.PC()
	ins := disasm.Decode(directReader{d.mem}, start)
	if !disasm.ShouldStepOver(ins) {
		d.executeInstruction()
		fmt.Fprintf(d.output, "executed 1 instruction (T=%d)\n", d.cpu.T)
		return
	}
	target := disasm.NextInstructionAddr(start, ins)
	for d.cpu.PC() != target {
		d.executeInstruction()
		if d.cpu.IsPaused() || d.cpu.Halted() {
			break
		}
	}
	fmt.Fprintf(d.output, "stepped over to $%04X (T=%d)\n", d.cpu.PC(), d.cpu.T)
}

type directReader struct{ mem *memory.Memory }

func (r directReader) Read(addr uint16, isExecution bool) byte { return r.mem.DirectRead(addr) }

func (d *Debugger) display() {
	d.displayRegisters()
	d.displayDisassembly(d.cpu.PC(), 5)
}

func (d *Debugger) displayRegisters() {
	fmt.Fprintln(d.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintf(d.output, "│ PC:%04X SP:%04X IX:%04X IY:%04X I:%02X IM:%d%s│\n",
		d.cpu.PC(), d.cpu.SP(), d.cpu.IX(), d.cpu.IY(), d.cpu.I(), d.cpu.IM,
		strings.Repeat(" ", 5))

	fmt.Fprintf(d.output, "│ AF:%04X BC:%04X DE:%04X HL:%04X ",
		d.cpu.AF(), d.cpu.BC(), d.cpu.DE(), d.cpu.HL())

	f := d.cpu.F()
	flags := make([]byte, 0, 6)
	for _, bit := range []struct {
		mask byte
		c    byte
	}{{0x80, 'S'}, {0x40, 'Z'}, {0x10, 'H'}, {0x04, 'P'}, {0x02, 'N'}, {0x01, 'C'}} {
		if f&bit.mask != 0 {
			flags = append(flags, bit.c)
		} else {
			flags = append(flags, '-')
		}
	}
	fmt.Fprintf(d.output, "[%s]    │\n", flags)

	fmt.Fprintf(d.output, "│ Q:%02X MEMPTR:%04X T:%-10d TT:%-10d%s│\n",
		d.cpu.Q, d.cpu.MemPtr, d.cpu.T, d.cpu.TT, strings.Repeat(" ", 6))
	fmt.Fprintln(d.output, "└─────────────────────────────────────────────────────┘")
}

func (d *Debugger) displayMemory(addr uint16, size int) {
	fmt.Fprintln(d.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintln(d.output, "│ Memory                                              │")
	fmt.Fprintln(d.output, "├─────────────────────────────────────────────────────┤")

	data := make([]byte, size)
	for i := range data {
		data[i] = d.mem.DirectRead(addr + uint16(i))
	}
	for i, line := range hexdump.Lines(data, hexdump.Options{}) {
		fmt.Fprintf(d.output, "│ %04X: %-48s │\n", addr+uint16(i*hexdump.DefaultWidth), line)
	}

	fmt.Fprintln(d.output, "└─────────────────────────────────────────────────────┘")
}

func (d *Debugger) displayDisassembly(addr uint16, lines int) {
	fmt.Fprintln(d.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintln(d.output, "│ Disassembly                                         │")
	fmt.Fprintln(d.output, "├─────────────────────────────────────────────────────┤")

	for i := 0; i < lines; i++ {
		marker := "  "
		if addr == d.cpu.PC() {
			marker = "> "
		}

		ins := disasm.Decode(directReader{d.mem}, addr)

		bytes := ""
		for _, b := range ins.Bytes {
			bytes += fmt.Sprintf("%02X ", b)
		}

		fmt.Fprintf(d.output, "│ %s%04X: %-12s %-20s│\n", marker, addr, bytes, ins.Mnemonic)

		addr += uint16(ins.Length())
	}

	fmt.Fprintln(d.output, "└─────────────────────────────────────────────────────┘")
}

func (d *Debugger) displayStack() {
	fmt.Fprintln(d.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintln(d.output, "│ Stack                                               │")
	fmt.Fprintln(d.output, "├─────────────────────────────────────────────────────┤")

	sp := d.cpu.SP()
	for i := 0; i < 8; i++ {
		value := uint16(d.mem.DirectRead(sp)) | uint16(d.mem.DirectRead(sp+1))<<8

		marker := "  "
		if i == 0 {
			marker = "SP"
		}

		fmt.Fprintf(d.output, "│ %s %04X: %04X%s│\n", marker, sp, value, strings.Repeat(" ", 39))
		sp += 2
	}

	fmt.Fprintln(d.output, "└─────────────────────────────────────────────────────┘")
}

func (d *Debugger) printBanner() {
	fmt.Fprintln(d.output, "╔═══════════════════════════════════════════════════════╗")
	fmt.Fprintln(d.output, "║             Z80 Core Debugger                          ║")
	fmt.Fprintln(d.output, "╚═══════════════════════════════════════════════════════╝")
	fmt.Fprintln(d.output, "Type 'help' for commands, 's' to step, 'c' to continue")
	fmt.Fprintln(d.output)
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.output, "Commands:")
	fmt.Fprintln(d.output, "  s/step           - Step one instruction")
	fmt.Fprintln(d.output, "  n/next           - Step over calls")
	fmt.Fprintln(d.output, "  c/continue       - Run until breakpoint")
	fmt.Fprintln(d.output, "  b/break <addr>   - Set execution breakpoint")
	fmt.Fprintln(d.output, "  d/delete <addr>  - Delete breakpoint")
	fmt.Fprintln(d.output, "  r/regs           - Show registers")
	fmt.Fprintln(d.output, "  m/mem <addr>     - Show memory")
	fmt.Fprintln(d.output, "  dis <addr>       - Disassemble")
	fmt.Fprintln(d.output, "  stack            - Show stack")
	fmt.Fprintln(d.output, "  set <reg> <val>  - Set register")
	fmt.Fprintln(d.output, "  load <file> <addr> - Load a binary into memory")
	fmt.Fprintln(d.output, "  save <file> <start> <end> - Save memory to a binary")
	fmt.Fprintln(d.output, "  trace [file]     - Export the control-flow trace buffer")
	fmt.Fprintln(d.output, "  history          - Show execution history")
	fmt.Fprintln(d.output, "  stats            - Show statistics")
	fmt.Fprintln(d.output, "  reset            - Reset CPU")
	fmt.Fprintln(d.output, "  q/quit           - Exit debugger")
}

func (d *Debugger) setBreakpoint(addr uint16) {
	id := d.bp.AddExecution(addr)
	d.bp.Activate(id)
	fmt.Fprintf(d.output, "breakpoint %d set at $%04X\n", id, addr)
}

func (d *Debugger) deleteBreakpoint(addr uint16) {
	d.bp.RemoveByDescriptor(breakpoint.Descriptor{Kind: breakpoint.Execute, Z80Address: addr, AccessMask: breakpoint.ExecuteAccess})
	fmt.Fprintf(d.output, "breakpoint deleted at $%04X\n", addr)
}

func (d *Debugger) listBreakpoints() {
	all := d.bp.All()
	if len(all) == 0 {
		fmt.Fprintln(d.output, "no breakpoints set")
		return
	}
	fmt.Fprintln(d.output, "breakpoints:")
	for id, desc := range all {
		fmt.Fprintf(d.output, "  #%d $%04X\n", id, desc.Z80Address)
	}
}

func (d *Debugger) parseAddress(s string) uint16 {
	if strings.HasPrefix(s, "$") {
		s = s[1:]
	}
	addr, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		addr, err = strconv.ParseUint(s, 10, 16)
		if err != nil {
			return 0
		}
	}
	return uint16(addr)
}

func (d *Debugger) setRegister(reg, value string) {
	val := d.parseAddress(value)

	switch strings.ToUpper(reg) {
	case "A":
		d.cpu.SetAF(uint16(byte(val))<<8 | uint16(d.cpu.F()))
	case "F":
		d.cpu.SetAF(uint16(d.cpu.A())<<8 | uint16(byte(val)))
	case "AF":
		d.cpu.SetAF(val)
	case "BC":
		d.cpu.SetBC(val)
	case "DE":
		d.cpu.SetDE(val)
	case "HL":
		d.cpu.SetHL(val)
	case "PC":
		d.cpu.SetPC(val)
	case "SP":
		d.cpu.SetSP(val)
	default:
		fmt.Fprintf(d.output, "unknown register: %s\n", reg)
		return
	}

	fmt.Fprintf(d.output, "%s = $%04X\n", strings.ToUpper(reg), val)
}

func (d *Debugger) loadFile(filename string, addr uint16) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(d.output, "error loading file: %v\n", err)
		return
	}
	for i, b := range data {
		d.mem.WriteDebug(addr+uint16(i), b)
	}
	fmt.Fprintf(d.output, "loaded %d bytes at $%04X\n", len(data), addr)
}

func (d *Debugger) saveMemory(filename string, start, end uint16) {
	if end <= start {
		fmt.Fprintln(d.output, "invalid address range")
		return
	}
	data := make([]byte, int(end-start)+1)
	for i := range data {
		data[i] = d.mem.DirectRead(start + uint16(i))
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		fmt.Fprintf(d.output, "error saving file: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "saved %d bytes to %s\n", len(data), filename)
}

func (d *Debugger) saveTrace(args []string) {
	if d.trace == nil {
		fmt.Fprintln(d.output, "no trace buffer wired into this session")
		return
	}
	text := d.trace.SaveText()
	if len(args) == 0 {
		fmt.Fprint(d.output, text)
		return
	}
	if err := os.WriteFile(args[0], []byte(text), 0644); err != nil {
		fmt.Fprintf(d.output, "error saving trace: %v\n", err)
		return
	}
	fmt.Fprintf(d.output, "trace written to %s\n", args[0])
}

func (d *Debugger) recordHistory() {
	d.historyMu.Lock()
	defer d.historyMu.Unlock()
	if len(d.history) >= d.maxHistory {
		d.history = d.history[1:]
	}
	ins := disasm.Decode(directReader{d.mem}, d.cpu.PC())
	d.history = append(d.history, HistoryEntry{PC: d.cpu.PC(), Instruction: ins.Mnemonic})
}

func (d *Debugger) displayHistory() {
	d.historyMu.Lock()
	entries := append([]HistoryEntry(nil), d.history...)
	d.historyMu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(d.output, "no history")
		return
	}
	fmt.Fprintln(d.output, "execution history:")
	for i, entry := range entries {
		fmt.Fprintf(d.output, "%3d: %04X %s\n", i, entry.PC, entry.Instruction)
	}
}

func (d *Debugger) displayStats() {
	instrCount := d.instrCount.Load()
	cycleCount := d.cycleCount.Load()

	fmt.Fprintln(d.output, "┌─────────────────────────────────────────────────────┐")
	fmt.Fprintln(d.output, "│ Statistics                                          │")
	fmt.Fprintln(d.output, "├─────────────────────────────────────────────────────┤")
	fmt.Fprintf(d.output, "│ Instructions: %-10d                          │\n", instrCount)
	fmt.Fprintf(d.output, "│ T-states:     %-10d                          │\n", cycleCount)
	if instrCount > 0 {
		avg := cycleCount / instrCount
		fmt.Fprintf(d.output, "│ Avg T/instr:  %-10d                          │\n", avg)
	}
	fmt.Fprintln(d.output, "└─────────────────────────────────────────────────────┘")
}
