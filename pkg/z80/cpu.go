// Package z80 implements the cycle-accurate, debug-capable Z80 interpreter:
// one instruction per Step, T-state and scaled-TT counters, interrupt/HALT
// state, the undocumented memptr and Q registers, and the fixed dispatch
// points into memory, breakpoints, the analyzer manager and the event bus.
//
// Execution of the documented and undocumented instruction set itself is
// delegated to github.com/remogatto/z80, a full-coverage Z80 core: the
// interpreter here is a thin, debug-aware shell around it, grounded on
// pkg/emulator/z80_remogatto.go's adapter (MemoryAccessor/PortAccessor
// wiring) and pkg/emulator/z80_hooks.go (RST/IN/OUT hook tables).
// Delegating opcode execution to a verified third-party core keeps the
// interpreter's effort on the debug-integration surface that actually
// matters (breakpoints, analyzers, Q/memptr, interrupts, TR-DOS overlay)
// rather than re-deriving ALU tables a dependency already gets right.
package z80

import (
	"sync"
	"sync/atomic"
	"time"

	rz80 "github.com/remogatto/z80"

	"github.com/unrealng/z80core/pkg/analyzer"
	"github.com/unrealng/z80core/pkg/breakpoint"
	"github.com/unrealng/z80core/pkg/disasm"
	"github.com/unrealng/z80core/pkg/eventbus"
	"github.com/unrealng/z80core/pkg/memory"
	"github.com/unrealng/z80core/pkg/trace"
)

// Topic names published by the interpreter.
const (
	TopicExecutionBreakpoint = "execution.breakpoint"
	TopicCPUStep             = "execution.cpu_step"
)

// Rate is the fixed-point scale factor for the TT counter, nominal per
// spec.md §4.6. Speed-multiplier changes rescale frame_limit/int_start/
// int_end, never Rate itself.
const Rate = 256

// InterruptMode mirrors the Z80's IM 0/1/2 selector.
type InterruptMode uint8

const (
	IM0 InterruptMode = iota
	IM1
	IM2
)

// CPU is the debug-capable Z80 interpreter: register/timing state plus
// the fixed integration points into memory, breakpoints, analyzers and
// the event bus.
type CPU struct {
	core  *rz80.Z80
	mem   *memory.Memory
	bp    *breakpoint.Manager
	an    *analyzer.Manager
	bus   *eventbus.Bus
	ports *portAdapter

	// T is the 64-bit T-state counter; TT is T scaled by Rate for
	// sub-cycle arbitration between peripherals.
	T  uint64
	TT uint64

	// Q is the undocumented flag-history latch (Zilog's internal
	// register driving SCF/CCF's YF/XF outputs). MemPtr is the
	// undocumented WZ register as shown in DebugDump: Reset clears it
	// and Step does not update it, so it does not follow the value
	// instructions leave in WZ.
	Q      byte
	MemPtr uint16

	IM            InterruptMode
	intPending    bool
	eiPos         uint64 // T value at which EI last completed, for the one-instruction delay rule
	m1PC          uint16
	prevPC        uint16
	prefix        disasm.Prefix
	opcode        byte
	supplyVector  byte // IM2 interrupt vector low byte supplied by the peripheral
	intStart      uint64
	intEnd        uint64
	romTRDOSPage  int
	romNormalPage int
	frame         frameParams

	pauseRequested atomic.Bool
	pauseMu        sync.Mutex
	onPauseChange  func(paused bool)

	debugMode       bool
	skipBreakpoints bool
}

// New creates a CPU wired to mem, bp, an and bus. All four are required:
// the interpreter never constructs its own collaborators, matching the
// dependency-injected style used throughout the core (spec.md §9).
func New(mem *memory.Memory, bp *breakpoint.Manager, an *analyzer.Manager, bus *eventbus.Bus) *CPU {
	c := &CPU{
		mem:           mem,
		bp:            bp,
		an:            an,
		bus:           bus,
		debugMode:     true,
		romTRDOSPage:  -1,
		romNormalPage: 0,
	}
	c.ports = &portAdapter{cpu: c}
	c.core = rz80.NewZ80(&memAdapter{cpu: c}, c.ports)
	c.Reset()
	return c
}

// SetDebugMode toggles whether memory accesses and M1 fetches fan out to
// the breakpoint engine and analyzer manager. Fast mode (debugMode=false)
// skips both, matching memory.Memory's Read/ReadDebug split.
func (c *CPU) SetDebugMode(on bool) { c.debugMode = on }

// SetTRDOSPages configures which ROM pages the TR-DOS overlay transition
// (spec.md §4.1) swaps bank 0 between.
func (c *CPU) SetTRDOSPages(trdosPage, normalPage int) {
	c.romTRDOSPage, c.romNormalPage = trdosPage, normalPage
}

// SetFrameWindow configures the interrupt pulse window in T-states
// relative to frame origin: the pulse is active for T in [start, end).
func (c *CPU) SetFrameWindow(start, end uint64) { c.intStart, c.intEnd = start, end }

// Reset restores PC=0, SP=0xFFFF, AF=0xFFFF, I=R=0, IM=0, IFF1=IFF2=0,
// clears HALT and interrupt-pending state, and charges the 3 T-states the
// reset sequence itself costs (spec.md §8 scenario S2).
func (c *CPU) Reset() {
	c.core.Reset()
	c.core.A, c.core.F = 0xFF, 0xFF
	c.core.I = 0
	c.core.R = 0
	c.core.IFF1 = 0
	c.core.IFF2 = 0
	c.IM = IM0
	c.core.Halted = false
	c.intPending = false
	c.Q = 0
	c.MemPtr = 0
	c.T = 3
	c.TT = 3 * Rate
	c.m1PC = 0
	c.prevPC = 0
	c.eiPos = ^uint64(0)
}

// PC/SP/AF/BC/DE/HL/IX/IY/A/F are read accessors onto the oracle core's
// live register state; analyzer.CPU is satisfied by PC alone.
func (c *CPU) PC() uint16 { return c.core.PC() }
func (c *CPU) SP() uint16 { return c.core.SP() }
func (c *CPU) AF() uint16 { return uint16(c.core.A)<<8 | uint16(c.core.F) }
func (c *CPU) BC() uint16 { return c.core.BC() }
func (c *CPU) DE() uint16 { return c.core.DE() }
func (c *CPU) HL() uint16 { return c.core.HL() }
func (c *CPU) IX() uint16 { return c.core.IX() }
func (c *CPU) IY() uint16 { return c.core.IY() }
func (c *CPU) A() byte    { return c.core.A }
func (c *CPU) F() byte    { return c.core.F }
func (c *CPU) I() byte    { return c.core.I }
func (c *CPU) R() byte    { return c.core.R }
func (c *CPU) IFF1() bool { return c.core.IFF1 != 0 }
func (c *CPU) IFF2() bool { return c.core.IFF2 != 0 }
func (c *CPU) Halted() bool { return c.core.Halted }
func (c *CPU) M1PC() uint16 { return c.m1PC }
func (c *CPU) PrevPC() uint16 { return c.prevPC }

// TState reports the current T-state counter as a method, for collaborators
// (e.g. analyzer.TRDOSAnalyzer) that only hold a CPU through the analyzer
// framework's method-only interface and cannot reach the T field directly.
func (c *CPU) TState() uint64 { return c.T }

// B returns the B register, the only half of a register pair the
// control-flow trace decision needs directly (DJNZ's pre-decrement
// predicate).
func (c *CPU) B() byte { return byte(c.core.BC() >> 8) }

// BankInfo reports bank i's current ROM/RAM mode and page number, the
// per-bank context a logged control-flow event captures alongside its
// target and stack top.
func (c *CPU) BankInfo(bank int) trace.BankInfo {
	if c.mem.BankMode(bank) == memory.BankROM {
		return trace.BankInfo{IsROM: true, Page: c.mem.ROMPageOfBank(bank)}
	}
	return trace.BankInfo{IsROM: false, Page: c.mem.RAMPageOfBank(bank)}
}

func (c *CPU) SetPC(pc uint16) { c.core.SetPC(pc) }
func (c *CPU) SetSP(sp uint16) { c.core.SetSP(sp) }

// SetAF/SetBC/SetDE/SetHL are write accessors used by scripted state
// setup (pkg/conformance's Given stage); grounded on
// pkg/testing/z80_test_framework.go's GivenContext.Register, which sets
// cpu.A/cpu.F directly and calls cpu.SetBC/SetDE/SetHL.
func (c *CPU) SetAF(af uint16) { c.core.A, c.core.F = byte(af>>8), byte(af) }
func (c *CPU) SetBC(bc uint16) { c.core.SetBC(bc) }
func (c *CPU) SetDE(de uint16) { c.core.SetDE(de) }
func (c *CPU) SetHL(hl uint16) { c.core.SetHL(hl) }

// RequestInt / RequestNMI raise the respective interrupt line; NMI
// generation is declared per spec.md §4.6 but not wired to an
// acknowledgement path in the core (no mandatory peripheral drives it).
func (c *CPU) RequestInt()  { c.intPending = true }
func (c *CPU) RequestNMI()  {}

// Pause/Resume/IsPaused implement the cooperative suspension point:
// Step polls pauseRequested and sleeps in small increments until cleared,
// rather than blocking on a condition variable, so a stop request takes
// effect at the next instruction boundary without holding any lock across
// an instruction (spec.md §5).
func (c *CPU) Pause()  { c.setPaused(true) }
func (c *CPU) Resume() { c.setPaused(false) }
func (c *CPU) IsPaused() bool { return c.pauseRequested.Load() }

func (c *CPU) setPaused(paused bool) {
	c.pauseMu.Lock()
	changed := c.pauseRequested.Swap(paused) != paused
	cb := c.onPauseChange
	c.pauseMu.Unlock()
	if changed && cb != nil {
		cb(paused)
	}
}

// OnPauseChange installs a callback invoked whenever Pause/Resume changes
// the paused state, used by cmd/zxdbg to drive its prompt.
func (c *CPU) OnPauseChange(fn func(paused bool)) {
	c.pauseMu.Lock()
	c.onPauseChange = fn
	c.pauseMu.Unlock()
}

const pausePollInterval = 20 * time.Millisecond

func (c *CPU) waitWhilePaused() {
	for c.IsPaused() {
		time.Sleep(pausePollInterval)
	}
}

// Step performs one full instruction, including any prefix chain and the
// memory-access T-states it incurs, and returns control. skipBreakpoints
// suppresses the M1 breakpoint check for this step only (used by
// step-over/step-into commands that must not re-trigger the breakpoint
// they are currently sitting on).
func (c *CPU) Step(skipBreakpoints bool) {
	c.runROMOverlayTransition()

	pc := c.core.PC()
	c.m1PC = pc

	if c.debugMode && !skipBreakpoints {
		if id := c.bp.HandlePCChange(pc); id != breakpoint.Invalid {
			c.handleExecutionBreakpoint(id)
		}
	}

	prefix, opcode := c.peekOpcode(pc)
	c.prefix, c.opcode = prefix, opcode

	fBefore := c.core.F
	tBefore := c.core.Tstates

	c.maybeAcceptInterrupt()
	c.core.DoOpcode()

	delta := uint64(c.core.Tstates - tBefore)
	c.T += delta
	c.TT += delta * Rate

	if prefix == disasm.PrefixNone && opcode == 0xFB { // EI
		c.eiPos = c.T
	}

	c.updateQAndUndocumentedFlags(fBefore, prefix, opcode)

	c.prevPC = pc

	if c.debugMode {
		c.an.DispatchCPUStep(c, c.core.PC())
		if c.bus != nil {
			c.bus.Post(TopicCPUStep, c.core.PC(), false)
		}
	}
}

// peekOpcode decodes the instruction at pc far enough to classify its
// prefix and final opcode byte, without side effects on memory state
// (DirectRead bypasses the debug read dispatch, matching §4.1's "used by
// tooling" contract).
func (c *CPU) peekOpcode(pc uint16) (disasm.Prefix, byte) {
	ins := disasm.Decode(directReader{c.mem}, pc)
	return ins.Prefix, ins.Opcode
}

type directReader struct{ mem *memory.Memory }

func (d directReader) Read(addr uint16, isExecution bool) byte { return d.mem.DirectRead(addr) }

// updateQAndUndocumentedFlags applies spec.md §4.6's Q-register law. SCF
// (0x37) and CCF (0x3F) additionally get their YF/XF bits corrected to
// the documented Zilog formula undocumented_flags = (A | (F & ~Q)) & 0x28,
// computed from Q as it stood *before* this instruction, since a generic
// oracle core is not guaranteed to reproduce this specific undocumented
// behaviour.
func (c *CPU) updateQAndUndocumentedFlags(fBefore byte, prefix disasm.Prefix, opcode byte) {
	isSCF := prefix == disasm.PrefixNone && opcode == 0x37
	isCCF := prefix == disasm.PrefixNone && opcode == 0x3F

	if isSCF || isCCF {
		undoc := (c.core.A | (fBefore &^ c.Q)) & 0x28
		c.core.F = (c.core.F &^ 0x28) | undoc
		c.Q = undoc
		return
	}

	if c.core.F != fBefore {
		c.Q = c.core.F & 0x28
	} else {
		c.Q = 0
	}
}

// handleExecutionBreakpoint implements the silent-vs-interactive dispatch
// contract (spec.md §4.5, scenario S6): analyzer-owned breakpoints notify
// only the owning analyzer; any other breakpoint publishes to the bus and
// blocks the emulation thread until resumed.
func (c *CPU) handleExecutionBreakpoint(id uint32) {
	if _, owned := c.an.IsAnalyzerOwnedBreakpoint(id); owned {
		c.an.DispatchBreakpointHit(c.core.PC(), id, c)
		return
	}

	c.Pause()
	if c.bus != nil {
		c.bus.Post(TopicExecutionBreakpoint, id, false)
	}
	c.an.DispatchBreakpointHit(c.core.PC(), id, c)
	c.waitWhilePaused()
}

// runROMOverlayTransition applies the TR-DOS overlay rule at the top of
// Step, before the M1 fetch, per spec.md §4.1/§4.6.
func (c *CPU) runROMOverlayTransition() {
	if c.romTRDOSPage < 0 {
		return
	}
	c.mem.UpdateTRDOSOverlay(c.core.PC(), c.romTRDOSPage, c.romNormalPage)
}

// maybeAcceptInterrupt implements the INT acknowledgement sequence from
// spec.md §4.6, called once per Step before the oracle core executes the
// next opcode (i.e. "between instructions"). c.T != c.eiPos enforces the
// real EI-delay rule: Step stamps eiPos with the T value at which an EI
// instruction completed, so the very next instruction (whose
// maybeAcceptInterrupt call observes an unchanged c.T == eiPos) still
// cannot accept, and only the instruction after that can. NMI generation
// is declared but intentionally left unwired per spec.
func (c *CPU) maybeAcceptInterrupt() {
	if !c.intPending {
		return
	}
	if c.core.IFF1 == 0 {
		return
	}
	if c.T >= c.intStart && c.T < c.intEnd && c.T != c.eiPos {
		c.acknowledgeInt()
	}
}

func (c *CPU) acknowledgeInt() {
	pc := c.core.PC()
	if c.core.Halted {
		pc++
		c.core.Halted = false
	}

	sp := c.core.SP() - 2
	c.core.SetSP(sp)
	c.writeWord(sp, pc)

	var target uint16
	var ackCost uint64
	switch c.IM {
	case IM2:
		vecAddr := uint16(c.core.I)<<8 | uint16(c.supplyVector)
		target = c.readWord(vecAddr)
		ackCost = 19 - 3
	default: // IM0, IM1
		target = 0x0038
		ackCost = 13 - 3
	}
	c.core.SetPC(target)

	c.core.IFF1 = 0
	c.core.IFF2 = 0
	c.intPending = false

	c.T += ackCost
	c.TT += ackCost * Rate
}

func (c *CPU) writeWord(addr uint16, v uint16) {
	c.mem.WriteDebug(addr, byte(v))
	c.mem.WriteDebug(addr+1, byte(v>>8))
}

func (c *CPU) readWord(addr uint16) uint16 {
	lo := c.mem.ReadDebug(addr, false)
	hi := c.mem.ReadDebug(addr+1, false)
	return uint16(hi)<<8 | uint16(lo)
}

// SupplyIM2Vector sets the low byte a peripheral places on the data bus
// during an IM2 interrupt acknowledge cycle.
func (c *CPU) SupplyIM2Vector(v byte) { c.supplyVector = v }

// DebugDump returns a one-line textual snapshot of CPU state: registers,
// flags, Q, MEMPTR and the T-state counters.
func (c *CPU) DebugDump() string {
	return sprintDump(c)
}
