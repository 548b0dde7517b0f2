package z80

import (
	"github.com/unrealng/z80core/pkg/breakpoint"
	"github.com/unrealng/z80core/pkg/memory"
)

// memAdapter and portAdapter implement the MemoryAccessor/PortAccessor
// interfaces github.com/remogatto/z80 dispatches every bus cycle through,
// routing each access into the banked memory model and, in debug mode,
// into the breakpoint engine and analyzer manager fan-out. Grounded on
// pkg/emulator/z80_remogatto.go's Memory/Ports adapters, generalized
// from a flat 64K array to memory.Memory's banked arena.
type memAdapter struct {
	cpu *CPU
}

func (m *memAdapter) dispatchRead(addr uint16, v byte) {
	if !m.cpu.debugMode {
		return
	}
	if id := m.cpu.bp.HandleMemoryRead(addr); id != breakpoint.Invalid {
		m.cpu.handleExecutionBreakpoint(id)
	}
	m.cpu.an.DispatchMemoryRead(addr, v)
}

func (m *memAdapter) dispatchWrite(addr uint16, v byte) {
	if !m.cpu.debugMode {
		return
	}
	if id := m.cpu.bp.HandleMemoryWrite(addr); id != breakpoint.Invalid {
		m.cpu.handleExecutionBreakpoint(id)
	}
	m.cpu.an.DispatchMemoryWrite(addr, v)
}

// ReadByte/WriteByte are the plain bus-cycle accessors the oracle core
// uses for opcode fetch, operand and data access alike; the core does
// not distinguish M1 fetch bytes from data reads at this boundary; the
// breakpoint engine's own HandlePCChange call in CPU.Step is what
// implements the execution-breakpoint check specifically. As a result, a
// memory-read breakpoint also fires on the opcode and operand bytes an
// instruction fetch reads.
func (m *memAdapter) ReadByte(address uint16) byte {
	v := m.cpu.mem.Read(address, false)
	m.dispatchRead(address, v)
	return v
}

func (m *memAdapter) WriteByte(address uint16, value byte) {
	m.cpu.mem.Write(address, value)
	m.dispatchWrite(address, value)
}

func (m *memAdapter) ReadByteInternal(address uint16) byte        { return m.cpu.mem.Read(address, false) }
func (m *memAdapter) WriteByteInternal(address uint16, value byte) { m.cpu.mem.Write(address, value) }

func (m *memAdapter) ContendRead(address uint16, time int)                    {}
func (m *memAdapter) ContendReadNoMreq(address uint16, time int)              {}
func (m *memAdapter) ContendReadNoMreq_loop(address uint16, time int, count uint) {}
func (m *memAdapter) ContendWriteNoMreq(address uint16, time int)             {}
func (m *memAdapter) ContendWriteNoMreq_loop(address uint16, time int, count uint) {}

func (m *memAdapter) Read(address uint16) byte { return m.cpu.mem.Read(address, false) }

func (m *memAdapter) Write(address uint16, value byte, protectROM bool) {
	if protectROM && m.cpu.mem.BankMode(int(address>>14)) == memory.BankROM {
		return
	}
	m.cpu.mem.Write(address, value)
}

// Data is unsupported: the banked arena has no single flat 64K view to
// hand out a slice of (the whole point of the bank model is that one
// doesn't exist). Returning nil is safe: no wired caller uses it.
func (m *memAdapter) Data() []byte { return nil }

// portAdapter implements PortAccessor, fanning I/O port access through
// the breakpoint engine's IO-kind lookup. There is no analyzer hot-path
// hook for port access per spec.md §4.5 (only cpu_step/memory_read/write
// are hot-path), so only the breakpoint pause/publish path applies here.
type portAdapter struct {
	cpu     *CPU
	onRead  func(port uint16) byte
	onWrite func(port uint16, value byte)
}

// SetIOHandlers installs the external I/O decoder (peripherals are an
// external collaborator per spec.md §1; the core only provides the
// breakpoint/dispatch integration point).
func (p *portAdapter) SetIOHandlers(read func(port uint16) byte, write func(port uint16, value byte)) {
	p.onRead, p.onWrite = read, write
}

func (p *portAdapter) ReadPort(address uint16) byte {
	if p.cpu.debugMode {
		if id := p.cpu.bp.HandlePortIn(address); id != breakpoint.Invalid {
			p.cpu.handleExecutionBreakpoint(id)
		}
	}
	if p.onRead != nil {
		return p.onRead(address)
	}
	return 0xFF
}

func (p *portAdapter) WritePort(address uint16, value byte) {
	if p.cpu.debugMode {
		if id := p.cpu.bp.HandlePortOut(address); id != breakpoint.Invalid {
			p.cpu.handleExecutionBreakpoint(id)
		}
	}
	if p.onWrite != nil {
		p.onWrite(address, value)
	}
}

func (p *portAdapter) ReadPortInternal(address uint16, contend bool) byte { return p.ReadPort(address) }
func (p *portAdapter) WritePortInternal(address uint16, value byte, contend bool) {
	p.WritePort(address, value)
}

func (p *portAdapter) ContendPortPreio(address uint16)  {}
func (p *portAdapter) ContendPortPostio(address uint16) {}

// SetIOHandlers exposes the port adapter's handler hook on CPU directly,
// the integration point an external I/O decoder (ports, keyboard matrix,
// FDC observer) registers against.
func (c *CPU) SetIOHandlers(read func(port uint16) byte, write func(port uint16, value byte)) {
	c.ports.SetIOHandlers(read, write)
}
