// Package memory implements the banked 64 KiB Z80 address space over a flat
// physical arena of RAM, ROM, cache and misc pages.
package memory

import "fmt"

// PageSize is the size of a single physical page and of a single Z80 bank.
const PageSize = 16 * 1024

// BankCount is the number of 16 KiB banks covering the Z80's 64 KiB address space.
const BankCount = 4

// Unmappable is the sentinel value returned for out-of-range page or offset queries.
const Unmappable = -1

// Compile-time maximums for each physical region. A real 128K/Pentagon
// style machine fits comfortably under these; callers needing more pages
// should raise them rather than grow the arena dynamically (the arena
// layout is fixed at construction, mirroring the original's flat buffer).
const (
	MaxRAMPages  = 64
	MaxCachePages = 4
	MaxMiscPages = 4
	MaxROMPages  = 16
)

// BankMode describes how a bank's address range behaves on access.
type BankMode uint8

const (
	BankROM BankMode = iota
	BankRAM
	BankUnavailable
)

func (m BankMode) String() string {
	switch m {
	case BankROM:
		return "ROM"
	case BankRAM:
		return "RAM"
	default:
		return "UNAVAILABLE"
	}
}

// region identifies which partition of the physical arena a page belongs to.
type region uint8

const (
	regionRAM region = iota
	regionCache
	regionMisc
	regionROM
)

// bank is the live mapping for one of the four 16 KiB Z80 address slots.
type bank struct {
	readRegion  region
	readPage    int
	writeRegion region
	writePage   int
	mode        BankMode
}

// Memory is the physical arena plus the four active bank mappings.
type Memory struct {
	arena []byte

	ramBase, ramLen     int
	cacheBase, cacheLen int
	miscBase, miscLen   int
	romBase, romLen     int

	banks [BankCount]bank

	trdosActive bool

	// onRead/onWrite are invoked by the debug-mode accessors only, after
	// the physical access completes, letting the analyzer framework fan
	// out without the fast path paying for the dispatch.
	onRead  func(addr uint16, value byte, isExecution bool)
	onWrite func(addr uint16, value byte)
}

// New allocates an arena sized for ramPages+cachePages+miscPages+romPages
// pages of PageSize bytes, arranged RAM, cache, misc, ROM in that order.
// A negative page count, or one above its Max*Pages limit, panics (zero
// pages of a region is allowed): there is no recovery path for a debug
// core without memory.
func New(ramPages, cachePages, miscPages, romPages int) *Memory {
	if ramPages < 0 || cachePages < 0 || miscPages < 0 || romPages < 0 {
		panic("memory: negative page count")
	}
	if ramPages > MaxRAMPages || cachePages > MaxCachePages || miscPages > MaxMiscPages || romPages > MaxROMPages {
		panic("memory: page count exceeds compile-time maximum")
	}

	m := &Memory{}
	m.ramBase, m.ramLen = 0, ramPages*PageSize
	m.cacheBase, m.cacheLen = m.ramBase+m.ramLen, cachePages*PageSize
	m.miscBase, m.miscLen = m.cacheBase+m.cacheLen, miscPages*PageSize
	m.romBase, m.romLen = m.miscBase+m.miscLen, romPages*PageSize

	total := m.romBase + m.romLen
	m.arena = make([]byte, total)

	for i := range m.banks {
		m.banks[i] = bank{mode: BankUnavailable}
	}

	return m
}

// Default48K wires up the classic 48K ZX Spectrum layout: ROM page 0 in
// bank 0, RAM pages 5, 2, 0 in banks 1..3.
func (m *Memory) Default48K() {
	m.SetBank(0, 0, BankROM)
	m.SetBank(1, 5, BankRAM)
	m.SetBank(2, 2, BankRAM)
	m.SetBank(3, 0, BankRAM)
}

// SetOnRead/SetOnWrite install the debug-mode fan-out hooks. Passing nil
// disables the corresponding dispatch.
func (m *Memory) SetOnRead(fn func(addr uint16, value byte, isExecution bool))  { m.onRead = fn }
func (m *Memory) SetOnWrite(fn func(addr uint16, value byte))                   { m.onWrite = fn }

func addrBank(addr uint16) int     { return int(addr >> 14) }
func addrOffset(addr uint16) int   { return int(addr & 0x3FFF) }

// regionBase returns the arena offset of page 0 of the given region, and
// the number of pages available in it.
func (m *Memory) regionBase(r region) (base, pages int) {
	switch r {
	case regionRAM:
		return m.ramBase, m.ramLen / PageSize
	case regionCache:
		return m.cacheBase, m.cacheLen / PageSize
	case regionMisc:
		return m.miscBase, m.miscLen / PageSize
	case regionROM:
		return m.romBase, m.romLen / PageSize
	}
	return 0, 0
}

func (m *Memory) physicalOffset(r region, page int) int {
	base, pages := m.regionBase(r)
	if page < 0 || page >= pages {
		return Unmappable
	}
	return base + page*PageSize
}

// SetBank updates bank bankIndex's mode and backing page. In ROM mode, the
// write target is discarded (writes are absorbed silently); in RAM mode
// both read and write point at the same page. Visible no later than the
// next M1 fetch, i.e. immediately — Go has no out-of-order memory model
// surprises here, the "next fetch" guarantee is satisfied trivially since
// SetBank and Read/Write are ordinary sequential calls from the same
// owning goroutine (the CPU).
func (m *Memory) SetBank(bankIndex int, pageIndex int, mode BankMode) {
	if bankIndex < 0 || bankIndex >= BankCount {
		panic(fmt.Sprintf("memory: bank index %d out of range", bankIndex))
	}

	r := regionRAM
	if mode == BankROM {
		r = regionROM
	}

	m.banks[bankIndex] = bank{
		readRegion:  r,
		readPage:    pageIndex,
		writeRegion: r,
		writePage:   pageIndex,
		mode:        mode,
	}
}

// Read performs a fast-mode read: resolve bank, return byte, no dispatch.
func (m *Memory) Read(addr uint16, isExecution bool) byte {
	b := &m.banks[addrBank(addr)]
	off := m.physicalOffset(b.readRegion, b.readPage)
	if off == Unmappable {
		return 0xFF
	}
	return m.arena[off+addrOffset(addr)]
}

// Write performs a fast-mode write: ROM banks silently absorb the write.
func (m *Memory) Write(addr uint16, value byte) {
	b := &m.banks[addrBank(addr)]
	if b.mode == BankROM {
		return
	}
	off := m.physicalOffset(b.writeRegion, b.writePage)
	if off == Unmappable {
		return
	}
	m.arena[off+addrOffset(addr)] = value
}

// ReadDebug performs a read and, if installed, invokes the analyzer
// fan-out hook after the physical access completes.
func (m *Memory) ReadDebug(addr uint16, isExecution bool) byte {
	v := m.Read(addr, isExecution)
	if m.onRead != nil {
		m.onRead(addr, v, isExecution)
	}
	return v
}

// WriteDebug performs a write and, if installed, invokes the analyzer
// fan-out hook after the physical access completes. The hook also runs for
// a write a ROM bank absorbed: the backing store is unchanged, but
// analyzers still observe the attempted write address/value.
func (m *Memory) WriteDebug(addr uint16, value byte) {
	m.Write(addr, value)
	if m.onWrite != nil {
		m.onWrite(addr, value)
	}
}

// DirectRead/DirectWrite bypass counters and dispatch entirely; used by
// tooling and analyzers. Callers must ensure the CPU is paused before
// calling these concurrently with a running emulation thread.
func (m *Memory) DirectRead(addr uint16) byte          { return m.Read(addr, false) }
func (m *Memory) DirectWrite(addr uint16, value byte)  { m.Write(addr, value) }

// MapZ80ToPhysical returns the arena index that Read(addr) would resolve
// to, or Unmappable if the backing page is out of range.
func (m *Memory) MapZ80ToPhysical(addr uint16) int {
	b := &m.banks[addrBank(addr)]
	off := m.physicalOffset(b.readRegion, b.readPage)
	if off == Unmappable {
		return Unmappable
	}
	return off + addrOffset(addr)
}

// BankMode returns the current mode of bank i.
func (m *Memory) BankMode(i int) BankMode {
	if i < 0 || i >= BankCount {
		return BankUnavailable
	}
	return m.banks[i].mode
}

// ROMPageOfBank returns the ROM page currently mapped into bank i, or
// Unmappable if the bank isn't in ROM mode.
func (m *Memory) ROMPageOfBank(i int) int {
	if i < 0 || i >= BankCount || m.banks[i].mode != BankROM {
		return Unmappable
	}
	return m.banks[i].readPage
}

// RAMPageOfBank returns the RAM page currently mapped into bank i, or
// Unmappable if the bank isn't in RAM mode.
func (m *Memory) RAMPageOfBank(i int) int {
	if i < 0 || i >= BankCount || m.banks[i].mode != BankRAM {
		return Unmappable
	}
	return m.banks[i].readPage
}

// PhysicalOffsetOfBank returns the arena base offset for bank i's current
// read mapping.
func (m *Memory) PhysicalOffsetOfBank(i int) int {
	if i < 0 || i >= BankCount {
		return Unmappable
	}
	b := &m.banks[i]
	return m.physicalOffset(b.readRegion, b.readPage)
}

// ROMPageOfAddress returns which ROM page owns a given arena offset, or
// Unmappable if the offset doesn't fall within the ROM region.
func (m *Memory) ROMPageOfAddress(offset int) int {
	if offset < m.romBase || offset >= m.romBase+m.romLen {
		return Unmappable
	}
	return (offset - m.romBase) / PageSize
}

// RAMPageOfAddress returns which RAM page owns a given arena offset, or
// Unmappable if the offset doesn't fall within the RAM region.
func (m *Memory) RAMPageOfAddress(offset int) int {
	if offset < m.ramBase || offset >= m.ramBase+m.ramLen {
		return Unmappable
	}
	return (offset - m.ramBase) / PageSize
}

// LoadROM copies data into ROM page pageIndex of the arena, bypassing the
// bank map entirely. Used by tooling during setup, never by the CPU.
func (m *Memory) LoadROM(pageIndex int, data []byte) error {
	off := m.physicalOffset(regionROM, pageIndex)
	if off == Unmappable {
		return fmt.Errorf("memory: ROM page %d out of range", pageIndex)
	}
	if len(data) > PageSize {
		return fmt.Errorf("memory: ROM image longer than page size (%d > %d)", len(data), PageSize)
	}
	copy(m.arena[off:off+PageSize], data)
	return nil
}

// LoadRAM copies data into RAM page pageIndex of the arena, bypassing the
// bank map entirely.
func (m *Memory) LoadRAM(pageIndex int, data []byte) error {
	off := m.physicalOffset(regionRAM, pageIndex)
	if off == Unmappable {
		return fmt.Errorf("memory: RAM page %d out of range", pageIndex)
	}
	if len(data) > PageSize {
		return fmt.Errorf("memory: RAM image longer than page size (%d > %d)", len(data), PageSize)
	}
	copy(m.arena[off:off+PageSize], data)
	return nil
}

// UpdateTRDOSOverlay applies the TR-DOS ROM overlay transition rule: entering
// execution in the 0x3Dxx window activates the overlay (caller supplies the
// page to swap bank 0 to), leaving it (PC >= 0x4000) deactivates it. It
// returns true if the overlay state changed and banks were re-applied.
func (m *Memory) UpdateTRDOSOverlay(pc uint16, trdosROMPage, normalROMPage int) bool {
	changed := false

	if !m.trdosActive && (pc>>8) == 0x3D {
		m.trdosActive = true
		m.SetBank(0, trdosROMPage, BankROM)
		changed = true
	} else if m.trdosActive && pc >= 0x4000 {
		m.trdosActive = false
		m.SetBank(0, normalROMPage, BankROM)
		changed = true
	}

	return changed
}

// TRDOSActive reports whether the TR-DOS ROM overlay is currently mapped.
func (m *Memory) TRDOSActive() bool { return m.trdosActive }
