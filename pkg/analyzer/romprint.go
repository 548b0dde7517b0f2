package analyzer

import "strings"

// ROMPrintAnalyzer captures ZX Spectrum ROM print output by watching
// RST $10, PRINT-OUT ($09F4) and PRINT-A-2 ($15F2), decoding the
// character in A from ZX Spectrum character-set codes to text and
// accumulating it into lines.
//
// Grounded on original_source's ROMPrintDetector (rom-print/romprintdetector.h):
// same three breakpoint addresses, same control-code handling (13 = CR
// ends the current line, other codes below 32 are dropped), ported from
// its std::string accumulator to a strings.Builder plus []string lines.
type ROMPrintAnalyzer struct {
	id string

	fullHistory strings.Builder
	current     strings.Builder
	lines       []string

	lastReadPos int
	lastLineIdx int
}

const (
	romPrintRST10    uint16 = 0x0010
	romPrintPrintOut uint16 = 0x09F4
	romPrintPrintA2  uint16 = 0x15F2
)

// NewROMPrintAnalyzer creates a detector with the given owner id, used
// both as its breakpoint owner tag and its analyzer manager key.
func NewROMPrintAnalyzer(id string) *ROMPrintAnalyzer {
	return &ROMPrintAnalyzer{id: id}
}

func (a *ROMPrintAnalyzer) Name() string { return "ROMPrintDetector" }
func (a *ROMPrintAnalyzer) ID() string   { return a.id }

// OnActivate requests silent execution breakpoints at the three ROM
// print entry points; hits never reach the interactive debugger (spec.md
// §4.5's silent-dispatch contract) since they are analyzer-owned.
func (a *ROMPrintAnalyzer) OnActivate(m *Manager) {
	m.RequestExecutionBreakpoint(romPrintRST10, a.id)
	m.RequestExecutionBreakpoint(romPrintPrintOut, a.id)
	m.RequestExecutionBreakpoint(romPrintPrintA2, a.id)
}

func (a *ROMPrintAnalyzer) OnDeactivate() {}

// OnBreakpointHit decodes the character about to be printed from the
// CPU's A register (all three entry points carry the character code
// there per the ROM's calling convention) and appends it to the buffer.
func (a *ROMPrintAnalyzer) OnBreakpointHit(address uint16, cpu CPU) {
	reg, ok := cpu.(interface{ A() byte })
	if !ok {
		return
	}
	a.handleControlCode(reg.A())
}

func (a *ROMPrintAnalyzer) handleControlCode(code byte) {
	switch {
	case code == 13: // CR: end the current line
		a.fullHistory.WriteByte('\n')
		a.lines = append(a.lines, a.current.String())
		a.current.Reset()
	case code < 32:
		// Other control codes (cursor movement, colour codes, token
		// bytes) carry no printable text in this simplified decoder.
	default:
		ch := decodeZXChar(code)
		a.fullHistory.WriteString(ch)
		a.current.WriteString(ch)
	}
}

// decodeZXChar maps a ZX Spectrum character code to UTF-8 text. Codes
// 32-126 match ASCII; every other code (127, block graphics 128-143, UDG
// 144-164 and the tokens above) is rendered as a "?" placeholder, matching
// the original detector's "best effort" text decoding.
func decodeZXChar(code byte) string {
	if code >= 32 && code < 127 {
		return string(rune(code))
	}
	return "?"
}

// GetFullHistory returns all text captured since activation.
func (a *ROMPrintAnalyzer) GetFullHistory() string { return a.fullHistory.String() }

// GetNewOutput returns text captured since the last call to GetNewOutput.
func (a *ROMPrintAnalyzer) GetNewOutput() string {
	full := a.fullHistory.String()
	if a.lastReadPos >= len(full) {
		return ""
	}
	out := full[a.lastReadPos:]
	a.lastReadPos = len(full)
	return out
}

// GetLines returns every complete (newline-terminated) line captured.
func (a *ROMPrintAnalyzer) GetLines() []string { return append([]string(nil), a.lines...) }

// GetNewLines returns complete lines captured since the last call.
func (a *ROMPrintAnalyzer) GetNewLines() []string {
	if a.lastLineIdx >= len(a.lines) {
		return nil
	}
	out := append([]string(nil), a.lines[a.lastLineIdx:]...)
	a.lastLineIdx = len(a.lines)
	return out
}

// Clear resets all captured history.
func (a *ROMPrintAnalyzer) Clear() {
	a.fullHistory.Reset()
	a.current.Reset()
	a.lines = nil
	a.lastReadPos = 0
	a.lastLineIdx = 0
}
