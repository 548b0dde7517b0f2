package disasm

import (
	"fmt"
	"strings"
)

// MemReader is the minimal memory view the decoder needs. *memory.Memory
// satisfies it directly via its Read method.
type MemReader interface {
	Read(addr uint16, isExecution bool) byte
}

// Decode reads one instruction starting at addr from mem and returns its
// fully decoded form, including any trailing displacement/immediate
// operands rendered into the mnemonic text.
func Decode(mem MemReader, addr uint16) Instruction {
	pos := addr
	b0 := mem.Read(pos, true)
	pos++

	switch b0 {
	case 0xCB:
		b1 := mem.Read(pos, true)
		pos++
		return assemble(addr, PrefixCB, b1, []byte{b0, b1}, cbTable[b1], mem, pos)

	case 0xED:
		b1 := mem.Read(pos, true)
		pos++
		return assemble(addr, PrefixED, b1, []byte{b0, b1}, edTable[b1], mem, pos)

	case 0xDD, 0xFD:
		isIY := b0 == 0xFD
		b1 := mem.Read(pos, true)
		pos++

		if b1 == 0xCB {
			d := mem.Read(pos, true)
			pos++
			opc := mem.Read(pos, true)
			pos++

			var e entry
			var pfx Prefix
			if isIY {
				e, pfx = fdcbTable[opc], PrefixFDCB
			} else {
				e, pfx = ddcbTable[opc], PrefixDDCB
			}
			bytes := []byte{b0, 0xCB, d, opc}
			mn := strings.Replace(e.mnemonic, ":d", formatDisp(int8(d)), 1)
			return Instruction{
				Address: addr, Prefix: pfx, Opcode: opc, Bytes: bytes,
				Mnemonic: mn, Flags: e.flags, TStates: e.tMet, TStatesNotTaken: e.tNotMet,
			}
		}

		var tbl *[256]entry
		var pfx Prefix
		if isIY {
			tbl, pfx = &fdTable, PrefixFD
		} else {
			tbl, pfx = &ddTable, PrefixDD
		}
		e := tbl[b1]
		if e.flags&FlagPrefixed != 0 {
			// A DD/FD immediately followed by another prefix byte (CB
			// already handled above; ED/DD/FD here) behaves as an
			// undocumented no-op: the leading prefix byte is discarded
			// and decoding of the real instruction resumes at b1.
			return Instruction{
				Address: addr, Prefix: PrefixNone, Opcode: b0, Bytes: []byte{b0},
				Mnemonic: "nop", Flags: FlagIllegal, TStates: 4, TStatesNotTaken: 4,
			}
		}
		return assemble(addr, pfx, b1, []byte{b0, b1}, e, mem, pos)

	default:
		return assemble(addr, PrefixNone, b0, []byte{b0}, noPrefixTable[b0], mem, pos)
	}
}

// assemble reads whatever trailing operand bytes e.flags calls for,
// appends them to the instruction's byte slice, and substitutes their
// formatted values into e.mnemonic's ":d"/":n"/":nn" placeholders.
func assemble(addr uint16, pfx Prefix, opcode byte, head []byte, e entry, mem MemReader, pos uint16) Instruction {
	bytes := append([]byte{}, head...)
	mn := e.mnemonic

	if e.flags&FlagDisplacement != 0 {
		d := mem.Read(pos, true)
		pos++
		bytes = append(bytes, d)
		mn = strings.Replace(mn, ":d", formatDisp(int8(d)), 1)
	}
	if e.flags&FlagByteOperand != 0 {
		n := mem.Read(pos, true)
		pos++
		bytes = append(bytes, n)
		mn = strings.Replace(mn, ":n", formatByte(n), 1)
	}
	if e.flags&FlagWordOperand != 0 {
		lo := mem.Read(pos, true)
		pos++
		hi := mem.Read(pos, true)
		pos++
		bytes = append(bytes, lo, hi)
		word := uint16(lo) | uint16(hi)<<8
		mn = strings.Replace(mn, ":nn", formatWord(word), 1)
	}

	return Instruction{
		Address: addr, Prefix: pfx, Opcode: opcode, Bytes: bytes,
		Mnemonic: mn, Flags: e.flags, TStates: e.tMet, TStatesNotTaken: e.tNotMet,
	}
}

func formatByte(n byte) string { return "#" + hex2(int(n)) }

func formatWord(w uint16) string { return "#" + hex2(int(w>>8)) + hex2(int(w&0xFF)) }

func formatDisp(d int8) string {
	if d < 0 {
		return "-#" + hex2(int(-int(d)))
	}
	return "+#" + hex2(int(d))
}

// DisassembleSingle decodes and renders the instruction at addr as a
// single human-readable line: address, raw bytes, mnemonic.
func DisassembleSingle(mem MemReader, addr uint16) string {
	ins := Decode(mem, addr)
	return fmt.Sprintf("%04X  %-12s %s", ins.Address, formatBytes(ins.Bytes), ins.Mnemonic)
}

func formatBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex2(int(v)))
	}
	return sb.String()
}

// ConditionState is the subset of CPU flag/register state needed to
// predict whether a conditional instruction's branch is taken.
type ConditionState struct {
	Zero, Carry, ParityOverflow, Sign bool
	B                                 byte // value of B BEFORE DJNZ's implicit decrement
}

func evaluateCondition(cond string, cs ConditionState) bool {
	switch cond {
	case "nz":
		return !cs.Zero
	case "z":
		return cs.Zero
	case "nc":
		return !cs.Carry
	case "c":
		return cs.Carry
	case "po":
		return !cs.ParityOverflow
	case "pe":
		return cs.ParityOverflow
	case "p":
		return !cs.Sign
	case "m":
		return cs.Sign
	default:
		return false
	}
}

// DisassembleWithRuntime decodes the instruction at addr and, when it is a
// relative jump or conditional instruction, annotates it with the resolved
// branch target and a taken/not-taken prediction derived from cs.
func DisassembleWithRuntime(mem MemReader, addr uint16, cs ConditionState) DecodedInstruction {
	ins := Decode(mem, addr)
	out := DecodedInstruction{Instruction: ins}

	if ins.Flags&FlagRelJump != 0 {
		// Relative displacement is always the byte immediately following
		// the single opcode byte for JR/DJNZ (never prefixed), so it sits
		// at offset 1 of the instruction's own bytes.
		d := int8(ins.Bytes[1])
		out.HasTarget = true
		out.TargetAddr = uint16(int32(addr) + int32(len(ins.Bytes)) + int32(d))
	}

	if ins.Flags&FlagDJNZ != 0 {
		out.HasPrediction = true
		out.ConditionMet = cs.B-1 != 0
	} else if ins.Flags&FlagCondition != 0 {
		cond := conditionFromMnemonic(ins.Mnemonic)
		out.HasPrediction = true
		out.ConditionMet = evaluateCondition(cond, cs)
	}

	return out
}

// conditionFromMnemonic extracts the cc token ("nz","z","nc","c","po",
// "pe","p","m") from a rendered mnemonic: "jp nz,#1234", "jr c,:d" (comma
// before the target) or "ret nz" (condition is the whole remainder, as
// RET cc takes no operand).
func conditionFromMnemonic(mn string) string {
	sp := strings.IndexByte(mn, ' ')
	if sp < 0 {
		return ""
	}
	rest := mn[sp+1:]
	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		return rest[:comma]
	}
	return rest
}

// ShouldStepOver reports whether ins is a candidate for the debugger's
// step-over command: CALL (conditional or not) and RST both push a return
// address and are steppable-over in one bound, unlike RET/jumps. The
// repeating block instructions (LDIR/CPIR/INIR/OTIR and their decrementing
// counterparts) and DJNZ also loop in place on the same instruction, so a
// plain single-step would spin the debugger through every iteration; they
// are steppable-over too.
func ShouldStepOver(ins Instruction) bool {
	return ins.Flags&(FlagCall|FlagRST|FlagBlock|FlagDJNZ) != 0
}

// NextInstructionAddr returns the address immediately following ins,
// wrapping modulo 0x10000.
func NextInstructionAddr(addr uint16, ins Instruction) uint16 {
	return uint16(int(addr) + len(ins.Bytes))
}

// AddrRange is a half-open [Start,End) byte range to treat as a single
// unit when computing step-over behaviour.
type AddrRange struct {
	Start, End uint16
}

// StepOverExclusionRanges walks the control flow reachable from a CALL or
// RST instruction at callAddr (its immediate target, and transitively any
// CALL/RST it reaches, up to maxDepth), returning the address ranges a
// step-over should skip rather than single-step through. The walk stops
// at a RET-family instruction, at maxInstructions total decoded
// instructions, or at maxDepth nested calls, whichever comes first — an
// unbounded CFG walk could loop forever against corrupted or
// self-modifying code.
func StepOverExclusionRanges(mem MemReader, callAddr uint16, maxInstructions, maxDepth int) []AddrRange {
	call := Decode(mem, callAddr)
	if !ShouldStepOver(call) {
		return nil
	}

	target, ok := callTarget(call)
	if !ok {
		return nil
	}

	budget := &walkBudget{remaining: maxInstructions}
	ranges := walkUntilReturn(mem, target, maxDepth, budget)
	ranges = append(ranges, AddrRange{Start: callAddr, End: NextInstructionAddr(callAddr, call)})
	return ranges
}

type walkBudget struct{ remaining int }

func callTarget(ins Instruction) (uint16, bool) {
	switch {
	case ins.Flags&FlagRST != 0:
		// "rst #38" -> target 0x38; the literal follows the last '#'.
		hash := strings.LastIndexByte(ins.Mnemonic, '#')
		if hash < 0 {
			return 0, false
		}
		v := 0
		for _, c := range ins.Mnemonic[hash+1:] {
			d := hexVal(byte(c))
			if d < 0 {
				break
			}
			v = v*16 + d
		}
		return uint16(v), true
	case ins.Flags&FlagCall != 0 && len(ins.Bytes) >= 2:
		lo, hi := ins.Bytes[len(ins.Bytes)-2], ins.Bytes[len(ins.Bytes)-1]
		return uint16(lo) | uint16(hi)<<8, true
	}
	return 0, false
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	default:
		return -1
	}
}

func walkUntilReturn(mem MemReader, start uint16, maxDepth int, budget *walkBudget) []AddrRange {
	if maxDepth <= 0 {
		return []AddrRange{{Start: start, End: start}}
	}

	var nested []AddrRange
	addr := start
	for budget.remaining > 0 {
		ins := Decode(mem, addr)
		budget.remaining--
		next := NextInstructionAddr(addr, ins)

		if ins.Flags&FlagReturn != 0 && ins.Flags&FlagCondition == 0 {
			return append([]AddrRange{{Start: start, End: next}}, nested...)
		}
		if ShouldStepOver(ins) {
			if target, ok := callTarget(ins); ok {
				nested = append(nested, walkUntilReturn(mem, target, maxDepth-1, budget)...)
			}
		}
		if ins.Flags&FlagUnconditionalJump != 0 && ins.Flags&FlagMemAddr != 0 && len(ins.Bytes) >= 2 {
			// JP nn: follow the jump rather than falling through. JP
			// (HL)/(IX)/(IY) carries FlagUnconditionalJump but not
			// FlagMemAddr (its operand is a register, not nn) and falls
			// through to the budget-exhaustion return below instead.
			lo, hi := ins.Bytes[len(ins.Bytes)-2], ins.Bytes[len(ins.Bytes)-1]
			addr = uint16(lo) | uint16(hi)<<8
			continue
		}
		addr = next
	}
	return append([]AddrRange{{Start: start, End: addr}}, nested...)
}
