package disasm

import "strings"

// ddTable and fdTable are derived from noPrefixTable by substituting HL
// for IX/IY (16-bit context), H/L for IXH/IXL or IYH/IYL (undocumented
// half-register 8-bit context, only when neither operand is the memory
// form), and (HL) for (IX+d)/(IY+d) (indexed memory context, consuming a
// trailing displacement byte). This mirrors how the original disassembler
// derives its DD/FD tables as an overlay rather than a second hand-written
// 256-row table.
//
// entry.length here counts bytes from the opcode byte onward (the same
// convention noPrefixTable uses), NOT including the DD/FD prefix byte
// itself. The decoder does not read this field: Instruction.Length counts
// the bytes actually consumed, prefix included.
var ddTable [256]entry
var fdTable [256]entry

func init() {
	for i := 0; i < 256; i++ {
		ddTable[i] = deriveIndexed(byte(i), "ix", "ixh", "ixl")
		fdTable[i] = deriveIndexed(byte(i), "iy", "iyh", "iyl")
	}
}

// deriveIndexed produces the indexed-prefix entry for opcode op given the
// 16-bit register name (ix/iy) and its undocumented half-register names.
func deriveIndexed(op byte, idx, half, halfLow string) entry {
	x, y, z, _, _ := xyzpq(op)
	base := noPrefixTable[op]

	if base.flags&FlagPrefixed != 0 || base.flags&FlagIllegal != 0 {
		// CB/second-prefix slots and illegal rows pass through unchanged;
		// CB after DD/FD is handled by the DDCB/FDCB tables instead.
		return base
	}

	switch {
	case x == 1 && y == 6 && z == 6:
		return base // HALT: DD/FD prefixing it is an undocumented no-op pass-through

	case x == 1 && (y == 6 || z == 6):
		// LD r,(HL) / LD (HL),r: the memory side becomes indexed; the
		// register side, even if H/L, is NOT converted to IXH/IXL here
		// (a documented Z80 quirk).
		var mn string
		if y == 6 {
			mn = "ld (" + idx + ":d)," + reg8[z]
		} else {
			mn = "ld " + reg8[y] + ",(" + idx + ":d)"
		}
		return entry{mn, 2, 19, 19, base.flags&^FlagIndirectHL | FlagDisplacement}

	case x == 1:
		return entry{"ld " + halfReg(y, half, halfLow) + "," + halfReg(z, half, halfLow), 1, 8, 8, 0}

	case x == 2 && z == 6:
		return entry{aluName[y] + " (" + idx + ":d)", 2, 19, 19, FlagDisplacement}

	case x == 2:
		return entry{aluName[y] + " " + halfReg(z, half, halfLow), 1, 8, 8, 0}

	case x == 0 && z == 6 && y == 6:
		return entry{"ld (" + idx + ":d),:n", 3, 19, 19, FlagDisplacement | FlagByteOperand}

	case x == 0 && z == 6:
		return entry{"ld " + halfReg(y, half, halfLow) + ",:n", 2, 8, 8, FlagByteOperand}

	case x == 0 && z == 4 && y == 6:
		return entry{"inc (" + idx + ":d)", 2, 23, 23, FlagDisplacement}
	case x == 0 && z == 5 && y == 6:
		return entry{"dec (" + idx + ":d)", 2, 23, 23, FlagDisplacement}
	case x == 0 && z == 4:
		return entry{"inc " + halfReg(y, half, halfLow), 1, 8, 8, 0}
	case x == 0 && z == 5:
		return entry{"dec " + halfReg(y, half, halfLow), 1, 8, 8, 0}

	case op == 0x21:
		return entry{"ld " + idx + ",:nn", 3, 14, 14, FlagWordOperand}
	case op == 0x39:
		return entry{"add " + idx + ",sp", 1, 15, 15, 0}
	case op == 0x09 || op == 0x19:
		return entry{strings.Replace(base.mnemonic, "hl", idx, 1), 1, 15, 15, 0}
	case op == 0x29:
		return entry{"add " + idx + "," + idx, 1, 15, 15, 0}

	case op == 0x22:
		return entry{"ld (:nn)," + idx, 3, 20, 20, FlagWordOperand | FlagMemAddr}
	case op == 0x2A:
		return entry{"ld " + idx + ",(:nn)", 3, 20, 20, FlagWordOperand | FlagMemAddr}

	case op == 0x23:
		return entry{"inc " + idx, 1, 10, 10, 0}
	case op == 0x2B:
		return entry{"dec " + idx, 1, 10, 10, 0}

	case op == 0xE1:
		return entry{"pop " + idx, 1, 14, 14, 0}
	case op == 0xE5:
		return entry{"push " + idx, 1, 15, 15, 0}
	case op == 0xE3:
		return entry{"ex (sp)," + idx, 1, 23, 23, 0}
	case op == 0xE9:
		return entry{"jp (" + idx + ")", 1, 8, 8, FlagUnconditionalJump}
	case op == 0xF9:
		return entry{"ld sp," + idx, 1, 10, 10, 0}

	default:
		return base
	}
}

func halfReg(idx int, half, halfLow string) string {
	switch idx {
	case 4:
		return half
	case 5:
		return halfLow
	default:
		return reg8[idx]
	}
}
