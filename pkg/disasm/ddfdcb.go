package disasm

// ddcbTable and fdcbTable cover the doubled-prefix family: DD/FD, CB, a
// displacement byte, then the real opcode byte (always 4 bytes total).
// They are derived from cbTable by substituting (HL) for (IX+d)/(IY+d).
// The register-copy undocumented forms (where z != 6 copies the result
// into a register as well as (IX+d)) execute identically to the z==6 form
// and are represented here as the documented (IX+d)-only mnemonic, which
// is what every mainstream assembler emits.
var ddcbTable [256]entry
var fdcbTable [256]entry

func init() {
	for i := 0; i < 256; i++ {
		ddcbTable[i] = deriveIndexedCB(byte(i), "ix")
		fdcbTable[i] = deriveIndexedCB(byte(i), "iy")
	}
}

func deriveIndexedCB(op byte, idx string) entry {
	x, y, _, _, _ := xyzpq(op)

	switch x {
	case 0:
		return entry{rotName[y] + " (" + idx + ":d)", 4, 23, 23, FlagDisplacement}
	case 1:
		return entry{"bit " + itoa(y) + ",(" + idx + ":d)", 4, 20, 20, FlagDisplacement}
	case 2:
		return entry{"res " + itoa(y) + ",(" + idx + ":d)", 4, 23, 23, FlagDisplacement}
	default:
		return entry{"set " + itoa(y) + ",(" + idx + ":d)", 4, 23, 23, FlagDisplacement}
	}
}
