package disasm

// The opcode tables are generated at init time from the well-known
// x/y/z/p/q decomposition of a Z80 opcode byte (x = bits 7-6, y = bits
// 5-3, z = bits 2-0, p = y>>1, q = y&1), rather than hand-transcribed,
// for the regular families (8-bit loads, ALU, rotates, 16-bit loads).
// Irregular opcodes (block instructions, CPU control, I/O, exchanges)
// are explicit cases inside the same build functions; the override hooks
// run after them are currently empty. This
// mirrors the shape of the original's fixed per-opcode array while
// keeping the regular ~180 rows of the 256 derivable instead of copied.

var reg8 = [8]string{"b", "c", "d", "e", "h", "l", "(hl)", "a"}
var reg16SP = [4]string{"bc", "de", "hl", "sp"}
var reg16AF = [4]string{"bc", "de", "hl", "af"}
var condName = [8]string{"nz", "z", "nc", "c", "po", "pe", "p", "m"}
var aluName = [8]string{"add a,", "adc a,", "sub", "sbc a,", "and", "xor", "or", "cp"}
var rotName = [8]string{"rlc", "rrc", "rl", "rr", "sla", "sra", "sll", "srl"}
var imName = [8]int{0, 0, 1, 2, 0, 0, 1, 2}

func xyzpq(op byte) (x, y, z, p, q int) {
	x = int(op>>6) & 0x3
	y = int(op>>3) & 0x7
	z = int(op) & 0x7
	p = y >> 1
	q = y & 1
	return
}

var noPrefixTable [256]entry
var cbTable [256]entry
var edTable [256]entry

func init() {
	for i := 0; i < 256; i++ {
		noPrefixTable[i] = buildNoPrefix(byte(i))
		cbTable[i] = buildCB(byte(i))
		edTable[i] = buildED(byte(i))
	}
	applyNoPrefixOverrides()
	applyEDOverrides()
}

// buildNoPrefix derives the unprefixed entry for opcode op from its
// x/y/z/p/q decomposition. Irregular rows are handled by explicit cases
// here; applyNoPrefixOverrides changes nothing.
func buildNoPrefix(op byte) entry {
	x, y, z, p, q := xyzpq(op)

	memOperand := func(r int) (flags OpFlags) {
		if r == 6 {
			return FlagIndirectHL
		}
		return 0
	}

	switch {
	case x == 1 && z == 6 && y == 6:
		// HALT occupies the LD (HL),(HL) slot.
		return entry{"halt", 1, 4, 4, 0}

	case x == 1:
		// LD r[y],r[z]
		t := 4
		fl := memOperand(y) | memOperand(z)
		if y == 6 || z == 6 {
			t = 7
		}
		return entry{"ld " + reg8[y] + "," + reg8[z], 1, t, t, fl}

	case x == 2:
		// alu[y] r[z]
		t := 4
		fl := memOperand(z)
		if z == 6 {
			t = 7
		}
		return entry{aluName[y] + " " + reg8[z], 1, t, t, fl}

	case x == 0 && z == 0:
		switch y {
		case 0:
			return entry{"nop", 1, 4, 4, 0}
		case 1:
			return entry{"ex af,af'", 1, 4, 4, 0}
		case 2:
			return entry{"djnz :d", 2, 13, 8, FlagDisplacement | FlagRelJump | FlagDJNZ | FlagVariableTiming}
		case 3:
			return entry{"jr :d", 2, 12, 12, FlagDisplacement | FlagRelJump | FlagUnconditionalJump}
		default:
			return entry{"jr " + condName[y-4] + ",:d", 2, 12, 7, FlagDisplacement | FlagRelJump | FlagCondition | FlagVariableTiming}
		}

	case x == 0 && z == 1 && q == 0:
		return entry{"ld " + reg16SP[p] + ",:nn", 3, 10, 10, FlagWordOperand}
	case x == 0 && z == 1 && q == 1:
		return entry{"add hl," + reg16SP[p], 1, 11, 11, 0}

	case x == 0 && z == 2:
		switch {
		case p == 0 && q == 0:
			return entry{"ld (bc),a", 1, 7, 7, 0}
		case p == 0 && q == 1:
			return entry{"ld a,(bc)", 1, 7, 7, 0}
		case p == 1 && q == 0:
			return entry{"ld (de),a", 1, 7, 7, 0}
		case p == 1 && q == 1:
			return entry{"ld a,(de)", 1, 7, 7, 0}
		case p == 2 && q == 0:
			return entry{"ld (:nn),hl", 3, 16, 16, FlagWordOperand | FlagMemAddr}
		case p == 2 && q == 1:
			return entry{"ld hl,(:nn)", 3, 16, 16, FlagWordOperand | FlagMemAddr}
		case p == 3 && q == 0:
			return entry{"ld (:nn),a", 3, 13, 13, FlagWordOperand | FlagMemAddr}
		default:
			return entry{"ld a,(:nn)", 3, 13, 13, FlagWordOperand | FlagMemAddr}
		}

	case x == 0 && z == 3:
		if q == 0 {
			return entry{"inc " + reg16SP[p], 1, 6, 6, 0}
		}
		return entry{"dec " + reg16SP[p], 1, 6, 6, 0}

	case x == 0 && z == 4:
		t := 4
		if y == 6 {
			t = 11
		}
		return entry{"inc " + reg8[y], 1, t, t, memOperand(y)}

	case x == 0 && z == 5:
		t := 4
		if y == 6 {
			t = 11
		}
		return entry{"dec " + reg8[y], 1, t, t, memOperand(y)}

	case x == 0 && z == 6:
		t := 7
		if y == 6 {
			t = 10
		}
		return entry{"ld " + reg8[y] + ",:n", 2, t, t, FlagByteOperand | memOperand(y)}

	case x == 0 && z == 7:
		names := [8]string{"rlca", "rrca", "rla", "rra", "daa", "cpl", "scf", "ccf"}
		return entry{names[y], 1, 4, 4, 0}

	case x == 3 && z == 0:
		return entry{"ret " + condName[y], 1, 11, 5, FlagCondition | FlagReturn | FlagVariableTiming}

	case x == 3 && z == 1 && q == 0:
		return entry{"pop " + reg16AF[p], 1, 10, 10, 0}
	case x == 3 && z == 1 && q == 1:
		switch p {
		case 0:
			return entry{"ret", 1, 10, 10, FlagReturn | FlagUnconditionalJump}
		case 1:
			return entry{"exx", 1, 4, 4, 0}
		case 2:
			return entry{"jp (hl)", 1, 4, 4, FlagUnconditionalJump}
		default:
			return entry{"ld sp,hl", 1, 6, 6, 0}
		}

	case x == 3 && z == 2:
		return entry{"jp " + condName[y] + ",:nn", 3, 10, 10, FlagWordOperand | FlagMemAddr | FlagCondition}

	case x == 3 && z == 3:
		switch y {
		case 0:
			return entry{"jp :nn", 3, 10, 10, FlagWordOperand | FlagMemAddr | FlagUnconditionalJump}
		case 1:
			return entry{"", 1, 0, 0, FlagPrefixed} // CB prefix, handled by the decoder
		case 2:
			return entry{"out (:n),a", 2, 11, 11, FlagByteOperand}
		case 3:
			return entry{"in a,(:n)", 2, 11, 11, FlagByteOperand}
		case 4:
			return entry{"ex (sp),hl", 1, 19, 19, 0}
		case 5:
			return entry{"ex de,hl", 1, 4, 4, 0}
		case 6:
			return entry{"di", 1, 4, 4, 0}
		default:
			return entry{"ei", 1, 4, 4, 0}
		}

	case x == 3 && z == 4:
		return entry{"call " + condName[y] + ",:nn", 3, 17, 10, FlagWordOperand | FlagCondition | FlagCall | FlagVariableTiming}

	case x == 3 && z == 5:
		if q == 0 {
			return entry{"push " + reg16AF[p], 1, 11, 11, 0}
		}
		if p == 0 {
			return entry{"call :nn", 3, 17, 17, FlagWordOperand | FlagCall}
		}
		return entry{"", 1, 0, 0, FlagPrefixed} // DD/FD/ED prefixes, handled by the decoder

	case x == 3 && z == 6:
		return entry{aluName[y] + " :n", 2, 7, 7, FlagByteOperand}

	case x == 3 && z == 7:
		return entry{"rst #" + hex2(y*8), 1, 11, 11, FlagRST}
	}

	return entry{"?", 1, 4, 4, FlagIllegal}
}

func applyNoPrefixOverrides() {
	// No further overrides needed: every row above is exact. Kept as an
	// extension point for any future documented-opcode correction.
}

func buildCB(op byte) entry {
	x, y, z, _, _ := xyzpq(op)
	t := 8
	if z == 6 {
		t = 15
	}
	fl := OpFlags(0)
	if z == 6 {
		fl |= FlagIndirectHL
	}

	switch x {
	case 0:
		return entry{rotName[y] + " " + reg8[z], 1, t, t, fl}
	case 1:
		tb := t
		if z == 6 {
			tb = 12
		}
		return entry{"bit " + itoa(y) + "," + reg8[z], 1, tb, tb, fl}
	case 2:
		return entry{"res " + itoa(y) + "," + reg8[z], 1, t, t, fl}
	default:
		return entry{"set " + itoa(y) + "," + reg8[z], 1, t, t, fl}
	}
}

func buildED(op byte) entry {
	x, y, z, p, q := xyzpq(op)

	if x == 1 {
		switch z {
		case 0:
			if y == 6 {
				return entry{"in (c)", 2, 12, 12, 0}
			}
			return entry{"in " + reg8[y] + ",(c)", 2, 12, 12, 0}
		case 1:
			if y == 6 {
				return entry{"out (c),0", 2, 12, 12, 0}
			}
			return entry{"out (c)," + reg8[y], 2, 12, 12, 0}
		case 2:
			if q == 0 {
				return entry{"sbc hl," + reg16SP[p], 2, 15, 15, 0}
			}
			return entry{"adc hl," + reg16SP[p], 2, 15, 15, 0}
		case 3:
			if q == 0 {
				return entry{"ld (:nn)," + reg16SP[p], 4, 20, 20, FlagWordOperand | FlagMemAddr}
			}
			return entry{"ld " + reg16SP[p] + ",(:nn)", 4, 20, 20, FlagWordOperand | FlagMemAddr}
		case 4:
			return entry{"neg", 2, 8, 8, 0}
		case 5:
			if y == 1 {
				return entry{"reti", 2, 14, 14, FlagReturn}
			}
			return entry{"retn", 2, 14, 14, FlagReturn}
		case 6:
			return entry{"im " + itoa(imName[y]), 2, 8, 8, 0}
		case 7:
			names := [8]string{"ld i,a", "ld r,a", "ld a,i", "ld a,r", "rrd", "rld", "nop", "nop"}
			t := 9
			if y == 4 || y == 5 {
				t = 18
			}
			fl := OpFlags(0)
			if y == 4 || y == 5 {
				fl = FlagIndirectHL
			}
			return entry{names[y], 2, t, t, fl}
		}
	}

	if x == 2 && z <= 3 && y >= 4 {
		names := [4][4]string{
			{"ldi", "cpi", "ini", "outi"},
			{"ldd", "cpd", "ind", "outd"},
			{"ldir", "cpir", "inir", "otir"},
			{"lddr", "cpdr", "indr", "otdr"},
		}
		row := y - 4
		fl := FlagBlock
		if row >= 2 {
			// *IR/*DR repeating forms: 21 T while the block continues,
			// 16 T on the terminal iteration (BC reaches zero, or for
			// CPIR/CPDR also on a match).
			fl |= FlagVariableTiming
			return entry{names[row][z], 2, 21, 16, fl}
		}
		return entry{names[row][z], 2, 16, 16, fl}
	}

	return entry{"nop", 2, 8, 8, FlagIllegal}
}

func applyEDOverrides() {}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [3]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}

const hexDigits = "0123456789ABCDEF"

// hex2 renders n (0..255) as two uppercase hex digits, no prefix.
func hex2(n int) string {
	return string([]byte{hexDigits[(n>>4)&0xF], hexDigits[n&0xF]})
}
