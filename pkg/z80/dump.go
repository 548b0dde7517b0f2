package z80

import "fmt"

// sprintDump formats a one-line register/flag/timing snapshot, in the
// compact register-block style a debugger prints on every stop
// (PC/opcode first, then the register pairs, then flags spelled out as
// a letter string, then the T-state counters).
func sprintDump(c *CPU) string {
	return fmt.Sprintf(
		"PC=%04X OP=%02X AF=%04X BC=%04X DE=%04X HL=%04X IX=%04X IY=%04X SP=%04X I=%02X R=%02X IM=%d IFF1=%t F=[%s] Q=%02X MEMPTR=%04X T=%d TT=%d",
		c.PC(), c.opcode, c.AF(), c.BC(), c.DE(), c.HL(), c.IX(), c.IY(), c.SP(),
		c.I(), c.R(), c.IM, c.IFF1(), flagString(c.F()), c.Q, c.MemPtr, c.T, c.TT,
	)
}

// flagString renders the F register as the conventional SZ5H3PNC letter
// string: the letter when the bit is set, a dot when clear.
func flagString(f byte) string {
	bits := [8]struct {
		mask byte
		c    byte
	}{
		{0x80, 'S'}, {0x40, 'Z'}, {0x20, '5'}, {0x10, 'H'},
		{0x08, '3'}, {0x04, 'P'}, {0x02, 'N'}, {0x01, 'C'},
	}
	out := make([]byte, 8)
	for i, b := range bits {
		if f&b.mask != 0 {
			out[i] = b.c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
